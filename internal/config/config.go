package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"-"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// the canonical public address, used in shared links and the sitemap
	SiteURL string `toml:"site_url"`
	// browser origins allowed by CORS
	AllowedOrigins []string `toml:"allowed_origins"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// storage
	PostgresHost     string `toml:"postgres_host"`
	PostgresPort     string `toml:"postgres_port"`
	PostgresDBName   string `toml:"postgres_db_name"`
	PostgresUser     string `toml:"postgres_user"`
	PostgresPassword string `toml:"-"`
	RedisHost        string `toml:"redis_host"`
	RedisPort        string `toml:"redis_port"`

	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// blog
	PostsPerPage            int     `toml:"posts_per_page"`
	SearchThreshold         float64 `toml:"search_threshold"`
	SimilarPostsLimit       int     `toml:"similar_posts_limit"`
	LatestPostsCount        int     `toml:"latest_posts_count"`
	CommentsActiveByDefault bool    `toml:"comments_active_by_default"`
	CommentsAllowedPerMin   int     `toml:"comments_allowed_per_min"`
	SharesAllowedPerMin     int     `toml:"shares_allowed_per_min"`
	LoginAllowedPerMin      int     `toml:"login_allowed_per_min"`

	// mail
	MailFrom     string `toml:"mail_from"`
	SMTPHost     string `toml:"smtp_host"`
	SMTPPort     int    `toml:"smtp_port"`
	SMTPUsername string `toml:"smtp_username"`
	SMTPPassword string `toml:"-"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config section for env: %s", env)
	}

	cfg.Environment = strings.ToLower(env)
	cfg.setDefaults()
	return cfg, nil
}

// setDefaults fills the blog knobs when the TOML file leaves them out
func (c *Config) setDefaults() {
	if c.PostsPerPage == 0 {
		c.PostsPerPage = 2
	}
	if c.SearchThreshold == 0 {
		c.SearchThreshold = 0.3
	}
	if c.SimilarPostsLimit == 0 {
		c.SimilarPostsLimit = 4
	}
	if c.LatestPostsCount == 0 {
		c.LatestPostsCount = 5
	}
	if c.CommentsAllowedPerMin == 0 {
		c.CommentsAllowedPerMin = 5
	}
	if c.SharesAllowedPerMin == 0 {
		c.SharesAllowedPerMin = 3
	}
	if c.LoginAllowedPerMin == 0 {
		c.LoginAllowedPerMin = 15
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	c.SiteURL = strings.TrimRight(c.SiteURL, "/")
}

func Load(env, configPath string) (*Config, error) {
	var tomlConfig Toml
	if _, err := toml.DecodeFile(configPath, &tomlConfig); err != nil {
		return nil, fmt.Errorf("decode toml config [%s]: %w", configPath, err)
	}
	return tomlConfig.Get(env)
}

func Parse(env, content string) (*Config, error) {
	var tomlConfig Toml
	if _, err := toml.Decode(content, &tomlConfig); err != nil {
		return nil, fmt.Errorf("decode toml config: %w", err)
	}
	return tomlConfig.Get(env)
}
