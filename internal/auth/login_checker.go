package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

var _ Checker = (*LoginChecker)(nil)

// Checker tells whether an admin session token is still valid.
type Checker interface {
	IsLogged(ctx context.Context, token string) (bool, error)
}

type LoginChecker struct {
	ttl         time.Duration
	redisClient *redis.Client
	// injectable for tests
	nowFunc func() time.Time
}

func NewLoginChecker(ttl time.Duration, redisClient *redis.Client) *LoginChecker {
	return &LoginChecker{
		ttl:         ttl,
		redisClient: redisClient,
		nowFunc:     time.Now,
	}
}

// IsLogged reports whether the token belongs to a live admin session.
// An unknown token is not an error, it is simply not logged in.
func (c *LoginChecker) IsLogged(ctx context.Context, token string) (bool, error) {
	cmd := c.redisClient.Get(ctx, sessionKeyPrefix+token)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	createdAtUnix, err := strconv.ParseInt(cmd.Val(), 10, 64)
	if err != nil {
		return false, err
	}
	// logged out sessions are zeroed
	if createdAtUnix <= 0 {
		return false, nil
	}

	createdAt := time.Unix(createdAtUnix, 0)
	return c.nowFunc().Sub(createdAt) <= c.ttl, nil
}
