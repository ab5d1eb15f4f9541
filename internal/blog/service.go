package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/blogsrv/internal/pagination"
	"github.com/2beens/blogsrv/internal/telemetry/metrics"
	"github.com/2beens/blogsrv/pkg"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultPostsPerPage     = 2
	DefaultLatestPostsCount = 5
	maxLatestPostsCount     = 50
)

var ErrMailNotSent = errors.New("share mail not sent")

type postsRepo interface {
	ListPublished(ctx context.Context, now time.Time, options ...func(*ListOptions)) ([]*Post, error)
	CountPublished(ctx context.Context, now time.Time) (int, error)
	GetTag(ctx context.Context, slug string) (*Tag, error)
	AddPost(ctx context.Context, post *Post) error
	ActiveComments(ctx context.Context, postID int) ([]*Comment, error)
	AddComment(ctx context.Context, comment *Comment) error
	ToggleCommentActive(ctx context.Context, id int, updated time.Time) (*Comment, error)
}

type Config struct {
	SiteURL                 string
	MailFrom                string
	PostsPerPage            int
	SimilarPostsLimit       int
	LatestPostsCount        int
	SearchThreshold         float64
	CommentsActiveByDefault bool
}

type PostDetails struct {
	Post     *Post
	Comments []*Comment
	Similar  []*Post
}

// Service runs the blog queries. Every public read is scoped to the
// published posts at the time of the call.
type Service struct {
	repo           postsRepo
	mailer         mailer
	ranker         *Ranker
	metricsManager *metrics.Manager
	cfg            Config
	nowFunc        func() time.Time
}

func NewService(
	repo postsRepo,
	mailer mailer,
	metricsManager *metrics.Manager,
	cfg Config,
) *Service {
	if cfg.PostsPerPage == 0 {
		cfg.PostsPerPage = DefaultPostsPerPage
	}
	if cfg.SimilarPostsLimit < 1 {
		cfg.SimilarPostsLimit = DefaultSimilarPostsLimit
	}
	if cfg.LatestPostsCount < 1 {
		cfg.LatestPostsCount = DefaultLatestPostsCount
	}
	cfg.SiteURL = strings.TrimSuffix(cfg.SiteURL, "/")

	return &Service{
		repo:           repo,
		mailer:         mailer,
		ranker:         NewRanker(cfg.SearchThreshold),
		metricsManager: metricsManager,
		cfg:            cfg,
		nowFunc:        time.Now,
	}
}

func (s *Service) ListPosts(ctx context.Context, pageToken string) (pagination.Page[*Post], error) {
	posts, err := s.repo.ListPublished(ctx, s.nowFunc())
	if err != nil {
		return pagination.Page[*Post]{}, fmt.Errorf("list posts: %w", err)
	}
	return pagination.Paginate(posts, s.cfg.PostsPerPage, pageToken), nil
}

func (s *Service) ListTagPosts(ctx context.Context, tagSlug, pageToken string) (*Tag, pagination.Page[*Post], error) {
	tag, err := s.repo.GetTag(ctx, tagSlug)
	if err != nil {
		return nil, pagination.Page[*Post]{}, err
	}

	posts, err := s.repo.ListPublished(ctx, s.nowFunc(), WithTag(tag.Slug))
	if err != nil {
		return nil, pagination.Page[*Post]{}, fmt.Errorf("list posts by tag %s: %w", tagSlug, err)
	}
	return tag, pagination.Paginate(posts, s.cfg.PostsPerPage, pageToken), nil
}

// PostDetails finds the published post by its canonical date and slug,
// with its active comments and similar posts.
func (s *Service) PostDetails(ctx context.Context, year, month, day int, slug string) (*PostDetails, error) {
	now := s.nowFunc()
	posts, err := s.repo.ListPublished(ctx, now, WithPublishDate(year, month, day), WithSlug(slug))
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", slug, err)
	}
	if len(posts) == 0 {
		return nil, ErrPostNotFound
	}
	post := posts[0]

	comments, err := s.repo.ActiveComments(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("get post %d comments: %w", post.ID, err)
	}

	similar, err := s.SimilarPosts(ctx, post)
	if err != nil {
		return nil, err
	}

	return &PostDetails{
		Post:     post,
		Comments: comments,
		Similar:  similar,
	}, nil
}

func (s *Service) SimilarPosts(ctx context.Context, post *Post) ([]*Post, error) {
	tagIDs := post.TagIDs()
	if len(tagIDs) == 0 {
		return []*Post{}, nil
	}

	candidates, err := s.repo.ListPublished(ctx, s.nowFunc(), WithSharedTags(tagIDs), WithExcluded(post.ID))
	if err != nil {
		return nil, fmt.Errorf("get similar posts for %d: %w", post.ID, err)
	}
	return SimilarPosts(post, candidates, s.cfg.SimilarPostsLimit), nil
}

func (s *Service) PublishedPost(ctx context.Context, id int) (*Post, error) {
	posts, err := s.repo.ListPublished(ctx, s.nowFunc(), WithID(id))
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	if len(posts) == 0 {
		return nil, ErrPostNotFound
	}
	return posts[0], nil
}

// AddComment stores a new comment on a published post.
// An invalid form is returned as FormErrors and nothing is saved.
func (s *Service) AddComment(ctx context.Context, postID int, form CommentForm) (*Post, *Comment, error) {
	post, err := s.PublishedPost(ctx, postID)
	if err != nil {
		return nil, nil, err
	}

	if formErrs := validateForm(form); formErrs != nil {
		return post, nil, formErrs
	}

	now := s.nowFunc()
	comment := &Comment{
		PostID:  post.ID,
		Name:    form.Name,
		Email:   form.Email,
		Body:    form.Body,
		Created: now,
		Updated: now,
		Active:  s.cfg.CommentsActiveByDefault,
	}
	if err := s.repo.AddComment(ctx, comment); err != nil {
		return post, nil, fmt.Errorf("add comment: %w", err)
	}

	s.metricsManager.CounterComments.Inc()
	log.Debugf("new comment %d on post %d, active: %t", comment.ID, post.ID, comment.Active)

	return post, comment, nil
}

// SharePost mails a recommendation of a published post.
// Mail transport failures are reported as ErrMailNotSent.
func (s *Service) SharePost(ctx context.Context, postID int, form ShareForm) (*Post, error) {
	post, err := s.PublishedPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	if formErrs := validateForm(form); formErrs != nil {
		s.metricsManager.CounterShares.WithLabelValues("invalid").Inc()
		return post, formErrs
	}

	msg := ShareMessage(form, post, s.PostURL(post), s.cfg.MailFrom)
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metricsManager.CounterShares.WithLabelValues("failed").Inc()
		return post, fmt.Errorf("%w: %w", ErrMailNotSent, err)
	}

	s.metricsManager.CounterShares.WithLabelValues("sent").Inc()
	log.Debugf("post %d shared", post.ID)
	return post, nil
}

func (s *Service) PostURL(post *Post) string {
	return s.cfg.SiteURL + post.Path()
}

// Search ranks the published posts against query.
// A query without searchable terms gives no results and skips the storage.
func (s *Service) Search(ctx context.Context, query string) ([]SearchResult, error) {
	if len(Tokenize(query)) == 0 {
		return []SearchResult{}, nil
	}

	posts, err := s.repo.ListPublished(ctx, s.nowFunc())
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}

	results := s.ranker.Rank(query, posts)
	s.metricsManager.CounterSearches.Inc()
	s.metricsManager.HistogramSearchResults.Observe(float64(len(results)))

	return results, nil
}

func (s *Service) TotalPosts(ctx context.Context) (int, error) {
	return s.repo.CountPublished(ctx, s.nowFunc())
}

// LatestPosts returns the newest published posts; count < 1 means the configured default.
func (s *Service) LatestPosts(ctx context.Context, count int) ([]*Post, error) {
	if count < 1 {
		count = s.cfg.LatestPostsCount
	}
	count = min(count, maxLatestPostsCount)
	return s.repo.ListPublished(ctx, s.nowFunc(), WithLimit(count))
}

func (s *Service) SitemapXML(ctx context.Context) ([]byte, error) {
	posts, err := s.repo.ListPublished(ctx, s.nowFunc())
	if err != nil {
		return nil, fmt.Errorf("sitemap posts: %w", err)
	}
	return Sitemap(s.cfg.SiteURL, posts)
}

// CreatePost stores a new post from the admin form.
// The slug defaults to the slugified title and must be unique per publish date.
func (s *Service) CreatePost(ctx context.Context, form PostForm) (*Post, error) {
	if formErrs := validateForm(form); formErrs != nil {
		return nil, formErrs
	}

	now := s.nowFunc()
	post := &Post{
		Title:   strings.TrimSpace(form.Title),
		Slug:    pkg.Slugify(form.Slug),
		Body:    form.Body,
		Publish: now,
		Created: now,
		Updated: now,
		Status:  form.Status,
	}
	if post.Slug == "" {
		post.Slug = pkg.Slugify(form.Title)
	}
	if post.Slug == "" {
		return nil, FormErrors{"slug": "Enter a valid slug."}
	}
	if form.Publish != nil {
		post.Publish = *form.Publish
	}
	if post.Status == "" {
		post.Status = StatusDraft
	}

	seen := map[string]bool{}
	for _, name := range form.Tags {
		name = strings.TrimSpace(name)
		slug := pkg.Slugify(name)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		post.Tags = append(post.Tags, Tag{Name: name, Slug: slug})
	}

	if err := s.repo.AddPost(ctx, post); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			return nil, FormErrors{"slug": "Slug must be unique for Publish date."}
		}
		return nil, fmt.Errorf("add post: %w", err)
	}

	log.Debugf("new post %d [%s] added, status %s", post.ID, post.Slug, post.Status)
	return post, nil
}

// ToggleComment switches a comment between active and hidden.
func (s *Service) ToggleComment(ctx context.Context, id int) (*Comment, error) {
	return s.repo.ToggleCommentActive(ctx, id, s.nowFunc())
}
