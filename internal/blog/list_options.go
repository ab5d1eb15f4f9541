package blog

import (
	"slices"
	"time"
)

// ListOptions narrow down the published posts listing.
// Zero values mean "no restriction".
type ListOptions struct {
	ID           int
	TagSlug      string
	PublishDate  time.Time
	Slug         string
	SharedTagIDs []int
	ExcludedID   int
	Limit        int
}

func WithID(id int) func(*ListOptions) {
	return func(o *ListOptions) {
		o.ID = id
	}
}

func WithTag(slug string) func(*ListOptions) {
	return func(o *ListOptions) {
		o.TagSlug = slug
	}
}

// WithPublishDate restricts to posts published on the given (UTC) calendar day.
func WithPublishDate(year, month, day int) func(*ListOptions) {
	return func(o *ListOptions) {
		o.PublishDate = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	}
}

func WithSlug(slug string) func(*ListOptions) {
	return func(o *ListOptions) {
		o.Slug = slug
	}
}

// WithSharedTags keeps posts having at least one of the given tags.
// An empty tag set matches nothing.
func WithSharedTags(tagIDs []int) func(*ListOptions) {
	return func(o *ListOptions) {
		o.SharedTagIDs = append([]int{}, tagIDs...)
	}
}

func WithExcluded(postID int) func(*ListOptions) {
	return func(o *ListOptions) {
		o.ExcludedID = postID
	}
}

func WithLimit(n int) func(*ListOptions) {
	return func(o *ListOptions) {
		o.Limit = n
	}
}

func NewListOptions(options ...func(*ListOptions)) *ListOptions {
	opts := &ListOptions{}
	for _, o := range options {
		o(opts)
	}
	return opts
}

// Matches is the reference predicate of a published listing; the SQL repo
// translates the same conditions into its WHERE clause.
func (o *ListOptions) Matches(p *Post, now time.Time) bool {
	if !p.IsPublished(now) {
		return false
	}
	if o.ID > 0 && p.ID != o.ID {
		return false
	}
	if o.TagSlug != "" && !p.HasTag(o.TagSlug) {
		return false
	}
	if !o.PublishDate.IsZero() {
		publish := p.Publish.UTC()
		if publish.Before(o.PublishDate) || !publish.Before(o.PublishDate.AddDate(0, 0, 1)) {
			return false
		}
	}
	if o.Slug != "" && p.Slug != o.Slug {
		return false
	}
	if o.SharedTagIDs != nil && !sharesAnyTag(p, o.SharedTagIDs) {
		return false
	}
	if o.ExcludedID > 0 && p.ID == o.ExcludedID {
		return false
	}
	return true
}

func sharesAnyTag(p *Post, tagIDs []int) bool {
	for _, t := range p.Tags {
		if slices.Contains(tagIDs, t.ID) {
			return true
		}
	}
	return false
}

// sortNewestFirst orders by publish time descending, ID descending on ties.
func sortNewestFirst(posts []*Post) {
	slices.SortStableFunc(posts, func(a, b *Post) int {
		if c := b.Publish.Compare(a.Publish); c != 0 {
			return c
		}
		return b.ID - a.ID
	})
}
