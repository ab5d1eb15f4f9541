package blog

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrPostNotFound          = errors.New("post not found")
	ErrCommentNotFound       = errors.New("comment not found")
	ErrTagNotFound           = errors.New("tag not found")
	ErrSlugTaken             = errors.New("slug already used for this publish date")
	ErrPublishedScopeMissing = errors.New("published scope requires a reference time")
	ErrPostTitleOrBodyEmpty  = errors.New("post title or body empty")
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Post struct {
	ID      int       `json:"id"`
	Title   string    `json:"title"`
	Slug    string    `json:"slug"`
	Body    string    `json:"body"`
	Publish time.Time `json:"publish"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
	Status  Status    `json:"status"`
	Tags    []Tag     `json:"tags"`
}

// IsPublished tells if the post is visible to the public at the given time.
func (p *Post) IsPublished(now time.Time) bool {
	return p.Status == StatusPublished && !p.Publish.After(now)
}

func (p *Post) TagIDs() []int {
	ids := make([]int, 0, len(p.Tags))
	for _, t := range p.Tags {
		ids = append(ids, t.ID)
	}
	return ids
}

func (p *Post) HasTag(slug string) bool {
	for _, t := range p.Tags {
		if t.Slug == slug {
			return true
		}
	}
	return false
}

// Path is the canonical post location: /blog/yyyy/mm/dd/slug
func (p *Post) Path() string {
	publish := p.Publish.UTC()
	return fmt.Sprintf(
		"/blog/%04d/%02d/%02d/%s",
		publish.Year(), int(publish.Month()), publish.Day(), p.Slug,
	)
}

type Comment struct {
	ID      int       `json:"id"`
	PostID  int       `json:"post_id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
	Active  bool      `json:"active"`
}
