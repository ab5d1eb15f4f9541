package blog

import (
	"bytes"
	"html"
	"strings"
	"time"

	"github.com/2beens/blogsrv/pkg"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const excerptWords = 30

type TagView struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type PostSummary struct {
	ID      int       `json:"id"`
	Title   string    `json:"title"`
	Slug    string    `json:"slug"`
	URL     string    `json:"url"`
	Publish time.Time `json:"publish"`
	Excerpt string    `json:"excerpt"`
	Tags    []TagView `json:"tags"`
}

type PostDetail struct {
	PostSummary
	HTML    string    `json:"html"`
	Updated time.Time `json:"updated"`
}

type CommentView struct {
	ID      int       `json:"id"`
	Name    string    `json:"name"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
	Active  bool      `json:"active"`
}

type SearchResultView struct {
	Post  PostSummary `json:"post"`
	Score float64     `json:"score"`
}

// Renderer shapes posts into presentation records.
// Post bodies are markdown; the produced HTML is sanitized.
type Renderer struct {
	markdown  goldmark.Markdown
	sanitizer *bluemonday.Policy
	stripper  *bluemonday.Policy
}

func NewRenderer() *Renderer {
	return &Renderer{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
		sanitizer: bluemonday.UGCPolicy(),
		stripper:  bluemonday.StrictPolicy(),
	}
}

// HTML renders a markdown body into safe HTML.
func (r *Renderer) HTML(markdown string) string {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(markdown), &buf); err != nil {
		return r.stripper.Sanitize(markdown)
	}
	return pkg.BytesToString(r.sanitizer.SanitizeBytes(buf.Bytes()))
}

// Excerpt is the first words of the body as plain text.
func (r *Renderer) Excerpt(markdown string) string {
	text := html.UnescapeString(r.stripper.Sanitize(r.HTML(markdown)))
	return pkg.TruncateWords(text, excerptWords)
}

func (r *Renderer) Summary(p *Post) PostSummary {
	tags := make([]TagView, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, TagView{Name: t.Name, Slug: t.Slug})
	}
	return PostSummary{
		ID:      p.ID,
		Title:   p.Title,
		Slug:    p.Slug,
		URL:     p.Path(),
		Publish: p.Publish,
		Excerpt: r.Excerpt(p.Body),
		Tags:    tags,
	}
}

func (r *Renderer) Summaries(posts []*Post) []PostSummary {
	summaries := make([]PostSummary, 0, len(posts))
	for _, p := range posts {
		summaries = append(summaries, r.Summary(p))
	}
	return summaries
}

func (r *Renderer) Detail(p *Post) PostDetail {
	return PostDetail{
		PostSummary: r.Summary(p),
		HTML:        r.HTML(p.Body),
		Updated:     p.Updated,
	}
}

// Comment drops the author email, it is never shown publicly.
func (r *Renderer) Comment(c *Comment) CommentView {
	return CommentView{
		ID:      c.ID,
		Name:    c.Name,
		Body:    strings.TrimSpace(c.Body),
		Created: c.Created,
		Active:  c.Active,
	}
}

func (r *Renderer) Comments(comments []*Comment) []CommentView {
	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, r.Comment(c))
	}
	return views
}

func (r *Renderer) SearchResults(results []SearchResult) []SearchResultView {
	views := make([]SearchResultView, 0, len(results))
	for _, res := range results {
		views = append(views, SearchResultView{
			Post:  r.Summary(res.Post),
			Score: res.Score,
		})
	}
	return views
}
