package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/blogsrv/internal/telemetry/tracing"
	"github.com/2beens/blogsrv/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// manual caching of blog posts not needed (at least for this use case):
// https://github.com/jackc/pgx/wiki/Automatic-Prepared-Statement-Caching

const postColumns = `p.id, p.title, p.slug, p.body, p.publish, p.created, p.updated, p.status`

// unique index in schema.sql
const slugPublishDateConstraint = "ux_post_slug_publish_date"

var _ postsRepo = (*Repo)(nil)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// ListPublished returns the posts visible at now, newest first.
// Tags are loaded for every returned post.
func (r *Repo) ListPublished(ctx context.Context, now time.Time, options ...func(*ListOptions)) ([]*Post, error) {
	if now.IsZero() {
		return nil, ErrPublishedScopeMissing
	}

	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.ListPublished")
	defer span.End()

	opts := NewListOptions(options...)
	query, args := publishedQuery(now, opts)
	span.SetAttributes(attribute.Int("args", len(args)))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("query published posts: %w", err)
	}
	defer rows.Close()

	posts, err := rows2posts(rows)
	if err != nil {
		return nil, err
	}

	if err := r.loadTags(ctx, posts); err != nil {
		return nil, err
	}

	log.Tracef("listed %d published posts", len(posts))
	return posts, nil
}

// publishedQuery translates ListOptions.Matches into SQL.
func publishedQuery(now time.Time, opts *ListOptions) (string, []any) {
	args := []any{StatusPublished, now.UTC()}
	conds := []string{"p.status = $1", "p.publish <= $2"}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.ID > 0 {
		conds = append(conds, "p.id = "+arg(opts.ID))
	}
	if opts.TagSlug != "" {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM post_tag pt JOIN tag t ON t.id = pt.tag_id
			WHERE pt.post_id = p.id AND t.slug = `+arg(opts.TagSlug)+`)`)
	}
	if !opts.PublishDate.IsZero() {
		conds = append(conds, "p.publish >= "+arg(opts.PublishDate))
		conds = append(conds, "p.publish < "+arg(opts.PublishDate.AddDate(0, 0, 1)))
	}
	if opts.Slug != "" {
		conds = append(conds, "p.slug = "+arg(opts.Slug))
	}
	if opts.SharedTagIDs != nil {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM post_tag pt
			WHERE pt.post_id = p.id AND pt.tag_id = ANY(`+arg(opts.SharedTagIDs)+`))`)
	}
	if opts.ExcludedID > 0 {
		conds = append(conds, "p.id <> "+arg(opts.ExcludedID))
	}

	query := `SELECT ` + postColumns + ` FROM post p WHERE ` +
		strings.Join(conds, " AND ") +
		` ORDER BY p.publish DESC, p.id DESC`
	if opts.Limit > 0 {
		query += " LIMIT " + arg(opts.Limit)
	}

	return query, args
}

func (r *Repo) loadTags(ctx context.Context, posts []*Post) error {
	if len(posts) == 0 {
		return nil
	}

	postsByID := make(map[int]*Post, len(posts))
	ids := make([]int, 0, len(posts))
	for _, p := range posts {
		postsByID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.db.Query(
		ctx,
		`
			SELECT pt.post_id, t.id, t.name, t.slug
			FROM post_tag pt JOIN tag t ON t.id = pt.tag_id
			WHERE pt.post_id = ANY($1)
			ORDER BY t.name, t.id;
		`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("query post tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var postID int
		var tag Tag
		if err := rows.Scan(&postID, &tag.ID, &tag.Name, &tag.Slug); err != nil {
			return fmt.Errorf("scan post tag: %w", err)
		}
		if p, ok := postsByID[postID]; ok {
			p.Tags = append(p.Tags, tag)
		}
	}

	return rows.Err()
}

func (r *Repo) CountPublished(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		return 0, ErrPublishedScopeMissing
	}

	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.CountPublished")
	defer span.End()

	var count int
	if err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM post WHERE status = $1 AND publish <= $2`,
		StatusPublished, now.UTC(),
	).Scan(&count); err != nil {
		tracing.RecordError(span, err)
		return 0, fmt.Errorf("count published posts: %w", err)
	}

	return count, nil
}

func (r *Repo) GetTag(ctx context.Context, slug string) (*Tag, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.GetTag")
	span.SetAttributes(attribute.String("slug", slug))
	defer span.End()

	var tag Tag
	err := r.db.QueryRow(
		ctx,
		`SELECT id, name, slug FROM tag WHERE slug = $1`,
		slug,
	).Scan(&tag.ID, &tag.Name, &tag.Slug)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTagNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tag %s: %w", slug, err)
	}

	return &tag, nil
}

// AddPost stores the post together with its tags; unknown tags are created.
func (r *Repo) AddPost(ctx context.Context, post *Post) error {
	if post.Title == "" || post.Body == "" {
		return ErrPostTitleOrBodyEmpty
	}

	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.AddPost")
	defer span.End()

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(
			ctx,
			`
				INSERT INTO post (title, slug, body, publish, created, updated, status)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id;
			`,
			post.Title, post.Slug, post.Body,
			post.Publish.UTC(), post.Created.UTC(), post.Updated.UTC(), post.Status,
		).Scan(&post.ID); err != nil {
			if pkg.IsUniqueViolationError(err, slugPublishDateConstraint) {
				return ErrSlugTaken
			}
			return fmt.Errorf("insert post: %w", err)
		}

		for i := range post.Tags {
			tag := &post.Tags[i]
			if err := tx.QueryRow(
				ctx,
				`
					INSERT INTO tag (name, slug) VALUES ($1, $2)
					ON CONFLICT (slug) DO UPDATE SET name = tag.name
					RETURNING id, name;
				`,
				tag.Name, tag.Slug,
			).Scan(&tag.ID, &tag.Name); err != nil {
				return fmt.Errorf("upsert tag %s: %w", tag.Slug, err)
			}

			if _, err := tx.Exec(
				ctx,
				`INSERT INTO post_tag (post_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				post.ID, tag.ID,
			); err != nil {
				return fmt.Errorf("link tag %s: %w", tag.Slug, err)
			}
		}

		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		post.ID = 0
		return err
	}

	span.SetAttributes(attribute.Int("id", post.ID))
	return nil
}

// ActiveComments lists the moderated-in comments of a post, oldest first.
func (r *Repo) ActiveComments(ctx context.Context, postID int) ([]*Comment, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.ActiveComments")
	span.SetAttributes(attribute.Int("post.id", postID))
	defer span.End()

	rows, err := r.db.Query(
		ctx,
		`
			SELECT id, post_id, name, email, body, created, updated, active
			FROM comment
			WHERE post_id = $1 AND active
			ORDER BY created, id;
		`,
		postID,
	)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

func (r *Repo) AddComment(ctx context.Context, comment *Comment) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.AddComment")
	span.SetAttributes(attribute.Int("post.id", comment.PostID))
	defer span.End()

	if err := r.db.QueryRow(
		ctx,
		`
			INSERT INTO comment (post_id, name, email, body, created, updated, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id;
		`,
		comment.PostID, comment.Name, comment.Email, comment.Body,
		comment.Created.UTC(), comment.Updated.UTC(), comment.Active,
	).Scan(&comment.ID); err != nil {
		tracing.RecordError(span, err)
		if pkg.IsForeignKeyViolationError(err) {
			return ErrPostNotFound
		}
		return fmt.Errorf("insert comment: %w", err)
	}

	return nil
}

// ToggleCommentActive flips the moderation flag of a comment.
func (r *Repo) ToggleCommentActive(ctx context.Context, id int, updated time.Time) (*Comment, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogRepo.ToggleCommentActive")
	span.SetAttributes(attribute.Int("id", id))
	defer span.End()

	rows, err := r.db.Query(
		ctx,
		`
			UPDATE comment SET active = NOT active, updated = $2
			WHERE id = $1
			RETURNING id, post_id, name, email, body, created, updated, active;
		`,
		id, updated.UTC(),
	)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("toggle comment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrCommentNotFound
	}

	return scanComment(rows)
}

func scanComment(rows pgx.Rows) (*Comment, error) {
	var c Comment
	if err := rows.Scan(&c.ID, &c.PostID, &c.Name, &c.Email, &c.Body, &c.Created, &c.Updated, &c.Active); err != nil {
		return nil, fmt.Errorf("scan comment: %w", err)
	}
	return &c, nil
}

func rows2posts(rows pgx.Rows) ([]*Post, error) {
	var posts []*Post
	for rows.Next() {
		var p Post
		var status string
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &p.Body, &p.Publish, &p.Created, &p.Updated, &status); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.Status = Status(status)
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}
