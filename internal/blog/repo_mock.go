package blog

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

var _ postsRepo = (*repoMock)(nil)

// repoMock is an in-memory postsRepo; it filters with ListOptions.Matches,
// the same semantics the SQL repo implements.
type repoMock struct {
	Posts    map[int]*Post
	Comments map[int]*Comment
	mutex    sync.Mutex

	// forced failure for every call, if set
	Err error
}

func newRepoMock() *repoMock {
	return &repoMock{
		Posts:    make(map[int]*Post),
		Comments: make(map[int]*Comment),
	}
}

func (r *repoMock) ListPublished(_ context.Context, now time.Time, options ...func(*ListOptions)) ([]*Post, error) {
	if now.IsZero() {
		return nil, ErrPublishedScopeMissing
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	opts := NewListOptions(options...)
	var posts []*Post
	for _, p := range r.Posts {
		if opts.Matches(p, now) {
			posts = append(posts, p)
		}
	}

	sortNewestFirst(posts)
	if opts.Limit > 0 && len(posts) > opts.Limit {
		posts = posts[:opts.Limit]
	}

	return posts, nil
}

func (r *repoMock) CountPublished(ctx context.Context, now time.Time) (int, error) {
	posts, err := r.ListPublished(ctx, now)
	return len(posts), err
}

func (r *repoMock) GetTag(_ context.Context, slug string) (*Tag, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	for _, p := range r.Posts {
		for _, t := range p.Tags {
			if t.Slug == slug {
				return &t, nil
			}
		}
	}
	return nil, ErrTagNotFound
}

func (r *repoMock) AddPost(_ context.Context, post *Post) error {
	if post.Title == "" || post.Body == "" {
		return ErrPostTitleOrBodyEmpty
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return r.Err
	}

	publishDate := post.Publish.UTC().Format(time.DateOnly)
	for _, p := range r.Posts {
		if p.Slug == post.Slug && p.Publish.UTC().Format(time.DateOnly) == publishDate {
			return ErrSlugTaken
		}
	}

	if post.ID == 0 {
		post.ID = len(r.Posts) + 1
	}
	if _, ok := r.Posts[post.ID]; ok {
		return errors.New("post exists already")
	}

	r.Posts[post.ID] = post
	return nil
}

func (r *repoMock) ActiveComments(_ context.Context, postID int) ([]*Comment, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	var comments []*Comment
	for _, c := range r.Comments {
		if c.PostID == postID && c.Active {
			comments = append(comments, c)
		}
	}
	slices.SortStableFunc(comments, func(a, b *Comment) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	return comments, nil
}

func (r *repoMock) AddComment(_ context.Context, comment *Comment) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return r.Err
	}

	if _, ok := r.Posts[comment.PostID]; !ok {
		return ErrPostNotFound
	}

	if comment.ID == 0 {
		comment.ID = len(r.Comments) + 1
	}
	r.Comments[comment.ID] = comment
	return nil
}

func (r *repoMock) ToggleCommentActive(_ context.Context, id int, updated time.Time) (*Comment, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	c, ok := r.Comments[id]
	if !ok {
		return nil, ErrCommentNotFound
	}
	c.Active = !c.Active
	c.Updated = updated
	return c, nil
}
