package blog

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/2beens/blogsrv/internal/mail"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestService_ListPosts_Pagination(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newTestRepo(t), nil)

	testCases := []struct {
		token    string
		expected []int
		number   int
	}{
		{token: "abc", expected: []int{5, 2}, number: 1},
		{token: "", expected: []int{5, 2}, number: 1},
		{token: "2", expected: []int{1, 4}, number: 2},
		{token: "99", expected: []int{6}, number: 3},
	}

	for _, tc := range testCases {
		page, err := service.ListPosts(ctx, tc.token)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, postIDs(page.Items), "token %q", tc.token)
		assert.Equal(t, tc.number, page.Number)
		assert.Equal(t, 3, page.NumPages)
		assert.Equal(t, 5, page.Total)
	}
}

func TestService_ListPosts_NeverDrafts(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newTestRepo(t), nil)

	first, err := service.ListPosts(ctx, "1")
	require.NoError(t, err)
	for p := 1; p <= first.NumPages; p++ {
		page, err := service.ListPosts(ctx, strconv.Itoa(p))
		require.NoError(t, err)
		for _, post := range page.Items {
			assert.Equal(t, StatusPublished, post.Status)
			assert.NotEqual(t, 3, post.ID)
			assert.NotEqual(t, 7, post.ID)
		}
	}
}

func TestService_ListTagPosts(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newTestRepo(t), nil)

	tag, page, err := service.ListTagPosts(ctx, "go", "")
	require.NoError(t, err)
	assert.Equal(t, "Go", tag.Name)
	assert.Equal(t, []int{5, 2}, postIDs(page.Items))
	assert.Equal(t, 3, page.Total)

	_, _, err = service.ListTagPosts(ctx, "rust", "")
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestService_PostDetails(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.AddComment(ctx, &Comment{PostID: 1, Name: "a", Body: "visible", Created: testNow, Active: true}))
	require.NoError(t, repo.AddComment(ctx, &Comment{PostID: 1, Name: "b", Body: "moderated", Created: testNow, Active: false}))
	service := newTestService(repo, nil)

	details, err := service.PostDetails(ctx, 2024, 6, 1, "go-concurrency-patterns")
	require.NoError(t, err)
	assert.Equal(t, 1, details.Post.ID)
	require.Len(t, details.Comments, 1)
	assert.Equal(t, "visible", details.Comments[0].Body)
	assert.Equal(t, []int{5, 2}, postIDs(details.Similar))

	// wrong day, draft and scheduled posts are not found
	_, err = service.PostDetails(ctx, 2024, 6, 2, "go-concurrency-patterns")
	assert.ErrorIs(t, err, ErrPostNotFound)
	_, err = service.PostDetails(ctx, 2024, 6, 6, "unfinished")
	assert.ErrorIs(t, err, ErrPostNotFound)
	_, err = service.PostDetails(ctx, 2024, 7, 1, "go-2-preview")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestService_StorageErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	repo.Err = errors.New("connection reset")
	service := newTestService(repo, nil)

	_, err := service.ListPosts(ctx, "1")
	assert.ErrorIs(t, err, repo.Err)
	_, err = service.PostDetails(ctx, 2024, 6, 1, "go-concurrency-patterns")
	assert.ErrorIs(t, err, repo.Err)
	_, err = service.Search(ctx, "go")
	assert.ErrorIs(t, err, repo.Err)
	_, err = service.TotalPosts(ctx)
	assert.ErrorIs(t, err, repo.Err)
}

func TestService_AddComment(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	service := newTestService(repo, nil)

	post, comment, err := service.AddComment(ctx, 2, CommentForm{Name: "Ana", Email: "ana@example.com", Body: "Great"})
	require.NoError(t, err)
	assert.Equal(t, 2, post.ID)
	assert.Equal(t, 2, comment.PostID)
	assert.True(t, comment.Active)
	assert.Equal(t, testNow, comment.Created)
	assert.Equal(t, float64(1), testutil.ToFloat64(service.metricsManager.CounterComments))

	// invalid form saves nothing
	_, _, err = service.AddComment(ctx, 2, CommentForm{Name: "Ana"})
	var formErrs FormErrors
	require.ErrorAs(t, err, &formErrs)
	assert.Contains(t, formErrs, "email")
	assert.Len(t, repo.Comments, 1)

	// drafts cannot be commented
	_, _, err = service.AddComment(ctx, 3, CommentForm{Name: "Ana", Email: "ana@example.com", Body: "Great"})
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestService_AddComment_Moderated(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	service := newTestService(repo, nil)
	service.cfg.CommentsActiveByDefault = false

	_, comment, err := service.AddComment(ctx, 2, CommentForm{Name: "Ana", Email: "ana@example.com", Body: "Great"})
	require.NoError(t, err)
	assert.False(t, comment.Active)

	details, err := service.PostDetails(ctx, 2024, 6, 5, "testing-in-go")
	require.NoError(t, err)
	assert.Empty(t, details.Comments)

	toggled, err := service.ToggleComment(ctx, comment.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Active)

	details, err = service.PostDetails(ctx, 2024, 6, 5, "testing-in-go")
	require.NoError(t, err)
	assert.Len(t, details.Comments, 1)
}

func TestService_SharePost(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mailerMock := NewMockmailer(ctrl)
	service := newTestService(newTestRepo(t), mailerMock)

	form := ShareForm{Name: "Ana", Email: "ana@example.com", To: "bo@example.com", Comments: "must read"}
	mailerMock.EXPECT().Send(gomock.Any(), mail.Message{
		From:    "blog@example.com",
		To:      []string{"bo@example.com"},
		Subject: "Ana recommends you read Worker pools",
		Body:    "Read Worker pools at https://blog.example.com/blog/2024/06/10/worker-pools\n\nAna's comments: must read",
	}).Return(nil)

	post, err := service.SharePost(ctx, 5, form)
	require.NoError(t, err)
	assert.Equal(t, 5, post.ID)
	assert.Equal(t, float64(1), testutil.ToFloat64(service.metricsManager.CounterShares.WithLabelValues("sent")))
}

func TestService_SharePost_Failures(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	mailerMock := NewMockmailer(ctrl)
	service := newTestService(newTestRepo(t), mailerMock)

	valid := ShareForm{Name: "Ana", Email: "ana@example.com", To: "bo@example.com"}

	// no mail for missing or unpublished posts, nor for invalid forms
	_, err := service.SharePost(ctx, 3, valid)
	assert.ErrorIs(t, err, ErrPostNotFound)
	_, err = service.SharePost(ctx, 5, ShareForm{Name: "Ana"})
	var formErrs FormErrors
	assert.ErrorAs(t, err, &formErrs)

	mailerMock.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))
	post, err := service.SharePost(ctx, 5, valid)
	assert.ErrorIs(t, err, ErrMailNotSent)
	assert.Contains(t, err.Error(), "smtp down")
	assert.NotNil(t, post)
	assert.Equal(t, float64(1), testutil.ToFloat64(service.metricsManager.CounterShares.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(service.metricsManager.CounterShares.WithLabelValues("invalid")))
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newTestRepo(t), nil)

	results, err := service.Search(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, float64(0), testutil.ToFloat64(service.metricsManager.CounterSearches))

	// the draft and the scheduled post mention go too, but are never found
	results, err = service.Search(ctx, "go")
	require.NoError(t, err)
	ids := make([]int, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Post.ID)
	}
	assert.Equal(t, []int{2, 1}, ids)
	assert.Equal(t, float64(1), testutil.ToFloat64(service.metricsManager.CounterSearches))

	again, err := service.Search(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, results, again)
}

func TestService_TotalAndLatest(t *testing.T) {
	ctx := context.Background()
	service := newTestService(newTestRepo(t), nil)

	total, err := service.TotalPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	latest, err := service.LatestPosts(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 2, 1, 4, 6}, postIDs(latest))

	latest, err = service.LatestPosts(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 2}, postIDs(latest))
}

func TestService_CreatePost(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	service := newTestService(repo, nil)

	post, err := service.CreatePost(ctx, PostForm{
		Title:  "Context cancellation in Go",
		Body:   "Always pass ctx.",
		Status: StatusPublished,
		Tags:   []string{"Go", "go", " Contexts "},
	})
	require.NoError(t, err)
	assert.NotZero(t, post.ID)
	assert.Equal(t, "context-cancellation-in-go", post.Slug)
	assert.Equal(t, testNow, post.Publish)
	assert.Equal(t, []Tag{{Name: "Go", Slug: "go"}, {Name: "Contexts", Slug: "contexts"}}, post.Tags)

	// same slug on the same day
	_, err = service.CreatePost(ctx, PostForm{Title: "Context cancellation in Go", Body: "again"})
	var formErrs FormErrors
	require.ErrorAs(t, err, &formErrs)
	assert.Equal(t, "Slug must be unique for Publish date.", formErrs["slug"])

	// but fine on another day, as a draft by default
	publish := testNow.Add(24 * time.Hour)
	post, err = service.CreatePost(ctx, PostForm{Title: "Context cancellation in Go", Body: "again", Publish: &publish})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, post.Status)

	_, err = service.CreatePost(ctx, PostForm{Title: "!!!", Body: "x"})
	require.ErrorAs(t, err, &formErrs)
	assert.Contains(t, formErrs, "slug")
}
