package blog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostFormFromValues(t *testing.T) {
	form := postFormFromValues(url.Values{
		"title":   {"  Hello  "},
		"body":    {"text"},
		"publish": {"2024-06-20T10:00:00Z"},
		"status":  {"published"},
		"tags":    {"go, web,, "},
	})
	assert.Equal(t, "Hello", form.Title)
	assert.Equal(t, StatusPublished, form.Status)
	assert.Equal(t, []string{"go", "web"}, form.Tags)
	require.NotNil(t, form.Publish)
	assert.Equal(t, time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC), *form.Publish)

	form = postFormFromValues(url.Values{"publish": {"yesterday"}})
	assert.Nil(t, form.Publish)
	assert.Empty(t, form.Tags)
}

func TestHandler_NewPost(t *testing.T) {
	repo := newTestRepo(t)
	r := newTestRouter(t, repo, nil, true)

	values := url.Values{
		"title":  {"Generics in practice"},
		"body":   {"Type *parameters* at work."},
		"status": {"published"},
		"tags":   {"Go, Generics"},
	}
	req := httptest.NewRequest("POST", "/blog/admin/posts", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(r, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp newPostResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Post)
	assert.Equal(t, "generics-in-practice", resp.Post.Slug)
	assert.Equal(t, StatusPublished, resp.Status)
	assert.Contains(t, resp.Post.HTML, "<em>parameters</em>")
	assert.Len(t, resp.Post.Tags, 2)

	// visible right away, as it is published now
	rr = serve(r, httptest.NewRequest("GET", "/blog/2024/06/15/generics-in-practice", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest("POST", "/blog/admin/posts", strings.NewReader(`{"title":"   ","body":"x","status":"archived"}`))
	req.Header.Set("Content-Type", "application/json")
	rr = serve(r, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp = newPostResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "This field is required.", resp.Errors["title"])
	assert.Equal(t, "Select a valid choice.", resp.Errors["status"])
	assert.Nil(t, resp.Post)

	req = httptest.NewRequest("POST", "/blog/admin/posts", strings.NewReader(`{broken`))
	req.Header.Set("Content-Type", "application/json")
	rr = serve(r, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_ToggleComment(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.AddComment(context.Background(), &Comment{PostID: 1, Name: "a", Body: "hi", Created: testNow, Active: true}))
	r := newTestRouter(t, repo, nil, true)

	rr := serve(r, httptest.NewRequest("PATCH", "/blog/admin/comments/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]CommentView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp["comment"].Active)
	assert.False(t, repo.Comments[1].Active)
	assert.Equal(t, testNow, repo.Comments[1].Updated)

	rr = serve(r, httptest.NewRequest("PATCH", "/blog/admin/comments/42", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(r, httptest.NewRequest("OPTIONS", "/blog/admin/comments/1", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "PATCH, OPTIONS", rr.Header().Get("Allow"))
}
