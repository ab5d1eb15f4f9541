//go:build integration_test || all_tests

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2beens/blogsrv/internal/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type postSummary struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	URL   string `json:"url"`
}

type postsPage struct {
	Posts    []postSummary `json:"posts"`
	Page     int           `json:"page"`
	NumPages int           `json:"num_pages"`
	Total    int           `json:"total"`
}

func (s *IntegrationTestSuite) doRequest(ctx context.Context, method, path string, body io.Reader, headers map[string]string) *http.Response {
	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, body)
	require.NoError(s.T(), err)
	req.Header.Set("User-Agent", "test-agent")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	return resp
}

func (s *IntegrationTestSuite) getPostsPage(ctx context.Context, path string) postsPage {
	resp := s.doRequest(ctx, "GET", path, nil, nil)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)

	var page postsPage
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&page))
	return page
}

func (s *IntegrationTestSuite) TestBlog() {
	t := s.T()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// seeded: 2 published, 1 draft
	page := s.getPostsPage(ctx, "/blog/posts?page=abc")
	require.Len(t, page.Posts, 2)
	assert.Equal(t, "testing-in-go", page.Posts[0].Slug)
	assert.Equal(t, "go-concurrency-patterns", page.Posts[1].Slug)
	assert.Equal(t, 1, page.NumPages)

	tagPage := s.getPostsPage(ctx, "/blog/tag/testing")
	require.Len(t, tagPage.Posts, 1)
	assert.Equal(t, "testing-in-go", tagPage.Posts[0].Slug)

	resp := s.doRequest(ctx, "GET", "/blog/2024/06/06/secret-draft", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = s.doRequest(ctx, "GET", "/blog/2024/06/01/go-concurrency-patterns", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail struct {
		Post struct {
			ID   int    `json:"id"`
			HTML string `json:"html"`
		} `json:"post"`
		Similar []postSummary `json:"similar_posts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	resp.Body.Close()
	assert.Contains(t, detail.Post.HTML, "<strong>goroutines</strong>")
	require.Len(t, detail.Similar, 1)
	assert.Equal(t, "testing-in-go", detail.Similar[0].Slug)

	// comment
	form := url.Values{"name": {"Ana"}, "email": {"ana@example.com"}, "body": {"Great read"}}
	resp = s.doRequest(ctx, "POST", fmt.Sprintf("/blog/posts/%d/comment", detail.Post.ID),
		strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = s.doRequest(ctx, "GET", "/blog/2024/06/01/go-concurrency-patterns", nil, nil)
	var withComments struct {
		Comments []struct {
			Name string `json:"name"`
		} `json:"comments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&withComments))
	resp.Body.Close()
	require.Len(t, withComments.Comments, 1)
	assert.Equal(t, "Ana", withComments.Comments[0].Name)

	// nothing listens on the configured smtp port
	resp = s.doRequest(ctx, "POST", fmt.Sprintf("/blog/posts/%d/share", detail.Post.ID),
		strings.NewReader(`{"name":"Ana","email":"ana@example.com","to":"bo@example.com"}`),
		map[string]string{"Content-Type": "application/json"},
	)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()

	// search
	resp = s.doRequest(ctx, "GET", "/blog/search?query=testing", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var searchResp struct {
		Results []struct {
			Post  postSummary `json:"post"`
			Score float64     `json:"score"`
		} `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&searchResp))
	resp.Body.Close()
	require.NotEmpty(t, searchResp.Results)
	assert.Equal(t, "testing-in-go", searchResp.Results[0].Post.Slug)

	// admin: new post needs a token
	newPost := `{"title":"Fresh post","body":"Hello *there*","status":"published","tags":["Go","News"]}`
	resp = s.doRequest(ctx, "POST", "/blog/admin/posts", strings.NewReader(newPost),
		map[string]string{"Content-Type": "application/json"},
	)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	token := doLogin(ctx, t, s.httpClient)
	resp = s.doRequest(ctx, "POST", "/blog/admin/posts", strings.NewReader(newPost),
		map[string]string{"Content-Type": "application/json", middleware.AuthTokenHeader: token},
	)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Post postSummary `json:"post"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, "fresh-post", created.Post.Slug)

	// same slug, same day
	resp = s.doRequest(ctx, "POST", "/blog/admin/posts", strings.NewReader(newPost),
		map[string]string{"Content-Type": "application/json", middleware.AuthTokenHeader: token},
	)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = s.doRequest(ctx, "GET", created.Post.URL, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = s.doRequest(ctx, "GET", "/blog/stats/total", nil, nil)
	var total map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&total))
	resp.Body.Close()
	assert.Equal(t, 3, total["total"])

	resp = s.doRequest(ctx, "GET", "/sitemap.xml", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sitemap, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Contains(t, string(sitemap), serverEndpoint+created.Post.URL)
	assert.NotContains(t, string(sitemap), "secret-draft")
}
