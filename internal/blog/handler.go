package blog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/2beens/blogsrv/internal/middleware"
	"github.com/2beens/blogsrv/internal/pagination"
	"github.com/2beens/blogsrv/internal/telemetry/metrics"
	"github.com/2beens/blogsrv/internal/telemetry/tracing"
	"github.com/2beens/blogsrv/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type RateLimits struct {
	CommentsPerMin int
	SharesPerMin   int
}

type postsPageResponse struct {
	Tag         *TagView      `json:"tag,omitempty"`
	Posts       []PostSummary `json:"posts"`
	Page        int           `json:"page"`
	NumPages    int           `json:"num_pages"`
	HasNext     bool          `json:"has_next"`
	HasPrevious bool          `json:"has_previous"`
	Total       int           `json:"total"`
}

type postDetailResponse struct {
	Post        PostDetail    `json:"post"`
	Comments    []CommentView `json:"comments"`
	Similar     []PostSummary `json:"similar_posts"`
	CommentForm CommentForm   `json:"comment_form"`
}

type commentResponse struct {
	Post    PostSummary  `json:"post"`
	Comment *CommentView `json:"comment,omitempty"`
	Form    CommentForm  `json:"form"`
	Errors  FormErrors   `json:"errors,omitempty"`
}

type shareResponse struct {
	Post   PostSummary `json:"post"`
	Form   ShareForm   `json:"form"`
	Sent   bool        `json:"sent"`
	Errors FormErrors  `json:"errors,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type searchResponse struct {
	Query   string             `json:"query"`
	Results []SearchResultView `json:"results"`
	Errors  FormErrors         `json:"errors,omitempty"`
	Form    *SearchForm        `json:"form,omitempty"`
}

type Handler struct {
	service  *Service
	renderer *Renderer
}

func NewHandler(service *Service, renderer *Renderer) *Handler {
	return &Handler{
		service:  service,
		renderer: renderer,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	rateLimits RateLimits,
	metricsManager *metrics.Manager,
) {
	mainRouter.HandleFunc("/sitemap.xml", handler.handleSitemap).Methods("GET").Name("sitemap")

	blogRouter := mainRouter.PathPrefix("/blog").Subrouter()
	blogRouter.HandleFunc("/posts", handler.handleList).Methods("GET").Name("posts-list")
	blogRouter.HandleFunc("/tag/{tag}", handler.handleListByTag).Methods("GET").Name("posts-by-tag")
	blogRouter.HandleFunc(
		"/{year:[0-9]{4}}/{month:[0-9]{1,2}}/{day:[0-9]{1,2}}/{slug}",
		handler.handleDetail,
	).Methods("GET").Name("post-detail")
	blogRouter.Handle(
		"/posts/{id:[0-9]+}/comment",
		middleware.RateLimit(rateLimiter, "comment", rateLimits.CommentsPerMin, metricsManager)(
			http.HandlerFunc(handler.handleComment),
		),
	).Methods("POST", "OPTIONS").Name("post-comment")
	blogRouter.Handle(
		"/posts/{id:[0-9]+}/share",
		middleware.RateLimit(rateLimiter, "share", rateLimits.SharesPerMin, metricsManager)(
			http.HandlerFunc(handler.handleShare),
		),
	).Methods("GET", "POST", "OPTIONS").Name("post-share")
	blogRouter.HandleFunc("/search", handler.handleSearch).Methods("GET").Name("search")
	blogRouter.HandleFunc("/stats/total", handler.handleTotal).Methods("GET").Name("total-posts")
	blogRouter.HandleFunc("/latest", handler.handleLatest).Methods("GET").Name("latest-posts")

	adminRouter := blogRouter.PathPrefix("/admin").Subrouter()
	adminRouter.HandleFunc("/posts", handler.handleNewPost).Methods("POST", "OPTIONS").Name("admin-new-post")
	adminRouter.HandleFunc("/comments/{id:[0-9]+}", handler.handleToggleComment).Methods("PATCH", "OPTIONS").Name("admin-toggle-comment")
}

func (handler *Handler) pageResponse(page pagination.Page[*Post]) postsPageResponse {
	return postsPageResponse{
		Posts:       handler.renderer.Summaries(page.Items),
		Page:        page.Number,
		NumPages:    page.NumPages,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
		Total:       page.Total,
	}
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "blogHandler.list")
	defer span.End()

	pageToken := r.URL.Query().Get("page")
	span.SetAttributes(attribute.String("page", pageToken))

	page, err := handler.service.ListPosts(ctx, pageToken)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("list posts: %s", err)
		http.Error(w, "failed to get blog posts", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONOK(w, handler.pageResponse(page))
}

func (handler *Handler) handleListByTag(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "blogHandler.listByTag")
	defer span.End()

	tagSlug := mux.Vars(r)["tag"]
	pageToken := r.URL.Query().Get("page")
	span.SetAttributes(attribute.String("tag", tagSlug))
	span.SetAttributes(attribute.String("page", pageToken))

	tag, page, err := handler.service.ListTagPosts(ctx, tagSlug, pageToken)
	if errors.Is(err, ErrTagNotFound) {
		http.Error(w, "tag not found", http.StatusNotFound)
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("list posts by tag %s: %s", tagSlug, err)
		http.Error(w, "failed to get blog posts", http.StatusInternalServerError)
		return
	}

	resp := handler.pageResponse(page)
	resp.Tag = &TagView{Name: tag.Name, Slug: tag.Slug}
	pkg.WriteJSONOK(w, resp)
}

func (handler *Handler) handleDetail(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "blogHandler.detail")
	defer span.End()

	vars := mux.Vars(r)
	year, month, day, ok := parseDate(vars["year"], vars["month"], vars["day"])
	if !ok {
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}
	slug := vars["slug"]
	span.SetAttributes(attribute.String("slug", slug))

	details, err := handler.service.PostDetails(ctx, year, month, day, slug)
	if errors.Is(err, ErrPostNotFound) {
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("get post details %s: %s", slug, err)
		http.Error(w, "failed to get blog post", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONOK(w, postDetailResponse{
		Post:        handler.renderer.Detail(details.Post),
		Comments:    handler.renderer.Comments(details.Comments),
		Similar:     handler.renderer.Summaries(details.Similar),
		CommentForm: CommentForm{},
	})
}

// parseDate rejects dates that do not exist, like 2024/02/30.
func parseDate(yearStr, monthStr, dayStr string) (int, int, int, bool) {
	year, errY := strconv.Atoi(yearStr)
	month, errM := strconv.Atoi(monthStr)
	day, errD := strconv.Atoi(dayStr)
	if errY != nil || errM != nil || errD != nil {
		return 0, 0, 0, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return 0, 0, 0, false
	}
	return year, month, day, true
}

func idVar(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func (handler *Handler) handleComment(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "blogHandler.comment")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	id, ok := idVar(r)
	if !ok {
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}
	span.SetAttributes(attribute.Int("post.id", id))

	form, err := decodeForm(r, commentFormFromValues)
	if err != nil {
		log.Errorf("comment, decode form: %s", err)
		http.Error(w, "bad comment form", http.StatusBadRequest)
		return
	}

	post, comment, err := handler.service.AddComment(ctx, id, form)
	var formErrs FormErrors
	switch {
	case errors.Is(err, ErrPostNotFound):
		http.Error(w, "post not found", http.StatusNotFound)
		return
	case errors.As(err, &formErrs):
		span.SetStatus(codes.Error, "invalid form")
		pkg.WriteJSON(w, commentResponse{
			Post:   handler.renderer.Summary(post),
			Form:   form,
			Errors: formErrs,
		}, http.StatusBadRequest)
		return
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("add comment to post %d: %s", id, err)
		http.Error(w, "failed to add comment", http.StatusInternalServerError)
		return
	}

	commentView := handler.renderer.Comment(comment)
	pkg.WriteJSON(w, commentResponse{
		Post:    handler.renderer.Summary(post),
		Comment: &commentView,
		Form:    form,
	}, http.StatusCreated)
}

func (handler *Handler) handleShare(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "blogHandler.share")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "GET, POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	id, ok := idVar(r)
	if !ok {
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}
	span.SetAttributes(attribute.Int("post.id", id))

	if r.Method == http.MethodGet {
		post, err := handler.service.PublishedPost(ctx, id)
		if errors.Is(err, ErrPostNotFound) {
			http.Error(w, "post not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Errorf("share, get post %d: %s", id, err)
			http.Error(w, "failed to get blog post", http.StatusInternalServerError)
			return
		}
		pkg.WriteJSONOK(w, shareResponse{
			Post: handler.renderer.Summary(post),
			Form: ShareForm{},
		})
		return
	}

	form, err := decodeForm(r, shareFormFromValues)
	if err != nil {
		log.Errorf("share, decode form: %s", err)
		http.Error(w, "bad share form", http.StatusBadRequest)
		return
	}

	post, err := handler.service.SharePost(ctx, id, form)
	var formErrs FormErrors
	switch {
	case errors.Is(err, ErrPostNotFound):
		http.Error(w, "post not found", http.StatusNotFound)
		return
	case errors.As(err, &formErrs):
		span.SetStatus(codes.Error, "invalid form")
		pkg.WriteJSON(w, shareResponse{
			Post:   handler.renderer.Summary(post),
			Form:   form,
			Errors: formErrs,
		}, http.StatusBadRequest)
		return
	case errors.Is(err, ErrMailNotSent):
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("share post %d: %s", id, err)
		pkg.WriteJSON(w, shareResponse{
			Post:  handler.renderer.Summary(post),
			Form:  form,
			Error: "email could not be sent, try again later",
		}, http.StatusBadGateway)
		return
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("share post %d: %s", id, err)
		http.Error(w, "failed to share post", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONOK(w, shareResponse{
		Post: handler.renderer.Summary(post),
		Form: form,
		Sent: true,
	})
}

func (handler *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "blogHandler.search")
	defer span.End()

	values, present := r.URL.Query()["query"]
	if !present {
		pkg.WriteJSONOK(w, searchResponse{Results: []SearchResultView{}})
		return
	}

	form := SearchForm{Query: strings.TrimSpace(values[0])}
	span.SetAttributes(attribute.String("query", form.Query))
	if formErrs := validateForm(form); formErrs != nil {
		pkg.WriteJSON(w, searchResponse{
			Query:   form.Query,
			Results: []SearchResultView{},
			Errors:  formErrs,
			Form:    &form,
		}, http.StatusBadRequest)
		return
	}

	results, err := handler.service.Search(ctx, form.Query)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("search [%s]: %s", form.Query, err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	pkg.WriteJSONOK(w, searchResponse{
		Query:   form.Query,
		Results: handler.renderer.SearchResults(results),
	})
}

func (handler *Handler) handleTotal(w http.ResponseWriter, r *http.Request) {
	total, err := handler.service.TotalPosts(r.Context())
	if err != nil {
		log.Errorf("count posts: %s", err)
		http.Error(w, "failed to count posts", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONOK(w, map[string]int{"total": total})
}

func (handler *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	// bad or missing count falls back to the default
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))

	posts, err := handler.service.LatestPosts(r.Context(), count)
	if err != nil {
		log.Errorf("latest posts: %s", err)
		http.Error(w, "failed to get latest posts", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONOK(w, map[string][]PostSummary{"posts": handler.renderer.Summaries(posts)})
}

func (handler *Handler) handleSitemap(w http.ResponseWriter, r *http.Request) {
	sitemap, err := handler.service.SitemapXML(r.Context())
	if err != nil {
		log.Errorf("sitemap: %s", err)
		http.Error(w, "failed to build sitemap", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.XML, sitemap)
}

// decodeForm reads a JSON body, or url encoded form values otherwise.
// Either way the form comes back trimmed.
func decodeForm[T interface{ trimmed() T }](r *http.Request, fromValues func(url.Values) T) (T, error) {
	var form T
	if strings.HasPrefix(r.Header.Get("Content-Type"), pkg.ContentType.JSON) {
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return form, fmt.Errorf("unmarshal json form: %w", err)
		}
		return form.trimmed(), nil
	}

	if err := r.ParseForm(); err != nil {
		return form, fmt.Errorf("parse form: %w", err)
	}
	return fromValues(r.PostForm), nil
}
