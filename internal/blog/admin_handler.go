package blog

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2beens/blogsrv/internal/telemetry/tracing"
	"github.com/2beens/blogsrv/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type newPostResponse struct {
	Post   *PostDetail `json:"post,omitempty"`
	Status Status      `json:"status,omitempty"`
	Form   PostForm    `json:"form"`
	Errors FormErrors  `json:"errors,omitempty"`
}

func postFormFromValues(v url.Values) PostForm {
	form := PostForm{
		Title:  v.Get("title"),
		Slug:   v.Get("slug"),
		Body:   v.Get("body"),
		Status: Status(v.Get("status")),
		Tags:   strings.Split(v.Get("tags"), ","),
	}
	if publishStr := v.Get("publish"); publishStr != "" {
		if publish, err := time.Parse(time.RFC3339, publishStr); err == nil {
			form.Publish = &publish
		}
	}
	return form.trimmed()
}

func (handler *Handler) handleNewPost(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "blogHandler.newPost")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	form, err := decodeForm(r, postFormFromValues)
	if err != nil {
		log.Errorf("new post, decode form: %s", err)
		http.Error(w, "add post failed", http.StatusBadRequest)
		return
	}

	post, err := handler.service.CreatePost(ctx, form)
	var formErrs FormErrors
	if errors.As(err, &formErrs) {
		span.SetStatus(codes.Error, "invalid form")
		pkg.WriteJSON(w, newPostResponse{Form: form, Errors: formErrs}, http.StatusBadRequest)
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("add new post failed: %s", err)
		http.Error(w, "add new post failed", http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.Int("post.id", post.ID))
	log.Tracef("new post %d: [%s] added", post.ID, post.Title)

	detail := handler.renderer.Detail(post)
	pkg.WriteJSON(w, newPostResponse{
		Post:   &detail,
		Status: post.Status,
		Form:   form,
	}, http.StatusCreated)
}

func (handler *Handler) handleToggleComment(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "blogHandler.toggleComment")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "PATCH, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	id, ok := idVar(r)
	if !ok {
		http.Error(w, "comment not found", http.StatusNotFound)
		return
	}
	span.SetAttributes(attribute.Int("comment.id", id))

	comment, err := handler.service.ToggleComment(ctx, id)
	if errors.Is(err, ErrCommentNotFound) {
		http.Error(w, "comment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Errorf("toggle comment %d: %s", id, err)
		http.Error(w, "failed to update comment", http.StatusInternalServerError)
		return
	}

	log.Tracef("comment %d active: %t", comment.ID, comment.Active)
	pkg.WriteJSONOK(w, map[string]CommentView{"comment": handler.renderer.Comment(comment)})
}
