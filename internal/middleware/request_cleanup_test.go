package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bodyReadingHandler struct {
	read    []byte
	readErr error
}

func (h *bodyReadingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.read, h.readErr = io.ReadAll(r.Body)
	w.WriteHeader(http.StatusOK)
}

func TestLimitAndDrainRequest(t *testing.T) {
	next := &bodyReadingHandler{}
	handler := LimitAndDrainRequest(8)(next)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/blog/posts/1/comment", strings.NewReader("short")))
	require.NoError(t, next.readErr)
	assert.Equal(t, "short", string(next.read))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/blog/posts/1/comment", strings.NewReader("way too long for the limit")))
	var maxBytesErr *http.MaxBytesError
	assert.ErrorAs(t, next.readErr, &maxBytesErr)
	assert.Len(t, next.read, 8)
}

func TestLimitAndDrainRequest_NoLimit(t *testing.T) {
	next := &bodyReadingHandler{}
	handler := LimitAndDrainRequest(0)(next)

	body := strings.Repeat("x", 4096)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/", strings.NewReader(body)))
	require.NoError(t, next.readErr)
	assert.Len(t, next.read, 4096)
}
