package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"news-digest/internal/config"
	"news-digest/internal/handler/http/requestid"

	"github.com/stretchr/testify/assert"
)

func newTestRouter() http.Handler {
	return NewRouter(RouterDeps{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Version: "test",
		HTTP: config.HTTPConfig{
			CORSOrigins:  []string{"https://news.example.com"},
			MaxBodyBytes: 1 << 10,
		},
	})
}

func TestNewRouter_Live(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestid.RequestIDHeader))
}

func TestNewRouter_AdminDisabledWithoutSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/digests", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewRouter_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/subscriptions", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
