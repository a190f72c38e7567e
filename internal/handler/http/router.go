package http

import (
	"database/sql"
	"log/slog"
	"net/http"

	"news-digest/internal/config"
	"news-digest/internal/handler/http/admin"
	"news-digest/internal/handler/http/requestid"
	"news-digest/internal/handler/http/subscription"
	"news-digest/internal/observability/tracing"
)

// RouterDeps carries everything NewRouter mounts.
type RouterDeps struct {
	Logger        *slog.Logger
	DB            *sql.DB
	Version       string
	HTTP          config.HTTPConfig
	AdminSecret   []byte
	Subscriptions subscription.Service
	Admin         admin.Deps
	HealthChecks  map[string]Check
}

// NewRouter builds the API handler. Logging sits directly around the mux
// so that the matched pattern is visible to it after routing.
func NewRouter(d RouterDeps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", &HealthHandler{DB: d.DB, Version: d.Version, Checks: d.HealthChecks})
	mux.Handle("GET /ready", &ReadyHandler{DB: d.DB})
	mux.Handle("GET /live", LiveHandler{})
	mux.Handle("GET /metrics", MetricsHandler())

	limiter := NewRateLimiter(d.HTTP.PublicRatePerMinute)
	subscription.Register(mux, d.Subscriptions, limiter.Limit)
	admin.Register(mux, d.Admin, d.AdminSecret)

	return Chain(mux,
		Recover(logger),
		InFlight,
		requestid.Middleware,
		tracing.Middleware,
		SecurityHeaders,
		CORS(d.HTTP.CORSOrigins),
		LimitRequestBody(d.HTTP.MaxBodyBytes),
		Logging(logger),
	)
}
