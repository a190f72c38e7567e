// Package http holds the server-wide HTTP pieces: middleware, health
// probes, the metrics endpoint and the router that mounts the subscriber
// and admin handlers.
package http

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"news-digest/internal/handler/http/respond"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the result of one check.
type CheckStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Check is an extra named dependency probe. A returned error marks the
// dependency degraded, not the service unhealthy.
type Check = func(ctx context.Context) error

// HealthHandler reports database connectivity and pool usage plus any
// extra checks. Only the database decides between 200 and 503.
type HealthHandler struct {
	DB      *sql.DB
	Version string
	Checks  map[string]Check
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus, len(h.Checks)+1)
	db := checkDatabase(ctx, h.DB)
	checks["database"] = db
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			checks[name] = CheckStatus{Status: statusDegraded, Message: respond.SanitizeError(err)}
			continue
		}
		checks[name] = CheckStatus{Status: statusHealthy}
	}

	status, code := statusHealthy, http.StatusOK
	if db.Status == statusUnhealthy {
		status, code = statusUnhealthy, http.StatusServiceUnavailable
	}
	if code != http.StatusOK {
		slog.Default().Warn("health check failed", slog.String("database", db.Message))
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.JSON(w, code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
}

func checkDatabase(ctx context.Context, db *sql.DB) CheckStatus {
	if db == nil {
		return CheckStatus{Status: statusUnhealthy, Message: "not configured"}
	}
	if err := db.PingContext(ctx); err != nil {
		return CheckStatus{Status: statusUnhealthy, Message: respond.SanitizeError(err)}
	}

	stats := db.Stats()
	details := map[string]any{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
	}
	if stats.MaxOpenConnections > 0 {
		utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
		details["utilization_percent"] = utilization
		if utilization >= 80 {
			return CheckStatus{Status: statusDegraded, Message: "connection pool utilization above 80%", Details: details}
		}
	}
	return CheckStatus{Status: statusHealthy, Details: details}
}

// ReadyHandler answers readiness probes: 200 once the database answers.
type ReadyHandler struct {
	DB *sql.DB
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if st := checkDatabase(ctx, h.DB); st.Status == statusUnhealthy {
		respond.Message(w, http.StatusServiceUnavailable, "database not ready")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// LiveHandler answers liveness probes.
type LiveHandler struct{}

func (LiveHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
