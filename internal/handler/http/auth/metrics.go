package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_auth_requests_total",
			Help: "Admin API authentication attempts by role and result",
		},
		[]string{"role", "result"}, // result: success | failure
	)

	authDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admin_auth_duration_seconds",
			Help:    "Admin token verification duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
		[]string{"role"},
	)

	forbiddenAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_forbidden_attempts_total",
			Help: "Valid tokens without the admin role, by role and method",
		},
		[]string{"role", "method"},
	)
)

// RecordAuthRequest records one authentication attempt.
func RecordAuthRequest(role, result string) {
	authRequestsTotal.WithLabelValues(role, result).Inc()
}

// RecordAuthDuration records how long verification took.
func RecordAuthDuration(role string, seconds float64) {
	authDuration.WithLabelValues(role).Observe(seconds)
}

// RecordForbiddenAttempt records a valid token with the wrong role.
func RecordForbiddenAttempt(role, method string) {
	forbiddenAttempts.WithLabelValues(role, method).Inc()
}
