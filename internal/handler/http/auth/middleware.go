// Package auth guards the admin API with HS256 bearer tokens.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"news-digest/internal/handler/http/respond"
	"news-digest/internal/observability/logging"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role accepted by RequireAdmin.
const RoleAdmin = "admin"

type ctxKey string

const ctxSubject ctxKey = "subject"

var (
	errMissingBearer = errors.New("missing bearer token")
	errNoRole        = errors.New("token has no role claim")
)

// Claims are the JWT claims issued for admin access.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireAdmin rejects requests without a valid, unexpired HS256 token whose
// role claim is admin. An empty secret disables the admin API entirely.
func RequireAdmin(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := logging.FromContext(r.Context())

			if len(secret) == 0 {
				respond.Message(w, http.StatusServiceUnavailable, "admin API is disabled")
				return
			}

			claims, err := parse(r.Header.Get("Authorization"), secret)
			if err != nil {
				logger.Warn("admin authentication failed",
					slog.String("path", r.URL.Path),
					slog.String("reason", err.Error()))
				RecordAuthRequest("unknown", "failure")
				respond.Message(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if claims.Role != RoleAdmin {
				RecordForbiddenAttempt(claims.Role, r.Method)
				respond.Message(w, http.StatusForbidden, "forbidden")
				return
			}

			RecordAuthRequest(claims.Role, "success")
			RecordAuthDuration(claims.Role, time.Since(start).Seconds())
			ctx := context.WithValue(r.Context(), ctxSubject, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the authenticated admin's subject claim.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxSubject).(string)
	return s
}

func parse(header string, secret []byte) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errMissingBearer
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Role == "" {
		return nil, errNoRole
	}
	return claims, nil
}
