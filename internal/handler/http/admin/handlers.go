package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"news-digest/internal/domain/entity"
	"news-digest/internal/handler/http/auth"
	"news-digest/internal/handler/http/respond"
	"news-digest/internal/observability/logging"
	"news-digest/internal/usecase/digest"
	"news-digest/internal/usecase/schedule"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Pipeline runs single-user digests.
type Pipeline interface {
	RunDigest(ctx context.Context, user *entity.User, mode entity.DigestMode, articlesPerTopic int) digest.Result
	Resend(ctx context.Context, user *entity.User, digestID int64, mode entity.DigestMode) digest.Result
	Preview(ctx context.Context, user *entity.User, mode entity.DigestMode, articlesPerTopic int) (*entity.Digest, error)
}

// Scheduler runs frequency batches and knows the per-mode article limits.
type Scheduler interface {
	RunFrequency(ctx context.Context, freq entity.Frequency) (*schedule.BatchStats, error)
	ArticlesPerTopic(mode entity.DigestMode, freq entity.Frequency) int
}

// UserFinder loads subscribers by ID.
type UserFinder interface {
	Get(ctx context.Context, id string) (*entity.User, error)
}

// DigestLister lists stored digests.
type DigestLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*entity.Digest, error)
}

// Deps are shared by every admin handler.
type Deps struct {
	Users     UserFinder
	Digests   DigestLister
	Pipeline  Pipeline
	Scheduler Scheduler
}

type runRequest struct {
	UserID string `json:"user_id"`
	Mode   string `json:"mode"`
	// ArticlesPerTopic overrides the mode default when positive.
	ArticlesPerTopic int   `json:"articles_per_topic"`
	DigestID         int64 `json:"digest_id"`
}

// loadRun decodes the request and loads its user. Mode defaults to regular.
func (d Deps) loadRun(r *http.Request) (runRequest, *entity.User, entity.DigestMode, error) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, nil, "", &entity.ValidationError{Field: "body", Message: "request body must be valid JSON"}
	}
	if strings.TrimSpace(req.UserID) == "" {
		return req, nil, "", &entity.ValidationError{Field: "user_id", Message: "user_id is required"}
	}
	mode := entity.ModeRegular
	if req.Mode != "" {
		mode = entity.DigestMode(req.Mode)
	}
	if !mode.Valid() {
		return req, nil, "", &entity.ValidationError{Field: "mode", Message: "mode must be welcome, preferences_updated or regular"}
	}
	user, err := d.Users.Get(r.Context(), req.UserID)
	if err != nil {
		return req, nil, "", fmt.Errorf("load user: %w", err)
	}
	return req, user, mode, nil
}

func (d Deps) limit(req runRequest, user *entity.User, mode entity.DigestMode) int {
	if req.ArticlesPerTopic > 0 {
		return req.ArticlesPerTopic
	}
	return d.Scheduler.ArticlesPerTopic(mode, user.Preferences.Frequency)
}

func writeRun(w http.ResponseWriter, r *http.Request, res digest.Result) {
	code := http.StatusOK
	if res.Status == digest.StatusFailed {
		code = http.StatusInternalServerError
		if res.Stage == digest.StageInput {
			code = http.StatusBadRequest
		}
	}
	logging.FromContext(r.Context()).Info("admin digest run",
		slog.String("admin", auth.SubjectFromContext(r.Context())),
		slog.String("status", string(res.Status)),
		slog.String("stage", string(res.Stage)))
	respond.JSON(w, code, runResponse(res))
}

// TriggerHandler handles POST /admin/digests: one synchronous run.
type TriggerHandler struct{ Deps }

func (h TriggerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, user, mode, err := h.loadRun(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	writeRun(w, r, h.Pipeline.RunDigest(r.Context(), user, mode, h.limit(req, user, mode)))
}

// RedeliverHandler handles POST /admin/digests/redeliver.
type RedeliverHandler struct{ Deps }

func (h RedeliverHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, user, mode, err := h.loadRun(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if req.DigestID <= 0 {
		respond.Error(w, r, &entity.ValidationError{Field: "digest_id", Message: "digest_id is required"})
		return
	}
	if req.Mode == "" {
		// keep the stored digest's own framing
		mode = ""
	}
	// an operator asking again means send again, even after a success
	res := h.Pipeline.Resend(r.Context(), user, req.DigestID, mode)
	if res.Status == digest.StatusFailed && errors.Is(res.Err, entity.ErrNotFound) {
		respond.Error(w, r, res.Err)
		return
	}
	writeRun(w, r, res)
}

// PreviewHandler handles POST /admin/digests/preview. Nothing is stored or
// sent.
type PreviewHandler struct{ Deps }

func (h PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, user, mode, err := h.loadRun(r)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	d, err := h.Pipeline.Preview(r.Context(), user, mode, h.limit(req, user, mode))
	switch {
	case errors.Is(err, digest.ErrNoArticles):
		respond.JSON(w, http.StatusOK, RunResponse{Status: string(digest.StatusNoArticles), Warning: err.Error()})
	case err != nil:
		respond.Error(w, r, err)
	default:
		respond.JSON(w, http.StatusOK, RunResponse{Status: "preview", Digest: digestDTO(d)})
	}
}

// ListHandler handles GET /admin/digests?user_id=&limit=.
type ListHandler struct{ Deps }

func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("user_id"))
	if userID == "" {
		respond.Error(w, r, &entity.ValidationError{Field: "user_id", Message: "user_id is required"})
		return
	}
	limit := defaultListLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxListLimit {
			respond.Error(w, r, &entity.ValidationError{Field: "limit", Message: fmt.Sprintf("limit must be between 1 and %d", maxListLimit)})
			return
		}
		limit = n
	}

	digests, err := h.Digests.ListByUser(r.Context(), userID, limit)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	out := make([]*DigestDTO, 0, len(digests))
	for _, d := range digests {
		out = append(out, digestDTO(d))
	}
	respond.JSON(w, http.StatusOK, map[string]any{"digests": out})
}

// BatchHandler handles POST /admin/batches/{frequency}.
type BatchHandler struct{ Deps }

func (h BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	freq := entity.Frequency(r.PathValue("frequency"))
	if !freq.Valid() {
		respond.Error(w, r, &entity.ValidationError{Field: "frequency", Message: "frequency must be daily or weekly"})
		return
	}
	stats, err := h.Scheduler.RunFrequency(r.Context(), freq)
	if err != nil && stats == nil {
		respond.Error(w, r, err)
		return
	}
	code := http.StatusOK
	if err != nil {
		// interrupted part way; report what ran
		code = http.StatusServiceUnavailable
	}
	respond.JSON(w, code, batchResponse(stats))
}
