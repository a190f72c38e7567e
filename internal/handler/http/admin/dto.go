// Package admin serves the operator endpoints for triggering, re-sending,
// previewing and listing digests and for running frequency batches by hand.
// Every route requires an admin bearer token.
package admin

import (
	"time"

	"news-digest/internal/domain/entity"
	"news-digest/internal/handler/http/respond"
	"news-digest/internal/usecase/digest"
	"news-digest/internal/usecase/schedule"
)

// ArticleDTO is one article inside a digest.
type ArticleDTO struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Summary     string    `json:"summary"`
	Topics      []string  `json:"topics"`
}

// DigestDTO is the JSON form of entity.Digest. ID is zero for previews.
type DigestDTO struct {
	ID        int64        `json:"id,omitempty"`
	UserID    string       `json:"user_id"`
	Mode      string       `json:"mode"`
	Summary   string       `json:"summary"`
	Articles  []ArticleDTO `json:"articles"`
	CreatedAt time.Time    `json:"created_at"`
}

func digestDTO(d *entity.Digest) *DigestDTO {
	if d == nil {
		return nil
	}
	out := &DigestDTO{
		ID:        d.ID,
		UserID:    d.UserID,
		Mode:      string(d.Mode),
		Summary:   d.Summary,
		Articles:  make([]ArticleDTO, 0, len(d.Articles)),
		CreatedAt: d.CreatedAt,
	}
	for _, a := range d.Articles {
		topics := a.Topics
		if topics == nil {
			topics = []string{}
		}
		out.Articles = append(out.Articles, ArticleDTO{
			Title:       a.Title,
			URL:         a.URL,
			Source:      a.Source,
			PublishedAt: a.PublishedAt,
			Summary:     a.Summary,
			Topics:      topics,
		})
	}
	return out
}

// RunResponse reports a digest run.
type RunResponse struct {
	Status    string     `json:"status"`
	Stage     string     `json:"stage,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Warning   string     `json:"warning,omitempty"`
	MessageID string     `json:"message_id,omitempty"`
	Digest    *DigestDTO `json:"digest,omitempty"`
}

func runResponse(res digest.Result) RunResponse {
	out := RunResponse{
		Status:    string(res.Status),
		MessageID: res.Delivery.MessageID,
		Digest:    digestDTO(res.Digest),
	}
	switch res.Status {
	case digest.StatusNoArticles:
		out.Warning = res.Reason
	case digest.StatusFailed:
		out.Stage = string(res.Stage)
		out.Reason = respond.SanitizeError(res.Err)
		if out.Reason == "" {
			out.Reason = res.Reason
		}
	case digest.StatusDuplicate:
		out.Warning = "a digest of this mode was sent recently"
	}
	return out
}

// FailureDTO is one failed user inside a batch.
type FailureDTO struct {
	UserID string `json:"user_id"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// BatchResponse reports a frequency batch.
type BatchResponse struct {
	Frequency  string       `json:"frequency"`
	Users      int          `json:"users"`
	Sent       int          `json:"sent"`
	NoArticles int          `json:"no_articles"`
	Duplicate  int          `json:"duplicate"`
	Failed     int          `json:"failed"`
	Failures   []FailureDTO `json:"failures"`
	DurationMS int64        `json:"duration_ms"`
}

func batchResponse(s *schedule.BatchStats) BatchResponse {
	out := BatchResponse{
		Frequency:  string(s.Frequency),
		Users:      s.Users,
		Sent:       s.Sent,
		NoArticles: s.NoArticles,
		Duplicate:  s.Duplicate,
		Failed:     s.Failed,
		Failures:   make([]FailureDTO, 0, len(s.Failures)),
		DurationMS: s.Duration.Milliseconds(),
	}
	for _, f := range s.Failures {
		out.Failures = append(out.Failures, FailureDTO{UserID: f.UserID, Stage: string(f.Stage), Reason: f.Reason})
	}
	return out
}
