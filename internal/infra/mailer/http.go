package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"news-digest/internal/resilience/circuitbreaker"
	"news-digest/internal/resilience/retry"
	"news-digest/internal/usecase/delivery"

	"github.com/google/uuid"
)

const (
	emailsPath   = "/emails"
	maxErrorBody = 4 << 10
)

// HTTPConfig configures HTTPMailer.
type HTTPConfig struct {
	// APIURL is the provider base URL, e.g. https://api.resend.com.
	APIURL string
	APIKey string
	// From is the sender, e.g. "News Digest <digest@example.com>".
	From    string
	Timeout time.Duration
	// RequestsPerSecond throttles sends. Zero disables throttling.
	RequestsPerSecond float64
}

// HTTPMailer sends email through a JSON HTTP API (Resend-compatible
// POST /emails with bearer auth).
type HTTPMailer struct {
	config         HTTPConfig
	httpClient     *http.Client
	rateLimiter    *RateLimiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewHTTPMailer creates an HTTPMailer.
func NewHTTPMailer(cfg HTTPConfig) *HTTPMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &HTTPMailer{
		config:         cfg,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		rateLimiter:    NewRateLimiter(cfg.RequestsPerSecond, 2),
		circuitBreaker: circuitbreaker.New(circuitbreaker.MailConfig()),
		retryConfig:    retry.MailConfig(),
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send delivers msg and returns the provider message id. A single idempotency
// key covers every retry of the same call.
func (m *HTTPMailer) Send(ctx context.Context, msg delivery.Message) (string, error) {
	if msg.IdempotencyKey == "" {
		msg.IdempotencyKey = uuid.NewString()
	}
	logger := slog.Default().With(slog.String("idempotency_key", msg.IdempotencyKey))

	if err := m.rateLimiter.Allow(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(sendRequest{
		From:    m.config.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return "", fmt.Errorf("marshal email payload: %w", err)
	}

	start := time.Now()
	id, err := retry.Do(ctx, m.retryConfig, func() (string, error) {
		return circuitbreaker.Do(m.circuitBreaker, func() (string, error) {
			return m.post(ctx, payload, msg.IdempotencyKey)
		})
	})
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			logger.Warn("mail API rate limit hit",
				slog.Duration("retry_after", rl.RetryAfter))
		}
		return "", fmt.Errorf("send email: %w", err)
	}

	logger.Debug("mail API accepted message",
		slog.String("message_id", id),
		slog.Duration("duration", time.Since(start)))
	return id, nil
}

func (m *HTTPMailer) post(ctx context.Context, payload []byte, idempotencyKey string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.APIURL+emailsPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", statusError(resp, body)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode mail API response: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("mail API response has no message id")
	}
	return out.ID, nil
}
