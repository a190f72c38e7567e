package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"news-digest/internal/resilience/retry"
)

const maxErrorBody = 1 << 10

// webhook posts JSON payloads with retry on 5xx and 429.
type webhook struct {
	url         string
	client      *http.Client
	retryConfig retry.Config
}

func newWebhook(url string, timeout time.Duration) webhook {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		retryConfig: retry.Config{
			MaxAttempts:    3,
			InitialDelay:   2 * time.Second,
			MaxDelay:       10 * time.Second,
			Multiplier:     2,
			JitterFraction: 0.1,
		},
	}
}

func (w webhook) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	return retry.WithBackoff(ctx, w.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("post webhook: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &retry.HTTPError{StatusCode: resp.StatusCode, Message: string(msg)}
	})
}
