package mailer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const defaultRetryAfter = 5 * time.Second

// RateLimitError is a 429 from the mail provider.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// Retryable reports true; the provider accepts the message once the window passes.
func (e *RateLimitError) Retryable() bool {
	return true
}

// ClientError is a non-429 4xx. The request is wrong and resending it will
// not help.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("mail API client error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Retryable reports false.
func (e *ClientError) Retryable() bool {
	return false
}

// ServerError is a 5xx.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("mail API server error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Retryable reports true.
func (e *ServerError) Retryable() bool {
	return true
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// statusError maps a non-2xx response to a typed error.
func statusError(resp *http.Response, body []byte) error {
	msg := string(body)
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message != "" {
		msg = er.Message
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp), Message: msg}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{StatusCode: resp.StatusCode, Message: msg}
	case resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode, Message: msg}
	}
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, msg)
}

// retryAfter reads the Retry-After header in seconds, defaulting to 5s.
func retryAfter(resp *http.Response) time.Duration {
	if h := resp.Header.Get("Retry-After"); h != "" {
		if seconds, err := strconv.Atoi(h); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultRetryAfter
}
