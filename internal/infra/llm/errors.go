package llm

import (
	"errors"

	"news-digest/internal/resilience/retry"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// statusError carries the HTTP status of a provider failure so the retry
// policy can tell rate limits and 5xx apart from permanent errors.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string {
	return e.err.Error()
}

func (e *statusError) Unwrap() error {
	return e.err
}

// Retryable implements retry.Retryable.
func (e *statusError) Retryable() bool {
	return retry.IsRetryableStatus(e.status)
}

// StatusCode returns the HTTP status reported by the provider.
func (e *statusError) StatusCode() int { return e.status }

func classify(err error) error {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return &statusError{status: anthropicErr.StatusCode, err: err}
	}
	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) {
		return &statusError{status: openaiErr.HTTPStatusCode, err: err}
	}
	var openaiReqErr *openai.RequestError
	if errors.As(err, &openaiReqErr) {
		return &statusError{status: openaiReqErr.HTTPStatusCode, err: err}
	}
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return &statusError{status: geminiErr.Code, err: err}
	}
	return err
}
