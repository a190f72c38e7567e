package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"news-digest/internal/resilience/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ───── ヘルパ ───── */

var fastRetry = retry.Config{
	MaxAttempts:  2,
	InitialDelay: time.Millisecond,
	MaxDelay:     time.Millisecond,
	Multiplier:   1,
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

/* ───── Claude ───── */

func TestClaude_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, DefaultClaudeModel, req.Model)
		assert.Equal(t, 256, req.MaxTokens)
		assert.Contains(t, string(body), "Summarize this")

		writeJSON(w, http.StatusOK, `{
			"id": "msg_01", "type": "message", "role": "assistant", "model": "claude",
			"content": [{"type": "text", "text": "  A short summary.  "}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	c := NewClaude(Config{APIKey: "test-key", MaxTokens: 256, BaseURL: srv.URL})
	c.retryConfig = fastRetry

	out, err := c.Generate(context.Background(), "Summarize this")

	require.NoError(t, err)
	assert.Equal(t, "A short summary.", out)
	assert.Equal(t, ProviderClaude, c.Name())
}

func TestClaude_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	}))
	defer srv.Close()

	c := NewClaude(Config{APIKey: "k", MaxTokens: 64, BaseURL: srv.URL})
	c.retryConfig = fastRetry

	_, err := c.Generate(context.Background(), "hi")

	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

/* ───── OpenAI ───── */

func TestOpenAI_GenerateAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{
			"id": "chatcmpl-1", "object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Generated intro"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`)
	}))
	defer srv.Close()

	o := NewOpenAI(Config{APIKey: "sk-test", MaxTokens: 128, BaseURL: srv.URL})
	o.retryConfig = fastRetry

	out, err := o.Generate(context.Background(), "Write an intro")

	require.NoError(t, err)
	assert.Equal(t, "Generated intro", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAI_UnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	o := NewOpenAI(Config{APIKey: "bad", MaxTokens: 128, BaseURL: srv.URL})
	o.retryConfig = fastRetry

	_, err := o.Generate(context.Background(), "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai api error")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`)
	}))
	defer srv.Close()

	o := NewOpenAI(Config{APIKey: "k", MaxTokens: 16, BaseURL: srv.URL})
	o.retryConfig = fastRetry

	_, err := o.Generate(context.Background(), "hi")

	assert.ErrorIs(t, err, ErrEmptyResponse)
}

/* ───── Gemini ───── */

func TestGemini_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/"+DefaultGeminiModel+":generateContent"), r.URL.Path)
		writeJSON(w, http.StatusOK, `{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Gemini summary"}]}, "finishReason": "STOP"}]
		}`)
	}))
	defer srv.Close()

	g, err := NewGemini(Config{APIKey: "g-key", MaxTokens: 64, BaseURL: srv.URL})
	require.NoError(t, err)
	g.retryConfig = fastRetry

	out, err := g.Generate(context.Background(), "Summarize")

	require.NoError(t, err)
	assert.Equal(t, "Gemini summary", out)
}

func TestGemini_BadRequestNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`)
	}))
	defer srv.Close()

	g, err := NewGemini(Config{APIKey: "bad", MaxTokens: 64, BaseURL: srv.URL})
	require.NoError(t, err)
	g.retryConfig = fastRetry

	_, err = g.Generate(context.Background(), "Summarize")

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

/* ───── factory / noop ───── */

func TestNew(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{provider: "claude", wantName: ProviderClaude},
		{provider: "OpenAI", wantName: ProviderOpenAI},
		{provider: "gemini", wantName: ProviderGemini},
		{provider: "noop", wantName: ProviderNoOp},
		{provider: "llama", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			g, err := New(Config{Provider: tt.provider, APIKey: "k"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, g.Name())
		})
	}
}

func TestNoOp(t *testing.T) {
	_, err := NewNoOp().Generate(context.Background(), "anything")
	assert.True(t, errors.Is(err, ErrNoOp))
}

func TestClassify(t *testing.T) {
	plain := errors.New("plain")
	assert.Same(t, plain, classify(plain))

	se := &statusError{status: 503, err: plain}
	assert.True(t, se.Retryable())
	assert.ErrorIs(t, se, plain)
	assert.False(t, (&statusError{status: 400, err: plain}).Retryable())
}
