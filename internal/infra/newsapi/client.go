// Package newsapi implements fetch.Searcher against the NewsAPI
// /v2/everything endpoint.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"news-digest/internal/resilience/circuitbreaker"
	"news-digest/internal/resilience/retry"
	"news-digest/internal/usecase/fetch"

	"golang.org/x/time/rate"
)

const (
	everythingPath = "/v2/everything"
	maxPageSize    = 100
	// removedMarker is what NewsAPI puts in every field of a retracted article.
	removedMarker = "[Removed]"
	maxErrorBody  = 4 << 10
)

// Config configures the NewsAPI client.
type Config struct {
	BaseURL  string
	APIKey   string
	Language string
	Timeout  time.Duration
	// RequestsPerSecond throttles outgoing queries. Zero disables throttling.
	RequestsPerSecond float64
}

// Client queries NewsAPI with retry, circuit breaking and client-side
// rate limiting.
type Client struct {
	config         Config
	httpClient     *http.Client
	limiter        *rate.Limiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewClient creates a NewsAPI client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://newsapi.org"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		config:         cfg,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		limiter:        limiter,
		circuitBreaker: circuitbreaker.New(circuitbreaker.SearchAPIConfig()),
		retryConfig:    retry.SearchAPIConfig(),
	}
}

type everythingResponse struct {
	Status       string    `json:"status"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	TotalResults int       `json:"totalResults"`
	Articles     []article `json:"articles"`
}

type article struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Content     string    `json:"content"`
}

// APIError is a non-2xx answer from NewsAPI.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("newsapi %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("newsapi %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the failure is transient (rate limit or 5xx).
func (e *APIError) Retryable() bool {
	return retry.IsRetryableStatus(e.StatusCode)
}

// Search implements fetch.Searcher.
func (c *Client) Search(ctx context.Context, q fetch.Query) ([]fetch.SearchResult, error) {
	results, err := retry.Do(ctx, c.retryConfig, func() ([]fetch.SearchResult, error) {
		return circuitbreaker.Do(c.circuitBreaker, func() ([]fetch.SearchResult, error) {
			return c.doSearch(ctx, q)
		})
	})
	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpenState) {
			slog.Warn("search circuit breaker open, request rejected",
				slog.String("service", "newsapi"),
				slog.String("query", q.Query),
				slog.String("state", c.circuitBreaker.State().String()))
		}
		return nil, fmt.Errorf("newsapi search %q: %w", q.Query, err)
	}
	return results, nil
}

func (c *Client) doSearch(ctx context.Context, q fetch.Query) ([]fetch.SearchResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(q), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.config.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp)
	}

	var body everythingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if body.Status == "error" {
		return nil, &APIError{StatusCode: resp.StatusCode, Code: body.Code, Message: body.Message}
	}

	results := make([]fetch.SearchResult, 0, len(body.Articles))
	for _, a := range body.Articles {
		if a.URL == "" || a.Title == removedMarker {
			continue
		}
		content := a.Content
		if strings.TrimSpace(content) == "" {
			content = a.Description
		}
		results = append(results, fetch.SearchResult{
			Title:       strings.TrimSpace(a.Title),
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
			Content:     content,
		})
	}
	return results, nil
}

func (c *Client) searchURL(q fetch.Query) string {
	pageSize := q.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	v := url.Values{}
	v.Set("q", q.Query)
	v.Set("pageSize", strconv.Itoa(pageSize))
	v.Set("sortBy", "publishedAt")
	v.Set("language", c.config.Language)
	if !q.PublishedAfter.IsZero() {
		v.Set("from", q.PublishedAfter.UTC().Format(time.RFC3339))
	}
	return strings.TrimRight(c.config.BaseURL, "/") + everythingPath + "?" + v.Encode()
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body everythingResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

// CheckHealth reports an error while the circuit breaker is open.
func (c *Client) CheckHealth(context.Context) error {
	if c.circuitBreaker.IsOpen() {
		return fmt.Errorf("%s: %w", c.circuitBreaker.Name(), circuitbreaker.ErrOpenState)
	}
	return nil
}
