// Package googlenews implements fetch.Searcher on top of the Google News RSS
// search feed. It needs no API key and serves as the keyless provider.
package googlenews

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"news-digest/internal/resilience/circuitbreaker"
	"news-digest/internal/resilience/retry"
	"news-digest/internal/usecase/fetch"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Google News RSS search endpoint.
const DefaultBaseURL = "https://news.google.com/rss/search"

// Config configures the Google News client.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	// Locale parameters, e.g. hl=en-US gl=US ceid=US:en.
	Language string
	Country  string
}

// Client searches Google News RSS.
type Client struct {
	config         Config
	client         *http.Client
	limiter        *rate.Limiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	now            func() time.Time
}

// NewClient creates a Google News RSS client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Country == "" {
		cfg.Country = "US"
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		config:         cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		limiter:        limiter,
		circuitBreaker: circuitbreaker.New(circuitbreaker.SearchAPIConfig()),
		retryConfig:    retry.SearchAPIConfig(),
		now:            time.Now,
	}
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
				slog.String("service", "googlenews"),
				slog.String("query", q.Query),
				slog.String("state", c.circuitBreaker.State().String()))
		}
		return nil, fmt.Errorf("google news search %q: %w", q.Query, err)
	}
	return results, nil
}

func (c *Client) doSearch(ctx context.Context, q fetch.Query) ([]fetch.SearchResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	fp := gofeed.NewParser()
	fp.UserAgent = "NewsDigestBot"
	fp.Client = c.client

	feed, err := fp.ParseURLWithContext(c.searchURL(q), ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &retry.HTTPError{StatusCode: httpErr.StatusCode, Message: httpErr.Status}
		}
		return nil, err
	}

	results := make([]fetch.SearchResult, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it.Link == "" || it.PublishedParsed == nil {
			continue
		}
		title, source := splitTitle(it.Title)
		if it.Author != nil && it.Author.Name != "" && source == "" {
			source = it.Author.Name
		}

		// Content優先、なければDescriptionを使用
		content := it.Content
		if content == "" {
			content = it.Description
		}

		results = append(results, fetch.SearchResult{
			Title:       title,
			URL:         it.Link,
			Source:      source,
			PublishedAt: *it.PublishedParsed,
			Content:     content,
		})
		if q.PageSize > 0 && len(results) == q.PageSize {
			break
		}
	}
	return results, nil
}

func (c *Client) searchURL(q fetch.Query) string {
	query := q.Query
	if !q.PublishedAfter.IsZero() {
		hours := int(math.Ceil(c.now().Sub(q.PublishedAfter).Hours()))
		if hours > 0 {
			query = fmt.Sprintf("%s when:%dh", query, hours)
		}
	}
	v := url.Values{}
	v.Set("q", query)
	v.Set("hl", c.config.Language+"-"+c.config.Country)
	v.Set("gl", c.config.Country)
	v.Set("ceid", c.config.Country+":"+c.config.Language)
	return c.config.BaseURL + "?" + v.Encode()
}

// splitTitle separates the "Headline - Publisher" form Google News uses.
func splitTitle(raw string) (title, source string) {
	raw = strings.TrimSpace(raw)
	i := strings.LastIndex(raw, " - ")
	if i <= 0 {
		return raw, ""
	}
	return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+3:])
}

// CheckHealth reports an error while the circuit breaker is open.
func (c *Client) CheckHealth(context.Context) error {
	if c.circuitBreaker.IsOpen() {
		return fmt.Errorf("%s: %w", c.circuitBreaker.Name(), circuitbreaker.ErrOpenState)
	}
	return nil
}
