package digest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"news-digest/internal/domain/entity"
	"news-digest/internal/observability/metrics"
	"news-digest/internal/utils/text"

	"golang.org/x/sync/errgroup"
)

// maxArticleChars caps the article body embedded in a summary prompt.
const maxArticleChars = 6000

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// FallbackSummary is used when an article cannot be summarized.
func FallbackSummary(title string) string {
	return title + " - summary unavailable"
}

// SummarizerConfig bounds summarization work.
type SummarizerConfig struct {
	// Timeout applies to each upstream call separately.
	Timeout     time.Duration
	Parallelism int
}

// DefaultSummarizerConfig returns 30s per call and 5 calls in flight.
func DefaultSummarizerConfig() SummarizerConfig {
	return SummarizerConfig{Timeout: 30 * time.Second, Parallelism: 5}
}

// Summarizer produces one short paragraph per article. It never fails.
type Summarizer struct {
	gen Generator
	cfg SummarizerConfig
}

// NewSummarizer creates a Summarizer.
func NewSummarizer(gen Generator, cfg SummarizerConfig) *Summarizer {
	def := DefaultSummarizerConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = def.Parallelism
	}
	return &Summarizer{gen: gen, cfg: cfg}
}

// Summarize returns a summary of a, or FallbackSummary(a.Title) when the
// generator fails, times out or returns nothing.
func (s *Summarizer) Summarize(ctx context.Context, a *entity.Article) string {
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	out, err := s.gen.Generate(callCtx, summaryPrompt(a))
	out = strings.TrimSpace(out)
	if err == nil && out == "" {
		err = errEmptyOutput
	}
	if err != nil {
		slog.Default().Warn("summarization failed, using fallback",
			slog.String("url", a.URL),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err))
		metrics.RecordSummary("fallback", time.Since(start))
		return FallbackSummary(a.Title)
	}

	metrics.RecordSummary("generated", time.Since(start))
	return out
}

// SummarizeAll returns copies of articles with summaries filled in, in input
// order. Articles that already have a summary are copied without an upstream
// call. All calls have finished when it returns.
func (s *Summarizer) SummarizeAll(ctx context.Context, articles []*entity.Article) []*entity.Article {
	out := make([]*entity.Article, len(articles))

	var eg errgroup.Group
	eg.SetLimit(s.cfg.Parallelism)
	for i, a := range articles {
		c := a.Clone()
		out[i] = c
		if c == nil {
			continue
		}
		if c.HasSummary() {
			metrics.RecordSummary("cached", 0)
			continue
		}
		eg.Go(func() error {
			c.Summary = s.Summarize(ctx, c)
			return nil
		})
	}
	_ = eg.Wait()

	return out
}

func summaryPrompt(a *entity.Article) string {
	return fmt.Sprintf(`Summarize the following news article in a concise paragraph:

Title: %s
Source: %s
Content: %s

Summary:`, a.Title, a.Source, text.Truncate(a.Content, maxArticleChars))
}
