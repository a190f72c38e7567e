package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"news-digest/internal/config"
	"news-digest/internal/domain/entity"
	"news-digest/internal/observability/metrics"
	"news-digest/internal/repository"

	"golang.org/x/sync/errgroup"
)

// Config controls the search pool and concurrency of a fetch.
type Config struct {
	// PoolSize is the number of results requested per topic before filtering.
	PoolSize int
	// RecencyWindow drops results published before now minus the window.
	RecencyWindow time.Duration
	// TopicParallelism bounds concurrent topic queries.
	TopicParallelism int
	// ContentThreshold is the snippet length below which the ContentFetcher
	// is asked for the full text.
	ContentThreshold   int
	ContentParallelism int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:           50,
		RecencyWindow:      36 * time.Hour,
		TopicParallelism:   4,
		ContentThreshold:   500,
		ContentParallelism: 5,
	}
}

// Request describes one fetch for a user's preferences.
type Request struct {
	Topics []string
	// PerTopicLimit caps the survivors of each topic. Non-positive means no cap
	// beyond PoolSize.
	PerTopicLimit    int
	PreferredSources []string
}

// TopicOutcome reports how one topic query was filtered.
type TopicOutcome struct {
	Topic      string
	Candidates int
	Eligible   int
	Matched    int
	Selected   int
	// Degraded is set when no result matched the preferred sources and the
	// unfiltered eligible set was used instead.
	Degraded bool
	Err      error
}

// Report is the result of Fetch.
type Report struct {
	Articles []*entity.Article
	Topics   []TopicOutcome
	// Saved is the number of new rows inserted by SaveBatch.
	Saved int
}

// Service fetches articles for a set of topics.
type Service struct {
	Searcher       Searcher
	ArticleRepo    repository.ArticleRepository
	ContentFetcher ContentFetcher // nil disables content enhancement
	Aliases        config.SourceAliases
	cfg            Config
	now            func() time.Time
}

// NewService creates a fetch Service. contentFetcher may be nil.
func NewService(
	searcher Searcher,
	articleRepo repository.ArticleRepository,
	contentFetcher ContentFetcher,
	aliases config.SourceAliases,
	cfg Config,
) *Service {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultConfig().PoolSize
	}
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = DefaultConfig().RecencyWindow
	}
	if cfg.TopicParallelism <= 0 {
		cfg.TopicParallelism = DefaultConfig().TopicParallelism
	}
	if cfg.ContentParallelism <= 0 {
		cfg.ContentParallelism = DefaultConfig().ContentParallelism
	}
	return &Service{
		Searcher:       searcher,
		ArticleRepo:    articleRepo,
		ContentFetcher: contentFetcher,
		Aliases:        aliases,
		cfg:            cfg,
		now:            time.Now,
	}
}

// FetchArticles returns up to perTopicLimit recent articles per topic,
// deduplicated by URL across topics.
func (s *Service) FetchArticles(ctx context.Context, topics []string, perTopicLimit int, preferredSources []string) ([]*entity.Article, error) {
	rep, err := s.Fetch(ctx, Request{
		Topics:           topics,
		PerTopicLimit:    perTopicLimit,
		PreferredSources: preferredSources,
	})
	if err != nil {
		return nil, err
	}
	return rep.Articles, nil
}

// Fetch queries every topic concurrently and merges the survivors.
//
// Output order is deterministic: topics in request order, each topic's
// results in provider order. A URL surfaced by several topics appears once,
// at its first position, with all topics recorded.
func (s *Service) Fetch(ctx context.Context, req Request) (*Report, error) {
	logger := slog.Default()
	start := time.Now()
	rep := &Report{Topics: make([]TopicOutcome, len(req.Topics))}
	if len(req.Topics) == 0 {
		return rep, nil
	}

	cutoff := s.now().Add(-s.cfg.RecencyWindow)
	matcher := newSourceMatcher(req.PreferredSources, s.Aliases)
	selected := make([][]SearchResult, len(req.Topics))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.TopicParallelism)
	for i, topic := range req.Topics {
		eg.Go(func() error {
			out, results := s.fetchTopic(egCtx, topic, cutoff, req.PerTopicLimit, matcher)
			rep.Topics[i] = out
			selected[i] = results
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var errs []error
	for _, out := range rep.Topics {
		if out.Err != nil {
			errs = append(errs, out.Err)
		}
	}
	if len(errs) == len(req.Topics) {
		return nil, &UpstreamError{Topics: req.Topics, Err: errors.Join(errs...)}
	}

	rep.Articles = merge(req.Topics, selected)
	s.enhance(ctx, rep.Articles)
	rep.Saved = s.save(ctx, rep.Articles)

	metrics.RecordArticlesFetched(len(rep.Articles))
	logger.Info("topic fetch completed",
		slog.Int("topics", len(req.Topics)),
		slog.Int("failed_topics", len(errs)),
		slog.Int("articles", len(rep.Articles)),
		slog.Int("saved", rep.Saved),
		slog.Duration("duration", time.Since(start)))

	return rep, nil
}

// fetchTopic runs one query and applies the recency filter, the source filter
// with fallback-on-empty, and the per-topic limit.
func (s *Service) fetchTopic(
	ctx context.Context,
	topic string,
	cutoff time.Time,
	limit int,
	matcher *sourceMatcher,
) (TopicOutcome, []SearchResult) {
	logger := slog.Default()
	out := TopicOutcome{Topic: topic}

	results, err := s.Searcher.Search(ctx, Query{
		Query:          topic,
		PageSize:       s.cfg.PoolSize,
		PublishedAfter: cutoff,
	})
	if err != nil {
		logger.Warn("topic query failed",
			slog.String("topic", topic),
			slog.Any("error", err))
		metrics.RecordTopicQueryError()
		out.Err = err
		return out, nil
	}
	out.Candidates = len(results)

	eligible := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.URL == "" || r.PublishedAt.Before(cutoff) {
			continue
		}
		eligible = append(eligible, r)
	}
	out.Eligible = len(eligible)

	chosen := eligible
	if matcher.active() {
		matched := make([]SearchResult, 0, len(eligible))
		for _, r := range eligible {
			if matcher.match(r.Source) {
				matched = append(matched, r)
			}
		}
		out.Matched = len(matched)
		switch {
		case len(matched) > 0:
			chosen = matched
		case len(eligible) > 0:
			out.Degraded = true
			metrics.RecordSourceFilterFallback()
			logger.Warn("no results from preferred sources, using all recent results",
				slog.String("topic", topic),
				slog.Int("eligible", len(eligible)))
		}
	} else {
		out.Matched = len(eligible)
	}

	if limit > 0 && len(chosen) > limit {
		chosen = chosen[:limit]
	}
	out.Selected = len(chosen)
	return out, chosen
}

// merge flattens per-topic results into articles, collapsing URLs at their
// first occurrence and accumulating topics.
func merge(topics []string, selected [][]SearchResult) []*entity.Article {
	byURL := make(map[string]*entity.Article)
	var articles []*entity.Article
	for i, results := range selected {
		topic := topics[i]
		for _, r := range results {
			if a, ok := byURL[r.URL]; ok {
				a.AddTopic(topic)
				continue
			}
			a := &entity.Article{
				Title:       r.Title,
				URL:         r.URL,
				Source:      r.Source,
				PublishedAt: r.PublishedAt,
				Content:     cleanContent(r.Content),
				Topics:      []string{topic},
			}
			byURL[r.URL] = a
			articles = append(articles, a)
		}
	}
	return articles
}

// enhance replaces short snippets with the full article text when a
// ContentFetcher is configured. Failures keep the snippet.
func (s *Service) enhance(ctx context.Context, articles []*entity.Article) {
	if s.ContentFetcher == nil {
		return
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.ContentParallelism)
	for _, a := range articles {
		if len(a.Content) >= s.cfg.ContentThreshold {
			metrics.RecordContentFetchSkipped()
			continue
		}
		eg.Go(func() error {
			a.Content = s.enhanceContent(egCtx, a.URL, a.Content)
			return nil
		})
	}
	_ = eg.Wait()
}

func (s *Service) enhanceContent(ctx context.Context, url, snippet string) string {
	logger := slog.Default()

	fetchStart := time.Now()
	full, err := s.ContentFetcher.FetchContent(ctx, url)
	fetchDuration := time.Since(fetchStart)
	if err != nil {
		logger.Debug("content fetch failed, keeping snippet",
			slog.String("url", url),
			slog.Any("error", err),
			slog.Duration("fetch_duration", fetchDuration))
		metrics.RecordContentFetchFailed(fetchDuration)
		return snippet
	}
	metrics.RecordContentFetchSuccess(fetchDuration)

	full = cleanContent(full)
	// extracted text shorter than the snippet is usually a failed extraction
	if len(full) > len(snippet) {
		return full
	}
	return snippet
}

// save stores the articles best effort. The in-memory list stays
// authoritative, so failures are only logged.
func (s *Service) save(ctx context.Context, articles []*entity.Article) int {
	if s.ArticleRepo == nil || len(articles) == 0 {
		return 0
	}
	n, err := s.ArticleRepo.SaveBatch(context.WithoutCancel(ctx), articles)
	if err != nil {
		slog.Default().Warn("failed to save fetched articles",
			slog.Int("articles", len(articles)),
			slog.Any("error", err))
		metrics.RecordArticlePersistFailure()
		return 0
	}
	return n
}
