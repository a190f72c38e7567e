package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"news-digest/internal/config"
	"news-digest/internal/domain/entity"
	"news-digest/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ───── ヘルパ ───── */

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type stubSearcher struct {
	mu      sync.Mutex
	results map[string][]SearchResult
	errs    map[string]error
	queries []Query
}

func (s *stubSearcher) Search(_ context.Context, q Query) ([]SearchResult, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	if err := s.errs[q.Query]; err != nil {
		return nil, err
	}
	return s.results[q.Query], nil
}

// ArticleRepository is insert-only; SaveBatch is the whole contract.
var _ repository.ArticleRepository = (*stubArticleRepo)(nil)

type stubArticleRepo struct {
	saved []*entity.Article
	err   error
}

func (r *stubArticleRepo) SaveBatch(_ context.Context, articles []*entity.Article) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.saved = append(r.saved, articles...)
	return len(articles), nil
}

type stubContentFetcher struct {
	content map[string]string
	err     error
}

func (f *stubContentFetcher) FetchContent(_ context.Context, url string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.content[url], nil
}

func result(url, source string, age time.Duration) SearchResult {
	return SearchResult{
		Title:       "title " + url,
		URL:         url,
		Source:      source,
		PublishedAt: fixedNow.Add(-age),
		Content:     "content of " + url,
	}
}

func newTestService(s Searcher, repo *stubArticleRepo, cf ContentFetcher) *Service {
	svc := NewService(s, repo, cf, config.SourceAliases{
		"bbc": {"BBC News", "BBC Sport"},
	}, DefaultConfig())
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func urls(articles []*entity.Article) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.URL)
	}
	return out
}

/* ───── テスト ───── */

func TestFetch_DedupAcrossTopicsKeepsFirstPosition(t *testing.T) {
	s := &stubSearcher{results: map[string][]SearchResult{
		"ai":      {result("u1", "Reuters", time.Hour), result("u2", "Reuters", 2*time.Hour)},
		"climate": {result("u2", "Reuters", 2*time.Hour), result("u3", "Reuters", time.Hour)},
	}}
	repo := &stubArticleRepo{}
	svc := newTestService(s, repo, nil)

	rep, err := svc.Fetch(context.Background(), Request{Topics: []string{"ai", "climate"}, PerTopicLimit: 5})

	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2", "u3"}, urls(rep.Articles))
	assert.Equal(t, []string{"ai", "climate"}, rep.Articles[1].Topics)
	assert.Equal(t, []string{"climate"}, rep.Articles[2].Topics)
	assert.Len(t, repo.saved, 3)
	assert.Equal(t, 3, rep.Saved)
	for _, a := range rep.Articles {
		assert.False(t, a.HasSummary())
	}
}

func TestFetch_RecencyWindowAndQueryShape(t *testing.T) {
	s := &stubSearcher{results: map[string][]SearchResult{
		"ai": {result("fresh", "Reuters", 35*time.Hour), result("stale", "Reuters", 37*time.Hour)},
	}}
	svc := newTestService(s, &stubArticleRepo{}, nil)

	rep, err := svc.Fetch(context.Background(), Request{Topics: []string{"ai"}, PerTopicLimit: 5})

	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, urls(rep.Articles))
	require.Len(t, s.queries, 1)
	assert.Equal(t, 50, s.queries[0].PageSize)
	assert.Equal(t, fixedNow.Add(-36*time.Hour), s.queries[0].PublishedAfter)
	assert.Equal(t, TopicOutcome{Topic: "ai", Candidates: 2, Eligible: 1, Matched: 1, Selected: 1}, rep.Topics[0])
}

func TestFetch_AllStaleIsNotAnError(t *testing.T) {
	s := &stubSearcher{results: map[string][]SearchResult{
		"ai": {result("old", "Reuters", 48*time.Hour)},
	}}
	repo := &stubArticleRepo{}
	svc := newTestService(s, repo, nil)

	articles, err := svc.FetchArticles(context.Background(), []string{"ai"}, 5, nil)

	require.NoError(t, err)
	assert.Empty(t, articles)
	assert.Empty(t, repo.saved)
}

func TestFetch_SourceFilterWithAliases(t *testing.T) {
	s := &stubSearcher{results: map[string][]SearchResult{
		"ai": {
			result("u1", "Reuters", time.Hour),
			result("u2", "BBC News", time.Hour),
			result("u3", " bbc ", time.Hour),
		},
	}}
	svc := newTestService(s, &stubArticleRepo{}, nil)

	rep, err := svc.Fetch(context.Background(), Request{
		Topics:           []string{"ai"},
		PerTopicLimit:    5,
		PreferredSources: []string{"BBC"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u3"}, urls(rep.Articles))
	assert.False(t, rep.Topics[0].Degraded)
}

func TestFetch_SourceFilterFallbackOnEmpty(t *testing.T) {
	s := &stubSearcher{results: map[string][]SearchResult{
		"ai": {result("u1", "Reuters", time.Hour), result("u2", "Bloomberg", time.Hour)},
	}}
	svc := newTestService(s, &stubArticleRepo{}, nil)

	rep, err := svc.Fetch(context.Background(), Request{
		Topics:           []string{"ai"},
		PerTopicLimit:    1,
		PreferredSources: []string{"The Guardian"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, urls(rep.Articles))
	assert.True(t, rep.Topics[0].Degraded)
	assert.Equal(t, 0, rep.Topics[0].Matched)
}

func TestFetch_PartialTopicFailureTolerated(t *testing.T) {
	s := &stubSearcher{
		results: map[string][]SearchResult{"climate": {result("u1", "Reuters", time.Hour)}},
		errs:    map[string]error{"ai": errors.New("boom")},
	}
	svc := newTestService(s, &stubArticleRepo{}, nil)

	rep, err := svc.Fetch(context.Background(), Request{Topics: []string{"ai", "climate"}, PerTopicLimit: 5})

	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, urls(rep.Articles))
	assert.Error(t, rep.Topics[0].Err)
}

func TestFetch_TotalOutageIsUpstreamError(t *testing.T) {
	boom := errors.New("provider down")
	s := &stubSearcher{errs: map[string]error{"ai": boom, "climate": boom}}
	svc := newTestService(s, &stubArticleRepo{}, nil)

	_, err := svc.FetchArticles(context.Background(), []string{"ai", "climate"}, 5, nil)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, []string{"ai", "climate"}, upErr.Topics)
	assert.ErrorIs(t, err, boom)
}

func TestFetch_SaveFailureIsSwallowed(t *testing.T) {
	s := &stubSearcher{results: map[string][]SearchResult{"ai": {result("u1", "Reuters", time.Hour)}}}
	svc := newTestService(s, &stubArticleRepo{err: errors.New("db down")}, nil)

	rep, err := svc.Fetch(context.Background(), Request{Topics: []string{"ai"}, PerTopicLimit: 5})

	require.NoError(t, err)
	assert.Len(t, rep.Articles, 1)
	assert.Equal(t, 0, rep.Saved)
}

func TestFetch_NoTopics(t *testing.T) {
	svc := newTestService(&stubSearcher{}, &stubArticleRepo{}, nil)

	articles, err := svc.FetchArticles(context.Background(), nil, 5, nil)

	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestFetch_ContentIsCleaned(t *testing.T) {
	r := result("u1", "Reuters", time.Hour)
	r.Content = "<p>Markets <b>rallied</b> &amp; closed   higher</p> [+2345 chars]"
	s := &stubSearcher{results: map[string][]SearchResult{"ai": {r}}}
	svc := newTestService(s, &stubArticleRepo{}, nil)

	articles, err := svc.FetchArticles(context.Background(), []string{"ai"}, 5, nil)

	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Markets rallied & closed higher", articles[0].Content)
}

func TestFetch_ContentEnhancement(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *stubContentFetcher
		want    string
	}{
		{
			name:    "longer text replaces snippet",
			fetcher: &stubContentFetcher{content: map[string]string{"u1": "the full article text is considerably longer"}},
			want:    "the full article text is considerably longer",
		},
		{
			name:    "failure keeps snippet",
			fetcher: &stubContentFetcher{err: ErrPrivateIP},
			want:    "content of u1",
		},
		{
			name:    "shorter extraction keeps snippet",
			fetcher: &stubContentFetcher{content: map[string]string{"u1": "tiny"}},
			want:    "content of u1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &stubSearcher{results: map[string][]SearchResult{"ai": {result("u1", "Reuters", time.Hour)}}}
			svc := newTestService(s, &stubArticleRepo{}, tt.fetcher)

			articles, err := svc.FetchArticles(context.Background(), []string{"ai"}, 5, nil)

			require.NoError(t, err)
			require.Len(t, articles, 1)
			assert.Equal(t, tt.want, articles[0].Content)
		})
	}
}

func TestCleanContent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain text", "plain text"},
		{"<script>alert(1)</script>Body", "Body"},
		{"Ends here… [+120 chars]", "Ends here…"},
		{"line one\n\nline two", "line one line two"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanContent(tt.in), tt.in)
	}
}
