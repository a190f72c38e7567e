package bootstrap

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-digest/internal/config"
	"news-digest/internal/infra/googlenews"
	"news-digest/internal/infra/newsapi"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:       "test",
		BaseURL:           "https://news.example.com",
		UnsubscribeSecret: "s3cret",
		Search: config.SearchConfig{
			Provider:      config.SearchProviderGoogleNews,
			PoolSize:      20,
			RecencyWindow: 36 * time.Hour,
			Timeout:       time.Second,
		},
		LLM: config.LLMConfig{
			Provider:           "noop",
			SummaryTimeout:     time.Second,
			IntroTimeout:       time.Second,
			SummaryParallelism: 2,
		},
		Mail: config.MailConfig{Provider: config.MailProviderLog},
		Digest: config.DigestConfig{
			DailyArticlesPerTopic:   5,
			WeeklyArticlesPerTopic:  15,
			WelcomeArticlesPerTopic: 3,
			DedupWindow:             10 * time.Minute,
		},
	}
}

func TestBuild_WiresEverything(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	app, err := Build(testConfig(), db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.NotNil(t, app.Pipeline)
	assert.NotNil(t, app.Schedule)
	assert.NotNil(t, app.Subscriptions)
	assert.NotNil(t, app.Delivery)
	assert.IsType(t, &googlenews.Client{}, app.Searcher)
	assert.Equal(t, "https://news.example.com", app.Signer.BaseURL())
	assert.Contains(t, app.HealthChecks(), "search")
	assert.Equal(t, 3, app.Schedule.ArticlesPerTopic("welcome", "daily"))
}

func TestBuild_NewsAPI(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cfg := testConfig()
	cfg.Search.Provider = config.SearchProviderNewsAPI
	cfg.Search.NewsAPIKey = "key"

	app, err := Build(cfg, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.IsType(t, &newsapi.Client{}, app.Searcher)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "unknown search provider", mutate: func(c *config.Config) { c.Search.Provider = "bing" }},
		{name: "unknown llm provider", mutate: func(c *config.Config) { c.LLM.Provider = "llama" }},
		{name: "unknown mail provider", mutate: func(c *config.Config) { c.Mail.Provider = "pigeon" }},
		{name: "missing aliases file", mutate: func(c *config.Config) { c.Digest.SourceAliasesFile = "/nonexistent/aliases.yaml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			cfg := testConfig()
			tt.mutate(cfg)
			_, err = Build(cfg, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
			assert.Error(t, err)
		})
	}
}
