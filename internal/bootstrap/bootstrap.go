// Package bootstrap wires configuration, storage, upstream clients and use
// cases into the object graph shared by the api and worker binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"news-digest/internal/config"
	"news-digest/internal/infra/adapter/persistence/postgres"
	"news-digest/internal/infra/db"
	"news-digest/internal/infra/fetcher"
	"news-digest/internal/infra/googlenews"
	"news-digest/internal/infra/llm"
	"news-digest/internal/infra/mailer"
	"news-digest/internal/infra/newsapi"
	"news-digest/internal/repository"
	"news-digest/internal/service/unsubscribe"
	"news-digest/internal/usecase/delivery"
	"news-digest/internal/usecase/digest"
	"news-digest/internal/usecase/fetch"
	"news-digest/internal/usecase/schedule"
	"news-digest/internal/usecase/subscription"
)

// App is the wired application.
type App struct {
	Config *config.Config
	DB     *sql.DB

	Users   repository.UserRepository
	Digests repository.DigestRepository
	Jobs    repository.JobRepository

	Searcher      fetch.Searcher
	Signer        *unsubscribe.Signer
	Delivery      *delivery.Service
	Pipeline      *digest.Pipeline
	Schedule      *schedule.Service
	Subscriptions *subscription.Service
}

// healthChecker is implemented by upstream clients that can report an open
// circuit breaker.
type healthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthChecks returns the dependency probes for the API health endpoint.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if hc, ok := a.Searcher.(healthChecker); ok {
		checks["search"] = hc.CheckHealth
	}
	return checks
}

// Close releases the database pool.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// Open connects to the database, applies migrations and builds the App.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	database, err := db.Open(ctx, cfg.DatabaseURL, db.ConnectionConfigFromEnv())
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(ctx, database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	app, err := Build(cfg, database, logger)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	return app, nil
}

// Build wires every component on top of an open database.
func Build(cfg *config.Config, database *sql.DB, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:  cfg,
		DB:      database,
		Users:   postgres.NewUserRepo(database),
		Digests: postgres.NewDigestRepo(database),
		Jobs:    postgres.NewJobRepo(database, postgres.DefaultJobLease),
	}

	searcher, err := newSearcher(cfg.Search)
	if err != nil {
		return nil, err
	}
	app.Searcher = searcher

	aliases, err := config.LoadSourceAliases(cfg.Digest.SourceAliasesFile)
	if err != nil {
		return nil, fmt.Errorf("source aliases: %w", err)
	}

	var contentFetcher fetch.ContentFetcher
	if cfg.Digest.ContentEnhancement {
		fc, err := fetcher.LoadConfigFromEnv()
		if err != nil {
			logger.Warn("content enhancement disabled", slog.Any("error", err))
		} else {
			contentFetcher = fetcher.NewReadabilityFetcher(fc)
		}
	}
	fetchSvc := fetch.NewService(searcher, postgres.NewArticleRepo(database), contentFetcher, aliases, fetch.Config{
		PoolSize:         cfg.Search.PoolSize,
		RecencyWindow:    cfg.Search.RecencyWindow,
		ContentThreshold: cfg.Digest.ContentThreshold,
	})

	gen, err := llm.New(llm.Config{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey(),
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	mail, err := mailer.New(cfg.Mail)
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}
	app.Signer = unsubscribe.NewSigner(cfg.BaseURL, cfg.UnsubscribeSecret)
	app.Delivery = delivery.NewService(mail, app.Signer, cfg.IsProduction())

	app.Pipeline = digest.NewPipeline(
		fetchSvc,
		digest.NewSummarizer(gen, digest.SummarizerConfig{
			Timeout:     cfg.LLM.SummaryTimeout,
			Parallelism: cfg.LLM.SummaryParallelism,
		}),
		digest.NewComposer(gen, cfg.LLM.IntroTimeout),
		app.Digests,
		app.Delivery,
		digest.Config{DedupWindow: cfg.Digest.DedupWindow},
	)

	app.Schedule = schedule.NewService(app.Users, app.Jobs, app.Pipeline, schedule.Config{
		DailyArticlesPerTopic:   cfg.Digest.DailyArticlesPerTopic,
		WeeklyArticlesPerTopic:  cfg.Digest.WeeklyArticlesPerTopic,
		WelcomeArticlesPerTopic: cfg.Digest.WelcomeArticlesPerTopic,
		MaxAttempts:             cfg.Digest.JobMaxAttempts,
		RetryDelay:              cfg.Digest.JobRetryDelay,
		BatchSize:               cfg.Digest.JobBatchSize,
	})
	app.Subscriptions = subscription.NewService(app.Users, app.Schedule, app.Delivery, app.Signer, cfg.Digest.WelcomeDelay)

	logger.Info("application wired",
		slog.String("environment", cfg.Environment),
		slog.String("search_provider", cfg.Search.Provider),
		slog.String("llm_provider", gen.Name()),
		slog.String("mail_provider", cfg.Mail.Provider),
		slog.Bool("content_enhancement", contentFetcher != nil))
	return app, nil
}

func newSearcher(cfg config.SearchConfig) (fetch.Searcher, error) {
	switch cfg.Provider {
	case config.SearchProviderNewsAPI:
		return newsapi.NewClient(newsapi.Config{
			BaseURL:           cfg.NewsAPIBaseURL,
			APIKey:            cfg.NewsAPIKey,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil
	case config.SearchProviderGoogleNews:
		return googlenews.NewClient(googlenews.Config{
			BaseURL:           cfg.GoogleNewsBaseURL,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported search provider %q", cfg.Provider)
	}
}
