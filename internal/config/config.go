// Package config assembles application configuration from environment
// variables (optionally seeded from a .env file) and validates it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"

	env "news-digest/pkg/config"
)

// Search providers.
const (
	SearchProviderNewsAPI    = "newsapi"
	SearchProviderGoogleNews = "googlenews"
)

// Language model providers.
const (
	LLMProviderClaude = "claude"
	LLMProviderOpenAI = "openai"
	LLMProviderGemini = "gemini"
)

// Mail providers.
const (
	MailProviderHTTP = "http"
	MailProviderLog  = "log"
)

// SearchConfig configures the article search provider.
type SearchConfig struct {
	Provider       string
	NewsAPIKey     string
	NewsAPIBaseURL string
	// GoogleNewsBaseURL is the RSS search endpoint used by the googlenews provider.
	GoogleNewsBaseURL string
	// PoolSize is how many results are requested per topic before filtering.
	PoolSize int
	// RecencyWindow drops results published earlier than now minus the window.
	RecencyWindow time.Duration
	Timeout       time.Duration
	// RequestsPerSecond throttles outgoing search queries. Zero disables it.
	RequestsPerSecond float64
}

// LLMConfig configures the text generation provider.
type LLMConfig struct {
	Provider     string
	AnthropicKey string
	OpenAIKey    string
	GeminiKey    string
	// Model overrides the provider default when set.
	Model              string
	MaxTokens          int
	SummaryTimeout     time.Duration
	IntroTimeout       time.Duration
	SummaryParallelism int
}

// APIKey returns the key of the selected provider.
func (c LLMConfig) APIKey() string {
	switch c.Provider {
	case LLMProviderOpenAI:
		return c.OpenAIKey
	case LLMProviderGemini:
		return c.GeminiKey
	default:
		return c.AnthropicKey
	}
}

// MailConfig configures the transactional email sender.
type MailConfig struct {
	Provider          string
	APIURL            string
	APIKey            string
	From              string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// DigestConfig holds pipeline and scheduling knobs.
type DigestConfig struct {
	DailyArticlesPerTopic   int
	WeeklyArticlesPerTopic  int
	WelcomeArticlesPerTopic int
	// DedupWindow suppresses a second digest of the same mode for the same
	// user inside the window. Zero disables the guard.
	DedupWindow  time.Duration
	WelcomeDelay time.Duration
	// JobMaxAttempts bounds delivery retries of delayed jobs.
	JobMaxAttempts int
	JobRetryDelay  time.Duration
	JobBatchSize   int
	// ContentEnhancement fetches full article text when the provider snippet
	// is shorter than ContentThreshold characters.
	ContentEnhancement bool
	ContentThreshold   int
	SourceAliasesFile  string
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string
	// CORSOrigins may call the public endpoints from a browser. Defaults to
	// the base URL.
	CORSOrigins []string
	// PublicRatePerMinute limits requests per client IP on public routes.
	PublicRatePerMinute int
	MaxBodyBytes        int64
	ShutdownTimeout     time.Duration
}

// Config is the full application configuration.
type Config struct {
	Environment       string
	BaseURL           string
	UnsubscribeSecret string
	DatabaseURL       string
	AdminJWTSecret    string
	TraceSampleRatio  float64

	HTTP   HTTPConfig
	Search SearchConfig
	LLM    LLMConfig
	Mail   MailConfig
	Digest DigestConfig
}

// IsProduction reports whether real emails are sent.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:       env.GetEnvString("APP_ENV", "development"),
		BaseURL:           normalizeBaseURL(env.GetEnvString("APP_BASE_URL", "http://localhost:8080")),
		UnsubscribeSecret: env.GetEnvString("UNSUBSCRIBE_SECRET", ""),
		DatabaseURL:       env.GetEnvString("DATABASE_URL", ""),
		AdminJWTSecret:    env.GetEnvString("ADMIN_JWT_SECRET", ""),
		TraceSampleRatio:  env.GetEnvFloat("TRACE_SAMPLE_RATIO", 0.1),
		HTTP: HTTPConfig{
			Addr:                env.GetEnvString("HTTP_ADDR", ":8080"),
			PublicRatePerMinute: env.GetEnvInt("HTTP_PUBLIC_RATE_PER_MINUTE", 30),
			MaxBodyBytes:        int64(env.GetEnvInt("HTTP_MAX_BODY_BYTES", 1<<20)),
			ShutdownTimeout:     env.GetEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Search: SearchConfig{
			Provider:          strings.ToLower(env.GetEnvString("SEARCH_PROVIDER", SearchProviderNewsAPI)),
			NewsAPIKey:        env.GetEnvString("NEWSAPI_KEY", ""),
			NewsAPIBaseURL:    env.GetEnvString("NEWSAPI_BASE_URL", "https://newsapi.org"),
			GoogleNewsBaseURL: env.GetEnvString("GOOGLE_NEWS_BASE_URL", "https://news.google.com/rss/search"),
			PoolSize:          env.GetEnvInt("SEARCH_POOL_SIZE", 50),
			RecencyWindow:     env.GetEnvDuration("SEARCH_RECENCY_WINDOW", 36*time.Hour),
			Timeout:           env.GetEnvDuration("SEARCH_TIMEOUT", 15*time.Second),
			RequestsPerSecond: env.GetEnvFloat("SEARCH_RPS", 5),
		},
		LLM: LLMConfig{
			Provider:           strings.ToLower(env.GetEnvString("LLM_PROVIDER", LLMProviderClaude)),
			AnthropicKey:       env.GetEnvString("ANTHROPIC_API_KEY", ""),
			OpenAIKey:          env.GetEnvString("OPENAI_API_KEY", ""),
			GeminiKey:          env.GetEnvString("GEMINI_API_KEY", ""),
			Model:              env.GetEnvString("LLM_MODEL", ""),
			MaxTokens:          env.GetEnvInt("LLM_MAX_TOKENS", 512),
			SummaryTimeout:     env.GetEnvDuration("LLM_SUMMARY_TIMEOUT", 30*time.Second),
			IntroTimeout:       env.GetEnvDuration("LLM_INTRO_TIMEOUT", 45*time.Second),
			SummaryParallelism: env.GetEnvInt("LLM_SUMMARY_PARALLELISM", 5),
		},
		Mail: MailConfig{
			Provider:          strings.ToLower(env.GetEnvString("MAIL_PROVIDER", MailProviderLog)),
			APIURL:            env.GetEnvString("MAIL_API_URL", "https://api.resend.com"),
			APIKey:            env.GetEnvString("MAIL_API_KEY", ""),
			From:              env.GetEnvString("MAIL_FROM", "News Digest <digest@example.com>"),
			Timeout:           env.GetEnvDuration("MAIL_TIMEOUT", 10*time.Second),
			RequestsPerSecond: env.GetEnvFloat("MAIL_RPS", 2),
		},
		Digest: DigestConfig{
			DailyArticlesPerTopic:   env.GetEnvInt("DIGEST_DAILY_PER_TOPIC", 5),
			WeeklyArticlesPerTopic:  env.GetEnvInt("DIGEST_WEEKLY_PER_TOPIC", 15),
			WelcomeArticlesPerTopic: env.GetEnvInt("DIGEST_WELCOME_PER_TOPIC", 5),
			DedupWindow:             env.GetEnvDuration("DIGEST_DEDUP_WINDOW", 10*time.Minute),
			WelcomeDelay:            env.GetEnvDuration("DIGEST_WELCOME_DELAY", 10*time.Second),
			JobMaxAttempts:          env.GetEnvInt("DIGEST_JOB_MAX_ATTEMPTS", 3),
			JobRetryDelay:           env.GetEnvDuration("DIGEST_JOB_RETRY_DELAY", 5*time.Minute),
			JobBatchSize:            env.GetEnvInt("DIGEST_JOB_BATCH_SIZE", 20),
			ContentEnhancement:      env.GetEnvBool("CONTENT_FETCH_ENABLED", false),
			ContentThreshold:        env.GetEnvInt("CONTENT_FETCH_THRESHOLD", 500),
			SourceAliasesFile:       env.GetEnvString("SOURCE_ALIASES_FILE", ""),
		},
	}

	cfg.HTTP.CORSOrigins = env.GetEnvStringList("CORS_ALLOWED_ORIGINS", []string{cfg.BaseURL})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := url.ParseRequestURI(normalizeBaseURL(c.BaseURL)); err != nil {
		errs = append(errs, fmt.Errorf("APP_BASE_URL is invalid: %w", err))
	}

	switch c.Search.Provider {
	case SearchProviderNewsAPI:
		if c.Search.NewsAPIKey == "" {
			errs = append(errs, errors.New("NEWSAPI_KEY is required for the newsapi provider"))
		}
	case SearchProviderGoogleNews:
	default:
		errs = append(errs, fmt.Errorf("SEARCH_PROVIDER %q is not supported", c.Search.Provider))
	}
	if c.Search.PoolSize <= 0 || c.Search.PoolSize > 100 {
		errs = append(errs, fmt.Errorf("SEARCH_POOL_SIZE must be 1-100, got %d", c.Search.PoolSize))
	}
	if err := env.ValidatePositiveDuration(c.Search.RecencyWindow); err != nil {
		errs = append(errs, fmt.Errorf("SEARCH_RECENCY_WINDOW: %w", err))
	}

	switch c.LLM.Provider {
	case LLMProviderClaude, LLMProviderOpenAI, LLMProviderGemini:
		if c.LLM.APIKey() == "" {
			errs = append(errs, fmt.Errorf("API key for LLM provider %q is not set", c.LLM.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not supported", c.LLM.Provider))
	}
	if c.LLM.SummaryParallelism <= 0 {
		errs = append(errs, fmt.Errorf("LLM_SUMMARY_PARALLELISM must be positive, got %d", c.LLM.SummaryParallelism))
	}
	if err := env.ValidatePositiveDuration(c.LLM.SummaryTimeout); err != nil {
		errs = append(errs, fmt.Errorf("LLM_SUMMARY_TIMEOUT: %w", err))
	}

	switch c.Mail.Provider {
	case MailProviderHTTP:
		if c.Mail.APIKey == "" {
			errs = append(errs, errors.New("MAIL_API_KEY is required for the http mail provider"))
		}
	case MailProviderLog:
		if c.IsProduction() {
			errs = append(errs, errors.New("MAIL_PROVIDER=log cannot be used in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("MAIL_PROVIDER %q is not supported", c.Mail.Provider))
	}

	if c.IsProduction() && c.UnsubscribeSecret == "" {
		errs = append(errs, errors.New("UNSUBSCRIBE_SECRET is required in production"))
	}

	if c.HTTP.PublicRatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("HTTP_PUBLIC_RATE_PER_MINUTE must not be negative, got %d", c.HTTP.PublicRatePerMinute))
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("HTTP_MAX_BODY_BYTES must be positive, got %d", c.HTTP.MaxBodyBytes))
	}

	d := c.Digest
	if d.DailyArticlesPerTopic <= 0 || d.WeeklyArticlesPerTopic <= 0 || d.WelcomeArticlesPerTopic <= 0 {
		errs = append(errs, errors.New("articles per topic limits must be positive"))
	}
	if err := env.ValidateNonNegativeDuration(d.DedupWindow); err != nil {
		errs = append(errs, fmt.Errorf("DIGEST_DEDUP_WINDOW: %w", err))
	}
	if err := env.ValidateNonNegativeDuration(d.WelcomeDelay); err != nil {
		errs = append(errs, fmt.Errorf("DIGEST_WELCOME_DELAY: %w", err))
	}
	if d.JobMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("DIGEST_JOB_MAX_ATTEMPTS must be positive, got %d", d.JobMaxAttempts))
	}

	return errors.Join(errs...)
}

// normalizeBaseURL adds https:// to scheme-less base URLs.
func normalizeBaseURL(u string) string {
	if u != "" && !strings.Contains(u, "://") {
		return "https://" + u
	}
	return u
}
