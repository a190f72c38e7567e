package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("APP_BASE_URL", "news.example.com")
	t.Setenv("SEARCH_PROVIDER", "newsapi")
	t.Setenv("NEWSAPI_KEY", "news-key")
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("MAIL_PROVIDER", "log")
	t.Setenv("UNSUBSCRIBE_SECRET", "")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 50, cfg.Search.PoolSize)
	assert.Equal(t, 36*time.Hour, cfg.Search.RecencyWindow)
	assert.Equal(t, 5, cfg.Digest.DailyArticlesPerTopic)
	assert.Equal(t, 15, cfg.Digest.WeeklyArticlesPerTopic)
	assert.Equal(t, 10*time.Second, cfg.Digest.WelcomeDelay)
	assert.Equal(t, 5, cfg.LLM.SummaryParallelism)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey())
	assert.Equal(t, []string{"https://news.example.com"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 30, cfg.HTTP.PublicRatePerMinute)
}

func TestLoad_AggregatesErrors(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("NEWSAPI_KEY", "")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()

	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "NEWSAPI_KEY is required")
	assert.Contains(t, msg, `LLM provider "gemini"`)
	assert.Contains(t, msg, "MAIL_PROVIDER=log cannot be used in production")
	assert.Contains(t, msg, "UNSUBSCRIBE_SECRET is required")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment: "development",
			BaseURL:     "https://digest.example.com",
			HTTP:        HTTPConfig{Addr: ":8080", PublicRatePerMinute: 30, MaxBodyBytes: 1 << 20},
			Search:      SearchConfig{Provider: SearchProviderGoogleNews, PoolSize: 50, RecencyWindow: 36 * time.Hour},
			LLM:         LLMConfig{Provider: LLMProviderOpenAI, OpenAIKey: "sk", SummaryParallelism: 5, SummaryTimeout: time.Second},
			Mail:        MailConfig{Provider: MailProviderHTTP, APIKey: "re_123"},
			Digest: DigestConfig{
				DailyArticlesPerTopic: 5, WeeklyArticlesPerTopic: 15, WelcomeArticlesPerTopic: 5,
				JobMaxAttempts: 3,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown search provider", mutate: func(c *Config) { c.Search.Provider = "bing" }, wantErr: "SEARCH_PROVIDER"},
		{name: "pool too large", mutate: func(c *Config) { c.Search.PoolSize = 500 }, wantErr: "SEARCH_POOL_SIZE"},
		{name: "unknown llm", mutate: func(c *Config) { c.LLM.Provider = "llama" }, wantErr: "LLM_PROVIDER"},
		{name: "http mail without key", mutate: func(c *Config) { c.Mail.APIKey = "" }, wantErr: "MAIL_API_KEY"},
		{name: "negative dedup window", mutate: func(c *Config) { c.Digest.DedupWindow = -time.Second }, wantErr: "DIGEST_DEDUP_WINDOW"},
		{name: "zero body limit", mutate: func(c *Config) { c.HTTP.MaxBodyBytes = 0 }, wantErr: "HTTP_MAX_BODY_BYTES"},
		{name: "zero weekly limit", mutate: func(c *Config) { c.Digest.WeeklyArticlesPerTopic = 0 }, wantErr: "articles per topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("ND_DOTENV_VALUE=from-file\nND_DOTENV_KEEP=from-file\n"), 0o600))

	t.Setenv("ND_DOTENV_KEEP", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("ND_DOTENV_VALUE") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))

	assert.Equal(t, "from-file", os.Getenv("ND_DOTENV_VALUE"))
	assert.Equal(t, "from-env", os.Getenv("ND_DOTENV_KEEP"))
}
