package worker

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "bad daily cron", mutate: func(c *Config) { c.DailySchedule = "every morning" }, wantErr: "daily schedule"},
		{name: "empty weekly cron", mutate: func(c *Config) { c.WeeklySchedule = "" }, wantErr: "weekly schedule"},
		{name: "six-field cron rejected", mutate: func(c *Config) { c.JobPollSchedule = "*/30 * * * * *" }, wantErr: "job poll schedule"},
		{name: "unknown timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }, wantErr: "timezone"},
		{name: "zero batch timeout", mutate: func(c *Config) { c.BatchTimeout = 0 }, wantErr: "batch timeout"},
		{name: "negative poll timeout", mutate: func(c *Config) { c.JobPollTimeout = -time.Second }, wantErr: "job poll timeout"},
		{name: "privileged port", mutate: func(c *Config) { c.HealthPort = 80 }, wantErr: "health port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateReportsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DailySchedule = "bad"
	cfg.HealthPort = 1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily schedule")
	assert.Contains(t, err.Error(), "health port")
}

func TestConfig_Location(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Asia/Tokyo"
	assert.Equal(t, "Asia/Tokyo", cfg.Location().String())

	cfg.Timezone = "nowhere"
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	m := NewMetrics()

	cfg := LoadConfigFromEnv(discardLogger(), m)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ConfigFallbackActive))
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("DIGEST_DAILY_CRON", "30 6 * * *")
	t.Setenv("DIGEST_WEEKLY_CRON", "0 7 * * 1")
	t.Setenv("DIGEST_JOB_POLL_CRON", "@every 1m")
	t.Setenv("WORKER_TIMEZONE", "Europe/Berlin")
	t.Setenv("WORKER_BATCH_TIMEOUT", "45m")
	t.Setenv("WORKER_JOB_POLL_TIMEOUT", "2m")
	t.Setenv("WORKER_HEALTH_PORT", "9200")

	cfg := LoadConfigFromEnv(discardLogger(), NewMetrics())

	assert.Equal(t, Config{
		DailySchedule:   "30 6 * * *",
		WeeklySchedule:  "0 7 * * 1",
		JobPollSchedule: "@every 1m",
		Timezone:        "Europe/Berlin",
		BatchTimeout:    45 * time.Minute,
		JobPollTimeout:  2 * time.Minute,
		HealthPort:      9200,
	}, cfg)
}

func TestLoadConfigFromEnv_FallsBackPerField(t *testing.T) {
	t.Setenv("DIGEST_DAILY_CRON", "not a cron")
	t.Setenv("WORKER_TIMEZONE", "Invalid/Zone")
	t.Setenv("WORKER_BATCH_TIMEOUT", "-5m")
	t.Setenv("WORKER_HEALTH_PORT", "22")
	t.Setenv("DIGEST_WEEKLY_CRON", "0 10 * * 6")
	m := NewMetrics()

	cfg := LoadConfigFromEnv(discardLogger(), m)

	def := DefaultConfig()
	assert.Equal(t, def.DailySchedule, cfg.DailySchedule)
	assert.Equal(t, def.Timezone, cfg.Timezone)
	assert.Equal(t, def.BatchTimeout, cfg.BatchTimeout)
	assert.Equal(t, def.HealthPort, cfg.HealthPort)
	assert.Equal(t, "0 10 * * 6", cfg.WeeklySchedule)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigFallbackActive))
	for _, field := range []string{"daily_schedule", "timezone", "batch_timeout", "health_port"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ConfigFallbacksTotal.WithLabelValues(field)), field)
	}
	require.NoError(t, cfg.Validate())
}
