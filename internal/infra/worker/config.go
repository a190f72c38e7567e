package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	env "news-digest/pkg/config"
)

// cronParser accepts standard five-field expressions plus descriptors such
// as "@every 30s".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config controls when the worker runs batches and polls the job queue.
type Config struct {
	// DailySchedule triggers the batch for daily subscribers.
	DailySchedule string
	// WeeklySchedule triggers the batch for weekly subscribers.
	WeeklySchedule string
	// JobPollSchedule drains due welcome and preferences-updated jobs.
	JobPollSchedule string
	Timezone        string
	// BatchTimeout bounds one frequency batch.
	BatchTimeout time.Duration
	// JobPollTimeout bounds one drain of the job queue.
	JobPollTimeout time.Duration
	HealthPort     int
}

// DefaultConfig returns daily digests at 08:00, weekly digests on Sunday at
// 09:00 and a 30 second job poll, all in UTC.
func DefaultConfig() Config {
	return Config{
		DailySchedule:   "0 8 * * *",
		WeeklySchedule:  "0 9 * * 0",
		JobPollSchedule: "@every 30s",
		Timezone:        "UTC",
		BatchTimeout:    2 * time.Hour,
		JobPollTimeout:  10 * time.Minute,
		HealthPort:      9091,
	}
}

// Location returns the configured timezone, or UTC if it cannot be loaded.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	for name, spec := range map[string]string{
		"daily schedule":    c.DailySchedule,
		"weekly schedule":   c.WeeklySchedule,
		"job poll schedule": c.JobPollSchedule,
	} {
		if err := validateSchedule(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if err := validateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := env.ValidatePositiveDuration(c.BatchTimeout); err != nil {
		errs = append(errs, fmt.Errorf("batch timeout: %w", err))
	}
	if err := env.ValidatePositiveDuration(c.JobPollTimeout); err != nil {
		errs = append(errs, fmt.Errorf("job poll timeout: %w", err))
	}
	if c.HealthPort < 1024 || c.HealthPort > 65535 {
		errs = append(errs, fmt.Errorf("health port %d out of range [1024, 65535]", c.HealthPort))
	}
	return errors.Join(errs...)
}

func validateSchedule(spec string) error {
	if spec == "" {
		return errors.New("cannot be empty")
	}
	if _, err := cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

func validateTimezone(tz string) error {
	if tz == "" {
		return errors.New("cannot be empty")
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", tz, err)
	}
	return nil
}

// LoadConfigFromEnv reads the worker settings. It never fails: each invalid
// value is logged, counted in m and replaced by its default, so one bad
// variable cannot keep the worker from starting.
//
//	DIGEST_DAILY_CRON      (default "0 8 * * *")
//	DIGEST_WEEKLY_CRON     (default "0 9 * * 0")
//	DIGEST_JOB_POLL_CRON   (default "@every 30s")
//	WORKER_TIMEZONE        (default "UTC")
//	WORKER_BATCH_TIMEOUT   (default 2h)
//	WORKER_JOB_POLL_TIMEOUT (default 10m)
//	WORKER_HEALTH_PORT     (default 9091)
func LoadConfigFromEnv(logger *slog.Logger, m *Metrics) Config {
	def := DefaultConfig()
	fallbacks := 0
	fallback := func(field, key string, value any, err error) {
		fallbacks++
		m.RecordConfigFallback(field)
		logger.Warn("configuration fallback applied",
			slog.String("field", field),
			slog.String("env_key", key),
			slog.Any("invalid_value", value),
			slog.String("error", err.Error()))
	}

	cfg := def
	load := func(field, key string, dst *string, defValue string, validate func(string) error) {
		v := env.GetEnvString(key, defValue)
		if err := validate(v); err != nil {
			fallback(field, key, v, err)
			v = defValue
		}
		*dst = v
	}
	load("daily_schedule", "DIGEST_DAILY_CRON", &cfg.DailySchedule, def.DailySchedule, validateSchedule)
	load("weekly_schedule", "DIGEST_WEEKLY_CRON", &cfg.WeeklySchedule, def.WeeklySchedule, validateSchedule)
	load("job_poll_schedule", "DIGEST_JOB_POLL_CRON", &cfg.JobPollSchedule, def.JobPollSchedule, validateSchedule)
	load("timezone", "WORKER_TIMEZONE", &cfg.Timezone, def.Timezone, validateTimezone)

	loadDuration := func(field, key string, dst *time.Duration, defValue time.Duration) {
		d := env.GetEnvDuration(key, defValue)
		if err := env.ValidatePositiveDuration(d); err != nil {
			fallback(field, key, d.String(), err)
			d = defValue
		}
		*dst = d
	}
	loadDuration("batch_timeout", "WORKER_BATCH_TIMEOUT", &cfg.BatchTimeout, def.BatchTimeout)
	loadDuration("job_poll_timeout", "WORKER_JOB_POLL_TIMEOUT", &cfg.JobPollTimeout, def.JobPollTimeout)
	if p := env.GetEnvInt("WORKER_HEALTH_PORT", def.HealthPort); p >= 1024 && p <= 65535 {
		cfg.HealthPort = p
	} else {
		fallback("health_port", "WORKER_HEALTH_PORT", p, errors.New("out of range [1024, 65535]"))
	}

	m.SetFallbackActive(fallbacks > 0)
	m.RecordConfigLoad()
	return cfg
}
