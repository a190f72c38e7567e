// Package schedule runs digests outside request handling: periodic batches
// for every subscriber of a frequency, and the durable delayed-job queue used
// for welcome and preferences-updated digests.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"news-digest/internal/domain/entity"
	"news-digest/internal/observability/metrics"
	"news-digest/internal/repository"
	"news-digest/internal/usecase/digest"
)

const reasonUserNotFound = "user not found"

// Runner is the part of the digest pipeline the scheduler drives.
type Runner interface {
	RunDigest(ctx context.Context, user *entity.User, mode entity.DigestMode, articlesPerTopic int) digest.Result
	Redeliver(ctx context.Context, user *entity.User, digestID int64, mode entity.DigestMode) digest.Result
}

// Config holds per-mode article limits and job retry settings.
type Config struct {
	DailyArticlesPerTopic   int
	WeeklyArticlesPerTopic  int
	WelcomeArticlesPerTopic int
	// MaxAttempts bounds how many times a job is claimed before it is
	// marked failed.
	MaxAttempts int
	// RetryDelay is the first backoff step; it doubles per attempt.
	RetryDelay time.Duration
	BatchSize  int
}

// DefaultConfig returns 5/15/5 articles per topic and three job attempts.
func DefaultConfig() Config {
	return Config{
		DailyArticlesPerTopic:   5,
		WeeklyArticlesPerTopic:  15,
		WelcomeArticlesPerTopic: 5,
		MaxAttempts:             3,
		RetryDelay:              5 * time.Minute,
		BatchSize:               20,
	}
}

// UserFailure records one failed run inside a batch.
type UserFailure struct {
	UserID string
	Stage  digest.Stage
	Reason string
}

// BatchStats summarizes RunFrequency.
type BatchStats struct {
	Frequency  entity.Frequency
	Users      int
	Sent       int
	NoArticles int
	Duplicate  int
	Failed     int
	Failures   []UserFailure
	Duration   time.Duration
}

// JobStats summarizes RunDue.
type JobStats struct {
	Claimed     int
	Done        int
	Rescheduled int
	Failed      int
}

// Service schedules and executes digest runs.
type Service struct {
	Users  repository.UserRepository
	Jobs   repository.JobRepository
	Runner Runner

	cfg Config
	now func() time.Time
}

// NewService creates a schedule Service. Zero config fields fall back to
// DefaultConfig.
func NewService(users repository.UserRepository, jobs repository.JobRepository, runner Runner, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.DailyArticlesPerTopic <= 0 {
		cfg.DailyArticlesPerTopic = def.DailyArticlesPerTopic
	}
	if cfg.WeeklyArticlesPerTopic <= 0 {
		cfg.WeeklyArticlesPerTopic = def.WeeklyArticlesPerTopic
	}
	if cfg.WelcomeArticlesPerTopic <= 0 {
		cfg.WelcomeArticlesPerTopic = def.WelcomeArticlesPerTopic
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	return &Service{Users: users, Jobs: jobs, Runner: runner, cfg: cfg, now: time.Now}
}

// ArticlesPerTopic is the fetch limit for a run of mode for a subscriber
// with frequency freq.
func (s *Service) ArticlesPerTopic(mode entity.DigestMode, freq entity.Frequency) int {
	switch {
	case mode != entity.ModeRegular:
		return s.cfg.WelcomeArticlesPerTopic
	case freq == entity.FrequencyWeekly:
		return s.cfg.WeeklyArticlesPerTopic
	default:
		return s.cfg.DailyArticlesPerTopic
	}
}

// RunFrequency sends a regular digest to every subscriber of freq. Failures
// of single users are collected in the stats and never stop the batch.
func (s *Service) RunFrequency(ctx context.Context, freq entity.Frequency) (*BatchStats, error) {
	if !freq.Valid() {
		return nil, fmt.Errorf("run batch: %w: unknown frequency %q", entity.ErrInvalidInput, freq)
	}
	start := time.Now()
	logger := slog.Default().With(slog.String("frequency", string(freq)))

	users, err := s.Users.ListByFrequency(ctx, freq)
	if err != nil {
		return nil, fmt.Errorf("list %s subscribers: %w", freq, err)
	}

	stats := &BatchStats{Frequency: freq, Users: len(users)}
	logger.Info("digest batch started", slog.Int("users", len(users)))

	limit := s.ArticlesPerTopic(entity.ModeRegular, freq)
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(start)
			return stats, fmt.Errorf("batch interrupted: %w", err)
		}
		res := s.Runner.RunDigest(ctx, u, entity.ModeRegular, limit)
		switch res.Status {
		case digest.StatusSent:
			stats.Sent++
		case digest.StatusNoArticles:
			stats.NoArticles++
		case digest.StatusDuplicate:
			stats.Duplicate++
		default:
			stats.Failed++
			stats.Failures = append(stats.Failures, UserFailure{UserID: u.ID, Stage: res.Stage, Reason: res.Reason})
		}
	}

	stats.Duration = time.Since(start)
	logger.Info("digest batch completed",
		slog.Int("users", stats.Users),
		slog.Int("sent", stats.Sent),
		slog.Int("no_articles", stats.NoArticles),
		slog.Int("duplicate", stats.Duplicate),
		slog.Int("failed", stats.Failed),
		slog.Duration("duration", stats.Duration))
	return stats, nil
}

// Enqueue stores a job that runs a digest of mode for userID after delay.
func (s *Service) Enqueue(ctx context.Context, userID string, mode entity.DigestMode, delay time.Duration) error {
	if userID == "" || !mode.Valid() {
		return fmt.Errorf("enqueue: %w", entity.ErrInvalidInput)
	}
	if delay < 0 {
		delay = 0
	}
	job := &entity.DigestJob{
		UserID:    userID,
		Mode:      mode,
		ExecuteAt: s.now().Add(delay),
	}
	if err := s.Jobs.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue %s digest: %w", mode, err)
	}
	slog.Default().Info("digest job queued",
		slog.Int64("job_id", job.ID),
		slog.String("user_id", userID),
		slog.String("mode", string(mode)),
		slog.Time("execute_at", job.ExecuteAt))
	return nil
}

// RunDue claims due jobs and runs them one by one.
func (s *Service) RunDue(ctx context.Context) (*JobStats, error) {
	jobs, err := s.Jobs.ClaimDue(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	stats := &JobStats{Claimed: len(jobs)}

	var errs []error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			// unprocessed jobs stay running and are reclaimed after the lease
			errs = append(errs, err)
			break
		}
		outcome, err := s.runJob(ctx, job)
		if err != nil {
			errs = append(errs, fmt.Errorf("job %d: %w", job.ID, err))
		}
		metrics.RecordJob(outcome)
		switch outcome {
		case "done":
			stats.Done++
		case "rescheduled":
			stats.Rescheduled++
		default:
			stats.Failed++
		}
	}
	return stats, errors.Join(errs...)
}

// runJob executes one claimed job and records its outcome. The returned
// string is "done", "rescheduled" or "failed".
func (s *Service) runJob(ctx context.Context, job *entity.DigestJob) (string, error) {
	logger := slog.Default().With(
		slog.Int64("job_id", job.ID),
		slog.String("user_id", job.UserID),
		slog.String("mode", string(job.Mode)),
		slog.Int("attempt", job.Attempts))

	user, err := s.Users.Get(ctx, job.UserID)
	if errors.Is(err, entity.ErrNotFound) {
		logger.Warn("job user no longer exists")
		return "failed", s.Jobs.MarkFailed(ctx, job.ID, reasonUserNotFound)
	}
	if err != nil {
		return s.retry(ctx, logger, job, fmt.Sprintf("load user: %v", err), job.DigestID)
	}

	var res digest.Result
	if job.DigestID > 0 {
		res = s.Runner.Redeliver(ctx, user, job.DigestID, job.Mode)
	} else {
		res = s.Runner.RunDigest(ctx, user, job.Mode, s.ArticlesPerTopic(job.Mode, user.Preferences.Frequency))
	}

	if res.Status != digest.StatusFailed {
		logger.Info("digest job finished", slog.String("status", string(res.Status)))
		return "done", s.Jobs.MarkDone(ctx, job.ID)
	}

	reason := fmt.Sprintf("%s: %s", res.Stage, res.Reason)
	if res.Stage == digest.StageInput {
		return "failed", s.Jobs.MarkFailed(ctx, job.ID, reason)
	}
	digestID := job.DigestID
	if res.Stage == digest.StageDeliver && res.Digest != nil {
		digestID = res.Digest.ID
	}
	return s.retry(ctx, logger, job, reason, digestID)
}

func (s *Service) retry(ctx context.Context, logger *slog.Logger, job *entity.DigestJob, reason string, digestID int64) (string, error) {
	if job.Attempts >= s.cfg.MaxAttempts {
		logger.Error("digest job failed permanently", slog.String("reason", reason))
		return "failed", s.Jobs.MarkFailed(ctx, job.ID, reason)
	}
	backoff := s.cfg.RetryDelay << max(job.Attempts-1, 0)
	at := s.now().Add(backoff)
	logger.Warn("digest job failed, rescheduling",
		slog.String("reason", reason),
		slog.Time("execute_at", at))
	return "rescheduled", s.Jobs.Reschedule(ctx, job.ID, at, reason, digestID)
}
