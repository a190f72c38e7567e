// Package worker runs the digest schedule in the background process: cron
// triggers for the daily and weekly batches, a poller for the delayed job
// queue, and the health endpoint that reports on them.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"news-digest/internal/domain/entity"
	"news-digest/internal/handler/http/respond"
	"news-digest/internal/infra/notifier"
	"news-digest/internal/usecase/schedule"
)

// Task names, also used as metric labels.
const (
	TaskDailyBatch  = "daily_batch"
	TaskWeeklyBatch = "weekly_batch"
	TaskJobPoll     = "job_poll"
)

// Runner is the scheduling use case the worker triggers.
type Runner interface {
	RunFrequency(ctx context.Context, freq entity.Frequency) (*schedule.BatchStats, error)
	RunDue(ctx context.Context) (*schedule.JobStats, error)
}

// Scheduler owns the cron instance. Each task runs at most once at a time;
// a trigger that fires while the previous run is active is skipped.
type Scheduler struct {
	runner  Runner
	cfg     Config
	metrics *Metrics
	logger  *slog.Logger
	cron    *cron.Cron
	// Alerts receives a report for every batch with failures. Nil or empty
	// disables alerting.
	Alerts notifier.Notifier

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewScheduler registers the three tasks. It fails only if a schedule does
// not parse, which LoadConfigFromEnv already prevents.
func NewScheduler(runner Runner, cfg Config, m *Metrics, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{runner: runner, cfg: cfg, metrics: m, logger: logger}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithParser(cronParser),
		cron.WithChain(cron.Recover(cronLogger{logger})),
	)

	for _, e := range []struct {
		task, spec string
	}{
		{TaskDailyBatch, cfg.DailySchedule},
		{TaskWeeklyBatch, cfg.WeeklySchedule},
		{TaskJobPoll, cfg.JobPollSchedule},
	} {
		task := e.task
		job := s.skipIfRunning(task, cron.FuncJob(func() {
			_ = s.RunTask(s.baseCtx, task)
		}))
		if _, err := s.cron.AddJob(e.spec, job); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", task, e.spec, err)
		}
	}
	return s, nil
}

// Start begins firing triggers in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		slog.String("daily", s.cfg.DailySchedule),
		slog.String("weekly", s.cfg.WeeklySchedule),
		slog.String("job_poll", s.cfg.JobPollSchedule),
		slog.String("timezone", s.cfg.Timezone))
}

// Stop stops new triggers, cancels running tasks and waits for them until
// ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running tasks: %w", ctx.Err())
	}
}

// RunTask runs one task synchronously with its timeout.
func (s *Scheduler) RunTask(ctx context.Context, task string) error {
	timeout := s.cfg.BatchTimeout
	if task == TaskJobPoll {
		timeout = s.cfg.JobPollTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var err error
	switch task {
	case TaskDailyBatch:
		err = s.runBatch(ctx, entity.FrequencyDaily)
	case TaskWeeklyBatch:
		err = s.runBatch(ctx, entity.FrequencyWeekly)
	case TaskJobPoll:
		err = s.pollJobs(ctx)
	default:
		return fmt.Errorf("unknown task %q", task)
	}
	s.metrics.RecordTaskRun(task, err, time.Since(start))
	if err != nil {
		s.logger.Error("scheduled task failed",
			slog.String("task", task),
			slog.String("error", respond.SanitizeError(err)))
	}
	return err
}

func (s *Scheduler) runBatch(ctx context.Context, freq entity.Frequency) error {
	task := TaskDailyBatch
	if freq == entity.FrequencyWeekly {
		task = TaskWeeklyBatch
	}
	stats, err := s.runner.RunFrequency(ctx, freq)
	if err != nil {
		report := notifier.Report{Task: task, Err: respond.SanitizeError(err)}
		if stats != nil {
			report = batchReport(task, stats)
			report.Err = respond.SanitizeError(err)
		}
		s.alert(report)
		return err
	}
	for _, f := range stats.Failures {
		s.logger.Warn("digest failed in batch",
			slog.String("user_id", f.UserID),
			slog.String("stage", string(f.Stage)),
			slog.String("reason", f.Reason))
	}
	if stats.Failed > 0 {
		s.alert(batchReport(task, stats))
	}
	return nil
}

func batchReport(task string, stats *schedule.BatchStats) notifier.Report {
	r := notifier.Report{
		Task:       task,
		Users:      stats.Users,
		Sent:       stats.Sent,
		NoArticles: stats.NoArticles,
		Duplicate:  stats.Duplicate,
		Failed:     stats.Failed,
		Duration:   stats.Duration,
	}
	for _, f := range stats.Failures {
		r.Failures = append(r.Failures, notifier.Failure{UserID: f.UserID, Stage: string(f.Stage), Reason: f.Reason})
	}
	return r
}

// alert runs detached from the task context, which may already be done.
func (s *Scheduler) alert(r notifier.Report) {
	if s.Alerts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Alerts.Notify(ctx, r); err != nil {
		s.logger.Warn("failed to send batch alert",
			slog.String("task", r.Task),
			slog.String("error", respond.SanitizeError(err)))
	}
}

func (s *Scheduler) pollJobs(ctx context.Context) error {
	stats, err := s.runner.RunDue(ctx)
	if stats != nil && stats.Claimed > 0 {
		s.logger.Info("digest jobs processed",
			slog.Int("claimed", stats.Claimed),
			slog.Int("done", stats.Done),
			slog.Int("rescheduled", stats.Rescheduled),
			slog.Int("failed", stats.Failed))
	}
	return err
}

// skipIfRunning is cron.SkipIfStillRunning with a metric per skip.
func (s *Scheduler) skipIfRunning(task string, j cron.Job) cron.Job {
	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	return cron.FuncJob(func() {
		select {
		case v := <-sem:
			defer func() { sem <- v }()
			j.Run()
		default:
			s.metrics.RecordTaskSkipped(task)
			s.logger.Warn("task still running, trigger skipped", slog.String("task", task))
		}
	})
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
