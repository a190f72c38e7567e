// Command worker runs the scheduled digest batches and drains the delayed
// job queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"news-digest/internal/bootstrap"
	"news-digest/internal/config"
	"news-digest/internal/infra/notifier"
	workerPkg "news-digest/internal/infra/worker"
	"news-digest/internal/observability/logging"
	"news-digest/internal/observability/tracing"
)

func main() {
	once := flag.String("once", "", "run a single task (daily_batch, weekly_batch, job_poll) and exit")
	flag.Parse()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("failed to load .env", slog.Any("error", err))
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownTracing := tracing.InitProvider(cfg.TraceSampleRatio)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	workerMetrics := workerPkg.NewMetrics()
	workerMetrics.MustRegister(prometheus.DefaultRegisterer)
	workerConfig := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("daily_schedule", workerConfig.DailySchedule),
		slog.String("weekly_schedule", workerConfig.WeeklySchedule),
		slog.String("job_poll_schedule", workerConfig.JobPollSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("batch_timeout", workerConfig.BatchTimeout),
		slog.Int("health_port", workerConfig.HealthPort))

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	app, err := bootstrap.Open(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to start application", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	scheduler, err := workerPkg.NewScheduler(app.Schedule, workerConfig, workerMetrics, logger)
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	if alerts := notifier.FromEnv(logger); len(alerts) > 0 {
		scheduler.Alerts = alerts
		logger.Info("batch alerts enabled", slog.Int("channels", len(alerts)))
	}

	if *once != "" {
		code := runOnce(scheduler, *once)
		// os.Exit skips deferred cleanup
		_ = app.Close()
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
		_ = shutdownTracing(flushCtx)
		cancelFlush()
		os.Exit(code)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", workerConfig.HealthPort), logger, nil)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	scheduler.Start()
	healthServer.SetReady(true)
	logger.Info("worker started")

	<-ctx.Done()
	logger.Info("shutdown signal received")
	healthServer.SetReady(false)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	if err := scheduler.Stop(stopCtx); err != nil {
		logger.Error("scheduler did not stop cleanly", slog.Any("error", err))
	}
	logger.Info("worker stopped")
}

func runOnce(s *workerPkg.Scheduler, task string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := s.RunTask(ctx, task); err != nil {
		return 1
	}
	return 0
}
