// Command api serves the subscriber and admin HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"news-digest/internal/bootstrap"
	"news-digest/internal/config"
	hhttp "news-digest/internal/handler/http"
	"news-digest/internal/handler/http/admin"
	"news-digest/internal/observability/logging"
	"news-digest/internal/observability/tracing"
)

func main() {
	logger := initLogger()

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("failed to load .env", slog.Any("error", err))
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if len(cfg.AdminJWTSecret) > 0 && len(cfg.AdminJWTSecret) < 32 {
		logger.Error("ADMIN_JWT_SECRET must be at least 32 characters")
		os.Exit(1)
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set, admin API disabled")
	}

	shutdownTracing := tracing.InitProvider(cfg.TraceSampleRatio)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("failed to shut down tracing", slog.Any("error", err))
		}
	}()

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

	handler := hhttp.NewRouter(hhttp.RouterDeps{
		Logger:        logger,
		DB:            app.DB,
		Version:       getVersion(),
		HTTP:          cfg.HTTP,
		AdminSecret:   []byte(cfg.AdminJWTSecret),
		Subscriptions: app.Subscriptions,
		Admin: admin.Deps{
			Users:     app.Users,
			Digests:   app.Digests,
			Pipeline:  app.Pipeline,
			Scheduler: app.Schedule,
		},
		HealthChecks: app.HealthChecks(),
	})

	runServer(logger, handler, cfg.HTTP)
}

func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

func getVersion() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return "dev"
}

func runServer(logger *slog.Logger, handler http.Handler, cfg config.HTTPConfig) {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// admin batch runs are synchronous
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("api server failed", slog.Any("error", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		return
	}
	logger.Info("api server stopped")
}
