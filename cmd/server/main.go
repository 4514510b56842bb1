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

	"bizportal/internal/ai"
	"bizportal/internal/auth"
	"bizportal/internal/billing"
	"bizportal/internal/config"
	"bizportal/internal/database"
	"bizportal/internal/handlers"
	"bizportal/internal/logger"
	"bizportal/internal/mailer"
	"bizportal/internal/payroll"
	"bizportal/internal/ratelimit"
	"bizportal/internal/scheduler"
	"bizportal/internal/server"
	"bizportal/internal/telemetry"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// the log handler reads the global OTel logger provider, so telemetry goes first
	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)
	slog.InfoContext(ctx, "bizportal starting", "env", cfg.Env, "otel", tel != nil)

	if err := database.Init(cfg.DB); err != nil {
		slog.ErrorContext(ctx, "failed to initialize database", "error", err)
		os.Exit(1)
	}
	if err := database.Seed(database.DB, cfg.Seed); err != nil {
		slog.ErrorContext(ctx, "failed to seed database", "error", err)
		os.Exit(1)
	}

	m := mailer.New(cfg.Resend)

	deps := handlers.Deps{
		Config:   cfg,
		Mailer:   m,
		Webhooks: &billing.Processor{DB: database.DB, Cfg: cfg.Stripe},
		Payroll:  payroll.GustoFactory(cfg.Gusto.BaseURL),
	}
	if gw := billing.NewStripe(cfg.Stripe); gw != nil {
		deps.Billing = gw
	} else {
		slog.InfoContext(ctx, "stripe disabled (no secret key)")
	}
	if p := auth.NewWorkOS(cfg.WorkOS); p != nil {
		deps.OAuth = p
	}
	aiClient, err := ai.New(ai.Config{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: 30 * time.Second,
	})
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		slog.InfoContext(ctx, "ai disabled, assistant answers with fallback summaries")
	case err != nil:
		slog.ErrorContext(ctx, "failed to create ai client", "error", err)
		os.Exit(1)
	default:
		deps.AI = aiClient
	}
	handlers.Configure(deps)

	limiters, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to configure rate limiting", "error", err)
		os.Exit(1)
	}

	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.New(database.DB, m, cfg.AppURL)
		sched.Start()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := server.NewRouter(cfg, limiters)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if tel != nil {
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	slog.InfoContext(shutdownCtx, "shutdown complete")
}
