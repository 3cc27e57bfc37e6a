package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"groomly/internal/config"
	"groomly/internal/infra/email"
	"groomly/internal/infra/lock"
	"groomly/internal/infra/queue"
	"groomly/internal/infra/ratelimit"
	"groomly/internal/infra/sms"
	"groomly/internal/infra/store"
	"groomly/internal/infra/template"
	"groomly/internal/notify"

	"github.com/hibiken/asynq"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("worker configuration loaded")

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Supabase client and repositories
	supaClient, err := store.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize supabase client", "error", err)
		os.Exit(1)
	}
	deliveryStore := store.NewSupabaseStore(supaClient)
	templateRepo := store.NewTemplateRepository(supaClient)
	settingsRepo := store.NewSettingsRepository(supaClient)
	slog.Info("supabase store initialized")

	// Template Engine
	engine := template.NewEngine()

	// Channel providers, each behind a quota token bucket
	emailProvider := ratelimit.NewLimitedProvider(
		email.NewResendProvider(cfg.Email.APIKey, cfg.Email.FromAddress, cfg.Email.FromName),
		cfg.Email.RateRPS,
		cfg.Email.RateBurst,
	)
	smsProvider := ratelimit.NewLimitedProvider(
		sms.NewTwilioProvider(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber),
		cfg.SMS.RateRPS,
		cfg.SMS.RateBurst,
	)

	// Notification service
	policy := notify.RetryPolicy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay(),
		MaxDelay:   cfg.Retry.MaxDelay(),
	}
	service := notify.NewService(
		deliveryStore,
		templateRepo,
		settingsRepo,
		engine,
		policy,
		cfg.Queue.BatchConcurrency,
		emailProvider,
		smsProvider,
	)

	// Retry scheduler with its single-writer sweep lock
	sweepLock := lock.NewRedisLock(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Scheduler.LockKey)
	defer sweepLock.Close()

	scheduler := notify.NewRetryScheduler(deliveryStore, service, sweepLock, notify.SchedulerConfig{
		Interval:  cfg.Scheduler.Interval(),
		BatchSize: cfg.Scheduler.BatchSize,
	})

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
	)

	// Register task handlers. Handlers never return an error for delivery
	// failures: the outcome lives in the delivery log, and retries are
	// scheduled from there rather than by the queue.
	mux := asynq.NewServeMux()
	mux.HandleFunc(notify.TaskTypeSend, func(ctx context.Context, task *asynq.Task) error {
		msg, err := notify.ParseSendTask(task.Payload())
		if err != nil {
			return err
		}
		service.Send(ctx, msg)
		return nil
	})
	mux.HandleFunc(notify.TaskTypeRetrySweep, func(ctx context.Context, task *asynq.Task) error {
		scheduler.ProcessRetries(ctx)
		return nil
	})

	// Start the asynq worker in a goroutine
	go func() {
		slog.Info("worker starting",
			"concurrency", cfg.Queue.Concurrency,
			"redis", cfg.Redis.Address,
		)
		if err := asynqServer.Run(mux); err != nil {
			slog.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// ==========================================
	// Periodic Retry Sweep
	// ==========================================

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go scheduler.Run(sweepCtx)

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	sweepCancel() // Stop the sweep loop first
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}
