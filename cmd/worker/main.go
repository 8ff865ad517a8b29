// Command worker runs the scheduled jobs and, when an SQS queue is
// configured, delivers queued email.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/lapublica/platform/internal/app"
	"github.com/lapublica/platform/internal/config"
	"github.com/lapublica/platform/internal/pkg/distlock"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/worker"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	app.SetupLogger(cfg.Logging)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Redis locks when available, Postgres advisory locks otherwise.
	locks := distlock.NewFactory(a.Redis, a.DB)
	sched := worker.New(locks, cfg.Worker.LockTTL())
	for _, j := range worker.Jobs(cfg.Worker, worker.Deps{
		Coupons:       a.Coupons,
		Tasks:         a.Leads,
		Content:       a.Content,
		Notifications: a.Notifications,
	}) {
		if err := sched.Add(j); err != nil {
			logger.Error("bad job schedule", "job", j.Name, "schedule", j.Schedule, "error", err)
			os.Exit(1)
		}
		logger.Info("job scheduled", "job", j.Name, "schedule", j.Schedule)
	}
	sched.Start(ctx)

	var wg sync.WaitGroup
	if a.Queue != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("email queue consumer started")
			if err := a.Queue.Consume(ctx, a.Mailer); err != nil {
				logger.Error("email queue consumer stopped", "error", err)
			}
		}()
	}

	logger.Info("worker running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down worker", "signal", sig.String())

	cancel()
	stopCtx, stop := context.WithTimeout(context.Background(), cfg.Worker.LockTTL())
	defer stop()
	sched.Stop(stopCtx)
	wg.Wait()
	logger.Info("worker stopped")
}
