// Command server runs the La Pública HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lapublica/platform/internal/api"
	"github.com/lapublica/platform/internal/app"
	"github.com/lapublica/platform/internal/auth"
	"github.com/lapublica/platform/internal/config"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/realtime"
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

	// Sessions
	var store auth.Store
	if a.Redis != nil {
		store = auth.NewRedisStore(a.Redis)
	} else {
		mem := auth.NewMemoryStore()
		go mem.RunSweeper(ctx, 10*time.Minute)
		store = mem
		logger.Warn("sessions kept in memory; they will not survive a restart")
	}
	authManager := auth.NewManager(cfg.Auth, store, a.Users, cfg.PublicBaseURL)
	if cfg.Auth.GoogleEnabled() {
		if err := authManager.ValidateCredentials(ctx); err != nil {
			logger.Error("google sso pre-flight failed", "error", err)
			os.Exit(1)
		}
		logger.Info("google sso enabled", "domain", cfg.Auth.AllowedDomain)
	}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				authManager.SweepLimiter(15 * time.Minute)
			}
		}
	}()

	// Realtime fan-out
	hub := realtime.NewHub()
	go func() {
		if err := realtime.Listen(ctx, cfg.Database.URL, hub); err != nil {
			logger.Error("realtime listener stopped", "error", err)
		}
	}()

	var bucket api.BucketHeader
	if a.S3 != nil {
		bucket = a.S3
	}

	server := api.NewServer(api.Deps{
		Server: cfg.Server,
		Auth:   authManager,
		Events: hub,
		Health: api.NewHealthChecker(a.DB, a.Redis, bucket, cfg.Assets.Bucket),
		Services: api.Services{
			Users:         a.Users,
			Companies:     a.Companies,
			Billing:       a.Billing,
			Offers:        a.Offers,
			Coupons:       a.Coupons,
			Conversations: a.Conversations,
			Notifications: a.Notifications,
			GroupOffers:   a.GroupOffers,
			Leads:         a.Leads,
			Content:       a.Content,
			Dashboard:     a.Dashboard,
			Audit:         a.Audit,
		},
		MaxUploadBytes: cfg.Assets.MaxUploadBytes,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-done:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
