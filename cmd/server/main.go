// Package main is the entrypoint for the incidentdesk session server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/incidentdesk/internal/analyzer"
	"github.com/kiranshivaraju/incidentdesk/internal/api"
	"github.com/kiranshivaraju/incidentdesk/internal/api/handler"
	mw "github.com/kiranshivaraju/incidentdesk/internal/api/middleware"
	"github.com/kiranshivaraju/incidentdesk/internal/api/response"
	"github.com/kiranshivaraju/incidentdesk/internal/cache"
	"github.com/kiranshivaraju/incidentdesk/internal/config"
	"github.com/kiranshivaraju/incidentdesk/internal/history"
	"github.com/kiranshivaraju/incidentdesk/internal/session"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "history_backend", cfg.History.Backend, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open history backend and load the log
	backend, err := history.OpenBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer backend.Close()

	hist := history.NewStore(backend)
	if err := hist.Load(ctx); err != nil {
		if !errors.Is(err, history.ErrCorrupted) {
			return fmt.Errorf("load history: %w", err)
		}
		slog.Warn("history was corrupted and has been reset", "error", err)
	}
	slog.Info("history loaded", "entries", hist.Len())

	// 3. Create analysis service client
	svc := analyzer.NewHTTPClient(cfg.Analyzer.BaseURL, cfg.Analyzer.Timeout)
	slog.Info("analyzer client initialized", "base_url", cfg.Analyzer.BaseURL)

	// 4. Create Redis cache for rate limiting, when configured
	var limiterCache cache.Cache
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		defer redisCache.Close()

		if err := redisCache.Ping(ctx); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		limiterCache = redisCache
		slog.Info("redis connected")
	} else {
		slog.Info("rate limiting disabled, REDIS_URL not set")
	}

	// 5. Create session registry
	registry := session.NewRegistry(svc, hist)
	defer registry.CloseAll()
	if idle := cfg.Server.SessionIdleTimeout; idle > 0 {
		go registry.RunExpiry(ctx, min(idle, time.Minute), idle)
		slog.Info("idle session expiry enabled", "idle_timeout", idle)
	}

	// 6. Build router with dependencies
	auth := mw.NewAuth(cfg.Auth.TokenHash)
	if !auth.Enabled() {
		slog.Warn("session server running without authentication")
	}
	rateLimit := mw.NewRateLimit(limiterCache, cfg.Server.RateLimitPerMinute)

	sessions := handler.NewSessions(registry, cfg.Analyzer.Timeout)
	histHandlers := handler.NewHistory(hist)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(svc, hist),

		CreateSession: sessions.Create,
		GetSession:    sessions.Get,
		CloseSession:  sessions.Close,
		ResetSession:  sessions.Reset,
		SetInput:      sessions.SetInput,
		Analyze:       sessions.Analyze,
		UploadLogFile: sessions.UploadLogFile,
		LoadHistory:   sessions.LoadHistoryEntry,

		OpenDraft:   sessions.OpenDraft,
		EditDraft:   sessions.EditDraft,
		SubmitDraft: sessions.SubmitDraft,
		CancelDraft: sessions.CancelDraft,

		SetQuestion: sessions.SetQuestion,
		AskFollowup: sessions.Ask,

		ListHistory:  histHandlers.List,
		ClearHistory: histHandlers.Clear,
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Analyze calls wait on the remote service.
		WriteTimeout: cfg.Analyzer.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully", "open_sessions", registry.Len())
	return nil
}

type healthChecker interface {
	Health(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks the analysis service and the history backend.
func healthHandler(svc healthChecker, hist pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"analyzer": "ok",
			"history":  "ok",
		}

		if err := svc.Health(r.Context()); err != nil {
			slog.Warn("analyzer health check failed", "error", err)
			checks["analyzer"] = "degraded"
		}
		if err := hist.Ping(r.Context()); err != nil {
			slog.Warn("history health check failed", "error", err)
			checks["history"] = "degraded"
		}

		degraded := checks["analyzer"] != "ok" || checks["history"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
