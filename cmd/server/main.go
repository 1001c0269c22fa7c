package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/pscheid92/livevote/internal/app"
	"github.com/pscheid92/livevote/internal/broadcast"
	"github.com/pscheid92/livevote/internal/chat"
	"github.com/pscheid92/livevote/internal/config"
	"github.com/pscheid92/livevote/internal/countries"
	"github.com/pscheid92/livevote/internal/game"
	"github.com/pscheid92/livevote/internal/logging"
	"github.com/pscheid92/livevote/internal/metrics"
	"github.com/pscheid92/livevote/internal/postgres"
	"github.com/pscheid92/livevote/internal/report"
	"github.com/pscheid92/livevote/internal/server"
	"github.com/pscheid92/livevote/internal/youtube"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "video_id", cfg.YouTubeVideoID)

	pool := setupDB(cfg)
	defer pool.Close()

	store := postgres.NewStore(pool)
	reportStore := postgres.NewReportStore(pool)

	// Repair any cache drift left over from a previous run.
	{
		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		if err := store.RecalcCaches(ctx); err != nil {
			slog.Error("Failed to recalculate country caches", "error", err)
			cancel()
			os.Exit(1)
		}
		cancel()
		slog.Info("Country caches recalculated")
	}

	registry := metrics.NewRegistry()
	voteMetrics := metrics.NewVoteMetrics(registry)
	wsMetrics := metrics.NewWebSocketMetrics(registry)
	watcherMetrics := metrics.NewWatcherMetrics(registry)

	engine := game.NewEngine(store, clock, voteMetrics)
	reports := report.NewService(reportStore, clock)
	hub := broadcast.NewHub(reports, clock, wsMetrics, cfg.MaxClients)

	svc := app.NewService(store, countries.NewResolver(), engine, reports, hub, clock, voteMetrics)

	feedFactory := youtube.NewFeedFactory(cfg.YouTubeAPIKey, cfg.YouTubeVideoID, clock)
	watcher := chat.NewWatcher(feedFactory, svc, clock, watcherMetrics)

	srv := server.NewServer(cfg, svc, hub, pool, registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		watcher.Run(gctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("Server starting", "port", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
