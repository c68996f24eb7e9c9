// cmd/service/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"issue-triage/internal/api"
	"issue-triage/internal/config"
	"issue-triage/internal/engine"
	"issue-triage/internal/provider"
	"issue-triage/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	db := store.New(dbpool)
	registry := provider.NewRegistry(logger, cfg.GithubBaseURL, cfg.GitlabBaseURL)
	eng := engine.New(db, registry, logger)

	// 6. Optional background sync; syncs are on-demand when disabled
	if cfg.SyncInterval > 0 {
		go runBackgroundSync(ctx, db, eng, logger, cfg.SyncInterval)
	}

	// 7. Start the HTTP server
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(db, eng, logger),
	}
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// runBackgroundSync periodically pulls every user's enabled repositories.
// Users and their repositories are walked sequentially for the same
// rate-limit and audit-ordering reasons SyncAllRepos is sequential.
func runBackgroundSync(ctx context.Context, db *store.Store, eng *engine.Engine, logger *slog.Logger, interval time.Duration) {
	logger.Info("Starting background sync", "interval", interval.String())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			users, err := db.ListUsersWithEnabledRepositories(ctx)
			if err != nil {
				logger.Error("Failed to list users for background sync", "error", err)
				continue
			}
			for _, userID := range users {
				if ctx.Err() != nil {
					return
				}
				if _, err := eng.SyncAllRepos(ctx, userID); err != nil {
					logger.Error("Background sync failed for user", "user_id", userID, "error", err)
				}
			}
		case <-ctx.Done():
			logger.Info("Background sync shutting down", "reason", ctx.Err())
			return
		}
	}
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
