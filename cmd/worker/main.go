package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/JonMunkholm/robodata/internal/broker"
	"github.com/JonMunkholm/robodata/internal/config"
	"github.com/JonMunkholm/robodata/internal/core"
	"github.com/JonMunkholm/robodata/internal/database"
	"github.com/JonMunkholm/robodata/internal/kv"
	"github.com/JonMunkholm/robodata/internal/logging"
	"github.com/JonMunkholm/robodata/internal/storage"
	"github.com/JonMunkholm/robodata/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logCloser := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, logging.FileConfig{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"validation_max_concurrent", cfg.Validation.MaxConcurrent,
		"broker_enabled", cfg.Broker.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := database.New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	checks := []web.Check{{Name: "database", Ping: store.Ping}}
	deps := core.Deps{
		Repository: store,
		References: store,
		Events:     core.NewEventBus(core.DefaultSubscriberBuffer),
	}

	objects, objectsCheck, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open object storage", "error", err)
		os.Exit(1)
	}
	if objects != nil {
		deps.Storage = objects
		checks = append(checks, objectsCheck)
	} else {
		slog.Warn("no object storage configured, uploads will be rejected")
	}

	if progress, err := kv.NewRedisStore(cfg.Redis); err == nil {
		defer progress.Close()
		if err := progress.Ping(ctx); err != nil {
			slog.Warn("progress store not reachable yet", "error", err)
		}
		deps.KV = progress
		checks = append(checks, web.Check{Name: "progress_store", Ping: progress.Ping})
	} else {
		slog.Warn("progress store disabled", "reason", err)
	}

	var temporalClient client.Client
	if cfg.Broker.Enabled {
		temporalClient, err = broker.Dial(cfg.Broker)
		if err != nil {
			slog.Warn("broker unavailable, validations will run inline", "error", err)
		} else {
			defer temporalClient.Close()
			deps.Broker = broker.NewTemporalBroker(temporalClient, cfg.Broker.TaskQueue, cfg.Validation.Timeout)
		}
	}

	service, err := core.NewService(deps, cfg)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	events := service.Subscribe()
	go logEvents(events)

	var validationWorker worker.Worker
	if temporalClient != nil {
		validationWorker = broker.NewWorker(temporalClient, cfg.Broker.TaskQueue, cfg.Validation.MaxConcurrent, service)
		if err := validationWorker.Start(); err != nil {
			slog.Error("failed to start validation worker", "error", err)
			os.Exit(1)
		}
		slog.Info("validation worker started", "task_queue", cfg.Broker.TaskQueue)
	}

	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	if cfg.Monitor.Enabled {
		go service.StartStaleMonitor(jobCtx, cfg.Monitor)
	}

	server := web.NewServer(service, checks...)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.Server.Addr())
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("health server failed", "error", err)
		}
	}

	cancelJobs()
	if validationWorker != nil {
		validationWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := service.Limiter().Status(); status.Active > 0 {
		slog.Info("waiting for validations to complete", "active", status.Active)
		if err := service.WaitForValidations(shutdownCtx); err != nil {
			slog.Warn("validations did not complete in time", "error", err)
		} else {
			slog.Info("all validations completed")
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	events.Close()
	slog.Info("worker stopped")
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}

// openStorage picks the local backend when a root is configured, then MinIO
// when an endpoint is, and otherwise returns nil.
func openStorage(ctx context.Context, cfg config.StorageConfig) (core.Storage, web.Check, error) {
	switch {
	case cfg.LocalRoot != "":
		local, err := storage.NewLocalStore(cfg.LocalRoot)
		if err != nil {
			return nil, web.Check{}, err
		}
		slog.Warn("using local filesystem storage", "root", cfg.LocalRoot)
		return local, web.Check{Name: "storage", Ping: func(context.Context) error { return nil }}, nil

	case cfg.Endpoint != "":
		remote, err := storage.NewMinioStore(cfg)
		if err != nil {
			return nil, web.Check{}, err
		}
		if err := remote.EnsureBucket(ctx); err != nil {
			slog.Warn("could not ensure bucket", "bucket", cfg.Bucket, "error", err)
		}
		slog.Info("object storage configured", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
		return remote, web.Check{Name: "storage", Ping: func(ctx context.Context) error {
			if err := remote.Ping(ctx); err != nil {
				return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, err)
			}
			return nil
		}}, nil
	}
	return nil, web.Check{}, nil
}

// logEvents writes one line per dataset event until sub is closed.
func logEvents(sub *core.Subscription) {
	for ev := range sub.C() {
		attrs := []any{"type", ev.Type, "dataset_id", ev.DatasetID}
		if ev.JobID != "" {
			attrs = append(attrs, "job_id", ev.JobID)
		}
		switch ev.Type {
		case core.EventValidationFailed:
			slog.Warn("dataset event", append(attrs, "errors", ev.Errors)...)
		case core.EventValidationProgress:
			slog.Debug("dataset event", append(attrs, "progress", ev.Progress)...)
		default:
			slog.Info("dataset event", attrs...)
		}
	}
}
