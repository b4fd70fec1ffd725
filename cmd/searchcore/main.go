// Package main wires together the search-core service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-search/search-core/internal/admission"
	"github.com/atlas-search/search-core/internal/api"
	"github.com/atlas-search/search-core/internal/clock/system"
	"github.com/atlas-search/search-core/internal/config"
	"github.com/atlas-search/search-core/internal/id/uuid"
	"github.com/atlas-search/search-core/internal/index"
	indexMemory "github.com/atlas-search/search-core/internal/index/memory"
	"github.com/atlas-search/search-core/internal/logging"
	"github.com/atlas-search/search-core/internal/queue"
	queueMemory "github.com/atlas-search/search-core/internal/queue/memory"
	queuePubsub "github.com/atlas-search/search-core/internal/queue/pubsub"
	"github.com/atlas-search/search-core/internal/safety"
	"github.com/atlas-search/search-core/internal/search"
	storageMemory "github.com/atlas-search/search-core/internal/storage/memory"
	storagePostgres "github.com/atlas-search/search-core/internal/storage/postgres"
)

// version is stamped at build time via -ldflags.
var version = "1.0.0"

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore, closeStore, err := buildJobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("job store init failed", zap.Error(err))
	}
	defer closeStore()

	q, err := buildQueue(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("queue init failed", zap.Error(err))
	}
	defer func() {
		if closeErr := q.Close(); closeErr != nil {
			logger.Warn("queue close failed", zap.Error(closeErr))
		}
	}()

	idx := buildIndex(cfg, logger)

	validator := safety.New(safety.Config{
		Timeout:     cfg.ResolverTimeout(),
		MaxParallel: cfg.Resolver.MaxParallel,
	}, nil, logger.Named("safety"))

	clock := system.New()
	controller := admission.New(
		validator,
		jobStore,
		q,
		uuid.New(),
		clock,
		admission.Config{
			PerItemCost: time.Duration(cfg.Admission.PerItemCostSeconds) * time.Second,
			FixedBuffer: time.Duration(cfg.Admission.FixedBufferSeconds) * time.Second,
			PushTimeout: cfg.PushTimeout(),
		},
		logger.Named("admission"),
	)

	apiServer := api.NewServer(controller, jobStore, idx, cfg, version, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildJobStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (search.JobStore, func(), error) {
	switch cfg.Store.Provider {
	case "postgres":
		logger.Info("using postgres job store", zap.String("table", cfg.Store.Postgres.Table))
		store, err := storagePostgres.NewJobStore(ctx, storagePostgres.JobStoreConfig{
			DSN:             cfg.Store.Postgres.DSN,
			Table:           cfg.Store.Postgres.Table,
			MaxConns:        cfg.Store.Postgres.MaxConns,
			MinConns:        cfg.Store.Postgres.MinConns,
			MaxConnLifetime: time.Duration(cfg.Store.Postgres.ConnLifetime) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "memory":
		logger.Info("using in-memory job store")
		return storageMemory.NewJobStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store provider: %s", cfg.Store.Provider)
	}
}

func buildQueue(ctx context.Context, cfg config.Config, logger *zap.Logger) (queue.Provider, error) {
	switch cfg.Queue.Provider {
	case "pubsub":
		logger.Info("using pubsub ingestion queue",
			zap.String("project", cfg.Queue.PubSub.ProjectID),
			zap.String("high_topic", cfg.Queue.PubSub.HighTopic),
			zap.String("low_topic", cfg.Queue.PubSub.LowTopic),
		)
		return queuePubsub.NewProvider(ctx, queuePubsub.Config{
			ProjectID: cfg.Queue.PubSub.ProjectID,
			HighTopic: cfg.Queue.PubSub.HighTopic,
			LowTopic:  cfg.Queue.PubSub.LowTopic,
		}, logger.Named("pubsub"))
	case "memory":
		logger.Info("using in-memory ingestion queue", zap.Int("capacity", cfg.Queue.Memory.Capacity))
		return queueMemory.NewQueue(cfg.Queue.Memory.Capacity), nil
	case "noop":
		logger.Info("using no-op ingestion queue; entries will be discarded")
		return &queue.NoOpProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown queue provider: %s", cfg.Queue.Provider)
	}
}

func buildIndex(cfg config.Config, logger *zap.Logger) search.Index {
	switch cfg.Index.Provider {
	case "noop":
		logger.Info("using no-op index; all queries return empty results")
		return &index.NoOpIndex{}
	default:
		logger.Info("using in-memory index")
		return indexMemory.NewIndex()
	}
}
