// Package app wires the provenance service together: configuration, logger,
// redis, postgres, the ledger client, the verification engine, the job
// runner, and the HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/originmark/provenance/internal/api"
	"github.com/originmark/provenance/internal/cache"
	"github.com/originmark/provenance/internal/config"
	"github.com/originmark/provenance/internal/jobs"
	"github.com/originmark/provenance/internal/ledger"
	"github.com/originmark/provenance/internal/logger"
	"github.com/originmark/provenance/internal/manifest"
	"github.com/originmark/provenance/internal/metrics"
	"github.com/originmark/provenance/internal/models"
	"github.com/originmark/provenance/internal/store"
	"github.com/originmark/provenance/internal/verify"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// App owns the service's long-lived resources.
type App struct {
	cfg    *config.Config
	logger logger.Logger

	redisClient *redis.Client
	db          *sqlx.DB
	ethRegistry *ledger.EthRegistry

	runner jobs.Runner
	server *http.Server
}

// New builds the full dependency graph from the config at configPath.
// Redis and postgres are optional: without redis the service runs with a
// degraded cache and the synchronous job runner, without postgres the
// verification audit trail is skipped.
func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{cfg: cfg, logger: log}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	redisClient, err := cache.NewRedisClient(a.cfg.Redis)
	if err != nil {
		a.logger.Warn("redis unavailable, running degraded",
			logger.String("addr", a.cfg.Redis.Addr), logger.Error(err))
		redisClient = nil
	}
	a.redisClient = redisClient

	if a.cfg.Database.Host != "" {
		db, err := store.NewPostgresConnection(a.cfg.Database)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.db = db
	} else {
		a.logger.Warn("no database configured, verification records disabled")
	}

	registry, err := a.buildRegistry(ctx)
	if err != nil {
		return err
	}

	var builder *manifest.Builder
	if a.cfg.Ledger.PrivateKey != "" {
		builder, err = manifest.NewBuilderFromHex(a.cfg.Ledger.PrivateKey, a.cfg.Ledger.ChainID)
		if err != nil {
			return fmt.Errorf("load signing key: %w", err)
		}
	}

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	var clientIface redis.UniversalClient
	if a.redisClient != nil {
		clientIface = a.redisClient
	}
	cacheLayer := cache.New(clientIface, a.logger, m)

	resolver := manifest.NewCachedResolver(
		manifest.NewResolver(a.cfg.Resolver, a.logger), cacheLayer, a.cfg.Cache.ManifestTTL)

	var records verify.RecordStore
	var contents api.ContentUpserter
	var verifications api.VerificationLister
	if a.db != nil {
		verificationRepo := store.NewVerificationRepository(a.db)
		records = verificationRepo
		verifications = verificationRepo
		contents = store.NewContentRepository(a.db)
	}

	engine := verify.NewEngine(registry, resolver, records, cacheLayer, m, a.logger, a.cfg.Ledger)

	if a.redisClient != nil {
		queued := jobs.NewQueuedRunner(a.redisClient, engine, a.cfg.Jobs, m, a.logger)
		if err := queued.Start(context.Background()); err != nil {
			return fmt.Errorf("start job workers: %w", err)
		}
		a.runner = queued
	} else {
		a.logger.Warn("job queue unavailable, verification requests run inline")
		a.runner = jobs.NewInlineRunner(engine, a.logger)
	}

	handlers := api.NewHandlers(a.cfg, api.HandlerDeps{
		Registry:      registry,
		Builder:       builder,
		Runner:        a.runner,
		Cache:         cacheLayer,
		Contents:      contents,
		Verifications: verifications,
		Logger:        a.logger,
		Version:       Version,
	})

	router := api.NewRouter(a.cfg, handlers, promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}), a.logger)
	a.server = &http.Server{
		Addr:         a.cfg.Server.Address,
		Handler:      router.Setup(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
	return nil
}

// buildRegistry selects the ledger backend from config.
func (a *App) buildRegistry(ctx context.Context) (ledger.Registry, error) {
	switch a.cfg.Ledger.Backend {
	case "memory":
		caller := models.ZeroAddress
		if a.cfg.Ledger.PrivateKey != "" {
			b, err := manifest.NewBuilderFromHex(a.cfg.Ledger.PrivateKey, a.cfg.Ledger.ChainID)
			if err != nil {
				return nil, fmt.Errorf("load signing key: %w", err)
			}
			caller = b.Address()
		}
		a.logger.Warn("using in-memory ledger backend, state will not survive restarts")
		return ledger.NewMemoryRegistry(caller), nil
	default:
		reg, err := ledger.NewEthRegistry(ctx, a.cfg.Ledger)
		if err != nil {
			return nil, fmt.Errorf("connect ledger: %w", err)
		}
		a.ethRegistry = reg
		a.logger.Info("connected to registry",
			logger.String("address", a.cfg.Ledger.RegistryAddress),
			logger.Int64("chain_id", a.cfg.Ledger.ChainID))
		return reg, nil
	}
}

// Run serves HTTP until SIGINT or SIGTERM, then drains in-flight requests.
func (a *App) Run() error {
	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", logger.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		a.logger.Info("shutting down", logger.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.server.Shutdown(ctx)
}

// Close releases the app's resources in reverse dependency order.
func (a *App) Close() {
	if stoppable, ok := a.runner.(interface{ Stop() }); ok {
		stoppable.Stop()
	}
	if a.ethRegistry != nil {
		a.ethRegistry.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("close database", logger.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("close redis", logger.Error(err))
		}
	}
	_ = a.logger.Sync()
}
