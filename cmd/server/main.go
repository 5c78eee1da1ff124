package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"scan-prediction-service/internal/adapters/primary/http/handlers"
	"scan-prediction-service/internal/adapters/primary/http/middleware"
	"scan-prediction-service/internal/adapters/secondary/artifactfs"
	"scan-prediction-service/internal/adapters/secondary/azureblob"
	"scan-prediction-service/internal/adapters/secondary/explain"
	"scan-prediction-service/internal/adapters/secondary/imaging"
	"scan-prediction-service/internal/adapters/secondary/kserve"
	"scan-prediction-service/internal/adapters/secondary/memory"
	"scan-prediction-service/internal/adapters/secondary/postgres"
	"scan-prediction-service/internal/adapters/secondary/prometheus"
	"scan-prediction-service/internal/adapters/secondary/redis"
	"scan-prediction-service/internal/config"
	"scan-prediction-service/internal/core/ports/output"
	"scan-prediction-service/internal/core/privacy"
	"scan-prediction-service/internal/core/services"
	"scan-prediction-service/internal/observability"
)

// slack on top of the inference timeout for upload and persistence
const serverTimeoutMargin = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	initLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, &cfg.Otel)
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	// ============================================================================
	// Record Store
	// ============================================================================

	var (
		store ports.Store
		db    handlers.Pinger
	)
	switch cfg.Store.Backend {
	case "memory":
		mem := memory.New()
		if err := mem.Seed(ctx); err != nil {
			log.Fatalf("seed memory store: %v", err)
		}
		store = mem.Ports()
		log.Warn("using in-memory record store; records are lost on restart")
	default:
		pool, err := newPool(ctx, cfg)
		if err != nil {
			log.Fatalf("connect db: %v", err)
		}
		defer pool.Close()
		log.Info("database connection established")

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(cfg.Database.DSN()); err != nil {
				log.Fatalf("migrate db: %v", err)
			}
		}
		store = postgres.NewStore(pool)
		db = pool
	}

	// ============================================================================
	// Hexagonal Architecture Wiring
	// ============================================================================

	metrics := prometheus.NewMetrics()

	// Scoring endpoints: static base URL, or InferenceService status from the cluster
	var resolver ports.EndpointResolver
	if cfg.KServe.BaseURL != "" {
		resolver = kserve.NewStaticResolver(cfg.KServe.BaseURL)
		log.WithField("base_url", cfg.KServe.BaseURL).Info("KServe endpoints from static config")
	} else {
		resolver, err = kserve.NewResolver(&cfg.Kubernetes)
		if err != nil {
			log.Fatalf("init kserve resolver: %v", err)
		}
		if !cfg.Kubernetes.Enabled {
			log.Warn("KServe integration disabled; predictions will fail with model unavailable")
		}
	}
	kserveClient := kserve.NewClient(&http.Client{}, cfg.KServe.StageSuffix)

	artifacts, err := newArtifactStore(ctx, &cfg.Artifacts)
	if err != nil {
		log.Fatalf("init artifact store: %v", err)
	}

	var locker ports.Locker
	if cfg.Redis.Enabled {
		l, err := redis.NewLocker(ctx, &cfg.Redis)
		if err != nil {
			log.Warnf("Redis locker init failed (continuing with unsynchronised sweeps): %v", err)
		} else {
			defer l.Close()
			locker = l
			log.Info("Redis sweep lock initialized")
		}
	}

	// Core Services (Application Layer)
	runtime := services.NewModelRuntime(store.Models, store.Audit, kserve.Loaders(kserveClient, resolver), metrics)
	explainer := explain.NewGenerator(kserve.NewExplanations(kserveClient, resolver), artifacts)
	predictionSvc := services.NewPredictionService(store, runtime, imaging.NewPreprocessor(), explainer, metrics, services.PredictionConfig{
		InferenceTimeout: cfg.Inference.Timeout,
		ArtifactTTL:      cfg.Artifacts.TTL,
	})
	recordSvc := services.NewRecordService(store)
	registrySvc := services.NewModelRegistryService(store.Models, runtime)
	sweeper := services.NewArtifactSweeper(store.Artifacts, artifacts, locker, metrics)

	if cfg.Inference.WarmOnStart {
		runtime.Warm(ctx)
	}

	// Primary Adapter (HTTP Handlers)
	h := handlers.New(predictionSvc, recordSvc, registrySvc, sweeper, db)

	router := gin.New()
	router.Use(
		otelgin.Middleware(cfg.Otel.ServiceName),
		middleware.RequestID(),
		middleware.Logging(),
		gin.Recovery(),
	)
	if cfg.Metrics.Enabled {
		router.Use(metrics.Middleware())
		router.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	var predictMiddleware []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		predictMiddleware = append(predictMiddleware, middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	h.RegisterRoutes(router.Group("/api/v1"), predictMiddleware...)
	h.RegisterHealthRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Inference.Timeout + serverTimeoutMargin,
		WriteTimeout:      cfg.Inference.Timeout + serverTimeoutMargin,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	if cfg.Sweeper.Enabled {
		g.Go(func() error {
			return sweeper.Run(gctx, cfg.Sweeper.Interval)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("server stopped with error")
		return
	}
	log.Info("server stopped")
}

func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Database.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

func newArtifactStore(ctx context.Context, cfg *config.ArtifactConfig) (ports.ArtifactStore, error) {
	switch cfg.Backend {
	case "azureblob":
		s, err := azureblob.New(cfg)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureContainer(ctx); err != nil {
			return nil, err
		}
		log.WithField("container", cfg.AzureContainer).Info("artifacts stored in Azure Blob Storage")
		return s, nil
	case "filesystem", "":
		s, err := artifactfs.New(cfg.Dir)
		if err != nil {
			return nil, err
		}
		log.WithField("dir", cfg.Dir).Info("artifacts stored on local filesystem")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown ARTIFACT_BACKEND %q", cfg.Backend)
	}
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.AddHook(privacy.LogHook{})
}
