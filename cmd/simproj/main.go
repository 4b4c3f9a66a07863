package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/simproj/internal/config"
	"github.com/kailas-cloud/simproj/internal/db"
	dbPostgres "github.com/kailas-cloud/simproj/internal/db/postgres"
	dbQdrant "github.com/kailas-cloud/simproj/internal/db/qdrant"
	dbRedis "github.com/kailas-cloud/simproj/internal/db/redis"
	"github.com/kailas-cloud/simproj/internal/domain"
	logpkg "github.com/kailas-cloud/simproj/internal/logger"
	"github.com/kailas-cloud/simproj/internal/metrics"
	budgetrepo "github.com/kailas-cloud/simproj/internal/repository/budget"
	"github.com/kailas-cloud/simproj/internal/repository/embcache"
	projectrepo "github.com/kailas-cloud/simproj/internal/repository/project"
	sessionrepo "github.com/kailas-cloud/simproj/internal/repository/session"
	chiTransport "github.com/kailas-cloud/simproj/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/simproj/internal/transport/openai"
	bulkuc "github.com/kailas-cloud/simproj/internal/usecase/bulk"
	embeddinguc "github.com/kailas-cloud/simproj/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/simproj/internal/usecase/health"
	projectuc "github.com/kailas-cloud/simproj/internal/usecase/project"
	usageuc "github.com/kailas-cloud/simproj/internal/usecase/usage"
	"github.com/kailas-cloud/simproj/internal/version"
)

// embedder is what the services need from the assembled decorator chain.
type embedder interface {
	domain.Embedder
	domain.BatchEmbedder
	domain.HealthChecker
}

// sessionReader is satisfied by both session repositories.
type sessionReader interface {
	projectuc.SessionReader
	bulkuc.SessionReader
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	domain.KeyPrefix = cfg.Storage.KeyPrefix

	logger.Info("Starting simproj API server",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("sessions_backend", cfg.Sessions.Backend),
	)

	ctx := context.Background()
	readiness := time.Duration(cfg.Database.ReadinessTimeout) * time.Second

	// Redis holds sessions, the embedding cache and budget counters whatever the driver.
	redisStore, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create redis store", zap.Error(err))
	}
	defer redisStore.Close()
	if err := redisStore.WaitForReady(ctx, readiness); err != nil {
		logger.Fatal("Redis not ready", zap.Error(err))
	}
	logger.Info("Connected to redis")

	vectorStore, closeVectors := openVectorStore(ctx, cfg, redisStore, readiness, logger)
	defer closeVectors()

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterProjectMetrics()
	metrics.RegisterHTTPMetrics()

	budget := buildBudget(ctx, cfg.Embedding, redisStore, logger)

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	// Go gotcha: (*BudgetTracker)(nil) wrapped in BudgetChecker != nil.
	var (
		budgetChecker embeddinguc.BudgetChecker
		budgetReader  usageuc.BudgetReader
	)
	if budget != nil {
		budgetChecker = budget
		budgetReader = budget
	}

	emb := buildEmbedder(cfg.Embedding, redisStore, budgetChecker, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cache", cfg.Embedding.Cache.Enabled),
	)

	health := healthuc.New(vectorStore, emb)
	if cfg.Database.Driver != config.DriverRedis {
		health.WithDependency("redis", redisStore)
	}

	var sessions sessionReader
	switch cfg.Sessions.Backend {
	case config.SessionsPostgres:
		pool := openPostgres(ctx, cfg.Sessions, readiness, logger)
		defer pool.Close()
		sessions = sessionrepo.NewPGRepo(pool)
		health.WithDependency("sessions", pool)
	default:
		sessions = sessionrepo.NewHashRepo(redisStore)
	}

	projects := projectrepo.New(vectorStore, projectrepo.IndexConfig{
		Dimensions:  cfg.Embedding.Dimensions,
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
		EFRuntime:   cfg.Index.EFRuntime,
	})
	if err := projects.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure project index", zap.Error(err))
	}

	projectSvc := projectuc.New(projects, sessions, emb, cfg.Embedding.Dimensions, logger)
	bulkSvc := bulkuc.New(projects, sessions, emb, cfg.Embedding.Dimensions, bulkuc.Limits{
		MaxRows:        cfg.Bulk.MaxRows,
		EmbedBatchSize: cfg.Bulk.EmbedBatchSize,
	}, logger)

	usageSvc := usageuc.New(budgetReader, cfg.Embedding.Provider)

	server := chiTransport.NewServer(projectSvc, bulkSvc, health, usageSvc, cfg.Bulk.MaxUploadBytes, logger)
	router := chiTransport.NewRouter(server, chiTransport.RouterOptions{
		APIKeys:        cfg.Auth.APIKeys,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         logger,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openVectorStore returns the project vector store for the configured driver.
func openVectorStore(
	ctx context.Context, cfg config.Config, redisStore *dbRedis.Store,
	readiness time.Duration, logger *zap.Logger,
) (db.VectorStore, func()) {
	if cfg.Database.Driver != config.DriverQdrant {
		return redisStore, func() {}
	}

	q := cfg.Database.Qdrant
	store, err := dbQdrant.NewStore(dbQdrant.Config{
		Host:       q.Host,
		Port:       q.Port,
		APIKey:     q.APIKey,
		UseTLS:     q.TLS,
		Collection: q.Collection,
	})
	if err != nil {
		logger.Fatal("Failed to create qdrant store", zap.Error(err))
	}
	if err := store.WaitForReady(ctx, readiness); err != nil {
		logger.Fatal("Qdrant not ready", zap.Error(err))
	}
	logger.Info("Connected to qdrant",
		zap.String("host", q.Host),
		zap.Int("port", q.Port),
		zap.String("collection", q.Collection),
	)
	return store, store.Close
}

func openPostgres(
	ctx context.Context, cfg config.SessionsConfig, readiness time.Duration, logger *zap.Logger,
) *dbPostgres.Pool {
	pool, err := dbPostgres.NewPool(ctx, dbPostgres.Config{DSN: cfg.PostgresDSN, MaxConns: cfg.MaxConns})
	if err != nil {
		logger.Fatal("Failed to create postgres pool", zap.Error(err))
	}
	if err := pool.WaitForReady(ctx, readiness); err != nil {
		logger.Fatal("Postgres not ready", zap.Error(err))
	}
	if err := pool.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to apply sessions schema", zap.Error(err))
	}
	logger.Info("Connected to postgres")
	return pool
}

// buildBudget returns the token budget tracker, or nil when no limit is configured.
// Counters persist in redis so restarts keep the current windows.
func buildBudget(
	ctx context.Context, cfg config.EmbeddingConfig, store *dbRedis.Store, logger *zap.Logger,
) *embeddinguc.BudgetTracker {
	b := cfg.Budget
	if b.DailyTokenLimit <= 0 && b.MonthlyTokenLimit <= 0 {
		return nil
	}
	tracker := embeddinguc.NewBudgetTracker(cfg.Provider, embeddinguc.Limits{
		Daily:   b.DailyTokenLimit,
		Monthly: b.MonthlyTokenLimit,
		Action:  embeddinguc.BudgetAction(b.Action),
	}, logger)
	// Seed the local counters from redis.
	return tracker.WithStore(ctx, budgetrepo.New(store))
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func buildEmbedder(
	cfg config.EmbeddingConfig, store *dbRedis.Store, budget embeddinguc.BudgetChecker, logger *zap.Logger,
) embedder {
	// Base provider (with transport metrics built-in)
	var e embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	if cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
		space := embcache.Space{Model: cfg.Model, Dimensions: cfg.Dimensions}
		e = embcache.New(e, store, space, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	e = embeddinguc.NewInstrumentedEmbedder(e, cfg.Provider, cfg.Model, budget, cfg.MaxBatchSize, logger)

	// Outermost, so cache keys include the instruction.
	if cfg.Instruction != "" {
		e = domain.NewInstructionEmbedder(e, cfg.Instruction)
	}
	return e
}
