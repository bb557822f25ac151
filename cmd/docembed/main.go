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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docembed/internal/config"
	dbRedis "github.com/kailas-cloud/docembed/internal/db/redis"
	"github.com/kailas-cloud/docembed/internal/domain"
	"github.com/kailas-cloud/docembed/internal/domain/chunk"
	"github.com/kailas-cloud/docembed/internal/domain/vector"
	logpkg "github.com/kailas-cloud/docembed/internal/logger"
	"github.com/kailas-cloud/docembed/internal/metrics"
	"github.com/kailas-cloud/docembed/internal/repository/embcache"
	"github.com/kailas-cloud/docembed/internal/repository/vectorindex"
	chiTransport "github.com/kailas-cloud/docembed/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/docembed/internal/transport/openai"
	s3Transport "github.com/kailas-cloud/docembed/internal/transport/s3"
	embeddinguc "github.com/kailas-cloud/docembed/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docembed/internal/usecase/health"
	"github.com/kailas-cloud/docembed/internal/usecase/ingest"
	"github.com/kailas-cloud/docembed/internal/usecase/provision"
	"github.com/kailas-cloud/docembed/internal/usecase/query"
	"github.com/kailas-cloud/docembed/internal/version"
)

func main() {
	// Secrets for local runs; a missing .env is fine.
	_ = godotenv.Load()

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

	logger.Info("Starting docembed",
		zap.String("build", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("index", cfg.Index.Name),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Explicit registration, no init().
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()

	base := buildEmbedder(cfg.Embedding, cfg.Storage.KeyPrefix, store, logger)
	docEmbedder := withInstruction(base, cfg.Embedding.DocumentInstruction)
	queryEmbedder := withInstruction(base, cfg.Embedding.QueryInstruction)

	indexRepo := vectorindex.New(store, cfg.Storage.KeyPrefix).WithHNSW(vectorindex.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})

	loader, err := s3Transport.NewLoader(&s3Transport.Config{
		Endpoint:       cfg.S3.Endpoint,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		Region:         cfg.S3.Region,
		MaxObjectBytes: cfg.S3.MaxObjectBytes,
		Bucket:         cfg.Ingest.DefaultContainer,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Failed to create S3 loader", zap.Error(err))
	}

	splitter, err := chunk.New(chunk.Options{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: *cfg.Ingest.ChunkOverlap,
	})
	if err != nil {
		logger.Fatal("Invalid chunker settings", zap.Error(err))
	}

	ids, err := vector.NewIDGenerator(vector.IDStrategy(cfg.Ingest.IDStrategy))
	if err != nil {
		logger.Fatal("Invalid ID strategy", zap.Error(err))
	}

	upserter, err := ingest.NewUpserter(docEmbedder, indexRepo, ids, logger,
		ingest.WithBatchSize(cfg.Ingest.BatchSize),
		ingest.WithEmbedConcurrency(cfg.Ingest.EmbedConcurrency),
		ingest.WithMaxConcurrentBatches(cfg.Ingest.MaxConcurrentBatches),
	)
	if err != nil {
		logger.Fatal("Failed to create upserter", zap.Error(err))
	}
	defer upserter.Release()

	descriptor := vector.IndexDescriptor{
		Name:      cfg.Index.Name,
		Dimension: cfg.Index.Dimension,
		Metric:    vector.Metric(cfg.Index.Metric),
		Region:    cfg.Index.Region,
	}
	provisioner := provision.New(indexRepo, logger)
	ingestSvc := ingest.New(loader, splitter, provisioner, upserter, descriptor).
		WithDefaultContainer(cfg.Ingest.DefaultContainer)
	querySvc := query.New(queryEmbedder, indexRepo, cfg.Index.Name).WithTopK(cfg.Query.TopK)

	healthSvc := healthuc.New().
		Require("database", healthuc.CheckerFunc(store.Ping)).
		Optional("embedding", healthChecker(base)).
		Optional("storage", loader)

	server := chiTransport.NewServer(ingestSvc, querySvc, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(chiTransport.Options{APIKeys: cfg.Auth.APIKeys}),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

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

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Retrying -> Instrumented.
func buildEmbedder(
	cfg config.EmbeddingConfig, keyPrefix string, store *dbRedis.Store, logger *zap.Logger,
) domain.Embedder {
	// Base provider (with transport metrics built-in)
	var embedder domain.Embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		Provider:   cfg.Provider,
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
		Logger:     logger,
	})

	if cfg.CacheTTLSec >= 0 {
		embedder = embcache.New(embedder, store, cfg.Model, cfg.Dimensions, metrics.EmbeddingCacheTotal, logger,
			embcache.WithTTL(time.Duration(cfg.CacheTTLSec)*time.Second),
			embcache.WithKeyPrefix(keyPrefix),
		)
	}

	embedder = embeddinguc.NewRetryingEmbedder(embedder, embeddinguc.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
	}, cfg.Provider, logger)

	return embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Provider, cfg.Model, logger)
}

// withInstruction prepends instruction text outermost, so cache keys include it.
func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}

// healthChecker returns e's health check, or nil when it has none.
func healthChecker(e domain.Embedder) healthuc.Checker {
	if hc, ok := e.(domain.HealthChecker); ok {
		return hc
	}
	return nil
}
