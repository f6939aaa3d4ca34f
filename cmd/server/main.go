// Command server is the code intelligence index's entrypoint: load
// configuration, construct the service container bottom-up, and serve
// the HTTP surface alongside the embedding worker pool and the branch
// cleanup scheduler until an OS signal arrives.
//
// Grounded on the teacher's cmd/main.go: the same
// flag-parse -> load-config -> build-zap-logger -> construct
// dependencies bottom-up -> wire controllers -> start server shape,
// adapted to a larger service container and the background
// goroutines (embedding workers, cleanup scheduler) this domain adds.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/armchr/codeindex/internal/chunk"
	"github.com/armchr/codeindex/internal/cleanup"
	"github.com/armchr/codeindex/internal/compact"
	"github.com/armchr/codeindex/internal/config"
	"github.com/armchr/codeindex/internal/embedclient"
	"github.com/armchr/codeindex/internal/embedjob"
	"github.com/armchr/codeindex/internal/gittrack"
	"github.com/armchr/codeindex/internal/handler"
	"github.com/armchr/codeindex/internal/index"
	"github.com/armchr/codeindex/internal/parse"
	"github.com/armchr/codeindex/internal/query"
	"github.com/armchr/codeindex/internal/store"
	"github.com/armchr/codeindex/internal/util"
	"github.com/armchr/codeindex/internal/workspace"
)

func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func main() {
	appConfigPath := flag.String("app", "app.yaml", "Path to app configuration file")
	sourceConfigPath := flag.String("source", "source.yaml", "Path to source configuration file")
	workDir := flag.String("workdir", "", "Working directory to store repository checkouts")
	flag.Parse()

	cfg, err := config.LoadConfig(*appConfigPath, *sourceConfigPath)
	if err != nil {
		log.Fatal("failed to load configuration: ", err)
	}
	if *workDir != "" {
		cfg.App.WorkDir = *workDir
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level.SetLevel(parseLogLevel(cfg.App.LogLevel))
	zapCfg.OutputPaths = []string{"stdout"}
	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync()

	logger.Info("configuration loaded", zap.Int("port", cfg.App.Port), zap.String("workdir", cfg.App.WorkDir))

	mysqlDSN := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.MySQL.Username, cfg.MySQL.Password, cfg.MySQL.Host, cfg.MySQL.Port, cfg.MySQL.Database)
	mysqlStore, err := store.NewMySQLStore(mysqlDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to mysql", zap.Error(err))
	}
	defer mysqlStore.Close()

	qdrantStore, err := store.NewQdrantStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.APIKey, logger)
	if err != nil {
		logger.Fatal("failed to connect to qdrant", zap.Error(err))
	}

	var neo4jStore *store.Neo4jStore
	if cfg.Neo4j.URI != "" {
		neo4jStore, err = store.NewNeo4jStore(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, logger)
		if err != nil {
			logger.Warn("failed to connect to neo4j, graph rerank will fall back to mysql edge counts", zap.Error(err))
			neo4jStore = nil
		} else {
			defer neo4jStore.Close(context.Background())
		}
	}

	bloom, err := util.NewBloomFilterManager(cfg.BloomFilter, logger)
	if err != nil {
		logger.Fatal("failed to initialize bloom filter manager", zap.Error(err))
	}

	tracker := gittrack.NewTracker(cfg.App.WorkDir, nil)
	loader := workspace.NewLoader(logger)
	registry := parse.NewRegistry(nil)

	chunkCfg := chunk.Config{
		ContextLinesBefore: cfg.Chunking.ContextLinesBefore,
		ContextLinesAfter:  cfg.Chunking.ContextLinesAfter,
		MaxChunkChars:      cfg.Chunking.MaxChunkChars,
	}
	if chunkCfg.MaxChunkChars == 0 {
		chunkCfg = chunk.DefaultConfig()
	}

	concurrency := cfg.App.FileReadConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	indexOrchestrator := index.NewOrchestrator(mysqlStore, qdrantStore, neo4jStore, tracker, loader, registry, bloom, chunkCfg, concurrency, cfg.Embedding.Model, logger)

	embedder := embedclient.NewClient(cfg.Embedding.URL, cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.TimeoutSeconds, logger)

	jobCfg := embedjob.Config{
		PollInterval:       time.Duration(cfg.EmbeddingJobs.PollIntervalSeconds) * time.Second,
		LeaseDuration:      time.Duration(cfg.EmbeddingJobs.LeaseSeconds) * time.Second,
		MaxAttempts:        cfg.EmbeddingJobs.MaxAttempts,
		BackoffBaseSeconds: cfg.EmbeddingJobs.BackoffBaseSeconds,
		BackoffCapSeconds:  cfg.EmbeddingJobs.BackoffCapSeconds,
		BatchSize:          cfg.EmbeddingJobs.BatchSize,
	}
	workerCount := cfg.EmbeddingJobs.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	compactCfg := compact.Config{
		MaxResults:      cfg.MaxResponse.MaxResults,
		MaxSnippetChars: cfg.MaxResponse.MaxSnippetChars,
		MaxJSONBytes:    cfg.MaxResponse.MaxResponseBytes,
	}
	if compactCfg.MaxResults == 0 && compactCfg.MaxSnippetChars == 0 && compactCfg.MaxJSONBytes == 0 {
		compactCfg = compact.DefaultConfig()
	}

	queryOrchestrator := query.NewOrchestrator(mysqlStore, qdrantStore, neo4jStore, embedder,
		cfg.Retrieval.BM25Weight, cfg.Retrieval.VectorWeight, cfg.Embedding.Model, compactCfg.MaxResults, logger)

	queryHandler := handler.NewQueryHandler(queryOrchestrator, compactCfg, logger)
	buildHandler := handler.NewBuildHandler(cfg, mysqlStore, tracker, indexOrchestrator, logger)
	healthHandler := handler.NewHealthHandler(mysqlStore, qdrantStore)
	repoHandler := handler.NewRepoHandler(mysqlStore, logger)
	router := handler.SetupRouter(queryHandler, buildHandler, healthHandler, repoHandler, cfg.App.DebugHTTP, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i := 0; i < workerCount; i++ {
		worker := embedjob.NewWorker(fmt.Sprintf("worker-%d", i), mysqlStore, qdrantStore, embedder, jobCfg, logger)
		go worker.Run(ctx)
	}

	staleAfter := time.Duration(cfg.App.StaleBranchDays) * 24 * time.Hour
	if staleAfter <= 0 {
		staleAfter = 7 * 24 * time.Hour
	}
	scheduler := cleanup.NewScheduler(tracker, mysqlStore, cleanup.Config{StaleAfter: staleAfter}, logger)
	go scheduler.Run(ctx)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.App.Port), Handler: router}
	go func() {
		logger.Info("starting server", zap.Int("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}
