// cmd/consultation-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ethics-advisor/internal/agents/assessor"
	"ethics-advisor/internal/agents/planner"
	"ethics-advisor/internal/common/aws"
	"ethics-advisor/internal/common/config"
	"ethics-advisor/internal/common/database"
	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/common/observability"
	"ethics-advisor/internal/history"
	"ethics-advisor/internal/ingestion"
	"ethics-advisor/internal/knowledge/embedder"
	"ethics-advisor/internal/knowledge/store"
	"ethics-advisor/internal/llm"
	"ethics-advisor/internal/notify"
	"ethics-advisor/internal/retrieval"
	"ethics-advisor/internal/search"
	"ethics-advisor/internal/server"
	"ethics-advisor/internal/workflow"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting ethics consultation server...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	// Rebuild the logger with the configured level and format.
	if cfg.Logging.Level != "" {
		zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
		log = logger.NewZapAdapter(zapLog)
	}
	defer func() { _ = zapLog.Sync() }()

	serviceName := cfg.Observability.ServiceName
	if serviceName == "" {
		serviceName = "ethics-advisor"
	}
	obs := observability.New(serviceName)
	defer obs.Shutdown()
	if cfg.Observability.TracingEnabled {
		if err := obs.EnableTracing(serviceName, cfg.Observability.JaegerEndpoint); err != nil {
			zapLog.Warn("Tracing setup failed, continuing without traces", zap.Error(err))
		}
	}

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init AWS notification clients (optional) ---
	// Interface variables stay nil unless a client comes up, so a failed
	// init cleanly disables that channel instead of panicking later.
	var sesSvc notify.SESService
	var snsSvc notify.SNSService
	if cfg.Notifications.Enabled {
		if client, err := aws.NewSESClient(ctx, cfg.Notifications.Region); err != nil {
			zapLog.Warn("SES client init failed, email escalation disabled", zap.Error(err))
		} else {
			sesSvc = client
		}
		if client, err := aws.NewSNSClient(ctx, cfg.Notifications.Region); err != nil {
			zapLog.Warn("SNS client init failed, topic escalation disabled", zap.Error(err))
		} else {
			snsSvc = client
		}
	}

	// --- Component construction ---
	emb := embedder.NewHTTPEmbedder(embedder.FromAppConfig(cfg.Embeddings), redis.Client, log)
	knowledgeStore := store.New(&store.Config{
		Dimensions: cfg.Embeddings.Dimensions,
		Timeout:    config.GetDuration(cfg.Database.Elasticsearch.Timeout),
	}, esClient.Client, log)
	reranker := retrieval.NewHTTPReranker(retrieval.RerankerFromAppConfig(cfg.Rerank), log)
	engine := retrieval.NewEngine(retrieval.FromAppConfig(cfg.Retrieval), emb, knowledgeStore, reranker, log)
	searchClient := search.NewTavilyClient(search.FromAppConfig(cfg.Search), redis.Client, log)

	llmClient := llm.NewHTTPClient(llm.FromAppConfig(cfg.LLM), log)
	plannerAgent := planner.New(&planner.Config{Model: cfg.LLM.PlannerModel}, llmClient, log)
	assessorAgent, err := assessor.New(llmClient, log)
	if err != nil {
		zapLog.Fatal("assessor init failed", zap.Error(err))
	}

	historyStore := history.NewStore(pg.DB, log)
	notifier := notify.NewNotifier(notify.FromAppConfig(cfg.Notifications), sesSvc, snsSvc, log)
	pipeline := ingestion.NewPipeline(ingestion.FromAppConfig(cfg), emb, knowledgeStore, log)

	orch := workflow.NewOrchestrator(workflow.FromAppConfig(cfg), plannerAgent, engine, searchClient, assessorAgent, log).
		WithHistory(historyStore).
		WithNotifier(notifier).
		WithObservability(obs)

	// --- Schema and collection setup ---
	setupCtx, cancelSetup := context.WithTimeout(ctx, 30*time.Second)
	if err := historyStore.EnsureSchema(setupCtx); err != nil {
		cancelSetup()
		zapLog.Fatal("history schema setup failed", zap.Error(err))
	}
	for _, collection := range []string{cfg.Retrieval.Collection, cfg.Retrieval.SemanticCollection} {
		if err := knowledgeStore.EnsureCollection(setupCtx, collection); err != nil {
			cancelSetup()
			zapLog.Fatal("collection setup failed", zap.Error(err), zap.String("collection", collection))
		}
	}
	cancelSetup()
	zapLog.Info("History schema and knowledge collections ready")

	// --- HTTP server ---
	srv := server.New(server.FromAppConfig(cfg), orch, log).
		WithHistory(historyStore).
		WithIngester(pipeline).
		WithHealthCheck("postgres", pg.Ping).
		WithHealthCheck("redis", redis.Ping).
		WithHealthCheck("elasticsearch", func(context.Context) error { return esClient.Ping() })

	go func() {
		if err := srv.Start(); err != nil {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Ethics consultation server stopped gracefully")
}
