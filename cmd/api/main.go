package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/askdata/backend/internal/api/handlers"
	cacheredis "github.com/askdata/backend/internal/cache/redis"
	"github.com/askdata/backend/internal/ingestion"
	"github.com/askdata/backend/internal/llm"
	"github.com/askdata/backend/internal/metrics"
	"github.com/askdata/backend/internal/middleware/ratelimit"
	"github.com/askdata/backend/internal/middleware/security"
	"github.com/askdata/backend/internal/middleware/validation"
	"github.com/askdata/backend/internal/query"
	"github.com/askdata/backend/internal/retrieval"
	"github.com/askdata/backend/internal/session"
	"github.com/askdata/backend/internal/sqlgen"
	"github.com/askdata/backend/internal/storage/sqlite"
	"github.com/askdata/backend/pkg/config"
	appLogger "github.com/askdata/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting AskData API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	llmClient := llm.NewClient(cfg.LLM)

	var cacheClient *cacheredis.Client
	sessions := session.Store(session.NewMemoryStore())
	if cfg.Redis.Enabled {
		cacheClient, err = cacheredis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer cacheClient.Close()
		sessions = session.NewRedisStore(cacheClient.Raw())
	}

	var vectorStore *retrieval.VectorStore
	if cfg.Milvus.Enabled {
		vectorStore, err = retrieval.NewVectorStore(
			cfg.Milvus.Endpoint,
			cfg.Milvus.APIKey,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
			llmClient,
		)
		if err != nil {
			appLogger.Fatal("Failed to create vector store", zap.Error(err))
		}
		defer vectorStore.Close()
	}

	drafter := sqlgen.NewDrafter(llmClient, cfg.SQLite.Table)

	// interface-typed nils must stay nil, not a nil concrete pointer
	var retriever query.Retriever
	if vectorStore != nil {
		retriever = vectorStore
	}
	var answerCache query.AnswerCache
	var indexer ingestion.Indexer
	var invalidator ingestion.Invalidator
	if cacheClient != nil {
		answerCache = cacheClient
		invalidator = cacheClient
	}
	if vectorStore != nil {
		indexer = vectorStore
	}

	orchestrator := query.NewOrchestrator(sqliteClient, drafter, retriever, query.Config{
		Table:             cfg.SQLite.Table,
		MaxRepairAttempts: cfg.Pipeline.MaxRepairAttempts,
		ContextTopK:       cfg.Pipeline.ContextTopK,
		ContextMaxChars:   cfg.Pipeline.ContextMaxChars,
	})

	service := query.NewService(orchestrator, sqliteClient, sessions, answerCache,
		time.Duration(cfg.Cache.AnswerTTLSec)*time.Second)

	processor := ingestion.NewProcessor(sqliteClient, indexer, invalidator, llmClient,
		cfg.SQLite.Table, cfg.Pipeline.PreviewRows)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	rateLimiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer rateLimiter.Stop()

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Session-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(rateLimiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		MaxUploadSize: cfg.Server.BodyLimit,
		Logger:        appLogger.GetLogger(),
	}))

	datasetHandler := handlers.NewDatasetHandler(processor, service)
	queryHandler := handlers.NewQueryHandler(service)
	insightsHandler := handlers.NewInsightsHandler(service, llmClient)
	healthHandler := handlers.NewHealthHandler(sqliteClient, service)
	wsHandler := handlers.NewWebSocketHandler(service)

	api := app.Group("/api/v1")

	api.Post("/datasets", datasetHandler.HandleUpload)
	api.Get("/datasets", datasetHandler.HandleGet)
	api.Post("/ask", queryHandler.HandleAsk)
	api.Post("/sql", queryHandler.HandleSQL)
	api.Get("/history", queryHandler.HandleHistory)
	api.Post("/insights", insightsHandler.HandleInsights)
	api.Get("/health", healthHandler.HandleHealth)
	api.Get("/ready", healthHandler.HandleReady)

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")

	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
}
