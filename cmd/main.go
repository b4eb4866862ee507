package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"knowledge-extraction-platform/internal/ai"
	"knowledge-extraction-platform/internal/config"
	"knowledge-extraction-platform/internal/locks"
	"knowledge-extraction-platform/internal/logger"
	"knowledge-extraction-platform/internal/store"
	"knowledge-extraction-platform/internal/telemetry"
	"knowledge-extraction-platform/internal/vectorstore/qdrant"
	"knowledge-extraction-platform/middleware"
	"knowledge-extraction-platform/models"
	"knowledge-extraction-platform/routes"
	"knowledge-extraction-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.Init(cfg.AppEnv)

	// Initialize tracing
	shutdownTracer, err := telemetry.InitTracer("knowledge-extraction-platform")
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	st := store.NewMongoStore(mongoClient, cfg.DBName, cfg.CompressUnits)

	// Connect to Redis (run locks + task queue)
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()
	runLock := locks.NewRunLock(rdb, 30*time.Minute)

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	// Vector store
	vectors := qdrant.NewStorage(qdrant.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
	})
	initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := vectors.Init(initCtx, cfg.VectorDimensions); err != nil {
		log.Fatal("Failed to initialize vector store:", err)
	}
	cancel()

	// Gemini: generation, embeddings, token counting
	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier, metrics)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	embedder, err := ai.NewGeminiEmbedder(cfg.GeminiAPIKey, cfg.GeminiEmbeddingModel)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	defer embedder.Close()

	var counter services.TokenCounter = ai.HeuristicTokenCounter{}
	if cfg.ExactTokenCounts {
		counter = ai.GeminiTokenCounter{Client: geminiClient}
	}

	pipeline, err := buildPipeline(cfg, st, vectors, geminiClient, embedder, counter, metrics)
	if err != nil {
		log.Fatal("Failed to build extraction pipeline:", err)
	}

	ingester := services.NewIngester(cfg.MaxUnitChars)
	exportSvc := services.NewExportService(st)

	// Initialize Gin router
	if cfg.AppEnv == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.MetricsMiddleware(metrics))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	api := router.Group("/api")
	{
		api.POST("/sources", routes.HandleRegisterSource(cfg, st, ingester))
		api.GET("/sources", routes.HandleListSources(st))
		api.GET("/sources/:id", routes.HandleGetSource(st))
		api.GET("/sources/:id/runs", routes.HandleRunHistory(st))
		api.POST("/sources/:id/extract", routes.HandleExtractSource(st, pipeline, runLock, queueClient))
		api.GET("/extractions", routes.HandleListExtractions(st))
		api.GET("/extractions/export", routes.HandleExportExtractions(exportSvc))
		api.POST("/query", routes.HandleQuery(embedder, vectors))
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// buildPipeline assembles the extraction pipeline from configuration.
func buildPipeline(cfg *config.Config, st *store.MongoStore, vectors *qdrant.Storage,
	gemini *ai.GeminiClient, embedder services.Embedder, counter services.TokenCounter,
	metrics *telemetry.Metrics) (*services.Pipeline, error) {

	levels, err := services.NewLevelConfig(map[models.ExtractionLevel]services.LevelSettings{
		models.LevelUnit: {
			Categories: []string{models.CategoryDecision, models.CategoryWarning},
			MaxTokens:  cfg.UnitTokenBudget,
			Strategy:   services.StrategyTruncate,
		},
		models.LevelSection: {
			Categories: []string{models.CategoryPattern},
			MaxTokens:  cfg.SectionTokenBudget,
			Strategy:   services.StrategyTruncate,
		},
		models.LevelChapter: {
			Categories: []string{models.CategoryMethodology},
			MaxTokens:  cfg.ChapterTokenBudget,
			Strategy:   services.StrategySummarizeIfExceeded,
		},
	})
	if err != nil {
		return nil, err
	}

	extractors, err := ai.NewCategoryExtractors(gemini)
	if err != nil {
		return nil, err
	}

	combiner := services.NewContextCombiner(counter)
	orchestrator, err := services.NewOrchestrator(levels, combiner, extractors)
	if err != nil {
		return nil, err
	}

	storage := services.NewExtractionStorage(st, vectors, embedder)
	storage.OnVectorFailure(func() {
		metrics.RecordVectorUpsertFailure(cfg.QdrantCollection)
	})
	return services.NewPipeline(st, orchestrator, storage).WithMetrics(metrics), nil
}
