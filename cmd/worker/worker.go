package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-extraction-platform/internal/ai"
	"knowledge-extraction-platform/internal/config"
	"knowledge-extraction-platform/internal/locks"
	"knowledge-extraction-platform/internal/logger"
	"knowledge-extraction-platform/internal/queue"
	"knowledge-extraction-platform/internal/store"
	"knowledge-extraction-platform/internal/telemetry"
	"knowledge-extraction-platform/internal/vectorstore/qdrant"
	"knowledge-extraction-platform/models"
	"knowledge-extraction-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.Init(cfg.AppEnv)

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

	// Redis for run locks
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()
	runLock := locks.NewRunLock(rdb, 30*time.Minute)

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

	// Gemini client and embedder
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

	// Vector backfill on a cron cadence
	backfiller := services.NewBackfiller(st, vectors, embedder, cfg.BackfillBatch)
	backfillScheduler, err := services.NewBackfillScheduler(backfiller, cfg.BackfillCron)
	if err != nil {
		log.Fatal("Failed to schedule vector backfill:", err)
	}
	backfillScheduler.Start()
	defer backfillScheduler.Stop()

	// Redis options for Asynq
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4, // Extraction runs are long and rate limited upstream
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task failed: %s, error: %v", task.Type(), err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(st, pipeline, runLock)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskExtractSource, processor.HandleExtractSource)

	log.Println("🚀 Starting extraction worker...")
	log.Printf("   Redis: %s", redisOpt.Addr)
	log.Printf("   Backfill cron: %s", cfg.BackfillCron)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
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
