package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	AppEnv   string

	// Redis (asynq queue + per-source run locks)
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Qdrant vector store
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	VectorDimensions int

	// Gemini
	GeminiAPIKey         string
	GeminiModel          string
	GeminiEmbeddingModel string
	GeminiTier           string
	ExactTokenCounts     bool

	// Extraction level token budgets
	UnitTokenBudget    int
	SectionTokenBudget int
	ChapterTokenBudget int

	// Ingest and maintenance
	MaxUnitChars  int
	MaxUploadSize int64
	CompressUnits bool
	BackfillCron  string
	BackfillBatch int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/knowledge_extraction"),
		DBName:   getEnv("DB_NAME", "knowledge_extraction"),
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "debug"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "extractions"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 768),

		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiEmbeddingModel: getEnv("GEMINI_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiTier:           getEnv("GEMINI_TIER", "free"),
		ExactTokenCounts:     getEnvBool("EXACT_TOKEN_COUNTS", false),

		UnitTokenBudget:    getEnvInt("UNIT_TOKEN_BUDGET", 1500),
		SectionTokenBudget: getEnvInt("SECTION_TOKEN_BUDGET", 6000),
		ChapterTokenBudget: getEnvInt("CHAPTER_TOKEN_BUDGET", 24000),

		MaxUnitChars:  getEnvInt("MAX_UNIT_CHARS", 2000),
		MaxUploadSize: getEnvInt64("MAX_UPLOAD_SIZE", 20971520), // 20MB
		CompressUnits: getEnvBool("COMPRESS_UNITS", true),
		BackfillCron:  getEnv("BACKFILL_CRON", "*/10 * * * *"),
		BackfillBatch: getEnvInt("BACKFILL_BATCH", 100),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
