package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	MongoURI string
	DBName   string

	// Redis (rate limiting). Optional: empty URL disables the limiter.
	RedisURL      string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	// Remote object storage. When UseS3 is off, the local cache directory
	// is the only storage tier.
	UseS3              bool
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	S3Bucket           string
	S3Prefix           string
	PresignTTL         time.Duration

	// Local tier / persisted index.
	CacheDir  string
	IndexPath string

	MaxFileSize int64

	// Gemini model + embeddings.
	GeminiAPIKey    string
	GeminiModel     string
	EmbeddingsModel string

	// Chunking.
	MaxChunkSize int
	ChunkOverlap int
	MinChunkSize int

	// Retrieval.
	TopK          int
	HistoryWindow int

	// External-call resilience.
	MaxRetries     int
	RetryBaseDelay time.Duration
	ModelTimeout   time.Duration
	EmbedTimeout   time.Duration
	EmbedWorkers   int
	ModelRPM       int

	RateLimitReqs   int
	RateLimitWindow int

	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/tutorbot"),
		DBName:   getEnv("DB_NAME", "tutorbot"),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", ""),

		UseS3:              getEnvBool("USE_S3", false),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		S3Bucket:           getEnv("AWS_S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", "pdfs/"),
		PresignTTL:         getEnvDuration("PRESIGN_TTL", time.Hour),

		CacheDir:  getEnv("PDF_CACHE_DIR", "./uploaded_pdfs"),
		IndexPath: getEnv("INDEX_PATH", "./data/index.gob"),

		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		MinChunkSize: getEnvInt("MIN_CHUNK_SIZE", 50),

		TopK:          getEnvInt("RETRIEVAL_TOP_K", 6),
		HistoryWindow: getEnvInt("HISTORY_WINDOW", 10),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay: getEnvDuration("RETRY_BASE_DELAY", time.Second),
		ModelTimeout:   getEnvDuration("MODEL_TIMEOUT", 60*time.Second),
		EmbedTimeout:   getEnvDuration("EMBED_TIMEOUT", 30*time.Second),
		EmbedWorkers:   getEnvInt("EMBED_WORKERS", 4),
		ModelRPM:       getEnvInt("MODEL_RPM", 10),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.UseS3 && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is required when USE_S3 is enabled")
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
