package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorbot-backend/internal/ai"
	"tutorbot-backend/internal/config"
	"tutorbot-backend/internal/conversation"
	"tutorbot-backend/internal/index"
	"tutorbot-backend/internal/ingest"
	"tutorbot-backend/internal/logger"
	"tutorbot-backend/internal/query"
	"tutorbot-backend/internal/retry"
	"tutorbot-backend/internal/storage"
	"tutorbot-backend/internal/telemetry"
	"tutorbot-backend/middleware"
	"tutorbot-backend/routes"
	"tutorbot-backend/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	ctx := context.Background()
	policy := retry.Policy{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryBaseDelay, MaxDelay: 30 * time.Second}

	// MongoDB holds conversations and file metadata.
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Tracing is optional.
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("tutorbot-backend", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Storage: local cache always, S3 behind it when configured.
	cache, err := storage.NewCache(cfg.CacheDir)
	if err != nil {
		log.Fatal("Failed to create cache directory:", err)
	}
	var remote storage.ObjectStore
	if cfg.UseS3 {
		s3Store, err := storage.NewS3Store(ctx, cfg)
		if err != nil {
			log.Fatal("Failed to initialize S3:", err)
		}
		remote = s3Store
		logger.Info("object store enabled", "bucket", cfg.S3Bucket, "prefix", cfg.S3Prefix)
	} else {
		logger.Info("running in local storage mode", "dir", cfg.CacheDir)
	}
	coord := storage.NewCoordinator(cache, remote, storage.NewMongoMetadata(db))

	// Vector index, reloaded from its on-disk snapshot.
	idx := index.NewStore(cfg.IndexPath)
	if err := idx.Load(); err != nil {
		logger.Warn("failed to load persisted index, starting empty", "error", err)
	} else if idx.Count() > 0 {
		logger.Info("index loaded", "passages", idx.Count(), "version", idx.Version())
	}

	// AI clients.
	embedder, err := ai.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbeddingsModel, cfg.EmbedTimeout, policy)
	if err != nil {
		log.Fatal("Failed to create embedder:", err)
	}
	defer embedder.Close()

	modelClient, err := ai.NewModelClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ModelRPM, cfg.ModelTimeout, policy)
	if err != nil {
		log.Fatal("Failed to create model client:", err)
	}
	defer modelClient.Close()

	// Pipeline and engine.
	extractor := services.NewPDFExtractor()
	chunker := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap, cfg.MinChunkSize)
	orchestrator := ingest.NewOrchestrator(coord, extractor, chunker, embedder, idx, cfg.EmbedWorkers)

	convStore := conversation.NewMongoStore(db, policy)
	engine := query.NewEngine(modelClient, embedder, idx, convStore, coord, cfg.TopK, cfg.HistoryWindow)

	// HTTP surface.
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware("tutorbot-backend"))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Rate limiting is optional; without Redis there is no limiter.
	if rdb, err := config.NewRedisClient(cfg); err != nil {
		logger.Warn("redis unavailable, rate limiting disabled", "error", err)
	} else {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg)

	routes.SetupFileRoutes(router, cfg, coord, authMiddleware)
	routes.SetupChatRoutes(router, cfg, engine, convStore, authMiddleware)
	routes.SetupAdminRoutes(router, orchestrator, idx, coord, convStore, authMiddleware)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("server exited")
}
