// Package main runs the cloud recording broker HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/clearcast/recording-backend/config"
	"github.com/clearcast/recording-backend/internal/agora"
	"github.com/clearcast/recording-backend/internal/middleware"
	"github.com/clearcast/recording-backend/internal/recording"
	"github.com/clearcast/recording-backend/internal/rtctoken"
	"github.com/clearcast/recording-backend/internal/uploads"
	"github.com/clearcast/recording-backend/internal/worker"
	"github.com/clearcast/recording-backend/pkg/database"
	"github.com/clearcast/recording-backend/pkg/queue"
	"github.com/clearcast/recording-backend/pkg/redis"
	"github.com/clearcast/recording-backend/pkg/response"
	"github.com/clearcast/recording-backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()

	// Optional Redis: persistent correlation store + archive queue.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	// Upload correlation store.
	var store uploads.Store
	if cfg.Uploads.StoreBackend == "redis" && rdb != nil {
		store = uploads.NewRedisStore(rdb.Client, cfg.Uploads.Retention)
		logger.Info("upload store: redis", zap.Duration("retention", cfg.Uploads.Retention))
	} else {
		memStore := uploads.NewMemoryStore(cfg.Uploads.Retention)
		store = memStore
		defer memStore.Close()
		logger.Info("upload store: memory", zap.Duration("retention", cfg.Uploads.Retention))
	}

	fileStore, err := uploads.NewFileStore(cfg.Uploads.Dir, cfg.Server.PublicBaseURL)
	if err != nil {
		logger.Fatal("uploads dir", zap.Error(err))
	}

	ingestor := uploads.NewIngestor(store, fileStore, logger)

	// Optional Postgres audit trail for delivered batches.
	var auditRepo *uploads.Repository
	if cfg.Database.URL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		auditRepo = uploads.NewRepository(pool)
		ingestor.SetAuditRepository(auditRepo)
	}

	// Optional S3 archive pipeline; needs Redis for the job queue.
	var archiveProcessor *worker.ArchiveProcessor
	var s3Client *storage.S3
	if cfg.AWS.ArchiveBucket != "" && rdb != nil {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ArchiveBucket:        cfg.AWS.ArchiveBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 archive disabled", zap.Error(err))
			s3Client = nil
		} else {
			jobQueue := queue.NewQueue(rdb.Client, logger)
			ingestor.SetArchiveQueue(jobQueue)
			archiveProcessor = worker.NewArchiveProcessor(s3Client, jobQueue, auditRepo, logger)
		}
	}

	// Recording orchestration.
	provider := agora.NewClient(cfg.Agora, logger)
	tokenBuilder := rtctoken.NewBuilder(cfg.Agora.AppID, cfg.Agora.AppCertificate)
	sessionIndex := recording.NewSessionIndex()
	orchestrator := recording.NewOrchestrator(
		sessionIndex,
		provider,
		tokenBuilder,
		store,
		cfg.Server.PublicBaseURL+"/upload-webhook",
		logger,
	)

	recordingHandler := recording.NewHandler(orchestrator, logger)
	uploadsHandler := uploads.NewHandler(ingestor, store, logger)
	tokenHandler := rtctoken.NewHandler(tokenBuilder, cfg.Agora.AppID, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	router.POST("/token", tokenHandler.Generate)

	rec := router.Group("/recording")
	{
		rec.POST("/start", recordingHandler.Start)
		rec.POST("/stop", recordingHandler.Stop)
		rec.POST("/query", recordingHandler.Query)
		rec.POST("/update-layout", recordingHandler.UpdateLayout)
		rec.GET("/:sid", uploadsHandler.GetBySessionID)
	}
	router.GET("/sessions", recordingHandler.Sessions)

	// Long-term archive view, available when both the audit database and
	// the archive bucket are configured.
	if auditRepo != nil && s3Client != nil {
		archiveHandler := uploads.NewArchiveHandler(auditRepo, s3Client, logger)
		router.GET("/archive/:sid", archiveHandler.GetBySessionID)
	}

	// Provider-pushed file delivery; signature verification applies when configured.
	router.POST("/upload-webhook",
		middleware.WebhookSignature(cfg.Webhook.Secret, logger),
		uploadsHandler.Webhook)

	// Delivered files are served from local disk at their public URLs.
	router.Static(uploads.PublicPathPrefix, fileStore.Dir())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if archiveProcessor != nil {
		go archiveProcessor.Run(workerCtx)
		logger.Info("archive worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := cfg.Build()
	return logger
}
