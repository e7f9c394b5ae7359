package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"onlinelibrary/internal/app"
	"onlinelibrary/internal/config"
	"onlinelibrary/internal/importdata"
	"onlinelibrary/internal/ratelimit"
	"onlinelibrary/internal/server"
	"onlinelibrary/internal/util"
	"onlinelibrary/pkg/queue"
	"onlinelibrary/pkg/storage"
	"onlinelibrary/pkg/store"
	"onlinelibrary/pkg/token"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	accessTTL, err := config.ParseAccessTTL(cfg.AccessTTL)
	if err != nil {
		log.Fatalf("failed to parse access TTL: %v", err)
	}
	refreshTTL, err := config.ParseRefreshTTL(cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("failed to parse refresh TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	tokens, err := token.NewProvider(cfg.JWTSecret, accessTTL, refreshTTL)
	if err != nil {
		log.Fatalf("failed to init token provider: %v", err)
	}

	var covers storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		covers = minioStore
	}

	appCore, err := app.New(app.Config{
		Store:  st,
		Tokens: tokens,
		Covers: covers,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	loader, err := importdata.New(importdata.Config{
		Store:       st,
		CSVPath:     cfg.SeedUsersCSV,
		BooksAPIURL: cfg.BooksAPIURL,
	})
	if err != nil {
		log.Fatalf("failed to init importer: %v", err)
	}

	ctx := context.Background()
	if cfg.SeedOnStart {
		if err := loader.Run(ctx); err != nil {
			log.Fatalf("failed to seed data: %v", err)
		}
	}

	var importQueue *queue.RedisImportQueue
	if cfg.RedisAddr != "" {
		importQueue, err = queue.NewRedisImportQueue(queue.ImportQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.ImportStream,
			Group:    cfg.ImportGroup,
		})
		if err != nil {
			log.Fatalf("failed to init import queue: %v", err)
		}
		importQueue.Start(ctx, func(ctx context.Context, job queue.ImportJob) error {
			slog.Info("running catalog import", "job", job.ID, "requestedBy", job.RequestedBy)
			return loader.Run(ctx)
		})
	}

	httpServer, err := server.New(server.Config{
		App:             appCore,
		LoginLimiter:    newLimiter(cfg, cfg.LoginRateLimitPerMinute),
		RegisterLimiter: newLimiter(cfg, cfg.RegisterRateLimitPerMinute),
		RefreshLimiter:  newLimiter(cfg, cfg.RefreshRateLimitPerMinute),
		ImportQueue:     importQueue,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("library server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

// newLimiter returns nil when the per-minute limit is zero, disabling the
// limiter for that endpoint.
func newLimiter(cfg config.FileConfig, perMinute int) *ratelimit.FixedWindowLimiter {
	if perMinute <= 0 || cfg.RedisAddr == "" {
		return nil
	}
	limiter, err := ratelimit.New(ratelimit.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Limit:    perMinute,
		Window:   time.Minute,
	})
	if err != nil {
		log.Fatalf("failed to init rate limiter: %v", err)
	}
	return limiter
}
