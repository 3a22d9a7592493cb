package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"draftforge/internal/ratelimit"
	"draftforge/internal/util"
	"draftforge/pkg/ai"
	"draftforge/pkg/cache"
	"draftforge/pkg/jobs"
	"draftforge/pkg/storage"
	"draftforge/pkg/store"
	"draftforge/services/generation/internal/app"
	"draftforge/services/generation/internal/config"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer client.Close()

	var subjectStore store.Store
	if cfg.DatabaseURL != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			fatal(logger, "failed to init postgres store", err)
		}
		subjectStore = gormStore
	} else {
		slog.Warn("no databaseURL configured, subject state is in-memory only")
		subjectStore = store.NewMemoryStore()
	}

	var archive storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			fatal(logger, "failed to init minio archive", err)
		}
		archive = minioStore
	} else {
		archive = storage.NewMemoryStore()
	}

	cacheStore, err := cache.NewRedisStore(client, "generation:cache")
	if err != nil {
		fatal(logger, "failed to init cache", err)
	}
	limiter, err := ratelimit.NewFixedWindowLimiter(client, "generation:ratelimit")
	if err != nil {
		fatal(logger, "failed to init rate limiter", err)
	}

	var generator ai.TextGenerator
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		generator, err = ai.NewOpenAIGenerator(cfg.ProviderAPIKey, cfg.ProviderBaseURL, cfg.ProviderModel)
		if err != nil {
			fatal(logger, "failed to init openai provider", err)
		}
	default:
		generator = ai.NewOpenAICompatGenerator(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderModel)
	}
	resilient := ai.NewResilientClient(generator)

	var events jobs.Publisher
	if cfg.AMQPURL != "" {
		publisher, err := jobs.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			fatal(logger, "failed to init amqp publisher", err)
		}
		defer publisher.Close()
		events = publisher
	}

	appCore, err := app.New(app.Config{
		Redis:        client,
		Stream:       cfg.JobStream,
		Store:        subjectStore,
		Archive:      archive,
		Cache:        cacheStore,
		Limiter:      limiter,
		Client:       resilient,
		Subjects:     app.NewSubjectClient(cfg.SubjectServiceURL),
		Events:       events,
		Workers:      cfg.WorkerCount,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: time.Duration(cfg.BatchTimeoutSeconds) * time.Second,
	})
	if err != nil {
		fatal(logger, "failed to init app", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group := appCore.Start(ctx)
	slog.Info("generation workers running", "workers", cfg.WorkerCount, "stream", cfg.JobStream)

	<-ctx.Done()
	slog.Info("shutdown signal received, draining workers")
	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("worker shutdown error", "err", err)
	}
	slog.Info("generation service stopped")
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "err", err)
	os.Exit(1)
}
