package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cdp/internal/application/factories/infrastructure"
	"cdp/internal/config"
	"cdp/internal/infrastructure/kafka"
	"cdp/internal/infrastructure/postgres"
	redisInfra "cdp/internal/infrastructure/redis"
	"cdp/internal/stream"
	"cdp/internal/usecase"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Initialize structured JSON logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Metrics Server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Worker metrics listening on :9091")
		http.ListenAndServe(":9091", mux)
	}()

	// Infrastructure
	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	streamLog := redisInfra.NewStreamLog(redisClient, logger)

	// Every group must exist before any worker starts reading.
	if err := stream.EnsureGroups(ctx, streamLog, stream.WorkerBindings(), logger); err != nil {
		logger.Error("failed to ensure consumer groups", "error", err)
		os.Exit(1)
	}

	// Repositories
	profileRepo := postgres.NewProfileRepository(pgPool)
	reviewRepo := postgres.NewReviewRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	// Optional normalized-event firehose
	var exporter usecase.NormalizedExporter
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProd := kafka.NewProducer(kafka.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.FirehoseTopic,
		})
		defer kafkaProd.Close()
		exporter = usecase.NewFirehose(kafkaProd)
		logger.Info("firehose export enabled", "topic", cfg.Kafka.FirehoseTopic)
	}

	// Handlers
	normalizedUC := usecase.NewProcessNormalizedEvent(profileRepo, exporter, logger)
	mergeUC := usecase.NewProcessMergeRequest(txManager, reviewRepo, profileRepo, logger)
	predictionUC := usecase.NewProcessPredictionRequest(logger)

	newWorker := func(topic stream.Topic, group string, h stream.Handler) *stream.Worker {
		return stream.NewWorker(streamLog, stream.WorkerConfig{
			Topic:         topic,
			Group:         group,
			BatchSize:     cfg.Pipeline.BatchSize,
			Block:         cfg.Pipeline.Block,
			PendingBatch:  cfg.Pipeline.PendingBatch,
			ClaimMinIdle:  cfg.Pipeline.ClaimMinIdle,
			Backoff:       cfg.Pipeline.Backoff,
			MaxDeliveries: cfg.Pipeline.MaxDeliveries,
		}, h, logger)
	}

	dispatcher := stream.NewDispatcher(logger, cfg.Pipeline.Backoff,
		newWorker(stream.TopicNormalizedEvents, stream.GroupEventProcessors, normalizedUC.Handle),
		newWorker(stream.TopicMergeRequests, stream.GroupMergeProcessors, mergeUC.Handle),
		newWorker(stream.TopicPredictionRequests, stream.GroupPredictionProcessors, predictionUC.Handle),
	)

	logger.Info("Pipeline workers starting")
	if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("dispatcher stopped with error", "error", err)
	}

	logger.Info("worker exited")
}
