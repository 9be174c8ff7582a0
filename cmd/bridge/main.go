package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cdp/internal/application/factories/infrastructure"
	"cdp/internal/bridge"
	"cdp/internal/config"
	"cdp/internal/infrastructure/kafka"
	redisInfra "cdp/internal/infrastructure/redis"
	"cdp/internal/stream"
	"cdp/internal/usecase"
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
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Error("KAFKA_BROKERS must be set for the ingestion bridge")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	streamLog := redisInfra.NewStreamLog(redisClient, logger)
	publisher := stream.NewPublisher(streamLog, logger)
	ingestUC := usecase.NewIngestEvent(publisher)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.IngestTopic, cfg.Kafka.GroupID)
	defer consumer.Close()

	logger.Info("Ingestion bridge started", "topic", cfg.Kafka.IngestTopic, "group_id", cfg.Kafka.GroupID)

	b := bridge.New(consumer, ingestUC, logger)
	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bridge stopped with error", "error", err)
	}

	logger.Info("bridge exited")
}
