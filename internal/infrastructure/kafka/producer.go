package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Config describes the firehose destination: the broker set and the topic
// that receives exported normalized events.
type Config struct {
	Brokers []string
	Topic   string
}

// Producer writes firehose records. Records are keyed by profile so that one
// profile's events land on one partition and stay ordered for downstream
// consumers.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg Config) *Producer {
	w := &kafka.Writer{
		Addr:  kafka.TCP(cfg.Brokers...),
		Topic: cfg.Topic,
		// Hash keeps a given key on a stable partition.
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		Async:                  false,
		AllowAutoTopicCreation: true,
	}

	return &Producer{writer: w}
}

func (p *Producer) SendMessage(ctx context.Context, key, value []byte) error {
	err := p.writer.WriteMessages(ctx,
		kafka.Message{
			Key:   key,
			Value: value,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to write firehose record: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
