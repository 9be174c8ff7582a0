package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config carries the connection settings shared by the stream log and the
// ingestion idempotency cache.
type Config struct {
	Addr     string
	Password string // optional
	DB       int    // optional
}

// NewClient connects and verifies the connection with a ping before any
// stream or cache traffic is attempted.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
