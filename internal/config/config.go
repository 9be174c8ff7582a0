package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App      App      `yaml:"app"`
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Pipeline Pipeline `yaml:"pipeline"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"cdp"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"cdp_db"`
}

type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

// Kafka is optional: an empty broker list disables both the normalized-event
// firehose and the ingestion bridge.
type Kafka struct {
	Brokers       []string `yaml:"brokers" env:"KAFKA_BROKERS"`
	FirehoseTopic string   `yaml:"firehose_topic" env:"KAFKA_FIREHOSE_TOPIC" env-default:"cdp-normalized-events"`
	IngestTopic   string   `yaml:"ingest_topic" env:"KAFKA_INGEST_TOPIC" env-default:"cdp-ingest"`
	GroupID       string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"cdp-bridge"`
}

// Pipeline tunes the stream workers. ClaimMinIdle is how long an entry must
// sit unacknowledged before another consumer may claim it.
type Pipeline struct {
	BatchSize     int64         `yaml:"batch_size" env:"PIPELINE_BATCH_SIZE" env-default:"10"`
	Block         time.Duration `yaml:"block" env:"PIPELINE_BLOCK" env-default:"5s"`
	PendingBatch  int64         `yaml:"pending_batch" env:"PIPELINE_PENDING_BATCH" env-default:"100"`
	ClaimMinIdle  time.Duration `yaml:"claim_min_idle" env:"PIPELINE_CLAIM_MIN_IDLE" env-default:"60s"`
	Backoff       time.Duration `yaml:"backoff" env:"PIPELINE_BACKOFF" env-default:"5s"`
	MaxDeliveries int64         `yaml:"max_deliveries" env:"PIPELINE_MAX_DELIVERIES" env-default:"10"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	return cfg, nil
}
