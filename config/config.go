package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		HTTP         HTTP
		Log          Log
		PG           PG
		Worker       Worker
		Archive      Archive
		S3           S3
		Kafka        Kafka
		IntakeBridge IntakeBridge
		CommandRelay CommandRelay
		Swagger      Swagger
	}

	HTTP struct {
		Port           string `env:"HTTP_PORT" envDefault:"8080"`
		UsePreforkMode bool   `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
		BodyLimit      int    `env:"HTTP_BODY_LIMIT" envDefault:"1048576"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL" envDefault:"info"`
	}

	PG struct {
		PoolMax     int    `env:"PG_POOL_MAX" envDefault:"10"`
		URL         string `env:"PG_URL,required,notEmpty"`
		AutoMigrate bool   `env:"PG_AUTO_MIGRATE" envDefault:"true"`
	}

	Worker struct {
		PollInterval       time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"1s"`
		BatchSize          int           `env:"WORKER_BATCH_SIZE" envDefault:"20"`
		Concurrency        int           `env:"WORKER_CONCURRENCY" envDefault:"4"`
		MaxRetries         int           `env:"WORKER_MAX_RETRIES" envDefault:"5"`
		BackoffBase        time.Duration `env:"WORKER_BACKOFF_BASE" envDefault:"2s"`
		BackoffMax         time.Duration `env:"WORKER_BACKOFF_MAX" envDefault:"5m"`
		BackoffJitter      bool          `env:"WORKER_BACKOFF_JITTER" envDefault:"true"`
		DispatchTimeout    time.Duration `env:"WORKER_DISPATCH_TIMEOUT" envDefault:"30s"`
		StaleClaimTimeout  time.Duration `env:"WORKER_STALE_CLAIM_TIMEOUT" envDefault:"5m"`
		StaleSweepInterval time.Duration `env:"WORKER_STALE_SWEEP_INTERVAL" envDefault:"1m"`
		ShutdownTimeout    time.Duration `env:"WORKER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	}

	Archive struct {
		Enabled   bool          `env:"ARCHIVE_ENABLED" envDefault:"false"`
		Interval  time.Duration `env:"ARCHIVE_INTERVAL" envDefault:"1h"`
		Retention time.Duration `env:"ARCHIVE_RETENTION" envDefault:"720h"`
	}

	S3 struct {
		Endpoint       string        `env:"S3_ENDPOINT"`
		Region         string        `env:"S3_REGION" envDefault:"us-east-1"`
		AccessKey      string        `env:"S3_ACCESS_KEY"`
		SecretKey      string        `env:"S3_SECRET_KEY"`
		Bucket         string        `env:"S3_BUCKET" envDefault:"webhook-archive"`
		UsePathStyle   bool          `env:"S3_USE_PATH_STYLE" envDefault:"true"`
		CfgLoadTimeout time.Duration `env:"S3_LOAD_CFG_TIMEOUT" envDefault:"10s"`
	}

	Kafka struct {
		Enabled      bool     `env:"KAFKA_ENABLED" envDefault:"false"`
		Brokers      []string `env:"KAFKA_BROKERS"`
		GroupID      string   `env:"KAFKA_GROUP_ID" envDefault:"webhook-pipeline"`
		IntakeTopic  string   `env:"KAFKA_INTAKE_TOPIC" envDefault:"webhooks.intake"`
		CommandTopic string   `env:"KAFKA_COMMAND_TOPIC" envDefault:"pipeline.commands"`
	}

	IntakeBridge struct {
		Workers         int           `env:"INTAKE_BRIDGE_WORKERS" envDefault:"4"`
		CommitTimeout   time.Duration `env:"INTAKE_BRIDGE_COMMIT_TIMEOUT" envDefault:"2s"`
		ProcessTimeout  time.Duration `env:"INTAKE_BRIDGE_PROCESS_TIMEOUT" envDefault:"10s"`
		ShutdownTimeout time.Duration `env:"INTAKE_BRIDGE_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	}

	CommandRelay struct {
		PollInterval        time.Duration `env:"COMMAND_RELAY_POLL_INTERVAL" envDefault:"2s"`
		ProcessBatchTimeout time.Duration `env:"COMMAND_RELAY_PROCESS_BATCH_TIMEOUT" envDefault:"15s"`
		ShutdownTimeout     time.Duration `env:"COMMAND_RELAY_SHUTDOWN_TIMEOUT" envDefault:"5s"`
		BatchSize           int           `env:"COMMAND_RELAY_BATCH_SIZE" envDefault:"100"`
	}

	Swagger struct {
		Enabled bool `env:"SWAGGER_ENABLED" envDefault:"false"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var problems []error

	w := c.Worker
	if w.BatchSize < 1 || w.Concurrency < 1 || w.MaxRetries < 1 {
		problems = append(problems, errors.New("WORKER_BATCH_SIZE, WORKER_CONCURRENCY and WORKER_MAX_RETRIES must be positive"))
	}
	if w.PollInterval <= 0 || w.StaleSweepInterval <= 0 {
		problems = append(problems, errors.New("worker intervals must be positive"))
	}
	if w.BackoffMax < w.BackoffBase {
		problems = append(problems, errors.New("WORKER_BACKOFF_MAX must not be below WORKER_BACKOFF_BASE"))
	}
	// a claim must outlive the attempt it belongs to, or the sweep races live workers
	if w.DispatchTimeout >= w.StaleClaimTimeout {
		problems = append(problems, errors.New("WORKER_DISPATCH_TIMEOUT must be below WORKER_STALE_CLAIM_TIMEOUT"))
	}

	if c.Archive.Enabled && c.S3.Bucket == "" {
		problems = append(problems, errors.New("S3_BUCKET is required when ARCHIVE_ENABLED"))
	}
	if c.Archive.Enabled && c.Archive.Interval <= 0 {
		problems = append(problems, errors.New("ARCHIVE_INTERVAL must be positive"))
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		problems = append(problems, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED"))
	}

	return errors.Join(problems...)
}
