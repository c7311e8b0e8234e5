package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/config"
	kafkactrl "github.com/andreyxaxa/Webhook-Pipeline/internal/controller/kafka"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/controller/restapi"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/controller/worker/outbox"
	infrakafka "github.com/andreyxaxa/Webhook-Pipeline/internal/infrastructure/kafka"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/repo"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/repo/persistent"
	"github.com/andreyxaxa/Webhook-Pipeline/migrations"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/httpserver"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/kafka/consumer"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/kafka/producer"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/s3client"
)

type component interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type namedComponent struct {
	name            string
	c               component
	shutdownTimeout time.Duration
}

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Repository

	// postgres
	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	if cfg.PG.AutoMigrate {
		applied, err := postgres.Migrate(ctx, cfg.PG.URL, migrations.FS)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - postgres.Migrate: %w", err))
		}
		l.Info("app - Run - %d migrations applied", applied)
	}

	// s3, only for the payload archive
	var archive repo.PayloadArchiveRepo
	if cfg.Archive.Enabled {
		archive = newArchive(ctx, cfg, l)
	}

	// Use-Case
	core := NewCore(cfg, pg, archive, l)

	// Queue Worker
	startables := []namedComponent{{"queueWorker", core.Worker, cfg.Worker.ShutdownTimeout}}

	// Kafka: intake bridge and command relay
	if cfg.Kafka.Enabled {
		kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
		}

		commandRelay := outbox.New(
			core.Commands,
			infrakafka.NewCommandProducer(kafkaProducer, cfg.Kafka.CommandTopic),
			l,
			cfg.CommandRelay.PollInterval,
			cfg.CommandRelay.ProcessBatchTimeout,
			cfg.CommandRelay.BatchSize,
		)

		kafkaConsumer, err := consumer.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.IntakeTopic)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - consumer.New: %w", err))
		}

		intakeBridge := kafkactrl.New(
			core.Intake,
			infrakafka.NewIntakeConsumer(kafkaConsumer),
			l,
			cfg.IntakeBridge.CommitTimeout,
			cfg.IntakeBridge.ProcessTimeout,
			cfg.IntakeBridge.Workers,
		)

		startables = append(startables,
			namedComponent{"commandRelay", commandRelay, cfg.CommandRelay.ShutdownTimeout},
			namedComponent{"intakeBridge", intakeBridge, cfg.IntakeBridge.ShutdownTimeout},
		)
	}

	// HTTP Server
	httpServer := httpserver.New(l,
		httpserver.Port(cfg.HTTP.Port),
		httpserver.Prefork(cfg.HTTP.UsePreforkMode),
		httpserver.BodyLimit(cfg.HTTP.BodyLimit),
	)
	restapi.NewRouter(httpServer.App, cfg, core.Intake, pg.Pool, l)

	// Start Components
	for _, nc := range startables {
		err = nc.c.Start(ctx)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - %s.Start: %w", nc.name, err))
		}
	}
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown, intake first so nothing new arrives while the workers drain
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	for i := len(startables) - 1; i >= 0; i-- {
		nc := startables[i]

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, nc.shutdownTimeout)
		err = nc.c.Shutdown(shutdownCtx)
		shutdownCancel()
		if err != nil {
			l.Error(fmt.Errorf("app - Run - %s.Shutdown: %w", nc.name, err))
		}
	}
}

func newArchive(ctx context.Context, cfg *config.Config, l logger.Interface) repo.PayloadArchiveRepo {
	s3Ctx, s3Cancel := context.WithTimeout(ctx, cfg.S3.CfgLoadTimeout)
	defer s3Cancel()

	s3c, err := s3client.New(s3Ctx,
		s3client.Endpoint(cfg.S3.Endpoint),
		s3client.Credentials(cfg.S3.AccessKey, cfg.S3.SecretKey),
		s3client.Region(cfg.S3.Region),
		s3client.UsePathStyle(cfg.S3.UsePathStyle),
	)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - s3client.New: %w", err))
	}

	err = s3c.EnsureBucket(s3Ctx, cfg.S3.Bucket)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - s3c.EnsureBucket: %w", err))
	}

	return persistent.NewPayloadArchiveRepo(s3c, cfg.S3.Bucket)
}
