package app

import (
	"github.com/andreyxaxa/Webhook-Pipeline/config"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/controller/worker/queue"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/repo"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/repo/persistent"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/usecase/command"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/usecase/dispatcher"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/usecase/intake"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/backoff"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
)

// Core is the storage-backed part of the pipeline shared by the service and the CLI.
type Core struct {
	Intake     *intake.UseCase
	Dispatcher *dispatcher.Dispatcher
	Commands   *command.UseCase
	Worker     *queue.Worker
}

// NewCore wires repositories and use cases. archive may be nil, which disables archival.
func NewCore(cfg *config.Config, pg *postgres.Postgres, archive repo.PayloadArchiveRepo, l logger.Interface) *Core {
	intakeRepo := persistent.NewIntakeRepo(pg)
	actionLogRepo := persistent.NewActionLogRepo(pg)
	commandRepo := persistent.NewCommandRepo(pg)
	metricRepo := persistent.NewMetricRepo(pg)

	intakeUseCase := intake.New(
		intakeRepo,
		actionLogRepo,
		commandRepo,
		metricRepo,
		archive,
		l,
		intake.MaxRetries(cfg.Worker.MaxRetries),
		intake.Backoff(backoff.New(cfg.Worker.BackoffBase, cfg.Worker.BackoffMax, cfg.Worker.BackoffJitter)),
	)

	d := dispatcher.New(
		dispatcher.Stores{
			Transactions: persistent.NewTransactionRepo(pg),
			Enrollments:  persistent.NewEnrollmentRepo(pg),
			Commissions:  persistent.NewCommissionRepo(pg),
			Ledger:       persistent.NewLedgerRepo(pg),
			Metrics:      metricRepo,
			Identities:   persistent.NewIdentityRepo(pg),
			Leads:        persistent.NewLeadRepo(pg),
			AuditFlags:   persistent.NewAuditFlagRepo(pg),
			Commands:     commandRepo,
		},
		actionLogRepo,
		l,
		dispatcher.Transactor(pg),
	)

	settings := queue.Settings{
		PollInterval:       cfg.Worker.PollInterval,
		BatchSize:          cfg.Worker.BatchSize,
		Concurrency:        cfg.Worker.Concurrency,
		DispatchTimeout:    cfg.Worker.DispatchTimeout,
		StaleClaimTimeout:  cfg.Worker.StaleClaimTimeout,
		StaleSweepInterval: cfg.Worker.StaleSweepInterval,
	}
	if archive != nil {
		settings.ArchiveInterval = cfg.Archive.Interval
		settings.ArchiveRetention = cfg.Archive.Retention
	}

	return &Core{
		Intake:     intakeUseCase,
		Dispatcher: d,
		Commands:   command.New(commandRepo),
		Worker:     queue.New(intakeUseCase, d, l, settings),
	}
}
