package repo

import (
	"context"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/google/uuid"
)

type (
	Transactor interface {
		WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error
	}

	IntakeRepo interface {
		// Create stores a pending event. When the (source, delivery id) pair already exists
		// it returns the id of the stored event and created=false.
		Create(ctx context.Context, event *entity.IntakeEvent) (id uuid.UUID, created bool, err error)
		GetByID(ctx context.Context, id uuid.UUID) (*entity.IntakeEvent, error)
		List(ctx context.Context, filter entity.IntakeFilter) ([]*entity.IntakeEvent, error)
		CountByStatus(ctx context.Context) (map[entity.Status]int64, error)
		ClaimDue(ctx context.Context, limit int) ([]*entity.IntakeEvent, error)
		ClaimByID(ctx context.Context, id uuid.UUID) (*entity.IntakeEvent, error)
		Finalize(ctx context.Context, event *entity.IntakeEvent) error
		ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]*entity.IntakeEvent, error)
		ListArchivable(ctx context.Context, finishedBefore time.Time, limit int) ([]*entity.IntakeEvent, error)
		MarkArchived(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	ActionLogRepo interface {
		Create(ctx context.Context, entry *entity.ActionLogEntry) error
		Update(ctx context.Context, entry *entity.ActionLogEntry) error
		ListByIntakeEvent(ctx context.Context, intakeEventID uuid.UUID) ([]*entity.ActionLogEntry, error)
	}

	CommandRepo interface {
		// Enqueue inserts cmd unless a command with the same (origin event, action) exists.
		Enqueue(ctx context.Context, cmd *entity.Command) (bool, error)
		ListByOrigin(ctx context.Context, originEventID uuid.UUID) ([]*entity.Command, error)
		ListUnpublished(ctx context.Context, limit int) ([]*entity.Command, error)
		MarkPublished(ctx context.Context, ids uuid.UUIDs, at time.Time) error
	}

	TransactionRepo interface {
		UpsertApproved(ctx context.Context, tx *entity.Transaction) error
		UpdateStatus(ctx context.Context, transactionID string, status entity.TransactionStatus, at time.Time) (*entity.Transaction, error)
		GetByID(ctx context.Context, transactionID string) (*entity.Transaction, error)
		HasApprovedForEmail(ctx context.Context, email string) (bool, error)
	}

	EnrollmentRepo interface {
		Upsert(ctx context.Context, e *entity.Enrollment) error
		UpdateStatus(ctx context.Context, u entity.EnrollmentStatusUpdate) error
	}

	CommissionRepo interface {
		Insert(ctx context.Context, c *entity.Commission) (bool, error)
	}

	LedgerRepo interface {
		Insert(ctx context.Context, e *entity.LedgerEntry) (bool, error)
	}

	MetricRepo interface {
		// Add applies c to its daily aggregate at most once per contribution key.
		Add(ctx context.Context, c entity.MetricContribution) (bool, error)
		ListDaily(ctx context.Context, date time.Time) ([]entity.DailyMetric, error)
	}

	IdentityRepo interface {
		Upsert(ctx context.Context, i *entity.IdentitySync) error
		SetPaymentConfirmed(ctx context.Context, externalUserID string, confirmed bool) error
		Deactivate(ctx context.Context, externalUserID string) error
	}

	LeadRepo interface {
		Upsert(ctx context.Context, lead *entity.Lead) error
	}

	AuditFlagRepo interface {
		Create(ctx context.Context, flag *entity.AuditFlag) (bool, error)
	}

	PayloadArchiveRepo interface {
		Put(ctx context.Context, key string, data []byte) error
	}
)
