package usecase

import (
	"context"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/google/uuid"
)

type (
	IntakeUseCase interface {
		// Enqueue stores a received event as pending. deliveryID may be empty.
		Enqueue(ctx context.Context, source entity.Source, eventType string, payload []byte, deliveryID string) (uuid.UUID, error)
		Get(ctx context.Context, id uuid.UUID) (*entity.IntakeEvent, error)
		List(ctx context.Context, filter entity.IntakeFilter) ([]*entity.IntakeEvent, error)
		Actions(ctx context.Context, id uuid.UUID) ([]*entity.ActionLogEntry, error)
		Commands(ctx context.Context, id uuid.UUID) ([]*entity.Command, error)
		Stats(ctx context.Context) (map[entity.Status]int64, error)
		DailyMetrics(ctx context.Context, date time.Time) ([]entity.DailyMetric, error)
		Replay(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	}

	QueueUseCase interface {
		ClaimDue(ctx context.Context, limit int) ([]*entity.IntakeEvent, error)
		ClaimByID(ctx context.Context, id uuid.UUID) (*entity.IntakeEvent, error)
		Finalize(ctx context.Context, event *entity.IntakeEvent, outcome entity.Outcome) (*entity.IntakeEvent, error)
		Release(ctx context.Context, event *entity.IntakeEvent) error
		ReleaseStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
		Archive(ctx context.Context, retention time.Duration, limit int) (int, error)
	}

	DispatcherUseCase interface {
		Dispatch(ctx context.Context, event *entity.IntakeEvent) entity.Outcome
	}

	CommandRelayUseCase interface {
		Unpublished(ctx context.Context, limit int) ([]*entity.Command, error)
		MarkPublished(ctx context.Context, cmds []*entity.Command) error
	}
)
