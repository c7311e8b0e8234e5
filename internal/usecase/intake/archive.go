package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
)

// archivedEvent is the object written to the payload archive.
type archivedEvent struct {
	ID          string          `json:"id"`
	Source      entity.Source   `json:"source"`
	EventType   string          `json:"event_type"`
	DeliveryID  *string         `json:"delivery_id,omitempty"`
	Status      entity.Status   `json:"status"`
	RetryCount  int             `json:"retry_count"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

func archiveKey(e *entity.IntakeEvent) string {
	return fmt.Sprintf("intake/%s/%s/%s.json", e.Source, e.CreatedAt.UTC().Format("2006/01/02"), e.ID)
}

// Archive copies the payload of finished events older than retention to object storage.
// Rows are kept, only archived_at is set.
func (uc *UseCase) Archive(ctx context.Context, retention time.Duration, limit int) (int, error) {
	if uc.archiveRepo == nil {
		return 0, nil
	}

	events, err := uc.intakeRepo.ListArchivable(ctx, uc.now().Add(-retention), limit)
	if err != nil {
		return 0, fmt.Errorf("IntakeUseCase - Archive - uc.intakeRepo.ListArchivable: %w", err)
	}

	var (
		archived int
		failures []error
	)
	for _, e := range events {
		if err = uc.archiveOne(ctx, e); err != nil {
			uc.logger.Error(err, "IntakeUseCase - Archive - uc.archiveOne")
			failures = append(failures, err)

			continue
		}
		archived++
	}

	return archived, errors.Join(failures...)
}

func (uc *UseCase) archiveOne(ctx context.Context, e *entity.IntakeEvent) error {
	body, err := json.Marshal(archivedEvent{
		ID:          e.ID.String(),
		Source:      e.Source,
		EventType:   e.EventType,
		DeliveryID:  e.DeliveryID,
		Status:      e.Status,
		RetryCount:  e.RetryCount,
		CreatedAt:   e.CreatedAt,
		ProcessedAt: e.ProcessedAt,
		Payload:     e.Payload,
	})
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	if err = uc.archiveRepo.Put(ctx, archiveKey(e), body); err != nil {
		return fmt.Errorf("event %s - uc.archiveRepo.Put: %w", e.ID, err)
	}

	if err = uc.intakeRepo.MarkArchived(ctx, e.ID, uc.now()); err != nil {
		return fmt.Errorf("event %s - uc.intakeRepo.MarkArchived: %w", e.ID, err)
	}

	return nil
}
