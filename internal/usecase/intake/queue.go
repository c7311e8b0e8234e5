package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

func (uc *UseCase) ClaimDue(ctx context.Context, limit int) ([]*entity.IntakeEvent, error) {
	events, err := uc.intakeRepo.ClaimDue(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("IntakeUseCase - ClaimDue - uc.intakeRepo.ClaimDue: %w", err)
	}

	return events, nil
}

func (uc *UseCase) ClaimByID(ctx context.Context, id uuid.UUID) (*entity.IntakeEvent, error) {
	event, err := uc.intakeRepo.ClaimByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("IntakeUseCase - ClaimByID - uc.intakeRepo.ClaimByID: %w", err)
	}

	return event, nil
}

// Finalize moves a claimed event out of processing according to outcome.
func (uc *UseCase) Finalize(ctx context.Context, event *entity.IntakeEvent, outcome entity.Outcome) (*entity.IntakeEvent, error) {
	next := uc.transition(*event, outcome)

	err := uc.intakeRepo.Finalize(ctx, &next)
	if err != nil {
		return nil, fmt.Errorf("IntakeUseCase - Finalize - uc.intakeRepo.Finalize: %w", err)
	}

	return &next, nil
}

// Release hands a claimed event that never reached the dispatcher back to the queue.
// No attempt was made, so retry_count stays as it is.
func (uc *UseCase) Release(ctx context.Context, event *entity.IntakeEvent) error {
	next := *event
	next.Status = entity.Pending
	next.NextAttemptAt = uc.now()

	err := uc.intakeRepo.Finalize(ctx, &next)
	if err != nil {
		return fmt.Errorf("IntakeUseCase - Release - uc.intakeRepo.Finalize: %w", err)
	}

	return nil
}

// transition is the retry state machine. A retryable failure on attempt n (= retryCount+1)
// goes back to pending while n < maxRetries, so an event gets exactly maxRetries attempts.
func (uc *UseCase) transition(event entity.IntakeEvent, outcome entity.Outcome) entity.IntakeEvent {
	now := uc.now()

	switch outcome.Kind {
	case entity.OutcomeSuccess:
		event.Status = entity.Completed
		event.ProcessedAt = &now
		event.LastError = nil
	case entity.OutcomeRetryable:
		attempts := event.RetryCount + 1
		event.RetryCount = attempts
		if attempts < uc.maxRetries {
			event.Status = entity.Pending
			event.NextAttemptAt = uc.backoff.Next(now, attempts)
			event.LastError = &outcome.Reason
			break
		}
		reason := fmt.Sprintf("retries exhausted after %d attempts: %s", attempts, outcome.Reason)
		event.Status = entity.Failed
		event.ProcessedAt = &now
		event.LastError = &reason
	default:
		event.Status = entity.Failed
		event.ProcessedAt = &now
		event.LastError = &outcome.Reason
	}

	return event
}

// ReleaseStale sends events whose claim is older than olderThan down the retry path.
func (uc *UseCase) ReleaseStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	stale, err := uc.intakeRepo.ListStale(ctx, uc.now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("IntakeUseCase - ReleaseStale - uc.intakeRepo.ListStale: %w", err)
	}

	released := 0
	for _, event := range stale {
		reason := fmt.Sprintf("stale claim: no outcome within %s", olderThan)

		next, err := uc.Finalize(ctx, event, entity.RetryableFailure(reason))
		if err != nil {
			// finished by its worker between the listing and the update
			if errors.Is(err, errs.ErrClaimLost) {
				continue
			}
			return released, fmt.Errorf("IntakeUseCase - ReleaseStale - uc.Finalize: %w", err)
		}

		uc.logger.Warn("IntakeUseCase - ReleaseStale - event %s released as %s, retry_count=%d",
			next.ID, next.Status, next.RetryCount)
		released++
	}

	return released, nil
}
