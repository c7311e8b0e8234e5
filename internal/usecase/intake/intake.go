package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/repo"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/backoff"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

const _defaultMaxRetries = 5

type UseCase struct {
	intakeRepo    repo.IntakeRepo
	actionLogRepo repo.ActionLogRepo
	commandRepo   repo.CommandRepo
	metricRepo    repo.MetricRepo
	archiveRepo   repo.PayloadArchiveRepo

	logger logger.Interface

	maxRetries int
	backoff    backoff.Policy
	now        func() time.Time
}

func New(
	intakeRepo repo.IntakeRepo,
	actionLogRepo repo.ActionLogRepo,
	commandRepo repo.CommandRepo,
	metricRepo repo.MetricRepo,
	archiveRepo repo.PayloadArchiveRepo,
	l logger.Interface,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		intakeRepo:    intakeRepo,
		actionLogRepo: actionLogRepo,
		commandRepo:   commandRepo,
		metricRepo:    metricRepo,
		archiveRepo:   archiveRepo,
		logger:        l,
		maxRetries:    _defaultMaxRetries,
		backoff:       backoff.New(0, 0, false),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

func (uc *UseCase) Enqueue(
	ctx context.Context,
	source entity.Source,
	eventType string,
	payload []byte,
	deliveryID string,
) (uuid.UUID, error) {
	if !source.Valid() {
		return uuid.Nil, fmt.Errorf("IntakeUseCase - Enqueue - source %q: %w", source, errs.ErrUnknownSource)
	}

	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return uuid.Nil, fmt.Errorf("IntakeUseCase - Enqueue - empty event type: %w", errs.ErrValidation)
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return uuid.Nil, fmt.Errorf("IntakeUseCase - Enqueue - payload must be a JSON object: %w", errs.ErrValidation)
	}

	now := uc.now()
	event := &entity.IntakeEvent{
		ID:            uuid.New(),
		Source:        source,
		EventType:     eventType,
		Payload:       json.RawMessage(trimmed),
		Status:        entity.Pending,
		RetryCount:    0,
		NextAttemptAt: now,
		CreatedAt:     now,
		ReceivedAt:    now,
	}
	if deliveryID = strings.TrimSpace(deliveryID); deliveryID != "" {
		event.DeliveryID = &deliveryID
	}

	id, created, err := uc.intakeRepo.Create(ctx, event)
	if err != nil {
		return uuid.Nil, fmt.Errorf("IntakeUseCase - Enqueue - uc.intakeRepo.Create: %w", err)
	}

	if !created {
		uc.logger.Info("IntakeUseCase - Enqueue - duplicate delivery %s from %s collapsed into %s", deliveryID, source, id)
	}

	return id, nil
}

func (uc *UseCase) Get(ctx context.Context, id uuid.UUID) (*entity.IntakeEvent, error) {
	event, err := uc.intakeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("IntakeUseCase - Get - uc.intakeRepo.GetByID: %w", err)
	}

	return event, nil
}

func (uc *UseCase) List(ctx context.Context, filter entity.IntakeFilter) ([]*entity.IntakeEvent, error) {
	events, err := uc.intakeRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("IntakeUseCase - List - uc.intakeRepo.List: %w", err)
	}

	return events, nil
}

func (uc *UseCase) Actions(ctx context.Context, id uuid.UUID) ([]*entity.ActionLogEntry, error) {
	// 404 for an unknown event rather than an empty list
	if _, err := uc.intakeRepo.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("IntakeUseCase - Actions - uc.intakeRepo.GetByID: %w", err)
	}

	entries, err := uc.actionLogRepo.ListByIntakeEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("IntakeUseCase - Actions - uc.actionLogRepo.ListByIntakeEvent: %w", err)
	}

	return entries, nil
}

// Commands lists the commands of the event lineage, a replay shares them with its original.
func (uc *UseCase) Commands(ctx context.Context, id uuid.UUID) ([]*entity.Command, error) {
	event, err := uc.intakeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("IntakeUseCase - Commands - uc.intakeRepo.GetByID: %w", err)
	}

	cmds, err := uc.commandRepo.ListByOrigin(ctx, event.OriginID())
	if err != nil {
		return nil, fmt.Errorf("IntakeUseCase - Commands - uc.commandRepo.ListByOrigin: %w", err)
	}

	return cmds, nil
}

func (uc *UseCase) Stats(ctx context.Context) (map[entity.Status]int64, error) {
	counts, err := uc.intakeRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("IntakeUseCase - Stats - uc.intakeRepo.CountByStatus: %w", err)
	}

	return counts, nil
}

func (uc *UseCase) DailyMetrics(ctx context.Context, date time.Time) ([]entity.DailyMetric, error) {
	metrics, err := uc.metricRepo.ListDaily(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("IntakeUseCase - DailyMetrics - uc.metricRepo.ListDaily: %w", err)
	}

	return metrics, nil
}

// Replay enqueues the payload of a failed event as a brand new event.
// The failed row itself stays terminal. The new event keeps the lineage of the failed one,
// so commands it already enqueued are not sent again and payload timestamps default to
// the original receipt.
func (uc *UseCase) Replay(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	event, err := uc.intakeRepo.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("IntakeUseCase - Replay - uc.intakeRepo.GetByID: %w", err)
	}

	if event.Status != entity.Failed {
		return uuid.Nil, fmt.Errorf("IntakeUseCase - Replay - event %s is %s, only failed events can be replayed: %w",
			id, event.Status, errs.ErrValidation)
	}

	origin := event.OriginID()
	now := uc.now()
	replay := &entity.IntakeEvent{
		ID:            uuid.New(),
		Source:        event.Source,
		EventType:     event.EventType,
		Payload:       event.Payload,
		Status:        entity.Pending,
		NextAttemptAt: now,
		CreatedAt:     now,
		ReplayedFrom:  &origin,
		ReceivedAt:    event.Received(),
	}

	newID, _, err := uc.intakeRepo.Create(ctx, replay)
	if err != nil {
		return uuid.Nil, fmt.Errorf("IntakeUseCase - Replay - uc.intakeRepo.Create: %w", err)
	}

	uc.logger.Info("IntakeUseCase - Replay - event %s replayed as %s", id, newID)

	return newID, nil
}
