package intake

import (
	"context"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

type mockIntakeRepo struct {
	createFunc         func(ctx context.Context, event *entity.IntakeEvent) (uuid.UUID, bool, error)
	getByIDFunc        func(ctx context.Context, id uuid.UUID) (*entity.IntakeEvent, error)
	finalizeFunc       func(ctx context.Context, event *entity.IntakeEvent) error
	listStaleFunc      func(ctx context.Context, claimedBefore time.Time, limit int) ([]*entity.IntakeEvent, error)
	listArchivableFunc func(ctx context.Context, before time.Time, limit int) ([]*entity.IntakeEvent, error)
	markArchivedFunc   func(ctx context.Context, id uuid.UUID, at time.Time) error
}

func (m *mockIntakeRepo) Create(ctx context.Context, event *entity.IntakeEvent) (uuid.UUID, bool, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, event)
	}
	return event.ID, true, nil
}

func (m *mockIntakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.IntakeEvent, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, errs.ErrRecordNotFound
}

func (m *mockIntakeRepo) List(context.Context, entity.IntakeFilter) ([]*entity.IntakeEvent, error) {
	return nil, nil
}

func (m *mockIntakeRepo) CountByStatus(context.Context) (map[entity.Status]int64, error) {
	return map[entity.Status]int64{}, nil
}

func (m *mockIntakeRepo) ClaimDue(context.Context, int) ([]*entity.IntakeEvent, error) {
	return nil, nil
}

func (m *mockIntakeRepo) ClaimByID(context.Context, uuid.UUID) (*entity.IntakeEvent, error) {
	return nil, errs.ErrAlreadyClaimed
}

func (m *mockIntakeRepo) Finalize(ctx context.Context, event *entity.IntakeEvent) error {
	if m.finalizeFunc != nil {
		return m.finalizeFunc(ctx, event)
	}
	return nil
}

func (m *mockIntakeRepo) ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]*entity.IntakeEvent, error) {
	if m.listStaleFunc != nil {
		return m.listStaleFunc(ctx, claimedBefore, limit)
	}
	return nil, nil
}

func (m *mockIntakeRepo) ListArchivable(ctx context.Context, before time.Time, limit int) ([]*entity.IntakeEvent, error) {
	if m.listArchivableFunc != nil {
		return m.listArchivableFunc(ctx, before, limit)
	}
	return nil, nil
}

func (m *mockIntakeRepo) MarkArchived(ctx context.Context, id uuid.UUID, at time.Time) error {
	if m.markArchivedFunc != nil {
		return m.markArchivedFunc(ctx, id, at)
	}
	return nil
}

type mockActionLogRepo struct{}

func (mockActionLogRepo) Create(context.Context, *entity.ActionLogEntry) error { return nil }
func (mockActionLogRepo) Update(context.Context, *entity.ActionLogEntry) error { return nil }
func (mockActionLogRepo) ListByIntakeEvent(context.Context, uuid.UUID) ([]*entity.ActionLogEntry, error) {
	return []*entity.ActionLogEntry{}, nil
}

type mockCommandRepo struct{}

func (mockCommandRepo) Enqueue(context.Context, *entity.Command) (bool, error) { return true, nil }
func (mockCommandRepo) ListByOrigin(context.Context, uuid.UUID) ([]*entity.Command, error) {
	return nil, nil
}
func (mockCommandRepo) ListUnpublished(context.Context, int) ([]*entity.Command, error) {
	return nil, nil
}
func (mockCommandRepo) MarkPublished(context.Context, uuid.UUIDs, time.Time) error { return nil }

type mockMetricRepo struct{}

func (mockMetricRepo) Add(context.Context, entity.MetricContribution) (bool, error) { return true, nil }
func (mockMetricRepo) ListDaily(context.Context, time.Time) ([]entity.DailyMetric, error) {
	return nil, nil
}

type mockArchiveRepo struct {
	putFunc func(ctx context.Context, key string, data []byte) error
}

func (m *mockArchiveRepo) Put(ctx context.Context, key string, data []byte) error {
	if m.putFunc != nil {
		return m.putFunc(ctx, key, data)
	}
	return nil
}
