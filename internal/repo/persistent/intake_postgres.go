package persistent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	intakeTable = "intake_events"

	// Columns
	intakeIDColumn            = "id"
	intakeSourceColumn        = "source"
	intakeEventTypeColumn     = "event_type"
	intakeDeliveryIDColumn    = "delivery_id"
	intakePayloadColumn       = "payload"
	intakeStatusColumn        = "status"
	intakeRetryCountColumn    = "retry_count"
	intakeNextAttemptAtColumn = "next_attempt_at"
	intakeClaimedAtColumn     = "claimed_at"
	intakeLastErrorColumn     = "last_error"
	intakeCreatedAtColumn     = "created_at"
	intakeProcessedAtColumn   = "processed_at"
	intakeArchivedAtColumn    = "archived_at"
	intakeReplayedFromColumn  = "replayed_from"
	intakeReceivedAtColumn    = "received_at"

	_defaultListLimit = 50
	_maxListLimit     = 500
)

var intakeColumns = []string{
	intakeIDColumn,
	intakeSourceColumn,
	intakeEventTypeColumn,
	intakeDeliveryIDColumn,
	intakePayloadColumn,
	intakeStatusColumn,
	intakeRetryCountColumn,
	intakeNextAttemptAtColumn,
	intakeClaimedAtColumn,
	intakeLastErrorColumn,
	intakeCreatedAtColumn,
	intakeProcessedAtColumn,
	intakeArchivedAtColumn,
	intakeReplayedFromColumn,
	intakeReceivedAtColumn,
}

type rowScanner interface {
	Scan(dest ...any) error
}

type IntakeRepo struct {
	*postgres.Postgres
}

func NewIntakeRepo(pg *postgres.Postgres) *IntakeRepo {
	return &IntakeRepo{pg}
}

func scanIntakeEvent(row rowScanner) (*entity.IntakeEvent, error) {
	var e entity.IntakeEvent
	err := row.Scan(
		&e.ID,
		&e.Source,
		&e.EventType,
		&e.DeliveryID,
		&e.Payload,
		&e.Status,
		&e.RetryCount,
		&e.NextAttemptAt,
		&e.ClaimedAt,
		&e.LastError,
		&e.CreatedAt,
		&e.ProcessedAt,
		&e.ArchivedAt,
		&e.ReplayedFrom,
		&e.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}

	return &e, nil
}

func (r *IntakeRepo) collect(rows pgx.Rows, capacity int) ([]*entity.IntakeEvent, error) {
	defer rows.Close()

	events := make([]*entity.IntakeEvent, 0, capacity)
	for rows.Next() {
		e, err := scanIntakeEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return events, nil
}

func (r *IntakeRepo) Create(ctx context.Context, event *entity.IntakeEvent) (uuid.UUID, bool, error) {
	sql, args, err := r.Builder.
		Insert(intakeTable).
		Columns(
			intakeIDColumn,
			intakeSourceColumn,
			intakeEventTypeColumn,
			intakeDeliveryIDColumn,
			intakePayloadColumn,
			intakeStatusColumn,
			intakeRetryCountColumn,
			intakeNextAttemptAtColumn,
			intakeCreatedAtColumn,
			intakeReplayedFromColumn,
			intakeReceivedAtColumn,
		).
		Values(
			event.ID,
			event.Source,
			event.EventType,
			event.DeliveryID,
			event.Payload,
			event.Status,
			event.RetryCount,
			event.NextAttemptAt,
			event.CreatedAt,
			event.ReplayedFrom,
			event.Received(),
		).
		Suffix("ON CONFLICT (source, delivery_id) WHERE delivery_id IS NOT NULL DO NOTHING RETURNING " + intakeIDColumn).
		ToSql()
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("IntakeRepo - Create - r.Builder.ToSql: %w", err)
	}

	executor := r.GetExecutor(ctx)

	var id uuid.UUID
	err = executor.QueryRow(ctx, sql, args...).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || event.DeliveryID == nil {
		return uuid.Nil, false, fmt.Errorf("IntakeRepo - Create - executor.QueryRow: %w", err)
	}

	// duplicate delivery
	sql, args, err = r.Builder.
		Select(intakeIDColumn).
		From(intakeTable).
		Where(squirrel.Eq{
			intakeSourceColumn:     event.Source,
			intakeDeliveryIDColumn: *event.DeliveryID,
		}).
		ToSql()
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("IntakeRepo - Create - r.Builder.ToSql: %w", err)
	}

	err = executor.QueryRow(ctx, sql, args...).Scan(&id)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("IntakeRepo - Create - executor.QueryRow(existing): %w", err)
	}

	return id, false, nil
}

func (r *IntakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.IntakeEvent, error) {
	sql, args, err := r.Builder.
		Select(intakeColumns...).
		From(intakeTable).
		Where(squirrel.Eq{intakeIDColumn: id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	e, err := scanIntakeEvent(r.GetExecutor(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("IntakeRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("IntakeRepo - GetByID - executor.QueryRow: %w", err)
	}

	return e, nil
}

func (r *IntakeRepo) List(ctx context.Context, filter entity.IntakeFilter) ([]*entity.IntakeEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = _defaultListLimit
	}
	if limit > _maxListLimit {
		limit = _maxListLimit
	}

	where := squirrel.Eq{}
	if filter.Status != "" {
		where[intakeStatusColumn] = filter.Status
	}
	if filter.Source != "" {
		where[intakeSourceColumn] = filter.Source
	}
	if filter.EventType != "" {
		where[intakeEventTypeColumn] = filter.EventType
	}

	sql, args, err := r.Builder.
		Select(intakeColumns...).
		From(intakeTable).
		Where(where).
		OrderBy(intakeCreatedAtColumn + " DESC").
		Limit(uint64(limit)). //nolint:gosec // bounded above
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - List - r.Builder.ToSql: %w", err)
	}

	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - List - executor.Query: %w", err)
	}

	events, err := r.collect(rows, limit)
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - List - %w", err)
	}

	return events, nil
}

func (r *IntakeRepo) CountByStatus(ctx context.Context) (map[entity.Status]int64, error) {
	sql, args, err := r.Builder.
		Select(intakeStatusColumn, "count(*)").
		From(intakeTable).
		GroupBy(intakeStatusColumn).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - CountByStatus - r.Builder.ToSql: %w", err)
	}

	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - CountByStatus - executor.Query: %w", err)
	}
	defer rows.Close()

	counts := map[entity.Status]int64{
		entity.Pending:    0,
		entity.Processing: 0,
		entity.Completed:  0,
		entity.Failed:     0,
	}
	for rows.Next() {
		var (
			status entity.Status
			n      int64
		)
		if err = rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("IntakeRepo - CountByStatus - rows.Scan: %w", err)
		}
		counts[status] = n
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("IntakeRepo - CountByStatus - rows.Err: %w", err)
	}

	return counts, nil
}

// ClaimDue moves up to limit due pending events to processing in one statement.
// Rows locked by a concurrent claimer are skipped, so no event is handed out twice.
func (r *IntakeRepo) ClaimDue(ctx context.Context, limit int) ([]*entity.IntakeEvent, error) {
	due, dueArgs, err := squirrel.
		Select(intakeIDColumn).
		From(intakeTable).
		Where(squirrel.Eq{intakeStatusColumn: entity.Pending}).
		Where(squirrel.Expr(intakeNextAttemptAtColumn + " <= now()")).
		OrderBy(intakeCreatedAtColumn + " ASC").
		Limit(uint64(limit)). //nolint:gosec // batch size comes from config
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - ClaimDue - squirrel.Select.ToSql: %w", err)
	}

	sql, args, err := r.Builder.
		Update(intakeTable).
		Set(intakeStatusColumn, entity.Processing).
		Set(intakeClaimedAtColumn, squirrel.Expr("now()")).
		Where(intakeIDColumn+" IN ("+due+")", dueArgs...).
		Suffix("RETURNING " + joinColumns(intakeColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - ClaimDue - r.Builder.ToSql: %w", err)
	}

	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - ClaimDue - executor.Query: %w", err)
	}

	events, err := r.collect(rows, limit)
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - ClaimDue - %w", err)
	}

	// RETURNING does not keep the subquery order
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})

	return events, nil
}

// ClaimByID is the single-row claim: it succeeds only for the caller whose
// conditional update moved the row out of pending.
func (r *IntakeRepo) ClaimByID(ctx context.Context, id uuid.UUID) (*entity.IntakeEvent, error) {
	sql, args, err := r.Builder.
		Update(intakeTable).
		Set(intakeStatusColumn, entity.Processing).
		Set(intakeClaimedAtColumn, squirrel.Expr("now()")).
		Where(squirrel.Eq{
			intakeIDColumn:     id,
			intakeStatusColumn: entity.Pending,
		}).
		Suffix("RETURNING " + joinColumns(intakeColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - ClaimByID - r.Builder.ToSql: %w", err)
	}

	e, err := scanIntakeEvent(r.GetExecutor(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("IntakeRepo - ClaimByID: %w", errs.ErrAlreadyClaimed)
		}
		return nil, fmt.Errorf("IntakeRepo - ClaimByID - executor.QueryRow: %w", err)
	}

	return e, nil
}

// Finalize writes the outcome of an attempt. The update only applies while the row is
// still held by the same claim, a row reclaimed in the meantime yields errs.ErrClaimLost.
func (r *IntakeRepo) Finalize(ctx context.Context, event *entity.IntakeEvent) error {
	if event.ClaimedAt == nil {
		return fmt.Errorf("IntakeRepo - Finalize - event %s has no claim: %w", event.ID, errs.ErrClaimLost)
	}

	sql, args, err := r.Builder.
		Update(intakeTable).
		Set(intakeStatusColumn, event.Status).
		Set(intakeRetryCountColumn, event.RetryCount).
		Set(intakeNextAttemptAtColumn, event.NextAttemptAt).
		Set(intakeLastErrorColumn, event.LastError).
		Set(intakeProcessedAtColumn, event.ProcessedAt).
		Where(squirrel.Eq{
			intakeIDColumn:        event.ID,
			intakeStatusColumn:    entity.Processing,
			intakeClaimedAtColumn: *event.ClaimedAt,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("IntakeRepo - Finalize - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("IntakeRepo - Finalize - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("IntakeRepo - Finalize: %w", errs.ErrClaimLost)
	}

	return nil
}

func (r *IntakeRepo) ListStale(ctx context.Context, claimedBefore time.Time, limit int) ([]*entity.IntakeEvent, error) {
	sql, args, err := r.Builder.
		Select(intakeColumns...).
		From(intakeTable).
		Where(squirrel.Eq{intakeStatusColumn: entity.Processing}).
		Where(squirrel.Lt{intakeClaimedAtColumn: claimedBefore}).
		OrderBy(intakeClaimedAtColumn + " ASC").
		Limit(uint64(limit)). //nolint:gosec // batch size comes from config
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - ListStale - r.Builder.ToSql: %w", err)
	}

	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - ListStale - executor.Query: %w", err)
	}

	events, err := r.collect(rows, limit)
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - ListStale - %w", err)
	}

	return events, nil
}

func (r *IntakeRepo) ListArchivable(ctx context.Context, finishedBefore time.Time, limit int) ([]*entity.IntakeEvent, error) {
	sql, args, err := r.Builder.
		Select(intakeColumns...).
		From(intakeTable).
		Where(squirrel.Eq{
			intakeStatusColumn:     []entity.Status{entity.Completed, entity.Failed},
			intakeArchivedAtColumn: nil,
		}).
		Where(squirrel.Lt{intakeCreatedAtColumn: finishedBefore}).
		OrderBy(intakeCreatedAtColumn + " ASC").
		Limit(uint64(limit)). //nolint:gosec // batch size comes from config
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - ListArchivable - r.Builder.ToSql: %w", err)
	}

	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - ListArchivable - executor.Query: %w", err)
	}

	events, err := r.collect(rows, limit)
	if err != nil {
		return nil, fmt.Errorf("IntakeRepo - ListArchivable - %w", err)
	}

	return events, nil
}

func (r *IntakeRepo) MarkArchived(ctx context.Context, id uuid.UUID, at time.Time) error {
	sql, args, err := r.Builder.
		Update(intakeTable).
		Set(intakeArchivedAtColumn, at).
		Where(squirrel.Eq{
			intakeIDColumn:         id,
			intakeArchivedAtColumn: nil,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("IntakeRepo - MarkArchived - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("IntakeRepo - MarkArchived - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("IntakeRepo - MarkArchived: %w", errs.ErrRecordNotFound)
	}

	return nil
}
