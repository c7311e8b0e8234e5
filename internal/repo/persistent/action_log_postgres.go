package persistent

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

const (
	// Table
	actionLogTable = "action_log_entries"

	// Columns
	actionLogIDColumn                = "id"
	actionLogIntakeEventIDColumn     = "intake_event_id"
	actionLogAttemptColumn           = "attempt"
	actionLogStageColumn             = "stage"
	actionLogActionsExecutedColumn   = "actions_executed"
	actionLogConsumersNotifiedColumn = "consumers_notified"
	actionLogErrorDetailColumn       = "error_detail"
	actionLogDurationMsColumn        = "duration_ms"
	actionLogStartedAtColumn         = "started_at"
	actionLogFinishedAtColumn        = "finished_at"
)

type ActionLogRepo struct {
	*postgres.Postgres
}

func NewActionLogRepo(pg *postgres.Postgres) *ActionLogRepo {
	return &ActionLogRepo{pg}
}

func (r *ActionLogRepo) Create(ctx context.Context, entry *entity.ActionLogEntry) error {
	sql, args, err := r.Builder.
		Insert(actionLogTable).
		Columns(
			actionLogIDColumn,
			actionLogIntakeEventIDColumn,
			actionLogAttemptColumn,
			actionLogStageColumn,
			actionLogActionsExecutedColumn,
			actionLogConsumersNotifiedColumn,
			actionLogStartedAtColumn,
		).
		Values(
			entry.ID,
			entry.IntakeEventID,
			entry.Attempt,
			entry.Stage,
			nonNil(entry.ActionsExecuted),
			nonNil(entry.ConsumersNotified),
			entry.StartedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("ActionLogRepo - Create - r.Builder.ToSql: %w", err)
	}

	_, err = r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ActionLogRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

// Update persists the current stage of entry, overwriting the previous snapshot.
func (r *ActionLogRepo) Update(ctx context.Context, entry *entity.ActionLogEntry) error {
	sql, args, err := r.Builder.
		Update(actionLogTable).
		Set(actionLogStageColumn, entry.Stage).
		Set(actionLogActionsExecutedColumn, nonNil(entry.ActionsExecuted)).
		Set(actionLogConsumersNotifiedColumn, nonNil(entry.ConsumersNotified)).
		Set(actionLogErrorDetailColumn, entry.ErrorDetail).
		Set(actionLogDurationMsColumn, entry.DurationMs).
		Set(actionLogFinishedAtColumn, entry.FinishedAt).
		Where(squirrel.Eq{actionLogIDColumn: entry.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ActionLogRepo - Update - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("ActionLogRepo - Update - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ActionLogRepo - Update: %w", errs.ErrRecordNotFound)
	}

	return nil
}

func (r *ActionLogRepo) ListByIntakeEvent(ctx context.Context, intakeEventID uuid.UUID) ([]*entity.ActionLogEntry, error) {
	sql, args, err := r.Builder.
		Select(
			actionLogIDColumn,
			actionLogIntakeEventIDColumn,
			actionLogAttemptColumn,
			actionLogStageColumn,
			actionLogActionsExecutedColumn,
			actionLogConsumersNotifiedColumn,
			actionLogErrorDetailColumn,
			actionLogDurationMsColumn,
			actionLogStartedAtColumn,
			actionLogFinishedAtColumn,
		).
		From(actionLogTable).
		Where(squirrel.Eq{actionLogIntakeEventIDColumn: intakeEventID}).
		OrderBy(actionLogStartedAtColumn+" ASC", actionLogAttemptColumn+" ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ActionLogRepo - ListByIntakeEvent - r.Builder.ToSql: %w", err)
	}

	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ActionLogRepo - ListByIntakeEvent - executor.Query: %w", err)
	}
	defer rows.Close()

	entries := make([]*entity.ActionLogEntry, 0)
	for rows.Next() {
		var e entity.ActionLogEntry
		err = rows.Scan(
			&e.ID,
			&e.IntakeEventID,
			&e.Attempt,
			&e.Stage,
			&e.ActionsExecuted,
			&e.ConsumersNotified,
			&e.ErrorDetail,
			&e.DurationMs,
			&e.StartedAt,
			&e.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ActionLogRepo - ListByIntakeEvent - rows.Scan: %w", err)
		}
		entries = append(entries, &e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ActionLogRepo - ListByIntakeEvent - rows.Err: %w", err)
	}

	return entries, nil
}
