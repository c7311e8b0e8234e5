package persistent

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

const (
	// Table
	commandsTable = "commands"

	// Columns
	commandIDColumn            = "id"
	commandTargetColumn        = "target"
	commandActionColumn        = "action"
	commandParametersColumn    = "parameters"
	commandOriginEventIDColumn = "origin_event_id"
	commandPriorityColumn      = "priority"
	commandStatusColumn        = "status"
	commandCreatedAtColumn     = "created_at"
	commandPublishedAtColumn   = "published_at"
)

var commandColumns = []string{
	commandIDColumn,
	commandTargetColumn,
	commandActionColumn,
	commandParametersColumn,
	commandOriginEventIDColumn,
	commandPriorityColumn,
	commandStatusColumn,
	commandCreatedAtColumn,
	commandPublishedAtColumn,
}

type CommandRepo struct {
	*postgres.Postgres
}

func NewCommandRepo(pg *postgres.Postgres) *CommandRepo {
	return &CommandRepo{pg}
}

func (r *CommandRepo) Enqueue(ctx context.Context, cmd *entity.Command) (bool, error) {
	sql, args, err := r.Builder.
		Insert(commandsTable).
		Columns(
			commandIDColumn,
			commandTargetColumn,
			commandActionColumn,
			commandParametersColumn,
			commandOriginEventIDColumn,
			commandPriorityColumn,
			commandStatusColumn,
			commandCreatedAtColumn,
		).
		Values(
			cmd.ID,
			cmd.Target,
			cmd.Action,
			cmd.Parameters,
			cmd.OriginEventID,
			cmd.Priority,
			cmd.Status,
			cmd.CreatedAt,
		).
		Suffix("ON CONFLICT (origin_event_id, action) DO NOTHING RETURNING 1").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("CommandRepo - Enqueue - r.Builder.ToSql: %w", err)
	}

	inserted, err := insertReturning(ctx, r.GetExecutor(ctx), sql, args)
	if err != nil {
		return false, fmt.Errorf("CommandRepo - Enqueue - %w", err)
	}

	return inserted, nil
}

func (r *CommandRepo) ListByOrigin(ctx context.Context, originEventID uuid.UUID) ([]*entity.Command, error) {
	sql, args, err := r.Builder.
		Select(commandColumns...).
		From(commandsTable).
		Where(squirrel.Eq{commandOriginEventIDColumn: originEventID}).
		OrderBy(commandCreatedAtColumn + " ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("CommandRepo - ListByOrigin - r.Builder.ToSql: %w", err)
	}

	cmds, err := r.query(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("CommandRepo - ListByOrigin - %w", err)
	}

	return cmds, nil
}

// ListUnpublished returns commands not yet announced on the broker, most urgent first.
func (r *CommandRepo) ListUnpublished(ctx context.Context, limit int) ([]*entity.Command, error) {
	sql, args, err := r.Builder.
		Select(commandColumns...).
		From(commandsTable).
		Where(squirrel.Eq{commandPublishedAtColumn: nil}).
		OrderBy(commandPriorityColumn+" ASC", commandCreatedAtColumn+" ASC").
		Limit(uint64(limit)). //nolint:gosec // batch size comes from config
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("CommandRepo - ListUnpublished - r.Builder.ToSql: %w", err)
	}

	cmds, err := r.query(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("CommandRepo - ListUnpublished - %w", err)
	}

	return cmds, nil
}

func (r *CommandRepo) MarkPublished(ctx context.Context, ids uuid.UUIDs, at time.Time) error {
	sql, args, err := r.Builder.
		Update(commandsTable).
		Set(commandPublishedAtColumn, at).
		Where(squirrel.Eq{commandIDColumn: ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("CommandRepo - MarkPublished - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("CommandRepo - MarkPublished - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("CommandRepo - MarkPublished: %w", errs.ErrRecordNotFound)
	}

	return nil
}

func (r *CommandRepo) query(ctx context.Context, sql string, args []any) ([]*entity.Command, error) {
	rows, err := r.GetExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("executor.Query: %w", err)
	}
	defer rows.Close()

	cmds := make([]*entity.Command, 0)
	for rows.Next() {
		var c entity.Command
		err = rows.Scan(
			&c.ID,
			&c.Target,
			&c.Action,
			&c.Parameters,
			&c.OriginEventID,
			&c.Priority,
			&c.Status,
			&c.CreatedAt,
			&c.PublishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}
		cmds = append(cmds, &c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return cmds, nil
}
