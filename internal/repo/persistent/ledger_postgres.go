package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
	"github.com/jackc/pgx/v5"
)

const (
	// Tables
	ledgerTable      = "ledger_entries"
	commissionsTable = "commissions"

	// Columns
	ledgerIDColumn            = "id"
	ledgerTransactionIDColumn = "transaction_id"
	ledgerKindColumn          = "kind"
	ledgerAmountCentsColumn   = "amount_cents"
	ledgerCurrencyColumn      = "currency"
	ledgerDescriptionColumn   = "description"
	ledgerOccurredAtColumn    = "occurred_at"

	commissionTransactionIDColumn = "transaction_id"
	commissionAffiliateColumn     = "affiliate_code"
	commissionAmountCentsColumn   = "amount_cents"
	commissionCreatedAtColumn     = "created_at"
)

type LedgerRepo struct {
	*postgres.Postgres
}

func NewLedgerRepo(pg *postgres.Postgres) *LedgerRepo {
	return &LedgerRepo{pg}
}

// Insert writes e once per (transaction, kind); false means it was already recorded.
func (r *LedgerRepo) Insert(ctx context.Context, e *entity.LedgerEntry) (bool, error) {
	sql, args, err := r.Builder.
		Insert(ledgerTable).
		Columns(
			ledgerIDColumn,
			ledgerTransactionIDColumn,
			ledgerKindColumn,
			ledgerAmountCentsColumn,
			ledgerCurrencyColumn,
			ledgerDescriptionColumn,
			ledgerOccurredAtColumn,
		).
		Values(
			e.ID,
			e.TransactionID,
			e.Kind,
			e.AmountCents,
			e.Currency,
			e.Description,
			e.OccurredAt,
		).
		Suffix("ON CONFLICT (transaction_id, kind) DO NOTHING RETURNING 1").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("LedgerRepo - Insert - r.Builder.ToSql: %w", err)
	}

	inserted, err := insertReturning(ctx, r.GetExecutor(ctx), sql, args)
	if err != nil {
		return false, fmt.Errorf("LedgerRepo - Insert - %w", err)
	}

	return inserted, nil
}

type CommissionRepo struct {
	*postgres.Postgres
}

func NewCommissionRepo(pg *postgres.Postgres) *CommissionRepo {
	return &CommissionRepo{pg}
}

func (r *CommissionRepo) Insert(ctx context.Context, c *entity.Commission) (bool, error) {
	sql, args, err := r.Builder.
		Insert(commissionsTable).
		Columns(
			commissionTransactionIDColumn,
			commissionAffiliateColumn,
			commissionAmountCentsColumn,
			commissionCreatedAtColumn,
		).
		Values(
			c.TransactionID,
			c.AffiliateCode,
			c.AmountCents,
			c.CreatedAt,
		).
		Suffix("ON CONFLICT (transaction_id, affiliate_code) DO NOTHING RETURNING 1").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("CommissionRepo - Insert - r.Builder.ToSql: %w", err)
	}

	inserted, err := insertReturning(ctx, r.GetExecutor(ctx), sql, args)
	if err != nil {
		return false, fmt.Errorf("CommissionRepo - Insert - %w", err)
	}

	return inserted, nil
}

// insertReturning runs an INSERT ... ON CONFLICT DO NOTHING RETURNING statement
// and reports whether a row was written.
func insertReturning(ctx context.Context, executor postgres.Executor, sql string, args []any) (bool, error) {
	var one int
	err := executor.QueryRow(ctx, sql, args...).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("executor.QueryRow: %w", err)
	}

	return true, nil
}
