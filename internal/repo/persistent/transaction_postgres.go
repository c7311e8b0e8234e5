package persistent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/jackc/pgx/v5"
)

const (
	// Table
	transactionsTable = "transactions"

	// Columns
	trxIDColumn            = "transaction_id"
	trxBuyerEmailColumn    = "buyer_email"
	trxBuyerNameColumn     = "buyer_name"
	trxProductIDColumn     = "product_id"
	trxProductNameColumn   = "product_name"
	trxAmountCentsColumn   = "amount_cents"
	trxCurrencyColumn      = "currency"
	trxStatusColumn        = "status"
	trxAffiliateCodeColumn = "affiliate_code"
	trxOccurredAtColumn    = "occurred_at"
	trxUpdatedAtColumn     = "updated_at"
)

var transactionColumns = []string{
	trxIDColumn,
	trxBuyerEmailColumn,
	trxBuyerNameColumn,
	trxProductIDColumn,
	trxProductNameColumn,
	trxAmountCentsColumn,
	trxCurrencyColumn,
	trxStatusColumn,
	trxAffiliateCodeColumn,
	trxOccurredAtColumn,
	trxUpdatedAtColumn,
}

// An approval replayed after a cancellation must not resurrect the transaction.
const upsertApprovedConflict = `ON CONFLICT (transaction_id) DO UPDATE SET
	buyer_email = EXCLUDED.buyer_email,
	buyer_name = EXCLUDED.buyer_name,
	product_id = EXCLUDED.product_id,
	product_name = EXCLUDED.product_name,
	amount_cents = EXCLUDED.amount_cents,
	currency = EXCLUDED.currency,
	affiliate_code = EXCLUDED.affiliate_code,
	occurred_at = EXCLUDED.occurred_at,
	status = CASE
		WHEN transactions.status IN ('canceled', 'refunded', 'chargeback') THEN transactions.status
		ELSE EXCLUDED.status
	END,
	updated_at = EXCLUDED.updated_at`

type TransactionRepo struct {
	*postgres.Postgres
}

func NewTransactionRepo(pg *postgres.Postgres) *TransactionRepo {
	return &TransactionRepo{pg}
}

func scanTransaction(row rowScanner) (*entity.Transaction, error) {
	var t entity.Transaction
	err := row.Scan(
		&t.TransactionID,
		&t.BuyerEmail,
		&t.BuyerName,
		&t.ProductID,
		&t.ProductName,
		&t.AmountCents,
		&t.Currency,
		&t.Status,
		&t.AffiliateCode,
		&t.OccurredAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func (r *TransactionRepo) UpsertApproved(ctx context.Context, t *entity.Transaction) error {
	sql, args, err := r.Builder.
		Insert(transactionsTable).
		Columns(transactionColumns...).
		Values(
			t.TransactionID,
			t.BuyerEmail,
			t.BuyerName,
			t.ProductID,
			t.ProductName,
			t.AmountCents,
			t.Currency,
			t.Status,
			t.AffiliateCode,
			t.OccurredAt,
			t.UpdatedAt,
		).
		Suffix(upsertApprovedConflict).
		ToSql()
	if err != nil {
		return fmt.Errorf("TransactionRepo - UpsertApproved - r.Builder.ToSql: %w", err)
	}

	_, err = r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("TransactionRepo - UpsertApproved - executor.Exec: %w", err)
	}

	return nil
}

func (r *TransactionRepo) UpdateStatus(
	ctx context.Context,
	transactionID string,
	status entity.TransactionStatus,
	at time.Time,
) (*entity.Transaction, error) {
	sql, args, err := r.Builder.
		Update(transactionsTable).
		Set(trxStatusColumn, status).
		Set(trxUpdatedAtColumn, at).
		Where(squirrel.Eq{trxIDColumn: transactionID}).
		Suffix("RETURNING " + joinColumns(transactionColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("TransactionRepo - UpdateStatus - r.Builder.ToSql: %w", err)
	}

	t, err := scanTransaction(r.GetExecutor(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("TransactionRepo - UpdateStatus: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("TransactionRepo - UpdateStatus - executor.QueryRow: %w", err)
	}

	return t, nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, transactionID string) (*entity.Transaction, error) {
	sql, args, err := r.Builder.
		Select(transactionColumns...).
		From(transactionsTable).
		Where(squirrel.Eq{trxIDColumn: transactionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("TransactionRepo - GetByID - r.Builder.ToSql: %w", err)
	}

	t, err := scanTransaction(r.GetExecutor(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("TransactionRepo - GetByID: %w", errs.ErrRecordNotFound)
		}
		return nil, fmt.Errorf("TransactionRepo - GetByID - executor.QueryRow: %w", err)
	}

	return t, nil
}

func (r *TransactionRepo) HasApprovedForEmail(ctx context.Context, email string) (bool, error) {
	sub, subArgs, err := squirrel.
		Select("1").
		From(transactionsTable).
		Where(squirrel.Eq{
			trxBuyerEmailColumn: email,
			trxStatusColumn:     entity.TransactionApproved,
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("TransactionRepo - HasApprovedForEmail - squirrel.Select.ToSql: %w", err)
	}

	sql, args, err := r.Builder.
		Select().
		Column("EXISTS ("+sub+")", subArgs...).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("TransactionRepo - HasApprovedForEmail - r.Builder.ToSql: %w", err)
	}

	var exists bool
	err = r.GetExecutor(ctx).QueryRow(ctx, sql, args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("TransactionRepo - HasApprovedForEmail - executor.QueryRow: %w", err)
	}

	return exists, nil
}
