package persistent

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
)

const (
	// Table
	enrollmentsTable = "enrollments"

	// Columns
	enrollmentEmailColumn         = "email"
	enrollmentNameColumn          = "name"
	enrollmentProductIDColumn     = "product_id"
	enrollmentStatusColumn        = "status"
	enrollmentTransactionIDColumn = "transaction_id"
	enrollmentEnrolledAtColumn    = "enrolled_at"
	enrollmentUpdatedAtColumn     = "updated_at"
)

// A redelivered activation for the same transaction keeps a revoked enrollment revoked,
// a purchase under a new transaction reactivates it.
const upsertEnrollmentConflict = `ON CONFLICT (email) DO UPDATE SET
	name = COALESCE(NULLIF(EXCLUDED.name, ''), enrollments.name),
	product_id = EXCLUDED.product_id,
	status = CASE
		WHEN enrollments.transaction_id IS NOT DISTINCT FROM EXCLUDED.transaction_id
			AND enrollments.status IN ('canceled', 'refunded', 'blocked') THEN enrollments.status
		ELSE EXCLUDED.status
	END,
	transaction_id = EXCLUDED.transaction_id,
	updated_at = EXCLUDED.updated_at`

type EnrollmentRepo struct {
	*postgres.Postgres
}

func NewEnrollmentRepo(pg *postgres.Postgres) *EnrollmentRepo {
	return &EnrollmentRepo{pg}
}

func (r *EnrollmentRepo) Upsert(ctx context.Context, e *entity.Enrollment) error {
	sql, args, err := r.Builder.
		Insert(enrollmentsTable).
		Columns(
			enrollmentEmailColumn,
			enrollmentNameColumn,
			enrollmentProductIDColumn,
			enrollmentStatusColumn,
			enrollmentTransactionIDColumn,
			enrollmentEnrolledAtColumn,
			enrollmentUpdatedAtColumn,
		).
		Values(
			e.Email,
			e.Name,
			e.ProductID,
			e.Status,
			e.TransactionID,
			e.EnrolledAt,
			e.UpdatedAt,
		).
		Suffix(upsertEnrollmentConflict).
		ToSql()
	if err != nil {
		return fmt.Errorf("EnrollmentRepo - Upsert - r.Builder.ToSql: %w", err)
	}

	_, err = r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("EnrollmentRepo - Upsert - executor.Exec: %w", err)
	}

	return nil
}

func (r *EnrollmentRepo) UpdateStatus(ctx context.Context, u entity.EnrollmentStatusUpdate) error {
	where := squirrel.Eq{enrollmentEmailColumn: u.Email}
	if u.TransactionID != "" {
		where[enrollmentTransactionIDColumn] = u.TransactionID
	}

	sql, args, err := r.Builder.
		Update(enrollmentsTable).
		Set(enrollmentStatusColumn, u.Status).
		Set(enrollmentUpdatedAtColumn, u.UpdatedAt).
		Where(where).
		ToSql()
	if err != nil {
		return fmt.Errorf("EnrollmentRepo - UpdateStatus - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("EnrollmentRepo - UpdateStatus - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("EnrollmentRepo - UpdateStatus: %w", errs.ErrRecordNotFound)
	}

	return nil
}
