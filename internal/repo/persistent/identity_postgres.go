package persistent

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
)

const (
	// Tables
	identityTable   = "identity_sync"
	auditFlagsTable = "audit_flags"

	// Columns
	identityExternalIDColumn       = "external_user_id"
	identityEmailColumn            = "email"
	identityDisplayNameColumn      = "display_name"
	identityGroupsColumn           = "groups"
	identityPaymentConfirmedColumn = "payment_confirmed"
	identityActiveColumn           = "active"
	identitySyncedAtColumn         = "synced_at"

	auditSubjectKeyColumn    = "subject_key"
	auditReasonColumn        = "reason"
	auditDetailsColumn       = "details"
	auditOriginEventIDColumn = "origin_event_id"
	auditCreatedAtColumn     = "created_at"
)

// payment_confirmed is owned by the confirmation step and left out of the upsert.
const upsertIdentityConflict = `ON CONFLICT (external_user_id) DO UPDATE SET
	email = EXCLUDED.email,
	display_name = EXCLUDED.display_name,
	groups = EXCLUDED.groups,
	active = TRUE,
	synced_at = EXCLUDED.synced_at`

type IdentityRepo struct {
	*postgres.Postgres
}

func NewIdentityRepo(pg *postgres.Postgres) *IdentityRepo {
	return &IdentityRepo{pg}
}

func (r *IdentityRepo) Upsert(ctx context.Context, i *entity.IdentitySync) error {
	sql, args, err := r.Builder.
		Insert(identityTable).
		Columns(
			identityExternalIDColumn,
			identityEmailColumn,
			identityDisplayNameColumn,
			identityGroupsColumn,
			identityActiveColumn,
			identitySyncedAtColumn,
		).
		Values(
			i.ExternalUserID,
			i.Email,
			i.DisplayName,
			nonNil(i.Groups),
			true,
			i.SyncedAt,
		).
		Suffix(upsertIdentityConflict).
		ToSql()
	if err != nil {
		return fmt.Errorf("IdentityRepo - Upsert - r.Builder.ToSql: %w", err)
	}

	_, err = r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("IdentityRepo - Upsert - executor.Exec: %w", err)
	}

	return nil
}

func (r *IdentityRepo) SetPaymentConfirmed(ctx context.Context, externalUserID string, confirmed bool) error {
	err := r.update(ctx, externalUserID, map[string]any{
		identityPaymentConfirmedColumn: confirmed,
		identitySyncedAtColumn:         time.Now(),
	})
	if err != nil {
		return fmt.Errorf("IdentityRepo - SetPaymentConfirmed - %w", err)
	}

	return nil
}

func (r *IdentityRepo) Deactivate(ctx context.Context, externalUserID string) error {
	err := r.update(ctx, externalUserID, map[string]any{
		identityActiveColumn:   false,
		identitySyncedAtColumn: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("IdentityRepo - Deactivate - %w", err)
	}

	return nil
}

func (r *IdentityRepo) update(ctx context.Context, externalUserID string, set map[string]any) error {
	sql, args, err := r.Builder.
		Update(identityTable).
		SetMap(set).
		Where(squirrel.Eq{identityExternalIDColumn: externalUserID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return errs.ErrRecordNotFound
	}

	return nil
}

type AuditFlagRepo struct {
	*postgres.Postgres
}

func NewAuditFlagRepo(pg *postgres.Postgres) *AuditFlagRepo {
	return &AuditFlagRepo{pg}
}

func (r *AuditFlagRepo) Create(ctx context.Context, flag *entity.AuditFlag) (bool, error) {
	sql, args, err := r.Builder.
		Insert(auditFlagsTable).
		Columns(
			auditSubjectKeyColumn,
			auditReasonColumn,
			auditDetailsColumn,
			auditOriginEventIDColumn,
			auditCreatedAtColumn,
		).
		Values(
			flag.SubjectKey,
			flag.Reason,
			flag.Details,
			flag.OriginEventID,
			flag.CreatedAt,
		).
		Suffix("ON CONFLICT (subject_key, reason) DO NOTHING RETURNING 1").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("AuditFlagRepo - Create - r.Builder.ToSql: %w", err)
	}

	inserted, err := insertReturning(ctx, r.GetExecutor(ctx), sql, args)
	if err != nil {
		return false, fmt.Errorf("AuditFlagRepo - Create - %w", err)
	}

	return inserted, nil
}
