package persistent

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/postgres"
)

const (
	// Table
	leadsTable = "leads"

	// Columns
	leadPhoneColumn         = "phone"
	leadNameColumn          = "name"
	leadEmailColumn         = "email"
	leadSourceColumn        = "source"
	leadTagsColumn          = "tags"
	leadLastMessageColumn   = "last_message"
	leadLastContactAtColumn = "last_contact_at"
)

// Merge: empty incoming fields never blank stored ones, tags are unioned,
// and the first source that produced the lead is kept.
const upsertLeadConflict = `ON CONFLICT (phone) DO UPDATE SET
	name = COALESCE(NULLIF(EXCLUDED.name, ''), leads.name),
	email = COALESCE(NULLIF(EXCLUDED.email, ''), leads.email),
	tags = ARRAY(SELECT DISTINCT t FROM unnest(leads.tags || EXCLUDED.tags) AS t ORDER BY t),
	last_message = COALESCE(NULLIF(EXCLUDED.last_message, ''), leads.last_message),
	last_contact_at = GREATEST(leads.last_contact_at, EXCLUDED.last_contact_at),
	updated_at = now()`

type LeadRepo struct {
	*postgres.Postgres
}

func NewLeadRepo(pg *postgres.Postgres) *LeadRepo {
	return &LeadRepo{pg}
}

func (r *LeadRepo) Upsert(ctx context.Context, lead *entity.Lead) error {
	sql, args, err := r.Builder.
		Insert(leadsTable).
		Columns(
			leadPhoneColumn,
			leadNameColumn,
			leadEmailColumn,
			leadSourceColumn,
			leadTagsColumn,
			leadLastMessageColumn,
			leadLastContactAtColumn,
		).
		Values(
			lead.Phone,
			lead.Name,
			lead.Email,
			lead.Source,
			nonNil(lead.Tags),
			lead.LastMessage,
			lead.LastContactAt,
		).
		Suffix(upsertLeadConflict).
		ToSql()
	if err != nil {
		return fmt.Errorf("LeadRepo - Upsert - r.Builder.ToSql: %w", err)
	}

	_, err = r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("LeadRepo - Upsert - executor.Exec: %w", err)
	}

	return nil
}
