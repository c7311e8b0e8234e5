package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
)

const (
	_eventUserCreated = "user_created"
	_eventUserUpdated = "user_updated"
	_eventUserDeleted = "user_deleted"
)

var privilegedGroups = map[string]struct{}{
	"students":   {},
	"premium":    {},
	"vip":        {},
	"mentorship": {},
}

func privilegedClaims(groups []string) []string {
	var out []string
	for _, g := range groups {
		if _, ok := privilegedGroups[g]; ok {
			out = append(out, g)
		}
	}
	return out
}

func upsertIdentity(ctx context.Context, env Env, p userPayload) (Effect, error) {
	groups := p.Groups
	if groups == nil {
		groups = []string{}
	}

	err := env.Stores.Identities.Upsert(ctx, &entity.IdentitySync{
		ExternalUserID: p.UserID,
		Email:          p.Email,
		DisplayName:    p.DisplayName,
		Groups:         groups,
		Active:         true,
		SyncedAt:       env.Now,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("Identities.Upsert: %w", err)
	}

	return Effect{}, nil
}

func confirmPayment(ctx context.Context, env Env, p userPayload) (Effect, error) {
	paid, err := env.Stores.Transactions.HasApprovedForEmail(ctx, p.Email)
	if err != nil {
		return Effect{}, fmt.Errorf("Transactions.HasApprovedForEmail: %w", err)
	}

	if err = env.Stores.Identities.SetPaymentConfirmed(ctx, p.UserID, paid); err != nil {
		return Effect{}, fmt.Errorf("Identities.SetPaymentConfirmed: %w", err)
	}

	return Effect{}, nil
}

// flagPrivilegedClaim flags a user who claims a privileged group without an approved payment.
func flagPrivilegedClaim(ctx context.Context, env Env, p userPayload) (Effect, error) {
	claims := privilegedClaims(p.Groups)
	if len(claims) == 0 {
		return skipped, nil
	}

	paid, err := env.Stores.Transactions.HasApprovedForEmail(ctx, p.Email)
	if err != nil {
		return Effect{}, fmt.Errorf("Transactions.HasApprovedForEmail: %w", err)
	}
	if paid {
		return skipped, nil
	}

	details, err := json.Marshal(map[string]any{
		"email":  p.Email,
		"groups": claims,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("json.Marshal: %w", err)
	}

	_, err = env.Stores.AuditFlags.Create(ctx, &entity.AuditFlag{
		SubjectKey:    "identity:" + p.UserID,
		Reason:        entity.AuditReasonUnpaidPrivilegedGroup,
		Details:       details,
		OriginEventID: env.Event.OriginID(),
		CreatedAt:     env.Now,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("AuditFlags.Create: %w", err)
	}

	return Effect{}, nil
}

func deactivateIdentity(ctx context.Context, env Env, p userPayload) (Effect, error) {
	err := env.Stores.Identities.Deactivate(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return skipped, nil
		}
		return Effect{}, fmt.Errorf("Identities.Deactivate: %w", err)
	}

	return Effect{}, nil
}
