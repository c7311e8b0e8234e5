package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
	"github.com/google/uuid"
)

const (
	_eventPurchaseApproved    = "purchase_approved"
	_eventPurchaseComplete    = "purchase_complete"
	_eventPurchaseCanceled    = "purchase_canceled"
	_eventPurchaseRefunded    = "purchase_refunded"
	_eventPurchaseChargeback  = "purchase_chargeback"
	_eventSubscriptionRenewed = "subscription_renewed"
	_eventSubscriptionCancel  = "subscription_canceled"
	_eventSubscriptionLate    = "subscription_late"
)

const (
	_priorityHigh   = 1
	_priorityNormal = 2
)

const (
	commandNotifySale               = "notify_sale"
	commandNotifyCancellation       = "notify_cancellation"
	commandNotifySubscriptionChange = "notify_subscription_change"
	commandRespondIntent            = "respond_intent"
)

type cancellationMapping struct {
	transaction entity.TransactionStatus
	enrollment  entity.EnrollmentStatus
	refund      bool
}

var cancellations = map[string]cancellationMapping{
	_eventPurchaseCanceled:   {entity.TransactionCanceled, entity.EnrollmentCanceled, false},
	_eventPurchaseRefunded:   {entity.TransactionRefunded, entity.EnrollmentRefunded, true},
	_eventPurchaseChargeback: {entity.TransactionChargeback, entity.EnrollmentBlocked, true},
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// enqueueCommand stores a command for the AI notifier. The command is keyed by
// (origin event, action), so a repeated dispatch finds it already in place.
func enqueueCommand(ctx context.Context, env Env, action string, priority int, params any) (Effect, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Effect{}, fmt.Errorf("json.Marshal: %w", err)
	}

	cmd := &entity.Command{
		ID:            uuid.New(),
		Target:        entity.TargetAINotifier,
		Action:        action,
		Parameters:    raw,
		OriginEventID: env.Event.OriginID(),
		Priority:      priority,
		Status:        entity.CommandUnclaimed,
		CreatedAt:     env.Now,
	}

	if _, err = env.Stores.Commands.Enqueue(ctx, cmd); err != nil {
		return Effect{}, fmt.Errorf("Commands.Enqueue: %w", err)
	}

	return Effect{Notified: []string{entity.TargetAINotifier}}, nil
}

func upsertTransaction(ctx context.Context, env Env, p purchasePayload) (Effect, error) {
	tx := &entity.Transaction{
		TransactionID: p.TransactionID,
		BuyerEmail:    p.BuyerEmail,
		BuyerName:     p.BuyerName,
		ProductID:     p.ProductID,
		ProductName:   p.ProductName,
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		Status:        entity.TransactionApproved,
		OccurredAt:    p.OccurredAt,
		UpdatedAt:     env.Now,
	}
	if p.AffiliateCode != "" {
		tx.AffiliateCode = &p.AffiliateCode
	}

	if err := env.Stores.Transactions.UpsertApproved(ctx, tx); err != nil {
		return Effect{}, fmt.Errorf("Transactions.UpsertApproved: %w", err)
	}

	return Effect{}, nil
}

func upsertEnrollment(ctx context.Context, env Env, p purchasePayload) (Effect, error) {
	err := env.Stores.Enrollments.Upsert(ctx, &entity.Enrollment{
		Email:         p.BuyerEmail,
		Name:          p.BuyerName,
		ProductID:     p.ProductID,
		Status:        entity.EnrollmentActive,
		TransactionID: &p.TransactionID,
		EnrolledAt:    p.OccurredAt,
		UpdatedAt:     env.Now,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("Enrollments.Upsert: %w", err)
	}

	return Effect{}, nil
}

func recordCommission(ctx context.Context, env Env, p purchasePayload) (Effect, error) {
	if p.AffiliateCode == "" {
		return skipped, nil
	}

	_, err := env.Stores.Commissions.Insert(ctx, &entity.Commission{
		TransactionID: p.TransactionID,
		AffiliateCode: p.AffiliateCode,
		AmountCents:   p.CommissionCents,
		CreatedAt:     env.Now,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("Commissions.Insert: %w", err)
	}

	return Effect{}, nil
}

func recordLedgerIncome(ctx context.Context, env Env, p purchasePayload) (Effect, error) {
	_, err := env.Stores.Ledger.Insert(ctx, &entity.LedgerEntry{
		ID:            uuid.New(),
		TransactionID: p.TransactionID,
		Kind:          entity.LedgerIncome,
		AmountCents:   p.AmountCents,
		Currency:      p.Currency,
		Description:   fmt.Sprintf("%s %s", env.Event.EventType, p.ProductName),
		OccurredAt:    p.OccurredAt,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("Ledger.Insert: %w", err)
	}

	return Effect{}, nil
}

func enqueueSaleNotification(ctx context.Context, env Env, p purchasePayload) (Effect, error) {
	return enqueueCommand(ctx, env, commandNotifySale, _priorityHigh, map[string]any{
		"transaction_id": p.TransactionID,
		"buyer_email":    p.BuyerEmail,
		"buyer_name":     p.BuyerName,
		"product_name":   p.ProductName,
		"amount_cents":   p.AmountCents,
		"currency":       p.Currency,
	})
}

func incrementDailyRevenue(ctx context.Context, env Env, p purchasePayload) (Effect, error) {
	date := day(p.OccurredAt)

	_, err := env.Stores.Metrics.Add(ctx, entity.MetricContribution{
		Date:            date,
		Name:            entity.MetricRevenueCents,
		ContributionKey: p.TransactionID,
		Value:           p.AmountCents,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("Metrics.Add revenue: %w", err)
	}

	_, err = env.Stores.Metrics.Add(ctx, entity.MetricContribution{
		Date:            date,
		Name:            entity.MetricSales,
		ContributionKey: p.TransactionID,
		Value:           1,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("Metrics.Add sales: %w", err)
	}

	return Effect{}, nil
}

func updateTransactionStatus(ctx context.Context, env Env, p cancellationPayload) (Effect, error) {
	m := cancellations[env.Event.EventType]

	_, err := env.Stores.Transactions.UpdateStatus(ctx, p.TransactionID, m.transaction, env.Now)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return Effect{}, fmt.Errorf("transaction %s: %w", p.TransactionID, errs.ErrMissingReference)
		}
		return Effect{}, fmt.Errorf("Transactions.UpdateStatus: %w", err)
	}

	return Effect{}, nil
}

func updateEnrollmentOnCancellation(ctx context.Context, env Env, p cancellationPayload) (Effect, error) {
	m := cancellations[env.Event.EventType]

	tx, err := env.Stores.Transactions.GetByID(ctx, p.TransactionID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return Effect{}, fmt.Errorf("transaction %s: %w", p.TransactionID, errs.ErrMissingReference)
		}
		return Effect{}, fmt.Errorf("Transactions.GetByID: %w", err)
	}

	// a newer purchase by the same buyer owns the enrollment now, leave it alone
	err = env.Stores.Enrollments.UpdateStatus(ctx, entity.EnrollmentStatusUpdate{
		Email:         tx.BuyerEmail,
		TransactionID: tx.TransactionID,
		Status:        m.enrollment,
		UpdatedAt:     env.Now,
	})
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return skipped, nil
		}
		return Effect{}, fmt.Errorf("Enrollments.UpdateStatus: %w", err)
	}

	return Effect{}, nil
}

func recordLedgerRefund(ctx context.Context, env Env, p cancellationPayload) (Effect, error) {
	if !cancellations[env.Event.EventType].refund {
		return skipped, nil
	}

	tx, err := env.Stores.Transactions.GetByID(ctx, p.TransactionID)
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return Effect{}, fmt.Errorf("transaction %s: %w", p.TransactionID, errs.ErrMissingReference)
		}
		return Effect{}, fmt.Errorf("Transactions.GetByID: %w", err)
	}

	amount := p.AmountCents
	if amount == 0 {
		amount = tx.AmountCents
	}

	_, err = env.Stores.Ledger.Insert(ctx, &entity.LedgerEntry{
		ID:            uuid.New(),
		TransactionID: p.TransactionID,
		Kind:          entity.LedgerRefund,
		AmountCents:   amount,
		Currency:      tx.Currency,
		Description:   env.Event.EventType,
		OccurredAt:    p.OccurredAt,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("Ledger.Insert: %w", err)
	}

	return Effect{}, nil
}

func enqueueCancellationNotification(ctx context.Context, env Env, p cancellationPayload) (Effect, error) {
	return enqueueCommand(ctx, env, commandNotifyCancellation, _priorityNormal, map[string]any{
		"transaction_id": p.TransactionID,
		"event_type":     env.Event.EventType,
		"reason":         p.Reason,
	})
}

func updateEnrollmentOnSubscription(ctx context.Context, env Env, p subscriptionPayload) (Effect, error) {
	status := entity.EnrollmentCanceled
	if env.Event.EventType == _eventSubscriptionLate {
		status = entity.EnrollmentOverdue
	}

	err := env.Stores.Enrollments.UpdateStatus(ctx, entity.EnrollmentStatusUpdate{
		Email:     p.BuyerEmail,
		Status:    status,
		UpdatedAt: env.Now,
	})
	if err != nil {
		if errors.Is(err, errs.ErrRecordNotFound) {
			return Effect{}, fmt.Errorf("enrollment %s: %w", p.BuyerEmail, errs.ErrMissingReference)
		}
		return Effect{}, fmt.Errorf("Enrollments.UpdateStatus: %w", err)
	}

	return Effect{}, nil
}

func enqueueSubscriptionNotification(ctx context.Context, env Env, p subscriptionPayload) (Effect, error) {
	return enqueueCommand(ctx, env, commandNotifySubscriptionChange, _priorityNormal, map[string]any{
		"subscription_id": p.SubscriptionID,
		"buyer_email":     p.BuyerEmail,
		"event_type":      env.Event.EventType,
	})
}
