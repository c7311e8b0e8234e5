package dispatcher

import (
	"context"
	"fmt"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
)

const (
	_eventInboundText   = "inbound_text"
	_eventLeadCaptured  = "lead_captured"
	_eventContactTagged = "contact_tagged"
)

func upsertMessagingLead(ctx context.Context, env Env, p messagePayload) (Effect, error) {
	err := env.Stores.Leads.Upsert(ctx, &entity.Lead{
		Phone:         p.Phone,
		Name:          p.Name,
		Source:        env.Event.Source,
		Tags:          []string{},
		LastMessage:   p.Text,
		LastContactAt: p.ReceivedAt,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("Leads.Upsert: %w", err)
	}

	return Effect{}, nil
}

func enqueueIntentCommand(ctx context.Context, env Env, p messagePayload) (Effect, error) {
	intent, ok := matchIntent(p.Text)
	if !ok {
		return skipped, nil
	}

	return enqueueCommand(ctx, env, commandRespondIntent, _priorityHigh, map[string]any{
		"phone":  p.Phone,
		"name":   p.Name,
		"intent": intent,
		"text":   p.Text,
	})
}

func upsertMarketingLead(ctx context.Context, env Env, p marketingPayload) (Effect, error) {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}

	err := env.Stores.Leads.Upsert(ctx, &entity.Lead{
		Phone:         p.Phone,
		Name:          p.Name,
		Email:         p.Email,
		Source:        env.Event.Source,
		Tags:          tags,
		LastContactAt: p.CapturedAt,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("Leads.Upsert: %w", err)
	}

	return Effect{}, nil
}

// incrementDailyLeads counts a phone once per day no matter how many events mention it.
func incrementDailyLeads(ctx context.Context, env Env, p marketingPayload) (Effect, error) {
	_, err := env.Stores.Metrics.Add(ctx, entity.MetricContribution{
		Date:            day(p.CapturedAt),
		Name:            entity.MetricLeads,
		ContributionKey: p.Phone,
		Value:           1,
	})
	if err != nil {
		return Effect{}, fmt.Errorf("Metrics.Add leads: %w", err)
	}

	return Effect{}, nil
}
