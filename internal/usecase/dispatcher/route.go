package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/repo"
)

// Stores are the domain handles a step may write to.
type Stores struct {
	Transactions repo.TransactionRepo
	Enrollments  repo.EnrollmentRepo
	Commissions  repo.CommissionRepo
	Ledger       repo.LedgerRepo
	Metrics      repo.MetricRepo
	Identities   repo.IdentityRepo
	Leads        repo.LeadRepo
	AuditFlags   repo.AuditFlagRepo
	Commands     repo.CommandRepo
}

// Env is what a step sees besides its payload.
type Env struct {
	Event  *entity.IntakeEvent
	Stores Stores
	Now    time.Time
}

// Effect describes what an executed step did.
// A Skipped step had nothing to do and is left out of the action log.
type Effect struct {
	Skipped  bool
	Notified []string
}

var skipped = Effect{Skipped: true}

// Step is one idempotent action of a sequence, typed by the payload of its route.
type Step[P any] struct {
	Action string
	Run    func(ctx context.Context, env Env, p P) (Effect, error)
}

type routeKey struct {
	source    entity.Source
	eventType string
}

type boundStep struct {
	action string
	run    func(ctx context.Context, env Env, payload any) (Effect, error)
}

type route struct {
	decode func(env Env) (any, error)
	steps  []boundStep
}

// newRoute binds a payload decoder and its typed steps into a route.
func newRoute[P any](decode func(raw json.RawMessage, env Env) (P, error), steps ...Step[P]) route {
	r := route{
		decode: func(env Env) (any, error) {
			return decode(env.Event.Payload, env)
		},
		steps: make([]boundStep, 0, len(steps)),
	}

	for _, s := range steps {
		run := s.Run
		r.steps = append(r.steps, boundStep{
			action: s.Action,
			run: func(ctx context.Context, env Env, payload any) (Effect, error) {
				return run(ctx, env, payload.(P))
			},
		})
	}

	return r
}

// Actions lists the action names of the route in execution order.
func (r route) Actions() []string {
	actions := make([]string, 0, len(r.steps))
	for _, s := range r.steps {
		actions = append(actions, s.action)
	}
	return actions
}
