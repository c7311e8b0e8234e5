package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/andreyxaxa/Webhook-Pipeline/internal/repo"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/logger"
	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
)

const decodeStep = "decode_payload"

// Dispatcher routes an intake event to its fixed action sequence and runs it.
// It keeps no state between calls, every Dispatch owns its own action log entry.
type Dispatcher struct {
	stores    Stores
	actionLog repo.ActionLogRepo
	routes    map[routeKey]route
	tx        repo.Transactor
	logger    logger.Interface
	now       func() time.Time
}

func New(stores Stores, actionLog repo.ActionLogRepo, l logger.Interface, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		stores:    stores,
		actionLog: actionLog,
		routes:    defaultRoutes(),
		logger:    l,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Routes lists every known (source, event type) pair with its action sequence.
func (d *Dispatcher) Routes() map[entity.Source]map[string][]string {
	out := make(map[entity.Source]map[string][]string)
	for key, r := range d.routes {
		if out[key.source] == nil {
			out[key.source] = make(map[string][]string)
		}
		out[key.source][key.eventType] = r.Actions()
	}
	return out
}

func (d *Dispatcher) Dispatch(ctx context.Context, event *entity.IntakeEvent) entity.Outcome {
	acc := newAccumulator(event, d.now())

	err := d.actionLog.Create(ctx, acc.snapshot())
	if err != nil {
		d.logger.Error(err, "Dispatcher - Dispatch - d.actionLog.Create")

		return entity.RetryableFailure(fmt.Sprintf("action log unavailable: %v", err))
	}

	r, ok := d.routes[routeKey{source: event.Source, eventType: event.EventType}]
	if !ok {
		d.logger.Warn("Dispatcher - Dispatch - unrecognized event source=%s type=%s id=%s",
			event.Source, event.EventType, event.ID)
		acc.finish(entity.StageUnrecognized, d.now())
		d.persistFinal(ctx, acc)

		return entity.Success()
	}

	env := Env{Event: event, Stores: d.stores, Now: d.now()}

	payload, err := r.decode(env)
	if err != nil {
		return d.fail(ctx, acc, decodeStep, err)
	}

	for _, s := range r.steps {
		effect, err := d.runStep(ctx, s, env, payload)
		if err != nil {
			return d.fail(ctx, acc, s.action, err)
		}
		if effect.Skipped {
			continue
		}

		acc.executed(s.action, effect)

		err = d.actionLog.Update(ctx, acc.snapshot())
		if err != nil {
			d.logger.Error(err, "Dispatcher - Dispatch - d.actionLog.Update")

			return entity.RetryableFailure(fmt.Sprintf("action log unavailable after %s: %v", s.action, err))
		}
	}

	acc.finish(entity.StageDone, d.now())
	d.persistFinal(ctx, acc)

	return entity.Success()
}

func (d *Dispatcher) runStep(ctx context.Context, s boundStep, env Env, payload any) (Effect, error) {
	if d.tx == nil {
		return s.run(ctx, env, payload)
	}

	var effect Effect
	err := d.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		effect, err = s.run(ctx, env, payload)
		return err
	})

	return effect, err
}

func (d *Dispatcher) fail(ctx context.Context, acc *accumulator, step string, err error) entity.Outcome {
	kind := entity.ErrorKindRetryable
	if errs.IsPermanent(err) {
		kind = entity.ErrorKindPermanent
	}

	acc.failed(step, kind, err, d.now())
	d.persistFinal(ctx, acc)

	reason := fmt.Sprintf("%s: %v", step, err)
	if kind == entity.ErrorKindPermanent {
		return entity.PermanentFailure(reason)
	}

	return entity.RetryableFailure(reason)
}

// persistFinal writes the terminal stage. Its failure does not change the outcome,
// the next attempt writes a fresh entry anyway.
func (d *Dispatcher) persistFinal(ctx context.Context, acc *accumulator) {
	err := d.actionLog.Update(ctx, acc.snapshot())
	if err != nil {
		d.logger.Error(err, "Dispatcher - persistFinal - d.actionLog.Update")
	}
}
