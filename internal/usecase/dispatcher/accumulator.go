package dispatcher

import (
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
	"github.com/google/uuid"
)

// accumulator owns the action log entry of a single Dispatch call.
type accumulator struct {
	entry    *entity.ActionLogEntry
	notified map[string]struct{}
}

func newAccumulator(event *entity.IntakeEvent, startedAt time.Time) *accumulator {
	return &accumulator{
		entry: &entity.ActionLogEntry{
			ID:                uuid.New(),
			IntakeEventID:     event.ID,
			Attempt:           event.Attempt(),
			Stage:             entity.StageRouting,
			ActionsExecuted:   []string{},
			ConsumersNotified: []string{},
			StartedAt:         startedAt,
		},
		notified: make(map[string]struct{}),
	}
}

func (a *accumulator) executed(action string, effect Effect) {
	a.entry.ActionsExecuted = append(a.entry.ActionsExecuted, action)
	a.entry.Stage = action

	for _, consumer := range effect.Notified {
		if _, ok := a.notified[consumer]; ok {
			continue
		}
		a.notified[consumer] = struct{}{}
		a.entry.ConsumersNotified = append(a.entry.ConsumersNotified, consumer)
	}
}

func (a *accumulator) failed(step, kind string, err error, at time.Time) {
	a.entry.ErrorDetail = &entity.ErrorDetail{
		Step:    step,
		Kind:    kind,
		Message: err.Error(),
	}
	a.finish(entity.StageFailed, at)
}

func (a *accumulator) finish(stage string, at time.Time) {
	duration := at.Sub(a.entry.StartedAt).Milliseconds()
	a.entry.Stage = stage
	a.entry.DurationMs = &duration
	a.entry.FinishedAt = &at
}

// snapshot is the value handed to the store, so later appends never alias a persisted slice.
func (a *accumulator) snapshot() *entity.ActionLogEntry {
	e := *a.entry
	e.ActionsExecuted = make([]string, len(a.entry.ActionsExecuted))
	copy(e.ActionsExecuted, a.entry.ActionsExecuted)
	e.ConsumersNotified = make([]string, len(a.entry.ConsumersNotified))
	copy(e.ConsumersNotified, a.entry.ConsumersNotified)
	if a.entry.ErrorDetail != nil {
		detail := *a.entry.ErrorDetail
		e.ErrorDetail = &detail
	}
	return &e
}
