package response

import (
	"encoding/json"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
)

type ErrorDetail struct {
	Step    string `json:"step,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ActionLogEntry struct {
	ID                string       `json:"id"`
	Attempt           int          `json:"attempt"`
	Stage             string       `json:"stage"`
	ActionsExecuted   []string     `json:"actions_executed"`
	ConsumersNotified []string     `json:"consumers_notified"`
	ErrorDetail       *ErrorDetail `json:"error_detail,omitempty"`
	DurationMs        *int64       `json:"duration_ms,omitempty"`
	StartedAt         string       `json:"started_at"`
	FinishedAt        *string      `json:"finished_at,omitempty"`
}

type Command struct {
	ID          string          `json:"id"`
	Target      string          `json:"target"`
	Action      string          `json:"action"`
	Parameters  json.RawMessage `json:"parameters" swaggertype:"object"`
	Priority    int             `json:"priority"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
	PublishedAt *string         `json:"published_at,omitempty"`
}

type DailyMetrics struct {
	Date    string           `json:"date"`
	Metrics map[string]int64 `json:"metrics"`
}

func NewActionLog(entries []*entity.ActionLogEntry) []ActionLogEntry {
	out := make([]ActionLogEntry, 0, len(entries))
	for _, e := range entries {
		item := ActionLogEntry{
			ID:                e.ID.String(),
			Attempt:           e.Attempt,
			Stage:             e.Stage,
			ActionsExecuted:   e.ActionsExecuted,
			ConsumersNotified: e.ConsumersNotified,
			DurationMs:        e.DurationMs,
			StartedAt:         timestamp(e.StartedAt),
			FinishedAt:        optionalTimestamp(e.FinishedAt),
		}
		if e.ErrorDetail != nil {
			item.ErrorDetail = &ErrorDetail{
				Step:    e.ErrorDetail.Step,
				Kind:    e.ErrorDetail.Kind,
				Message: e.ErrorDetail.Message,
			}
		}
		out = append(out, item)
	}
	return out
}

func NewCommands(cmds []*entity.Command) []Command {
	out := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, Command{
			ID:          c.ID.String(),
			Target:      c.Target,
			Action:      c.Action,
			Parameters:  c.Parameters,
			Priority:    c.Priority,
			Status:      string(c.Status),
			CreatedAt:   timestamp(c.CreatedAt),
			PublishedAt: optionalTimestamp(c.PublishedAt),
		})
	}
	return out
}

func NewDailyMetrics(date string, metrics []entity.DailyMetric) DailyMetrics {
	out := DailyMetrics{Date: date, Metrics: make(map[string]int64, len(metrics))}
	for _, m := range metrics {
		out.Metrics[m.Name] = m.Value
	}
	return out
}
