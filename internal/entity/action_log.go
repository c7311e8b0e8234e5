package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	StageRouting      = "routing"
	StageUnrecognized = "unrecognized"
	StageDone         = "done"
	StageFailed       = "failed"
)

const (
	ErrorKindRetryable = "retryable"
	ErrorKindPermanent = "permanent"
)

// ActionLogEntry traces one processing attempt of an IntakeEvent.
// A retry starts a fresh entry, so the history of earlier attempts is kept intact.
type ActionLogEntry struct {
	ID                uuid.UUID    `json:"id"`
	IntakeEventID     uuid.UUID    `json:"intake_event_id"`
	Attempt           int          `json:"attempt"`
	Stage             string       `json:"stage"`
	ActionsExecuted   []string     `json:"actions_executed"`
	ConsumersNotified []string     `json:"consumers_notified"`
	ErrorDetail       *ErrorDetail `json:"error_detail,omitempty"`
	DurationMs        *int64       `json:"duration_ms,omitempty"`
	StartedAt         time.Time    `json:"started_at"`
	FinishedAt        *time.Time   `json:"finished_at,omitempty"`
}

type ErrorDetail struct {
	Step    string `json:"step,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
