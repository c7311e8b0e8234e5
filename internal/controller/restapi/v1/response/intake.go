package response

import (
	"encoding/json"
	"time"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
)

type Enqueued struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Intake struct {
	ID            string          `json:"id"`
	Source        string          `json:"source"`
	EventType     string          `json:"event_type"`
	DeliveryID    *string         `json:"delivery_id,omitempty"`
	Payload       json.RawMessage `json:"payload" swaggertype:"object"`
	Status        string          `json:"status"`
	RetryCount    int             `json:"retry_count"`
	NextAttemptAt string          `json:"next_attempt_at"`
	LastError     *string         `json:"last_error,omitempty"`
	CreatedAt     string          `json:"created_at"`
	ProcessedAt   *string         `json:"processed_at,omitempty"`
	ArchivedAt    *string         `json:"archived_at,omitempty"`
	ReplayedFrom  *string         `json:"replayed_from,omitempty"`
	ReceivedAt    string          `json:"received_at"`
}

type IntakeList struct {
	Items []Intake `json:"items"`
	Count int      `json:"count"`
}

type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

type Replayed struct {
	ReplayedFrom string `json:"replayed_from"`
	ID           string `json:"id"`
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optionalTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := timestamp(*t)
	return &s
}

func NewIntake(e *entity.IntakeEvent) Intake {
	return Intake{
		ID:            e.ID.String(),
		Source:        string(e.Source),
		EventType:     e.EventType,
		DeliveryID:    e.DeliveryID,
		Payload:       e.Payload,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		NextAttemptAt: timestamp(e.NextAttemptAt),
		LastError:     e.LastError,
		CreatedAt:     timestamp(e.CreatedAt),
		ProcessedAt:   optionalTimestamp(e.ProcessedAt),
		ArchivedAt:    optionalTimestamp(e.ArchivedAt),
		ReplayedFrom:  replayedFrom(e),
		ReceivedAt:    timestamp(e.Received()),
	}
}

func replayedFrom(e *entity.IntakeEvent) *string {
	if e.ReplayedFrom == nil {
		return nil
	}
	s := e.ReplayedFrom.String()
	return &s
}

func NewIntakeList(events []*entity.IntakeEvent) IntakeList {
	items := make([]Intake, 0, len(events))
	for _, e := range events {
		items = append(items, NewIntake(e))
	}
	return IntakeList{Items: items, Count: len(items)}
}

func NewStats(counts map[entity.Status]int64) Stats {
	return Stats{
		Pending:    counts[entity.Pending],
		Processing: counts[entity.Processing],
		Completed:  counts[entity.Completed],
		Failed:     counts[entity.Failed],
	}
}
