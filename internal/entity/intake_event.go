package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Source string

const (
	SourcePaymentPlatform   Source = "payment_platform"
	SourceCMSPlatform       Source = "cms_platform"
	SourceMessagingPlatform Source = "messaging_platform"
	SourceMarketingPlatform Source = "marketing_platform"
)

func (s Source) Valid() bool {
	switch s {
	case SourcePaymentPlatform, SourceCMSPlatform, SourceMessagingPlatform, SourceMarketingPlatform:
		return true
	}
	return false
}

// IntakeEvent is one received webhook call. Payload is immutable once written.
type IntakeEvent struct {
	ID         uuid.UUID       `json:"id"`
	Source     Source          `json:"source"`
	EventType  string          `json:"event_type"`
	DeliveryID *string         `json:"delivery_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`

	Status        Status     `json:"status"` // pending, processing, completed, failed
	RetryCount    int        `json:"retry_count"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty"`

	// Set on replays: the first event of the lineage and when it was received.
	ReplayedFrom *uuid.UUID `json:"replayed_from,omitempty"`
	ReceivedAt   time.Time  `json:"received_at"`
}

// OriginID identifies the lineage of the event. Side effects keyed by it are shared
// between an event and its replays.
func (e *IntakeEvent) OriginID() uuid.UUID {
	if e.ReplayedFrom != nil {
		return *e.ReplayedFrom
	}
	return e.ID
}

// Received is when the platform first delivered the event.
func (e *IntakeEvent) Received() time.Time {
	if e.ReceivedAt.IsZero() {
		return e.CreatedAt
	}
	return e.ReceivedAt
}

// Attempt is the 1-based number of the attempt that is about to run.
func (e *IntakeEvent) Attempt() int {
	return e.RetryCount + 1
}

type IntakeFilter struct {
	Status    Status
	Source    Source
	EventType string
	Limit     int
}
