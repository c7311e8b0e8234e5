package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CommandStatus string

const CommandUnclaimed CommandStatus = "unclaimed"

const TargetAINotifier = "ai_notifier"

// Command is a unit of work for the asynchronous AI/notification consumer.
// Once enqueued its lifecycle belongs to the consumer.
type Command struct {
	ID            uuid.UUID       `json:"id"`
	Target        string          `json:"target"`
	Action        string          `json:"action"`
	Parameters    json.RawMessage `json:"parameters"`
	OriginEventID uuid.UUID       `json:"origin_event_id"`
	Priority      int             `json:"priority"` // lower = more urgent
	Status        CommandStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
}
