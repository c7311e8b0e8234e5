package kafka

import (
	"encoding/json"

	"github.com/andreyxaxa/Webhook-Pipeline/internal/entity"
)

// IntakeEnvelope is the message format of the intake topic.
type IntakeEnvelope struct {
	Source     entity.Source   `json:"source"`
	EventType  string          `json:"event_type"`
	DeliveryID string          `json:"delivery_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}
