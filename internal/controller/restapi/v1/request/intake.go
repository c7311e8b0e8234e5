package request

import "encoding/json"

type Intake struct {
	Source     string          `json:"source"`
	EventType  string          `json:"event_type"`
	DeliveryID string          `json:"delivery_id,omitempty"`
	Payload    json.RawMessage `json:"payload" swaggertype:"object"`
}
