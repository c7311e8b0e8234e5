package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IdentitySync mirrors a CMS user, keyed by the CMS user id.
type IdentitySync struct {
	ExternalUserID   string    `json:"external_user_id"`
	Email            string    `json:"email"`
	DisplayName      string    `json:"display_name"`
	Groups           []string  `json:"groups"`
	PaymentConfirmed bool      `json:"payment_confirmed"`
	Active           bool      `json:"active"`
	SyncedAt         time.Time `json:"synced_at"`
}

// Lead is keyed by the digits of the contact phone number.
type Lead struct {
	Phone         string    `json:"phone"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Source        Source    `json:"source"`
	Tags          []string  `json:"tags"`
	LastMessage   string    `json:"last_message"`
	LastContactAt time.Time `json:"last_contact_at"`
}

const AuditReasonUnpaidPrivilegedGroup = "privileged_group_without_payment"

// AuditFlag marks a record for human review; unique per (SubjectKey, Reason).
type AuditFlag struct {
	SubjectKey    string          `json:"subject_key"`
	Reason        string          `json:"reason"`
	Details       json.RawMessage `json:"details"`
	OriginEventID uuid.UUID       `json:"origin_event_id"`
	CreatedAt     time.Time       `json:"created_at"`
}
