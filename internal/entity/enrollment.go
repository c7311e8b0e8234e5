package entity

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive   EnrollmentStatus = "active"
	EnrollmentCanceled EnrollmentStatus = "canceled"
	EnrollmentRefunded EnrollmentStatus = "refunded"
	EnrollmentBlocked  EnrollmentStatus = "blocked"
	EnrollmentOverdue  EnrollmentStatus = "overdue"
)

// Enrollment is keyed by the lower-cased buyer email.
type Enrollment struct {
	Email         string           `json:"email"`
	Name          string           `json:"name"`
	ProductID     string           `json:"product_id"`
	Status        EnrollmentStatus `json:"status"`
	TransactionID *string          `json:"transaction_id,omitempty"`
	EnrolledAt    time.Time        `json:"enrolled_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// EnrollmentStatusUpdate moves the enrollment of Email to Status.
// A non-empty TransactionID limits the update to the enrollment that transaction granted.
type EnrollmentStatusUpdate struct {
	Email         string
	TransactionID string
	Status        EnrollmentStatus
	UpdatedAt     time.Time
}
