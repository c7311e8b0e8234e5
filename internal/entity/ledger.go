package entity

import (
	"time"

	"github.com/google/uuid"
)

type LedgerKind string

const (
	LedgerIncome LedgerKind = "income"
	LedgerRefund LedgerKind = "refund"
)

// LedgerEntry is unique per (TransactionID, Kind).
type LedgerEntry struct {
	ID            uuid.UUID  `json:"id"`
	TransactionID string     `json:"transaction_id"`
	Kind          LedgerKind `json:"kind"`
	AmountCents   int64      `json:"amount_cents"`
	Currency      string     `json:"currency"`
	Description   string     `json:"description"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// Commission is unique per (TransactionID, AffiliateCode).
type Commission struct {
	TransactionID string    `json:"transaction_id"`
	AffiliateCode string    `json:"affiliate_code"`
	AmountCents   int64     `json:"amount_cents"`
	CreatedAt     time.Time `json:"created_at"`
}
