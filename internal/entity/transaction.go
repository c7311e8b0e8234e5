package entity

import "time"

type TransactionStatus string

const (
	TransactionApproved   TransactionStatus = "approved"
	TransactionCanceled   TransactionStatus = "canceled"
	TransactionRefunded   TransactionStatus = "refunded"
	TransactionChargeback TransactionStatus = "chargeback"
)

// Transaction is keyed by the payment platform's transaction id.
type Transaction struct {
	TransactionID string            `json:"transaction_id"`
	BuyerEmail    string            `json:"buyer_email"`
	BuyerName     string            `json:"buyer_name"`
	ProductID     string            `json:"product_id"`
	ProductName   string            `json:"product_name"`
	AmountCents   int64             `json:"amount_cents"`
	Currency      string            `json:"currency"`
	Status        TransactionStatus `json:"status"`
	AffiliateCode *string           `json:"affiliate_code,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
