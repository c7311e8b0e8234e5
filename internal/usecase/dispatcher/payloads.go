package dispatcher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/andreyxaxa/Webhook-Pipeline/pkg/types/errs"
)

const _defaultCurrency = "BRL"

type purchasePayload struct {
	TransactionID   string    `json:"transaction_id"`
	BuyerEmail      string    `json:"buyer_email"`
	BuyerName       string    `json:"buyer_name"`
	ProductID       string    `json:"product_id"`
	ProductName     string    `json:"product_name"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	AffiliateCode   string    `json:"affiliate_code"`
	CommissionCents int64     `json:"commission_cents"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type cancellationPayload struct {
	TransactionID string    `json:"transaction_id"`
	AmountCents   int64     `json:"amount_cents"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type subscriptionPayload struct {
	SubscriptionID string    `json:"subscription_id"`
	BuyerEmail     string    `json:"buyer_email"`
	ProductID      string    `json:"product_id"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type userPayload struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Groups      []string `json:"groups"`
}

type messagePayload struct {
	Phone      string    `json:"phone"`
	Name       string    `json:"name"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

type marketingPayload struct {
	Phone      string    `json:"phone"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Tags       []string  `json:"tags"`
	CapturedAt time.Time `json:"captured_at"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), errs.ErrValidation)
}

func unmarshal(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalid("malformed payload: %v", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

// normalizePhone keeps only the digits of a phone number.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func orDefault(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}

func decodePurchase(raw json.RawMessage, env Env) (purchasePayload, error) {
	var p purchasePayload
	if err := unmarshal(raw, &p); err != nil {
		return p, err
	}

	p.TransactionID = strings.TrimSpace(p.TransactionID)
	p.BuyerEmail = normalizeEmail(p.BuyerEmail)
	p.BuyerName = strings.TrimSpace(p.BuyerName)
	p.AffiliateCode = strings.TrimSpace(p.AffiliateCode)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = _defaultCurrency
	}
	p.OccurredAt = orDefault(p.OccurredAt, env.Event.Received())

	switch {
	case p.TransactionID == "":
		return p, invalid("transaction_id is required")
	case !validEmail(p.BuyerEmail):
		return p, invalid("buyer_email %q is not an email", p.BuyerEmail)
	case p.AmountCents <= 0:
		return p, invalid("amount_cents must be positive, got %d", p.AmountCents)
	case p.CommissionCents < 0 || p.CommissionCents > p.AmountCents:
		return p, invalid("commission_cents %d out of range", p.CommissionCents)
	}

	return p, nil
}

func decodeCancellation(raw json.RawMessage, env Env) (cancellationPayload, error) {
	var p cancellationPayload
	if err := unmarshal(raw, &p); err != nil {
		return p, err
	}

	p.TransactionID = strings.TrimSpace(p.TransactionID)
	p.OccurredAt = orDefault(p.OccurredAt, env.Event.Received())

	if p.TransactionID == "" {
		return p, invalid("transaction_id is required")
	}
	if p.AmountCents < 0 {
		return p, invalid("amount_cents must not be negative")
	}

	return p, nil
}

func decodeSubscription(raw json.RawMessage, env Env) (subscriptionPayload, error) {
	var p subscriptionPayload
	if err := unmarshal(raw, &p); err != nil {
		return p, err
	}

	p.BuyerEmail = normalizeEmail(p.BuyerEmail)
	p.OccurredAt = orDefault(p.OccurredAt, env.Event.Received())

	if !validEmail(p.BuyerEmail) {
		return p, invalid("buyer_email %q is not an email", p.BuyerEmail)
	}

	return p, nil
}

func decodeUser(raw json.RawMessage, _ Env) (userPayload, error) {
	var p userPayload
	if err := unmarshal(raw, &p); err != nil {
		return p, err
	}

	p.UserID = strings.TrimSpace(p.UserID)
	p.Email = normalizeEmail(p.Email)
	for i, g := range p.Groups {
		p.Groups[i] = strings.ToLower(strings.TrimSpace(g))
	}

	if p.UserID == "" {
		return p, invalid("user_id is required")
	}
	if !validEmail(p.Email) {
		return p, invalid("email %q is not an email", p.Email)
	}

	return p, nil
}

func decodeDeletedUser(raw json.RawMessage, _ Env) (userPayload, error) {
	var p userPayload
	if err := unmarshal(raw, &p); err != nil {
		return p, err
	}

	p.UserID = strings.TrimSpace(p.UserID)
	if p.UserID == "" {
		return p, invalid("user_id is required")
	}

	return p, nil
}

const _minPhoneDigits = 8

func decodeMessage(raw json.RawMessage, env Env) (messagePayload, error) {
	var p messagePayload
	if err := unmarshal(raw, &p); err != nil {
		return p, err
	}

	p.Phone = normalizePhone(p.Phone)
	p.Name = strings.TrimSpace(p.Name)
	p.Text = strings.TrimFunc(p.Text, unicode.IsSpace)
	p.ReceivedAt = orDefault(p.ReceivedAt, env.Event.Received())

	if len(p.Phone) < _minPhoneDigits {
		return p, invalid("phone must have at least %d digits", _minPhoneDigits)
	}

	return p, nil
}

func decodeMarketing(raw json.RawMessage, env Env) (marketingPayload, error) {
	var p marketingPayload
	if err := unmarshal(raw, &p); err != nil {
		return p, err
	}

	p.Phone = normalizePhone(p.Phone)
	p.Name = strings.TrimSpace(p.Name)
	p.Email = normalizeEmail(p.Email)
	p.CapturedAt = orDefault(p.CapturedAt, env.Event.Received())

	if len(p.Phone) < _minPhoneDigits {
		return p, invalid("phone must have at least %d digits", _minPhoneDigits)
	}
	if p.Email != "" && !validEmail(p.Email) {
		return p, invalid("email %q is not an email", p.Email)
	}

	return p, nil
}
