package model

import "time"

// PriceQuote is the computed price breakdown for a prospective lease or
// renewal. Quotes are never persisted.
type PriceQuote struct {
	Price                float64 `json:"price"`
	PriceWithoutDiscount float64 `json:"price_without_discount"`
	Discount             float64 `json:"discount"`
	DiscountType         string  `json:"discount_type,omitempty"`
	Reward               float64 `json:"reward"`
	Duration             string  `json:"duration"`
	Length               int     `json:"length"`
}

// Free reports whether the quoted lease settles without payment.
func (q PriceQuote) Free() bool {
	return q.Price == 0
}

// PaymentIntent pairs a held name with its per-chain receiving addresses
// and the amount expected on each rail. Count increments every time the
// intent is regenerated so stale intents are never reused.
type PaymentIntent struct {
	ID         string            `json:"id"`
	TagName    string            `json:"tag_name"`
	Addresses  map[string]string `json:"addresses"`
	AmountUSD  float64           `json:"amount_usd"`
	ChargeID   string            `json:"charge_id,omitempty"`
	ChargeURL  string            `json:"charge_url,omitempty"`
	Count      int               `json:"count"`
	CreatedAt  time.Time         `json:"created_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// Confirmation is the outcome of one payment-rail check.
type Confirmation struct {
	Confirmed      bool    `json:"confirmed"`
	Network        string  `json:"network"`
	Method         string  `json:"method"`
	AmountReceived float64 `json:"amount_received"`
}

// Confirmation method constants.
const (
	ConfirmMethodBalance      = "balance"
	ConfirmMethodTransactions = "transactions"
	ConfirmMethodTimeline     = "timeline"
	ConfirmMethodForced       = "forced"
)
