package models

import (
	"time"

	"github.com/google/uuid"
)

// Quote status values. Quotes are never edited or deleted; a correction is a
// new version and the old one becomes superseded.
const (
	QuoteStatusDraft      = "draft"
	QuoteStatusSent       = "sent"
	QuoteStatusAccepted   = "accepted"
	QuoteStatusSuperseded = "superseded"
)

// QuoteItem is one priced line of a quote. Items are stored as jsonb; they are
// never flattened into delimited strings.
type QuoteItem struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

// Quote is a versioned proposal belonging to a transaction. Version numbers
// strictly increase from 1 per transaction.
type Quote struct {
	ID            uuid.UUID   `json:"id"`
	TransactionID uuid.UUID   `json:"transaction_id"`
	Version       int         `json:"version"`
	Items         []QuoteItem `json:"items"`
	SubtotalCents int64       `json:"subtotal_cents"`
	TaxRatePct    int64       `json:"tax_rate_pct"`
	TaxCents      int64       `json:"tax_cents"`
	TotalCents    int64       `json:"total_cents"`
	EstimatedDays int         `json:"estimated_days"`
	Notes         string      `json:"notes"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}

// ComputeQuoteTotals derives subtotal, tax and total from the line items.
// Tax is floor(subtotal × rate/100); integer division on non-negative cents
// is exactly that floor.
func ComputeQuoteTotals(items []QuoteItem, taxRatePct int64) (subtotal, tax, total int64) {
	for _, it := range items {
		subtotal += it.PriceCents
	}
	tax = subtotal * taxRatePct / 100
	total = subtotal + tax
	return subtotal, tax, total
}
