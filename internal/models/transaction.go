package models

import (
	"crypto/rand"
	"encoding/base32"
	"time"

	"github.com/google/uuid"
)

// Transaction status values. Status is the single source of truth for which
// operations are currently legal on a transaction.
const (
	StatusInquiry           = "inquiry"
	StatusQuotePending      = "quote_pending"
	StatusQuoteSent         = "quote_sent"
	StatusQuoteRevision     = "quote_revision"
	StatusPaymentPending    = "payment_pending"
	StatusPaid              = "paid"
	StatusInProgress        = "in_progress"
	StatusRevisionRequested = "revision_requested"
	StatusDelivered         = "delivered"
	StatusCompleted         = "completed"
	StatusCancelled         = "cancelled"
	StatusRefunded          = "refunded"
)

// Transaction is one commission engagement between one customer and one
// creator for one service. The customer is either a member account
// (CustomerID) or a guest (GuestEmail/GuestName) — exactly one of the two.
type Transaction struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"code"`
	ServiceID   uuid.UUID  `json:"service_id"`
	CreatorID   uuid.UUID  `json:"creator_id"`
	CustomerID  *uuid.UUID `json:"customer_id,omitempty"`
	GuestEmail  *string    `json:"guest_email,omitempty"`
	GuestName   *string    `json:"guest_name,omitempty"`
	Status      string     `json:"status"`
	FinalPrice  *int64     `json:"final_price,omitempty"`
	TaxAmount   *int64     `json:"tax_amount,omitempty"`
	TotalAmount *int64     `json:"total_amount,omitempty"`
	PaymentRef  *string    `json:"payment_ref,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsGuest reports whether the customer side is a non-member guest.
func (t *Transaction) IsGuest() bool { return t.CustomerID == nil }

// CustomerDisplayName returns the guest name for guest transactions; member
// display names are resolved through the accounts table by callers that need
// them.
func (t *Transaction) CustomerDisplayName() string {
	if t.GuestName != nil {
		return *t.GuestName
	}
	return ""
}

// postAcceptance is the status set in which the commercial fields
// (final_price, tax_amount, total_amount) must be populated.
var postAcceptance = map[string]bool{
	StatusPaymentPending:    true,
	StatusPaid:              true,
	StatusInProgress:        true,
	StatusRevisionRequested: true,
	StatusDelivered:         true,
	StatusCompleted:         true,
}

// AmountsRequired reports whether a transaction in the given status must carry
// the commercial fields.
func AmountsRequired(status string) bool { return postAcceptance[status] }

// Terminal reports whether no further lifecycle events are legal.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled || status == StatusRefunded
}

var codeEncoding = base32.NewEncoding("ABCDEFGHJKLMNPQRSTUVWXYZ23456789").WithPadding(base32.NoPadding)

// NewTransactionCode generates a short, URL-safe, human-readable code usable
// in customer-facing links. 50 bits of randomness; uniqueness is enforced by
// the DB constraint.
func NewTransactionCode() string {
	var b [7]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return codeEncoding.EncodeToString(b[:])[:10]
}
