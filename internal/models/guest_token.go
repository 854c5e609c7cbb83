package models

import (
	"time"

	"github.com/google/uuid"
)

// GuestAccessValidity is how long an issued guest token stays usable.
const GuestAccessValidity = 7 * 24 * time.Hour

// GuestToken grants a non-member customer access to one transaction via an
// emailed link. The token is an opaque random string; it is revalidated on
// every request and not consumed on use.
type GuestToken struct {
	Token         string    `json:"token"`
	TransactionID uuid.UUID `json:"transaction_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}
