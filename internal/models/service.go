package models

import (
	"time"

	"github.com/google/uuid"
)

// Service is a commissionable offering listed by a creator. Transactions link
// back to the service they originated from.
type Service struct {
	ID             uuid.UUID `json:"id"`
	CreatorID      uuid.UUID `json:"creator_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	BasePriceCents int64     `json:"base_price_cents"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
