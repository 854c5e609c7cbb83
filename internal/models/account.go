package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a registered member: a creator offering services, a customer
// commissioning them, or a platform admin.
type Account struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"` // creator | customer | admin
	CreatedAt   time.Time `json:"created_at"`
}
