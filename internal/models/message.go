package models

import (
	"time"

	"github.com/google/uuid"
)

// Sender roles. A closed enum; role-specific behavior hangs off the Roles
// table rather than scattered conditionals.
const (
	RoleCustomer = "customer"
	RoleCreator  = "creator"
	RoleAdmin    = "admin"
	RoleSystem   = "system"
)

// RoleInfo carries per-role display and permission rules.
type RoleInfo struct {
	Label   string
	CanPost bool // may author thread messages through the API
}

// Roles is the lookup table for the sender-role enum.
var Roles = map[string]RoleInfo{
	RoleCustomer: {Label: "Customer", CanPost: true},
	RoleCreator:  {Label: "Creator", CanPost: true},
	RoleAdmin:    {Label: "Admin", CanPost: true},
	RoleSystem:   {Label: "System", CanPost: false},
}

// ValidRole reports whether role is a known sender role.
func ValidRole(role string) bool {
	_, ok := Roles[role]
	return ok
}

// Message types.
const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
	MessageTypeQuote  = "quote"
)

// Message is one entry in a transaction's append-only thread. Messages are
// never edited or deleted; ordering is creation-time total order.
type Message struct {
	ID             uuid.UUID  `json:"id"`
	TransactionID  uuid.UUID  `json:"transaction_id"`
	SenderRole     string     `json:"sender_role"`
	SenderName     string     `json:"sender_name"`
	Body           string     `json:"body"`
	Type           string     `json:"type"`
	QuoteID        *uuid.UUID `json:"quote_id,omitempty"`
	ReadByCreator  bool       `json:"read_by_creator"`
	ReadByCustomer bool       `json:"read_by_customer"`
	CreatedAt      time.Time  `json:"created_at"`
}
