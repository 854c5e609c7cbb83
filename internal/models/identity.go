package models

import "github.com/google/uuid"

// Caller is the explicit identity threaded through every engine operation:
// either a member account (AccountID + Role) or a guest customer validated by
// an access token (GuestTransactionID). No ambient session state.
type Caller struct {
	Role               string
	AccountID          uuid.UUID
	GuestTransactionID uuid.UUID
	DisplayName        string
}

// IsGuest reports whether the caller authenticated with a guest token.
func (c Caller) IsGuest() bool { return c.GuestTransactionID != uuid.Nil }

// ActsAsCustomer reports whether the caller is the customer party of t.
func (c Caller) ActsAsCustomer(t *Transaction) bool {
	if c.IsGuest() {
		return c.GuestTransactionID == t.ID
	}
	return c.Role == RoleCustomer && t.CustomerID != nil && *t.CustomerID == c.AccountID
}

// ActsAsCreator reports whether the caller is the creator party of t.
func (c Caller) ActsAsCreator(t *Transaction) bool {
	return c.Role == RoleCreator && t.CreatorID == c.AccountID
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// IsParty reports whether the caller may view t at all.
func (c Caller) IsParty(t *Transaction) bool {
	return c.ActsAsCustomer(t) || c.ActsAsCreator(t) || c.IsAdmin()
}
