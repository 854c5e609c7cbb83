// Package guest issues and validates the opaque access tokens that let a
// non-member customer reach one transaction through an emailed link.
package guest

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atelierhub/backend/internal/models"
)

// ErrInvalidToken is returned for unknown and expired tokens alike, so an
// observer cannot distinguish the two or probe for transaction existence.
var ErrInvalidToken = errors.New("invalid or expired guest token")

// TokenStore is the persistence surface for guest tokens.
type TokenStore interface {
	Create(ctx context.Context, gt *models.GuestToken) error
	CreateTx(ctx context.Context, tx pgx.Tx, gt *models.GuestToken) error
	GetByToken(ctx context.Context, token string) (*models.GuestToken, error)
}

type Service struct {
	store TokenStore
}

func NewService(store TokenStore) *Service {
	return &Service{store: store}
}

// newToken returns 32 bytes of crypto randomness, base64url-encoded. Tokens
// are indistinguishable from random strings; no sequence or structure.
func newToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

// Issue creates a token for the transaction, valid for the fixed guest access
// window.
func (s *Service) Issue(ctx context.Context, transactionID uuid.UUID) (string, error) {
	tok, err := newToken()
	if err != nil {
		return "", err
	}
	gt := &models.GuestToken{
		Token:         tok,
		TransactionID: transactionID,
		ExpiresAt:     time.Now().UTC().Add(models.GuestAccessValidity),
	}
	if err := s.store.Create(ctx, gt); err != nil {
		return "", err
	}
	return tok, nil
}

// IssueTx is Issue inside the caller's database transaction.
func (s *Service) IssueTx(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID) (string, error) {
	tok, err := newToken()
	if err != nil {
		return "", err
	}
	gt := &models.GuestToken{
		Token:         tok,
		TransactionID: transactionID,
		ExpiresAt:     time.Now().UTC().Add(models.GuestAccessValidity),
	}
	if err := s.store.CreateTx(ctx, tx, gt); err != nil {
		return "", err
	}
	return tok, nil
}

// Validate resolves a presented token to its bound transaction id. The token
// is not consumed; guests revisit the same link until expiry.
func (s *Service) Validate(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrInvalidToken
	}
	gt, err := s.store.GetByToken(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}
	if gt == nil || time.Now().After(gt.ExpiresAt) {
		return uuid.Nil, ErrInvalidToken
	}
	return gt.TransactionID, nil
}
