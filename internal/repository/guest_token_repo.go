package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelierhub/backend/internal/models"
)

type GuestTokenRepo struct {
	pool *pgxpool.Pool
}

func NewGuestTokenRepo(pool *pgxpool.Pool) *GuestTokenRepo {
	return &GuestTokenRepo{pool: pool}
}

func (r *GuestTokenRepo) Create(ctx context.Context, gt *models.GuestToken) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO guest_tokens (token, transaction_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, gt.Token, gt.TransactionID, gt.ExpiresAt).Scan(&gt.CreatedAt)
}

// CreateTx inserts a token inside the caller's transaction; used when token
// issuance must commit atomically with transaction creation.
func (r *GuestTokenRepo) CreateTx(ctx context.Context, tx pgx.Tx, gt *models.GuestToken) error {
	return tx.QueryRow(ctx, `
		INSERT INTO guest_tokens (token, transaction_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, gt.Token, gt.TransactionID, gt.ExpiresAt).Scan(&gt.CreatedAt)
}

// GetByToken returns (nil, nil) when the token is unknown, so the caller can
// collapse unknown and expired into one generic failure.
func (r *GuestTokenRepo) GetByToken(ctx context.Context, token string) (*models.GuestToken, error) {
	var gt models.GuestToken
	err := r.pool.QueryRow(ctx, `
		SELECT token, transaction_id, expires_at, created_at FROM guest_tokens WHERE token = $1
	`, token).Scan(&gt.Token, &gt.TransactionID, &gt.ExpiresAt, &gt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gt, nil
}
