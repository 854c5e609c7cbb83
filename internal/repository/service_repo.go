package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelierhub/backend/internal/models"
)

type ServiceRepo struct {
	pool *pgxpool.Pool
}

func NewServiceRepo(pool *pgxpool.Pool) *ServiceRepo {
	return &ServiceRepo{pool: pool}
}

func (r *ServiceRepo) Create(ctx context.Context, s *models.Service) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO services (id, creator_id, title, description, base_price_cents, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, s.ID, s.CreatorID, s.Title, s.Description, s.BasePriceCents, s.Active).
		Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *ServiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var s models.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id, creator_id, title, description, base_price_cents, active, created_at, updated_at
		FROM services WHERE id = $1
	`, id).Scan(&s.ID, &s.CreatorID, &s.Title, &s.Description, &s.BasePriceCents, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ServiceRepo) ListActive(ctx context.Context) ([]*models.Service, error) {
	return r.list(ctx, `
		SELECT id, creator_id, title, description, base_price_cents, active, created_at, updated_at
		FROM services WHERE active ORDER BY created_at DESC
	`)
}

func (r *ServiceRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Service, error) {
	return r.list(ctx, `
		SELECT id, creator_id, title, description, base_price_cents, active, created_at, updated_at
		FROM services WHERE creator_id = $1 ORDER BY created_at DESC
	`, creatorID)
}

func (r *ServiceRepo) SetActive(ctx context.Context, id uuid.UUID, creatorID uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE services SET active = $3, updated_at = now()
		WHERE id = $1 AND creator_id = $2
	`, id, creatorID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ServiceRepo) list(ctx context.Context, query string, args ...any) ([]*models.Service, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Service
	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.ID, &s.CreatorID, &s.Title, &s.Description, &s.BasePriceCents, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}
