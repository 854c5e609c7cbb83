// Package catalog manages the public listing of creator services that
// customers open inquiries against.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/atelierhub/backend/internal/models"
)

var ErrInvalidListing = errors.New("invalid service listing")

// ServiceStore is the listing persistence surface.
type ServiceStore interface {
	Create(ctx context.Context, s *models.Service) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
	ListActive(ctx context.Context) ([]*models.Service, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Service, error)
	SetActive(ctx context.Context, id uuid.UUID, creatorID uuid.UUID, active bool) error
}

type Service interface {
	CreateListing(ctx context.Context, creatorID uuid.UUID, title, description string, basePriceCents int64) (*models.Service, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Service, error)
	ListActive(ctx context.Context) ([]*models.Service, error)
	ListMine(ctx context.Context, creatorID uuid.UUID) ([]*models.Service, error)
	SetActive(ctx context.Context, id uuid.UUID, creatorID uuid.UUID, active bool) error
}

type service struct {
	store ServiceStore
}

func NewService(store ServiceStore) *service {
	return &service{store: store}
}

var _ Service = (*service)(nil)

func (s *service) CreateListing(ctx context.Context, creatorID uuid.UUID, title, description string, basePriceCents int64) (*models.Service, error) {
	if title == "" || basePriceCents < 0 {
		return nil, ErrInvalidListing
	}
	listing := &models.Service{
		ID:             uuid.New(),
		CreatorID:      creatorID,
		Title:          title,
		Description:    description,
		BasePriceCents: basePriceCents,
		Active:         true,
	}
	if err := s.store.Create(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	return s.store.GetByID(ctx, id)
}

func (s *service) ListActive(ctx context.Context) ([]*models.Service, error) {
	return s.store.ListActive(ctx)
}

func (s *service) ListMine(ctx context.Context, creatorID uuid.UUID) ([]*models.Service, error) {
	return s.store.ListByCreator(ctx, creatorID)
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, creatorID uuid.UUID, active bool) error {
	return s.store.SetActive(ctx, id, creatorID, active)
}
