package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/atelierhub/backend/internal/models"
	"github.com/atelierhub/backend/internal/repository"
)

type memServices struct {
	byID map[uuid.UUID]*models.Service
}

func newMemServices() *memServices {
	return &memServices{byID: map[uuid.UUID]*models.Service{}}
}

func (m *memServices) Create(_ context.Context, s *models.Service) error {
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memServices) GetByID(_ context.Context, id uuid.UUID) (*models.Service, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (m *memServices) ListActive(_ context.Context) ([]*models.Service, error) {
	var list []*models.Service
	for _, s := range m.byID {
		if s.Active {
			list = append(list, s)
		}
	}
	return list, nil
}

func (m *memServices) ListByCreator(_ context.Context, creatorID uuid.UUID) ([]*models.Service, error) {
	var list []*models.Service
	for _, s := range m.byID {
		if s.CreatorID == creatorID {
			list = append(list, s)
		}
	}
	return list, nil
}

func (m *memServices) SetActive(_ context.Context, id uuid.UUID, creatorID uuid.UUID, active bool) error {
	s, ok := m.byID[id]
	if !ok || s.CreatorID != creatorID {
		return repository.ErrNotFound
	}
	s.Active = active
	return nil
}

func TestCreateListing(t *testing.T) {
	svc := NewService(newMemServices())
	creatorID := uuid.New()

	listing, err := svc.CreateListing(context.Background(), creatorID, "Character illustration", "full body, colored", 8000)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	if listing.CreatorID != creatorID || !listing.Active {
		t.Fatalf("listing = %+v", listing)
	}

	if _, err := svc.CreateListing(context.Background(), creatorID, "", "", 100); !errors.Is(err, ErrInvalidListing) {
		t.Fatalf("empty title: err = %v, want ErrInvalidListing", err)
	}
	if _, err := svc.CreateListing(context.Background(), creatorID, "X", "", -1); !errors.Is(err, ErrInvalidListing) {
		t.Fatalf("negative price: err = %v, want ErrInvalidListing", err)
	}
}

func TestSetActiveOwnershipCheck(t *testing.T) {
	store := newMemServices()
	svc := NewService(store)
	creatorID := uuid.New()
	listing, err := svc.CreateListing(context.Background(), creatorID, "Logo design", "", 5000)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}

	if err := svc.SetActive(context.Background(), listing.ID, uuid.New(), false); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("foreign creator: err = %v, want ErrNotFound", err)
	}
	if err := svc.SetActive(context.Background(), listing.ID, creatorID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	active, err := svc.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("deactivated listing still active: %v", active)
	}
}
