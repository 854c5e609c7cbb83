package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/atelierhub/backend/internal/middleware"
	"github.com/atelierhub/backend/internal/models"
	"github.com/atelierhub/backend/internal/repository"
)

// Request/response structs use snake_case JSON.

type CreateListingRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	BasePriceCents int64  `json:"base_price_cents"`
}

type SetActiveRequest struct {
	Active bool `json:"active"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	caller, ok := creatorCaller(w, r)
	if !ok {
		return
	}
	var req CreateListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	listing, err := h.svc.CreateListing(r.Context(), caller.AccountID, req.Title, req.Description, req.BasePriceCents)
	if err != nil {
		if errors.Is(err, ErrInvalidListing) {
			http.Error(w, `{"error":"invalid service listing"}`, http.StatusBadRequest)
			return
		}
		h.log.Error("create listing failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListActive(r.Context())
	if err != nil {
		h.log.Error("list services failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}
	listing, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("get service failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	caller, ok := creatorCaller(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListMine(r.Context(), caller.AccountID)
	if err != nil {
		h.log.Error("list own services failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	caller, ok := creatorCaller(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}
	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if err := h.svc.SetActive(r.Context(), id, caller.AccountID, req.Active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		h.log.Error("set service active failed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func creatorCaller(w http.ResponseWriter, r *http.Request) (models.Caller, bool) {
	caller, ok := middleware.CallerFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return models.Caller{}, false
	}
	if caller.Role != models.RoleCreator {
		http.Error(w, `{"error":"creator account required"}`, http.StatusForbidden)
		return models.Caller{}, false
	}
	return caller, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
