package commission

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	"github.com/atelierhub/backend/internal/middleware"
	"github.com/atelierhub/backend/internal/models"
	"github.com/atelierhub/backend/internal/repository"
)

// maxDeliverableBytes caps the multipart body on delivery uploads.
const maxDeliverableBytes = 64 << 20

// Attacher stores deliverable files against the delivery message.
type Attacher interface {
	AddAttachment(ctx context.Context, caller models.Caller, code string, messageID uuid.UUID, fileName, contentType string, r io.Reader, deliverable bool) (*models.Attachment, error)
}

type Handler struct {
	svc      *Service
	attacher Attacher
	log      *slog.Logger
}

func NewHandler(svc *Service, attacher Attacher, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, attacher: attacher, log: log}
}

// Request/response structs use snake_case JSON.

type CreateInquiryRequest struct {
	ServiceID  uuid.UUID `json:"service_id"`
	GuestEmail string    `json:"guest_email,omitempty"`
	GuestName  string    `json:"guest_name,omitempty"`
	Body       string    `json:"body"`
}

type CreateInquiryResponse struct {
	Transaction *models.Transaction `json:"transaction"`
	GuestToken  string              `json:"guest_token,omitempty"`
}

type QuoteRequest struct {
	Items         []models.QuoteItem `json:"items"`
	TaxRatePct    int64              `json:"tax_rate_pct"`
	EstimatedDays int                `json:"estimated_days,omitempty"`
	Notes         string             `json:"notes,omitempty"`
}

type AcceptRequest struct {
	QuoteID uuid.UUID `json:"quote_id"`
}

type PayRequest struct {
	AmountCents   int64  `json:"amount_cents"`
	PaymentMethod string `json:"payment_method"`
}

type NoteRequest struct {
	Note string `json:"note"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CreateInquiry(w http.ResponseWriter, r *http.Request) {
	var req CreateInquiryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	in := CreateInquiryInput{ServiceID: req.ServiceID, Body: req.Body}
	if caller, ok := middleware.CallerFromCtx(r.Context()); ok && !caller.IsGuest() {
		id := caller.AccountID
		in.CustomerID = &id
	} else {
		if req.GuestEmail != "" {
			in.GuestEmail = &req.GuestEmail
		}
		if req.GuestName != "" {
			in.GuestName = &req.GuestName
		}
	}
	tr, token, err := h.svc.CreateInquiry(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateInquiryResponse{Transaction: tr, GuestToken: token})
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}
	tr, err := h.svc.View(r.Context(), caller, r.PathValue("code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (h *Handler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}
	quotes, err := h.svc.ListQuotes(r.Context(), caller, r.PathValue("code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.simpleAction(w, r, func(ctx context.Context, caller models.Caller, code string) error {
		return h.svc.Acknowledge(ctx, caller, code)
	})
}

func (h *Handler) SendQuote(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	q, err := h.svc.SendQuote(r.Context(), caller, r.PathValue("code"), QuoteInput{
		Items:         req.Items,
		TaxRatePct:    req.TaxRatePct,
		EstimatedDays: req.EstimatedDays,
		Notes:         req.Notes,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) RequestQuoteRevision(w http.ResponseWriter, r *http.Request) {
	h.noteAction(w, r, h.svc.RequestQuoteRevision)
}

func (h *Handler) AcceptQuote(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}
	var req AcceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	tr, err := h.svc.AcceptQuote(r.Context(), caller, r.PathValue("code"), req.QuoteID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}
	var req PayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	tr, err := h.svc.Pay(r.Context(), caller, r.PathValue("code"), req.AmountCents, req.PaymentMethod)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (h *Handler) StartProgress(w http.ResponseWriter, r *http.Request) {
	h.simpleAction(w, r, func(ctx context.Context, caller models.Caller, code string) error {
		return h.svc.StartProgress(ctx, caller, code)
	})
}

// Deliver accepts multipart form data: a "note" field plus any number of
// "files" parts, stored as deliverable attachments on the delivery message.
func (h *Handler) Deliver(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}
	if err := r.ParseMultipartForm(maxDeliverableBytes); err != nil {
		http.Error(w, `{"error":"expected multipart form data"}`, http.StatusBadRequest)
		return
	}
	code := r.PathValue("code")
	msg, err := h.svc.Deliver(r.Context(), caller, code, r.FormValue("note"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	var stored []*models.Attachment
	for _, fh := range r.MultipartForm.File["files"] {
		a, err := h.storeDeliverable(r.Context(), caller, code, msg.ID, fh)
		if err != nil {
			h.log.Error("store deliverable failed", "transaction", code, "file", fh.Filename, "error", err)
			http.Error(w, `{"error":"failed to store deliverable"}`, http.StatusInternalServerError)
			return
		}
		stored = append(stored, a)
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "attachments": stored})
}

func (h *Handler) storeDeliverable(ctx context.Context, caller models.Caller, code string, messageID uuid.UUID, fh *multipart.FileHeader) (*models.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return h.attacher.AddAttachment(ctx, caller, code, messageID, fh.Filename, fh.Header.Get("Content-Type"), f, true)
}

func (h *Handler) RequestRevision(w http.ResponseWriter, r *http.Request) {
	h.noteAction(w, r, h.svc.RequestRevision)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.simpleAction(w, r, func(ctx context.Context, caller models.Caller, code string) error {
		return h.svc.Approve(ctx, caller, code)
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.reasonAction(w, r, h.svc.Cancel)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	h.reasonAction(w, r, h.svc.Refund)
}

// --- shared plumbing ---

func (h *Handler) simpleAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, models.Caller, string) error) {
	caller, ok := middleware.CallerFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}
	code := r.PathValue("code")
	if err := fn(r.Context(), caller, code); err != nil {
		h.writeError(w, err)
		return
	}
	tr, err := h.svc.View(r.Context(), caller, code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

func (h *Handler) noteAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, models.Caller, string, string) error) {
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	h.simpleAction(w, r, func(ctx context.Context, caller models.Caller, code string) error {
		return fn(ctx, caller, code, req.Note)
	})
}

func (h *Handler) reasonAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, models.Caller, string, string) error) {
	var req ReasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	h.simpleAction(w, r, func(ctx context.Context, caller models.Caller, code string) error {
		return fn(ctx, caller, code, req.Reason)
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var te *TransitionError
	switch {
	case errors.As(err, &te):
		writeJSON(w, http.StatusConflict, map[string]string{"error": te.Error()})
	case errors.Is(err, repository.ErrStatusConflict), errors.Is(err, repository.ErrQuoteNotSent):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrQuoteNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, ErrAmountMismatch):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrPaymentFailed):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrEmptyQuote), errors.Is(err, ErrQuoteMismatch),
		errors.Is(err, ErrCustomerIdentity), errors.Is(err, ErrDeliveryRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
