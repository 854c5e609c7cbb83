package commission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/atelierhub/backend/internal/models"
	"github.com/atelierhub/backend/internal/notify"
	"github.com/atelierhub/backend/internal/payments"
	"github.com/atelierhub/backend/internal/repository"
)

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TransactionStore is the transaction repository surface the engine needs.
type TransactionStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetByCode(ctx context.Context, code string) (*models.Transaction, error)
	Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from []string, upd repository.StatusUpdate) error
	TransitionClearAmounts(ctx context.Context, tx pgx.Tx, id uuid.UUID, from []string, to string) error
}

// QuoteStore is the quote ledger surface the engine needs.
type QuoteStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, q *models.Quote) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	AcceptTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	SupersedeOthersTx(ctx context.Context, tx pgx.Tx, transactionID, keepID uuid.UUID) error
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*models.Quote, error)
}

// MessageStore appends thread messages inside engine transactions.
type MessageStore interface {
	CreateTx(ctx context.Context, tx pgx.Tx, m *models.Message) error
}

// ServiceStore resolves the catalog service a new inquiry targets.
type ServiceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
}

// AccountStore resolves notification recipient addresses.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// GuestTokenIssuer issues guest access tokens inside the creating transaction.
type GuestTokenIssuer interface {
	IssueTx(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID) (string, error)
}

// Notifier dispatches transactional notifications. Best-effort from the
// engine's point of view: failures are logged, never fail the operation.
type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification) error
}

// Service is the transaction state machine: it owns the commission lifecycle,
// validates every mutating operation against current status via the
// transitions table, and coordinates quotes, messages, payment and
// notifications. Every multi-step mutation runs in one database transaction;
// status moves are compare-and-swap updates.
type Service struct {
	pool         TxBeginner
	transactions TransactionStore
	quotes       QuoteStore
	messages     MessageStore
	services     ServiceStore
	accounts     AccountStore
	guests       GuestTokenIssuer
	gateway      payments.Gateway
	notifier     Notifier
	logger       *slog.Logger
}

func NewService(
	pool TxBeginner,
	transactions TransactionStore,
	quotes QuoteStore,
	messages MessageStore,
	services ServiceStore,
	accounts AccountStore,
	guests GuestTokenIssuer,
	gateway payments.Gateway,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		pool:         pool,
		transactions: transactions,
		quotes:       quotes,
		messages:     messages,
		services:     services,
		accounts:     accounts,
		guests:       guests,
		gateway:      gateway,
		notifier:     notifier,
		logger:       logger,
	}
}

func (s *Service) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// apply validates ev against the transaction's loaded status, then performs
// the conditional status UPDATE. The loaded-status check gives a precise error
// early; the UPDATE's source-set condition closes the race against concurrent
// writers.
func (s *Service) apply(ctx context.Context, tx pgx.Tx, tr *models.Transaction, ev Event, upd repository.StatusUpdate) error {
	if err := checkLegal(ev, tr.Status); err != nil {
		return err
	}
	upd.To = target(ev)
	if err := s.transactions.Transition(ctx, tx, tr.ID, sources(ev), upd); err != nil {
		return err
	}
	tr.Status = upd.To
	return nil
}

// --- reads ---

// View returns the transaction for a party caller.
func (s *Service) View(ctx context.Context, caller models.Caller, code string) (*models.Transaction, error) {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !caller.IsParty(tr) {
		return nil, ErrForbidden
	}
	return tr, nil
}

// ListQuotes returns the full quote history, oldest version first.
func (s *Service) ListQuotes(ctx context.Context, caller models.Caller, code string) ([]*models.Quote, error) {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !caller.IsParty(tr) {
		return nil, ErrForbidden
	}
	return s.quotes.ListByTransaction(ctx, tr.ID)
}

// --- lifecycle operations ---

// CreateInquiryInput describes a new commission inquiry. Exactly one of
// CustomerID or the guest pair must be set.
type CreateInquiryInput struct {
	ServiceID  uuid.UUID
	CustomerID *uuid.UUID
	GuestEmail *string
	GuestName  *string
	Body       string
}

// CreateInquiry opens a transaction against a catalog service, appends the
// customer's first message, and (for guests) issues an access token — all in
// one unit. Returns the token for guest customers, empty otherwise.
func (s *Service) CreateInquiry(ctx context.Context, in CreateInquiryInput) (*models.Transaction, string, error) {
	member := in.CustomerID != nil
	guest := in.GuestEmail != nil && *in.GuestEmail != "" && in.GuestName != nil && *in.GuestName != ""
	if member == guest {
		return nil, "", ErrCustomerIdentity
	}
	svc, err := s.services.GetByID(ctx, in.ServiceID)
	if err != nil {
		return nil, "", err
	}

	tr := &models.Transaction{
		ID:         uuid.New(),
		Code:       models.NewTransactionCode(),
		ServiceID:  svc.ID,
		CreatorID:  svc.CreatorID,
		CustomerID: in.CustomerID,
		GuestEmail: in.GuestEmail,
		GuestName:  in.GuestName,
		Status:     models.StatusInquiry,
	}

	senderName := ""
	if guest {
		senderName = *in.GuestName
	} else if acc, err := s.accounts.GetByID(ctx, *in.CustomerID); err == nil {
		senderName = acc.DisplayName
	}

	var token string
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if err := s.transactions.CreateTx(ctx, tx, tr); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		if in.Body != "" {
			msg := newMessage(tr.ID, models.RoleCustomer, senderName, in.Body, models.MessageTypeText, nil)
			if err := s.messages.CreateTx(ctx, tx, msg); err != nil {
				return fmt.Errorf("append inquiry message: %w", err)
			}
		}
		if tr.IsGuest() {
			t, err := s.guests.IssueTx(ctx, tx, tr.ID)
			if err != nil {
				return fmt.Errorf("issue guest token: %w", err)
			}
			token = t
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	s.notify(ctx, tr, models.EventNewInquiry, models.RoleCreator)
	return tr, token, nil
}

// Acknowledge moves a fresh inquiry into the creator's quoting queue.
func (s *Service) Acknowledge(ctx context.Context, caller models.Caller, code string) error {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if !caller.ActsAsCreator(tr) {
		return ErrForbidden
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return s.apply(ctx, tx, tr, EventAcknowledge, repository.StatusUpdate{})
	})
}

// QuoteInput describes a quote proposal.
type QuoteInput struct {
	Items         []models.QuoteItem
	TaxRatePct    int64
	EstimatedDays int
	Notes         string
}

// SendQuote creates the next quote version as sent, supersedes all earlier
// quotes, moves the transaction to quote_sent and appends a quote-typed
// message — one atomic unit. Corrections never edit a quote; they are a new
// version via the quote_revision loop.
func (s *Service) SendQuote(ctx context.Context, caller models.Caller, code string, in QuoteInput) (*models.Quote, error) {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !caller.ActsAsCreator(tr) {
		return nil, ErrForbidden
	}
	if err := checkLegal(EventSendQuote, tr.Status); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, ErrEmptyQuote
	}
	for _, it := range in.Items {
		if it.Name == "" || it.PriceCents < 0 {
			return nil, fmt.Errorf("invalid quote item %q", it.Name)
		}
	}
	if in.TaxRatePct < 0 {
		return nil, fmt.Errorf("tax rate must not be negative")
	}

	sub, tax, total := models.ComputeQuoteTotals(in.Items, in.TaxRatePct)
	q := &models.Quote{
		ID:            uuid.New(),
		TransactionID: tr.ID,
		Items:         in.Items,
		SubtotalCents: sub,
		TaxRatePct:    in.TaxRatePct,
		TaxCents:      tax,
		TotalCents:    total,
		EstimatedDays: in.EstimatedDays,
		Notes:         in.Notes,
		Status:        models.QuoteStatusSent,
	}

	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if err := s.quotes.CreateTx(ctx, tx, q); err != nil {
			return fmt.Errorf("create quote: %w", err)
		}
		if err := s.quotes.SupersedeOthersTx(ctx, tx, tr.ID, q.ID); err != nil {
			return fmt.Errorf("supersede quotes: %w", err)
		}
		if err := s.apply(ctx, tx, tr, EventSendQuote, repository.StatusUpdate{}); err != nil {
			return err
		}
		msg := newMessage(tr.ID, models.RoleCreator, caller.DisplayName,
			fmt.Sprintf("Sent quote v%d (total %d)", q.Version, q.TotalCents),
			models.MessageTypeQuote, &q.ID)
		return s.messages.CreateTx(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, tr, models.EventQuoteSent, models.RoleCustomer)
	return q, nil
}

// RequestQuoteRevision sends a sent quote back to the creator for rework.
func (s *Service) RequestQuoteRevision(ctx context.Context, caller models.Caller, code, note string) error {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if !caller.ActsAsCustomer(tr) {
		return ErrForbidden
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := s.apply(ctx, tx, tr, EventRequestQuoteRevision, repository.StatusUpdate{}); err != nil {
			return err
		}
		msg := newMessage(tr.ID, models.RoleCustomer, caller.DisplayName,
			"Revision request: "+note, models.MessageTypeText, nil)
		return s.messages.CreateTx(ctx, tx, msg)
	})
}

// AcceptQuote accepts the quote and copies its amounts onto the transaction.
// Both the quote flip and the status move are conditional updates, so of two
// concurrent accepts exactly one succeeds.
func (s *Service) AcceptQuote(ctx context.Context, caller models.Caller, code string, quoteID uuid.UUID) (*models.Transaction, error) {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !caller.ActsAsCustomer(tr) {
		return nil, ErrForbidden
	}
	q, err := s.quotes.GetByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if q.TransactionID != tr.ID {
		return nil, ErrQuoteMismatch
	}
	if err := checkLegal(EventAcceptQuote, tr.Status); err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if err := s.quotes.AcceptTx(ctx, tx, q.ID); err != nil {
			return err
		}
		upd := repository.StatusUpdate{
			FinalPrice:  &q.SubtotalCents,
			TaxAmount:   &q.TaxCents,
			TotalAmount: &q.TotalCents,
		}
		if err := s.apply(ctx, tx, tr, EventAcceptQuote, upd); err != nil {
			return err
		}
		msg := newMessage(tr.ID, models.RoleSystem, "",
			fmt.Sprintf("Quote v%d accepted", q.Version), models.MessageTypeSystem, &q.ID)
		return s.messages.CreateTx(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}

	tr.FinalPrice = &q.SubtotalCents
	tr.TaxAmount = &q.TaxCents
	tr.TotalAmount = &q.TotalCents
	s.notify(ctx, tr, models.EventQuoteAccepted, models.RoleCreator)
	return tr, nil
}

// Pay charges the customer the transaction total through the payment gateway
// and advances to paid. The amount must exactly equal total_amount. On any
// gateway failure the transaction stays payment_pending and the error is
// retryable; the gateway call carries the transaction code as idempotency key
// so network retries cannot double-charge.
func (s *Service) Pay(ctx context.Context, caller models.Caller, code string, amountCents int64, methodRef string) (*models.Transaction, error) {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !caller.ActsAsCustomer(tr) {
		return nil, ErrForbidden
	}
	if err := checkLegal(EventPaymentSucceeded, tr.Status); err != nil {
		return nil, err
	}
	if tr.TotalAmount == nil || *tr.TotalAmount != amountCents {
		return nil, ErrAmountMismatch
	}

	res, err := s.gateway.Charge(ctx, payments.ChargeRequest{
		IdempotencyKey: tr.Code,
		AmountCents:    amountCents,
		MethodRef:      methodRef,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPaymentFailed, err)
	}

	now := time.Now().UTC()
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		upd := repository.StatusUpdate{PaymentRef: &res.Reference, PaidAt: &now}
		if err := s.apply(ctx, tx, tr, EventPaymentSucceeded, upd); err != nil {
			return err
		}
		msg := newMessage(tr.ID, models.RoleSystem, "", "Payment received", models.MessageTypeSystem, nil)
		return s.messages.CreateTx(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}

	tr.PaymentRef = &res.Reference
	tr.PaidAt = &now
	s.notify(ctx, tr, models.EventPaymentReceived, models.RoleCreator)
	return tr, nil
}

// StartProgress is the creator's optional explicit start marker.
func (s *Service) StartProgress(ctx context.Context, caller models.Caller, code string) error {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if !caller.ActsAsCreator(tr) {
		return ErrForbidden
	}
	now := time.Now().UTC()
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return s.apply(ctx, tx, tr, EventStartProgress, repository.StatusUpdate{StartedAt: &now})
	})
}

// Deliver marks the work delivered and appends the delivery message.
// Attachments the creator uploads to the returned message are stored as
// deliverables.
func (s *Service) Deliver(ctx context.Context, caller models.Caller, code, note string) (*models.Message, error) {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !caller.ActsAsCreator(tr) {
		return nil, ErrForbidden
	}
	if note == "" {
		note = "Delivery"
	}
	now := time.Now().UTC()
	msg := newMessage(tr.ID, models.RoleCreator, caller.DisplayName, note, models.MessageTypeText, nil)
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if err := s.apply(ctx, tx, tr, EventDeliver, repository.StatusUpdate{DeliveredAt: &now}); err != nil {
			return err
		}
		return s.messages.CreateTx(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}

	tr.DeliveredAt = &now
	s.notify(ctx, tr, models.EventDelivered, models.RoleCustomer)
	return msg, nil
}

// RequestRevision asks the creator to rework an existing delivery. Legal only
// once a delivery exists.
func (s *Service) RequestRevision(ctx context.Context, caller models.Caller, code, note string) error {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if !caller.ActsAsCustomer(tr) {
		return ErrForbidden
	}
	if err := checkLegal(EventRequestRevision, tr.Status); err != nil {
		return err
	}
	if tr.DeliveredAt == nil {
		return ErrDeliveryRequired
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := s.apply(ctx, tx, tr, EventRequestRevision, repository.StatusUpdate{}); err != nil {
			return err
		}
		msg := newMessage(tr.ID, models.RoleCustomer, caller.DisplayName,
			"Revision request: "+note, models.MessageTypeText, nil)
		return s.messages.CreateTx(ctx, tx, msg)
	})
}

// Approve is the customer's acceptance of the delivery; the transaction
// completes.
func (s *Service) Approve(ctx context.Context, caller models.Caller, code string) error {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if !caller.ActsAsCustomer(tr) {
		return ErrForbidden
	}
	now := time.Now().UTC()
	err = s.withTx(ctx, func(tx pgx.Tx) error {
		if err := s.apply(ctx, tx, tr, EventApprove, repository.StatusUpdate{CompletedAt: &now}); err != nil {
			return err
		}
		msg := newMessage(tr.ID, models.RoleSystem, "", "Delivery approved, commission completed", models.MessageTypeSystem, nil)
		return s.messages.CreateTx(ctx, tx, msg)
	})
	if err != nil {
		return err
	}
	s.notify(ctx, tr, models.EventCompleted, models.RoleCreator)
	return nil
}

// Cancel is the administrative override. It clears the commercial fields so
// the amount invariant keeps holding outside the post-acceptance states.
func (s *Service) Cancel(ctx context.Context, caller models.Caller, code, reason string) error {
	return s.adminOverride(ctx, caller, code, EventCancel, "Transaction cancelled: "+reason)
}

// Refund is the administrative refund override for paid transactions.
func (s *Service) Refund(ctx context.Context, caller models.Caller, code, reason string) error {
	return s.adminOverride(ctx, caller, code, EventRefund, "Transaction refunded: "+reason)
}

func (s *Service) adminOverride(ctx context.Context, caller models.Caller, code string, ev Event, note string) error {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if !caller.IsAdmin() {
		return ErrForbidden
	}
	if err := checkLegal(ev, tr.Status); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := s.transactions.TransitionClearAmounts(ctx, tx, tr.ID, sources(ev), target(ev)); err != nil {
			return err
		}
		msg := newMessage(tr.ID, models.RoleAdmin, caller.DisplayName, note, models.MessageTypeSystem, nil)
		return s.messages.CreateTx(ctx, tx, msg)
	})
}

// --- helpers ---

func newMessage(transactionID uuid.UUID, senderRole, senderName, body, msgType string, quoteID *uuid.UUID) *models.Message {
	return &models.Message{
		ID:             uuid.New(),
		TransactionID:  transactionID,
		SenderRole:     senderRole,
		SenderName:     senderName,
		Body:           body,
		Type:           msgType,
		QuoteID:        quoteID,
		ReadByCreator:  senderRole == models.RoleCreator,
		ReadByCustomer: senderRole == models.RoleCustomer,
	}
}

// notify dispatches a transactional notification to one party. Best effort:
// failures are logged and never fail the originating operation.
func (s *Service) notify(ctx context.Context, tr *models.Transaction, eventType, recipientRole string) {
	addr, err := s.recipientAddr(ctx, tr, recipientRole)
	if err != nil {
		s.logger.Warn("resolve notification recipient", "transaction", tr.Code, "event", eventType, "error", err)
		return
	}
	n := notify.Notification{
		TransactionID:   tr.ID,
		TransactionCode: tr.Code,
		EventType:       eventType,
		RecipientRole:   recipientRole,
		RecipientAddr:   addr,
	}
	if err := s.notifier.Dispatch(ctx, n); err != nil {
		s.logger.Warn("dispatch notification", "transaction", tr.Code, "event", eventType, "error", err)
	}
}

func (s *Service) recipientAddr(ctx context.Context, tr *models.Transaction, role string) (string, error) {
	switch role {
	case models.RoleCreator:
		acc, err := s.accounts.GetByID(ctx, tr.CreatorID)
		if err != nil {
			return "", err
		}
		return acc.Email, nil
	case models.RoleCustomer:
		if tr.GuestEmail != nil {
			return *tr.GuestEmail, nil
		}
		if tr.CustomerID == nil {
			return "", fmt.Errorf("transaction %s has no customer identity", tr.Code)
		}
		acc, err := s.accounts.GetByID(ctx, *tr.CustomerID)
		if err != nil {
			return "", err
		}
		return acc.Email, nil
	default:
		return "", fmt.Errorf("no notification address for role %q", role)
	}
}
