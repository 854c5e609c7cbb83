// Package messaging owns the append-only per-transaction message thread and
// its attachments.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atelierhub/backend/internal/models"
	"github.com/atelierhub/backend/internal/notify"
)

// ErrForbidden mirrors the engine's authorization failure for thread access.
var ErrForbidden = errors.New("caller is not a party to this transaction")

// ErrMessageMismatch is returned when an attachment targets a message outside
// the caller's transaction.
var ErrMessageMismatch = errors.New("message does not belong to this transaction")

// TransactionGetter resolves the thread's owning transaction for
// authorization.
type TransactionGetter interface {
	GetByCode(ctx context.Context, code string) (*models.Transaction, error)
}

// MessageStore is the message repository surface for the thread service.
type MessageStore interface {
	Create(ctx context.Context, m *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*models.Message, error)
	MarkRead(ctx context.Context, transactionID uuid.UUID, readerRole string) error
}

// AttachmentStore is the attachment metadata repository surface.
type AttachmentStore interface {
	Create(ctx context.Context, a *models.Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Attachment, error)
	ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*models.Attachment, error)
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*models.Attachment, error)
}

// AccountStore resolves notification recipients.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// Notifier dispatches new-message notifications, best effort.
type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notification) error
}

type Service struct {
	transactions TransactionGetter
	messages     MessageStore
	attachments  AttachmentStore
	accounts     AccountStore
	blobs        BlobStore
	notifier     Notifier
	logger       *slog.Logger
}

func NewService(
	transactions TransactionGetter,
	messages MessageStore,
	attachments AttachmentStore,
	accounts AccountStore,
	blobs BlobStore,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		transactions: transactions,
		messages:     messages,
		attachments:  attachments,
		accounts:     accounts,
		blobs:        blobs,
		notifier:     notifier,
		logger:       logger,
	}
}

// callerRole resolves which side of the thread the caller sits on, or
// ErrForbidden.
func callerRole(caller models.Caller, tr *models.Transaction) (string, error) {
	switch {
	case caller.ActsAsCustomer(tr):
		return models.RoleCustomer, nil
	case caller.ActsAsCreator(tr):
		return models.RoleCreator, nil
	case caller.IsAdmin():
		return models.RoleAdmin, nil
	default:
		return "", ErrForbidden
	}
}

// PostMessage appends to the thread. Read flags start true for the sender's
// own side only.
func (s *Service) PostMessage(ctx context.Context, caller models.Caller, code, body string) (*models.Message, error) {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	role, err := callerRole(caller, tr)
	if err != nil {
		return nil, err
	}
	if !models.Roles[role].CanPost {
		return nil, ErrForbidden
	}
	if body == "" {
		return nil, fmt.Errorf("message body must not be empty")
	}

	m := &models.Message{
		ID:             uuid.New(),
		TransactionID:  tr.ID,
		SenderRole:     role,
		SenderName:     caller.DisplayName,
		Body:           body,
		Type:           models.MessageTypeText,
		ReadByCreator:  role == models.RoleCreator,
		ReadByCustomer: role == models.RoleCustomer,
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}

	if other := otherParty(role); other != "" {
		s.notifyNewMessage(ctx, tr, other)
	}
	return m, nil
}

// ListThread returns the full thread in creation order, with attachments
// folded in per message.
func (s *Service) ListThread(ctx context.Context, caller models.Caller, code string) ([]*ThreadEntry, error) {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, err := callerRole(caller, tr); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTransaction(ctx, tr.ID)
	if err != nil {
		return nil, err
	}
	atts, err := s.attachments.ListByTransaction(ctx, tr.ID)
	if err != nil {
		return nil, err
	}
	byMsg := map[uuid.UUID][]*models.Attachment{}
	for _, a := range atts {
		byMsg[a.MessageID] = append(byMsg[a.MessageID], a)
	}
	entries := make([]*ThreadEntry, len(msgs))
	for i, m := range msgs {
		entries[i] = &ThreadEntry{Message: m, Attachments: byMsg[m.ID]}
	}
	return entries, nil
}

// ThreadEntry is one message plus its attachments.
type ThreadEntry struct {
	Message     *models.Message      `json:"message"`
	Attachments []*models.Attachment `json:"attachments,omitempty"`
}

// MarkThreadRead marks all messages from other roles as read for the caller's
// side. Idempotent; admins have no read flag and the call is a no-op for them.
func (s *Service) MarkThreadRead(ctx context.Context, caller models.Caller, code string) error {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	role, err := callerRole(caller, tr)
	if err != nil {
		return err
	}
	if role != models.RoleCreator && role != models.RoleCustomer {
		return nil
	}
	return s.messages.MarkRead(ctx, tr.ID, role)
}

// AddAttachment stores file bytes and records metadata against an existing
// message of the caller's transaction. Deliverable marks final-delivery files.
func (s *Service) AddAttachment(ctx context.Context, caller models.Caller, code string, messageID uuid.UUID, fileName, contentType string, r io.Reader, deliverable bool) (*models.Attachment, error) {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if _, err := callerRole(caller, tr); err != nil {
		return nil, err
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.TransactionID != tr.ID {
		return nil, ErrMessageMismatch
	}

	ref, size, err := s.blobs.Save(ctx, fileName, r)
	if err != nil {
		return nil, fmt.Errorf("store attachment: %w", err)
	}

	a := &models.Attachment{
		ID:            uuid.New(),
		TransactionID: tr.ID,
		MessageID:     messageID,
		FileName:      fileName,
		StoredRef:     ref,
		SizeBytes:     size,
		ContentType:   contentType,
		Category:      models.CategoryFor(contentType),
		IsDeliverable: deliverable,
	}
	if err := s.attachments.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// OpenAttachment returns attachment metadata and a reader over its bytes for
// a party of the transaction. Caller closes the reader.
func (s *Service) OpenAttachment(ctx context.Context, caller models.Caller, code string, attachmentID uuid.UUID) (*models.Attachment, io.ReadCloser, error) {
	tr, err := s.transactions.GetByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if _, err := callerRole(caller, tr); err != nil {
		return nil, nil, err
	}
	a, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	if a.TransactionID != tr.ID {
		return nil, nil, ErrForbidden
	}
	rc, err := s.blobs.Open(ctx, a.StoredRef)
	if err != nil {
		return nil, nil, fmt.Errorf("open attachment: %w", err)
	}
	return a, rc, nil
}

func otherParty(role string) string {
	switch role {
	case models.RoleCreator:
		return models.RoleCustomer
	case models.RoleCustomer:
		return models.RoleCreator
	default:
		return ""
	}
}

func (s *Service) notifyNewMessage(ctx context.Context, tr *models.Transaction, recipientRole string) {
	var addr string
	switch recipientRole {
	case models.RoleCreator:
		acc, err := s.accounts.GetByID(ctx, tr.CreatorID)
		if err != nil {
			s.logger.Warn("resolve message recipient", "transaction", tr.Code, "error", err)
			return
		}
		addr = acc.Email
	case models.RoleCustomer:
		if tr.GuestEmail != nil {
			addr = *tr.GuestEmail
		} else if tr.CustomerID != nil {
			acc, err := s.accounts.GetByID(ctx, *tr.CustomerID)
			if err != nil {
				s.logger.Warn("resolve message recipient", "transaction", tr.Code, "error", err)
				return
			}
			addr = acc.Email
		}
	}
	if addr == "" {
		return
	}
	err := s.notifier.Dispatch(ctx, notify.Notification{
		TransactionID:   tr.ID,
		TransactionCode: tr.Code,
		EventType:       models.EventNewMessage,
		RecipientRole:   recipientRole,
		RecipientAddr:   addr,
	})
	if err != nil {
		s.logger.Warn("dispatch message notification", "transaction", tr.Code, "error", err)
	}
}
