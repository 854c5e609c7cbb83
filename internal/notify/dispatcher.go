package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/atelierhub/backend/internal/models"
)

// Notification is the payload contract: delivery mechanism is external, the
// engine only hands over recipient, subject, body and the transaction
// reference.
type Notification struct {
	TransactionID   uuid.UUID
	TransactionCode string
	EventType       string
	RecipientRole   string
	RecipientAddr   string
	Subject         string
	Body            string
}

// Sender delivers a composed notification. The default implementation logs;
// a real mailer slots in behind this interface.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// template is the per-event subject and body, keyed off the closed event-type
// enum. %s is the transaction code.
type template struct {
	subject string
	body    string
}

var templates = map[string]template{
	models.EventNewInquiry:       {"New commission inquiry", "You have a new commission inquiry. Transaction: %s"},
	models.EventQuoteSent:        {"Your quote is ready", "The creator sent a quote for your commission. Transaction: %s"},
	models.EventQuoteAccepted:    {"Quote accepted", "Your quote was accepted and awaits payment. Transaction: %s"},
	models.EventPaymentReceived:  {"Payment received", "Payment completed; you can start the work. Transaction: %s"},
	models.EventDelivered:        {"Your commission is ready", "The creator delivered your commission. Transaction: %s"},
	models.EventCompleted:        {"Commission completed", "The customer approved the delivery. Transaction: %s"},
	models.EventNewMessage:       {"New message", "You have a new message on your commission. Transaction: %s"},
	models.EventQuoteReminder:    {"Your quote is waiting", "A quote has been waiting for your response. Transaction: %s"},
	models.EventProgressReminder: {"Commission progress check", "A paid commission has had no updates for a while. Transaction: %s"},
	models.EventDeliveryReminder: {"Delivery awaiting approval", "A delivery is waiting for your approval. Transaction: %s"},
}

// Dispatcher composes and sends transactional notifications.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
}

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, logger: logger}
}

// Dispatch fills in the subject/body for the event type and sends. Unknown
// event types are an error: the enum is closed.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	tpl, ok := templates[n.EventType]
	if !ok {
		return fmt.Errorf("unknown notification event type %q", n.EventType)
	}
	if n.Subject == "" {
		n.Subject = tpl.subject
	}
	if n.Body == "" {
		n.Body = fmt.Sprintf(tpl.body, n.TransactionCode)
	}
	return d.sender.Send(ctx, n)
}

// LogSender writes notifications to the structured log. Real email delivery
// is out of scope; this keeps the payload contract observable.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.Logger.Info("notification",
		"transaction", n.TransactionCode,
		"event", n.EventType,
		"recipient_role", n.RecipientRole,
		"recipient", n.RecipientAddr,
		"subject", n.Subject,
	)
	return nil
}
