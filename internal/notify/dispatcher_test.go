package notify

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/atelierhub/backend/internal/models"
)

type recSender struct {
	sent []Notification
}

func (s *recSender) Send(_ context.Context, n Notification) error {
	s.sent = append(s.sent, n)
	return nil
}

func TestDispatchFillsTemplate(t *testing.T) {
	sender := &recSender{}
	d := NewDispatcher(sender, slog.New(slog.DiscardHandler))

	err := d.Dispatch(context.Background(), Notification{
		TransactionCode: "ABCDE12345",
		EventType:       models.EventQuoteSent,
		RecipientRole:   models.RoleCustomer,
		RecipientAddr:   "pat@example.com",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d, want 1", len(sender.sent))
	}
	n := sender.sent[0]
	if n.Subject == "" {
		t.Fatal("subject must be filled from the template")
	}
	if !strings.Contains(n.Body, "ABCDE12345") {
		t.Fatalf("body must carry the transaction code: %q", n.Body)
	}
}

func TestDispatchKeepsExplicitSubject(t *testing.T) {
	sender := &recSender{}
	d := NewDispatcher(sender, slog.New(slog.DiscardHandler))

	err := d.Dispatch(context.Background(), Notification{
		TransactionCode: "ABCDE12345",
		EventType:       models.EventNewMessage,
		Subject:         "custom subject",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if sender.sent[0].Subject != "custom subject" {
		t.Fatalf("subject overwritten: %q", sender.sent[0].Subject)
	}
}

func TestDispatchRejectsUnknownEvent(t *testing.T) {
	sender := &recSender{}
	d := NewDispatcher(sender, slog.New(slog.DiscardHandler))

	if err := d.Dispatch(context.Background(), Notification{EventType: "carrier_pigeon"}); err == nil {
		t.Fatal("unknown event type must error")
	}
	if len(sender.sent) != 0 {
		t.Fatal("nothing may be sent for an unknown event type")
	}
}

// Every event the system emits must have a template; a missing entry would
// silently break notifications for that event.
func TestAllEventsHaveTemplates(t *testing.T) {
	events := []string{
		models.EventNewInquiry, models.EventQuoteSent, models.EventQuoteAccepted,
		models.EventPaymentReceived, models.EventDelivered, models.EventCompleted,
		models.EventNewMessage, models.EventQuoteReminder, models.EventProgressReminder,
		models.EventDeliveryReminder,
	}
	for _, ev := range events {
		if _, ok := templates[ev]; !ok {
			t.Errorf("no template for event %s", ev)
		}
	}
}
