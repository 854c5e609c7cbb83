package commission

import (
	"fmt"

	"github.com/atelierhub/backend/internal/models"
)

// Event is a lifecycle event applied to a transaction. Legality is defined
// once, in the transitions table below, and consulted by a single apply path —
// never re-derived at call sites.
type Event string

const (
	EventAcknowledge          Event = "acknowledge"
	EventSendQuote            Event = "send_quote"
	EventRequestQuoteRevision Event = "request_quote_revision"
	EventAcceptQuote          Event = "accept_quote"
	EventPaymentSucceeded     Event = "payment_succeeded"
	EventStartProgress        Event = "start_progress"
	EventDeliver              Event = "deliver"
	EventRequestRevision      Event = "request_revision"
	EventApprove              Event = "approve"
	EventCancel               Event = "cancel"
	EventRefund               Event = "refund"
)

type transition struct {
	from []string
	to   string
}

var transitions = map[Event]transition{
	EventAcknowledge: {
		from: []string{models.StatusInquiry},
		to:   models.StatusQuotePending,
	},
	EventSendQuote: {
		from: []string{models.StatusInquiry, models.StatusQuotePending, models.StatusQuoteRevision},
		to:   models.StatusQuoteSent,
	},
	EventRequestQuoteRevision: {
		from: []string{models.StatusQuoteSent},
		to:   models.StatusQuoteRevision,
	},
	EventAcceptQuote: {
		from: []string{models.StatusQuoteSent},
		to:   models.StatusPaymentPending,
	},
	EventPaymentSucceeded: {
		from: []string{models.StatusPaymentPending},
		to:   models.StatusPaid,
	},
	EventStartProgress: {
		from: []string{models.StatusPaid},
		to:   models.StatusInProgress,
	},
	EventDeliver: {
		from: []string{models.StatusPaid, models.StatusInProgress, models.StatusRevisionRequested},
		to:   models.StatusDelivered,
	},
	// Revision requests from paid/in_progress additionally require that a
	// delivery already exists (checked in the service guard).
	EventRequestRevision: {
		from: []string{models.StatusPaid, models.StatusInProgress, models.StatusDelivered},
		to:   models.StatusRevisionRequested,
	},
	EventApprove: {
		from: []string{models.StatusDelivered},
		to:   models.StatusCompleted,
	},
	// Administrative overrides, reachable from every non-terminal state.
	EventCancel: {
		from: nonTerminalStatuses(),
		to:   models.StatusCancelled,
	},
	EventRefund: {
		from: []string{models.StatusPaid, models.StatusInProgress, models.StatusRevisionRequested, models.StatusDelivered},
		to:   models.StatusRefunded,
	},
}

func nonTerminalStatuses() []string {
	return []string{
		models.StatusInquiry, models.StatusQuotePending, models.StatusQuoteSent,
		models.StatusQuoteRevision, models.StatusPaymentPending, models.StatusPaid,
		models.StatusInProgress, models.StatusRevisionRequested, models.StatusDelivered,
	}
}

// TransitionError is the precondition violation for an event applied in the
// wrong state.
type TransitionError struct {
	Event Event
	From  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %s is not legal from status %s", e.Event, e.From)
}

// sources returns the legal source statuses for ev.
func sources(ev Event) []string {
	return transitions[ev].from
}

// target returns the destination status for ev.
func target(ev Event) string {
	return transitions[ev].to
}

// checkLegal validates ev against the current status, returning a
// TransitionError on violation.
func checkLegal(ev Event, status string) error {
	t, ok := transitions[ev]
	if !ok {
		return fmt.Errorf("unknown event %q", ev)
	}
	for _, s := range t.from {
		if s == status {
			return nil
		}
	}
	return &TransitionError{Event: ev, From: status}
}
