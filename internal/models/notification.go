package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification event types. The three *_reminder events are the ones recorded
// in the notification log for dedup; the rest are fire-and-forget
// transactional sends.
const (
	EventNewInquiry       = "new_inquiry"
	EventQuoteSent        = "quote_sent"
	EventQuoteAccepted    = "quote_accepted"
	EventPaymentReceived  = "payment_received"
	EventDelivered        = "delivered"
	EventCompleted        = "completed"
	EventNewMessage       = "new_message"
	EventQuoteReminder    = "quote_reminder"
	EventProgressReminder = "progress_reminder"
	EventDeliveryReminder = "delivery_reminder"
)

// NotificationLog is a dedup record for reminder sends. It is never read for
// business logic beyond the lookback-window check.
type NotificationLog struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	EventType     string    `json:"event_type"`
	RecipientRole string    `json:"recipient_role"`
	RecipientAddr string    `json:"recipient_addr"`
	SentAt        time.Time `json:"sent_at"`
}
