package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Attachment file categories, derived from the mime type prefix.
const (
	CategoryImage    = "image"
	CategoryDocument = "document"
	CategoryOther    = "other"
)

// Attachment is a file reference tied to exactly one message and one
// transaction. Deliverable attachments are part of final delivery, as opposed
// to ordinary exchange files. Attachments are never deleted once created.
type Attachment struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	MessageID     uuid.UUID `json:"message_id"`
	FileName      string    `json:"file_name"`
	StoredRef     string    `json:"stored_ref"`
	SizeBytes     int64     `json:"size_bytes"`
	ContentType   string    `json:"content_type"`
	Category      string    `json:"category"`
	IsDeliverable bool      `json:"is_deliverable"`
	CreatedAt     time.Time `json:"created_at"`
}

// CategoryFor classifies a mime type into image/document/other.
func CategoryFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return CategoryImage
	case strings.HasPrefix(contentType, "text/"),
		strings.HasPrefix(contentType, "application/pdf"),
		strings.HasPrefix(contentType, "application/msword"),
		strings.HasPrefix(contentType, "application/vnd."):
		return CategoryDocument
	default:
		return CategoryOther
	}
}
