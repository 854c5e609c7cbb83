package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelierhub/backend/internal/models"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// SentWithinTx reports whether a log entry for (transaction, event) exists
// after windowStart. Run inside a transaction holding the transaction row lock
// so the check and the subsequent CreateTx form one serialized unit.
func (r *NotificationRepo) SentWithinTx(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID, eventType string, windowStart time.Time) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notification_log
			WHERE transaction_id = $1 AND event_type = $2 AND sent_at > $3
		)
	`, transactionID, eventType, windowStart).Scan(&exists)
	return exists, err
}

func (r *NotificationRepo) CreateTx(ctx context.Context, tx pgx.Tx, n *models.NotificationLog) error {
	return tx.QueryRow(ctx, `
		INSERT INTO notification_log (id, transaction_id, event_type, recipient_role, recipient_addr)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING sent_at
	`, n.ID, n.TransactionID, n.EventType, n.RecipientRole, n.RecipientAddr).Scan(&n.SentAt)
}
