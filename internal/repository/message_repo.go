package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelierhub/backend/internal/models"
)

// ErrMessageNotFound is returned when a message lookup matches no row.
var ErrMessageNotFound = errors.New("message not found")

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

const messageColumns = `id, transaction_id, sender_role, sender_name, body, type, quote_id,
	read_by_creator, read_by_customer, created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.TransactionID, &m.SenderRole, &m.SenderName, &m.Body, &m.Type, &m.QuoteID,
		&m.ReadByCreator, &m.ReadByCustomer, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepo) Create(ctx context.Context, m *models.Message) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO messages (id, transaction_id, sender_role, sender_name, body, type, quote_id,
			read_by_creator, read_by_customer)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, m.ID, m.TransactionID, m.SenderRole, m.SenderName, m.Body, m.Type, m.QuoteID,
		m.ReadByCreator, m.ReadByCustomer).Scan(&m.CreatedAt)
}

// CreateTx appends a message inside the caller's transaction; used by engine
// operations that must append atomically with a status move.
func (r *MessageRepo) CreateTx(ctx context.Context, tx pgx.Tx, m *models.Message) error {
	return tx.QueryRow(ctx, `
		INSERT INTO messages (id, transaction_id, sender_role, sender_name, body, type, quote_id,
			read_by_creator, read_by_customer)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, m.ID, m.TransactionID, m.SenderRole, m.SenderName, m.Body, m.Type, m.QuoteID,
		m.ReadByCreator, m.ReadByCustomer).Scan(&m.CreatedAt)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE id = $1
	`, id))
}

// ListByTransaction returns the thread in creation order.
func (r *MessageRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*models.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE transaction_id = $1 ORDER BY created_at, id
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// MarkRead sets the reader's flag on all messages in the thread sent by other
// roles. Idempotent: already-read rows are excluded by the flag condition.
func (r *MessageRepo) MarkRead(ctx context.Context, transactionID uuid.UUID, readerRole string) error {
	var column string
	switch readerRole {
	case models.RoleCreator:
		column = "read_by_creator"
	case models.RoleCustomer:
		column = "read_by_customer"
	default:
		return fmt.Errorf("no read flag for role %q", readerRole)
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE messages SET `+column+` = TRUE
		WHERE transaction_id = $1 AND sender_role <> $2 AND `+column+` = FALSE
	`, transactionID, readerRole)
	return err
}
