package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelierhub/backend/internal/models"
)

// ErrStatusConflict is returned when a compare-and-swap transition finds the
// transaction no longer in an expected source status (lost update, double
// submission).
var ErrStatusConflict = errors.New("transaction status changed")

// ErrNotFound is returned when a transaction lookup matches no row.
var ErrNotFound = errors.New("transaction not found")

type TransactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, code, service_id, creator_id, customer_id, guest_email, guest_name,
	status, final_price, tax_amount, total_amount, payment_ref,
	paid_at, started_at, delivered_at, completed_at, created_at, updated_at`

func scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.Code, &t.ServiceID, &t.CreatorID, &t.CustomerID, &t.GuestEmail, &t.GuestName,
		&t.Status, &t.FinalPrice, &t.TaxAmount, &t.TotalAmount, &t.PaymentRef,
		&t.PaidAt, &t.StartedAt, &t.DeliveredAt, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TransactionRepo) CreateTx(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	return tx.QueryRow(ctx, `
		INSERT INTO transactions (id, code, service_id, creator_id, customer_id, guest_email, guest_name, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, t.ID, t.Code, t.ServiceID, t.CreatorID, t.CustomerID, t.GuestEmail, t.GuestName, t.Status).
		Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = $1
	`, id))
}

func (r *TransactionRepo) GetByCode(ctx context.Context, code string) (*models.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE code = $1
	`, code))
}

// LockForUpdate loads a transaction inside tx with a row lock. The reminder
// scheduler uses this to serialize its check-then-send-then-log unit per
// transaction across overlapping runs.
func (r *TransactionRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Transaction, error) {
	return scanTransaction(tx.QueryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE
	`, id))
}

// StatusUpdate carries the fields a transition may set alongside the status
// move. Nil fields are left untouched.
type StatusUpdate struct {
	To          string
	FinalPrice  *int64
	TaxAmount   *int64
	TotalAmount *int64
	PaymentRef  *string
	PaidAt      *time.Time
	StartedAt   *time.Time
	DeliveredAt *time.Time
	CompletedAt *time.Time
}

// Transition applies a status move as a single conditional UPDATE: the write
// only lands if the row is still in one of the expected source statuses, so
// two concurrent transitions cannot both succeed.
func (r *TransactionRepo) Transition(ctx context.Context, tx pgx.Tx, id uuid.UUID, from []string, upd StatusUpdate) error {
	result, err := tx.Exec(ctx, `
		UPDATE transactions SET
			status       = $2,
			final_price  = COALESCE($3, final_price),
			tax_amount   = COALESCE($4, tax_amount),
			total_amount = COALESCE($5, total_amount),
			payment_ref  = COALESCE($6, payment_ref),
			paid_at      = COALESCE($7, paid_at),
			started_at   = COALESCE($8, started_at),
			delivered_at = COALESCE($9, delivered_at),
			completed_at = COALESCE($10, completed_at),
			updated_at   = now()
		WHERE id = $1 AND status = ANY($11)
	`, id, upd.To, upd.FinalPrice, upd.TaxAmount, upd.TotalAmount, upd.PaymentRef,
		upd.PaidAt, upd.StartedAt, upd.DeliveredAt, upd.CompletedAt, from)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// TransitionClearAmounts is the cancel/refund path: it moves status and nulls
// the commercial fields, keeping the amount invariant (amounts are set iff the
// status is post-acceptance).
func (r *TransactionRepo) TransitionClearAmounts(ctx context.Context, tx pgx.Tx, id uuid.UUID, from []string, to string) error {
	result, err := tx.Exec(ctx, `
		UPDATE transactions SET
			status = $2,
			final_price = NULL, tax_amount = NULL, total_amount = NULL,
			updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`, id, to, from)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

// ListQuoteReminderCandidates returns transactions sitting in quote_sent since
// before cutoff with no quote_reminder logged inside the lookback window.
func (r *TransactionRepo) ListQuoteReminderCandidates(ctx context.Context, cutoff, windowStart time.Time) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions t
		WHERE t.status = 'quote_sent' AND t.updated_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM notification_log n
			WHERE n.transaction_id = t.id AND n.event_type = 'quote_reminder' AND n.sent_at > $2
		  )
		ORDER BY t.updated_at
	`, cutoff, windowStart)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// ListProgressReminderCandidates returns paid or in-progress transactions paid
// before cutoff with neither a creator message nor a progress_reminder inside
// the lookback window. The status filter keeps delivered work out of scope:
// delivery is evidence of progress.
func (r *TransactionRepo) ListProgressReminderCandidates(ctx context.Context, cutoff, windowStart time.Time) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions t
		WHERE t.status IN ('paid', 'in_progress') AND t.paid_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM messages m
			WHERE m.transaction_id = t.id AND m.sender_role = 'creator' AND m.created_at > $2
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM notification_log n
			WHERE n.transaction_id = t.id AND n.event_type = 'progress_reminder' AND n.sent_at > $2
		  )
		ORDER BY t.paid_at
	`, cutoff, windowStart)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// ListDeliveryReminderCandidates returns delivered transactions awaiting
// customer approval since before cutoff, with no delivery_reminder inside the
// lookback window.
func (r *TransactionRepo) ListDeliveryReminderCandidates(ctx context.Context, cutoff, windowStart time.Time) ([]*models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+` FROM transactions t
		WHERE t.status = 'delivered' AND t.delivered_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM notification_log n
			WHERE n.transaction_id = t.id AND n.event_type = 'delivery_reminder' AND n.sent_at > $2
		  )
		ORDER BY t.delivered_at
	`, cutoff, windowStart)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*models.Transaction, error) {
	defer rows.Close()
	var list []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
