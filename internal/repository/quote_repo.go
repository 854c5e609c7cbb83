package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelierhub/backend/internal/models"
)

// ErrQuoteNotSent is returned when accepting a quote that is not currently in
// the sent status (already accepted, superseded, or still a draft).
var ErrQuoteNotSent = errors.New("quote is not in sent status")

// ErrQuoteNotFound is returned when a quote lookup matches no row.
var ErrQuoteNotFound = errors.New("quote not found")

type QuoteRepo struct {
	pool *pgxpool.Pool
}

func NewQuoteRepo(pool *pgxpool.Pool) *QuoteRepo {
	return &QuoteRepo{pool: pool}
}

const quoteColumns = `id, transaction_id, version, items, subtotal_cents, tax_rate_pct,
	tax_cents, total_cents, estimated_days, notes, status, created_at`

func scanQuote(row pgx.Row) (*models.Quote, error) {
	var q models.Quote
	var items []byte
	err := row.Scan(&q.ID, &q.TransactionID, &q.Version, &items, &q.SubtotalCents, &q.TaxRatePct,
		&q.TaxCents, &q.TotalCents, &q.EstimatedDays, &q.Notes, &q.Status, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuoteNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(items, &q.Items); err != nil {
		return nil, err
	}
	return &q, nil
}

// CreateTx inserts a quote, assigning the next version for its transaction in
// the same statement so versions strictly increase from 1 with no read-then-
// write gap.
func (r *QuoteRepo) CreateTx(ctx context.Context, tx pgx.Tx, q *models.Quote) error {
	items, err := json.Marshal(q.Items)
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO quotes (id, transaction_id, version, items, subtotal_cents, tax_rate_pct,
			tax_cents, total_cents, estimated_days, notes, status)
		VALUES ($1, $2,
			1 + COALESCE((SELECT MAX(version) FROM quotes WHERE transaction_id = $2), 0),
			$3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING version, created_at
	`, q.ID, q.TransactionID, items, q.SubtotalCents, q.TaxRatePct,
		q.TaxCents, q.TotalCents, q.EstimatedDays, q.Notes, q.Status).
		Scan(&q.Version, &q.CreatedAt)
}

func (r *QuoteRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	return scanQuote(r.pool.QueryRow(ctx, `
		SELECT `+quoteColumns+` FROM quotes WHERE id = $1
	`, id))
}

// SupersedeOthersTx marks every quote of the transaction except keepID as
// superseded. History rows are never deleted.
func (r *QuoteRepo) SupersedeOthersTx(ctx context.Context, tx pgx.Tx, transactionID, keepID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE quotes SET status = 'superseded'
		WHERE transaction_id = $1 AND id <> $2 AND status <> 'superseded'
	`, transactionID, keepID)
	return err
}

// AcceptTx flips a sent quote to accepted with a conditional UPDATE; if the
// quote is no longer sent (concurrent accept, revision in flight) the caller
// gets ErrQuoteNotSent and must not proceed.
func (r *QuoteRepo) AcceptTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	result, err := tx.Exec(ctx, `
		UPDATE quotes SET status = 'accepted' WHERE id = $1 AND status = 'sent'
	`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrQuoteNotSent
	}
	return nil
}

// ListByTransaction returns the full quote history in version order.
func (r *QuoteRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*models.Quote, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+quoteColumns+` FROM quotes WHERE transaction_id = $1 ORDER BY version
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, q)
	}
	return list, rows.Err()
}
