package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelierhub/backend/internal/models"
)

type AttachmentRepo struct {
	pool *pgxpool.Pool
}

func NewAttachmentRepo(pool *pgxpool.Pool) *AttachmentRepo {
	return &AttachmentRepo{pool: pool}
}

func (r *AttachmentRepo) Create(ctx context.Context, a *models.Attachment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO attachments (id, transaction_id, message_id, file_name, stored_ref,
			size_bytes, content_type, category, is_deliverable)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, a.ID, a.TransactionID, a.MessageID, a.FileName, a.StoredRef,
		a.SizeBytes, a.ContentType, a.Category, a.IsDeliverable).Scan(&a.CreatedAt)
}

func (r *AttachmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Attachment, error) {
	var a models.Attachment
	err := r.pool.QueryRow(ctx, `
		SELECT id, transaction_id, message_id, file_name, stored_ref, size_bytes, content_type, category, is_deliverable, created_at
		FROM attachments WHERE id = $1
	`, id).Scan(&a.ID, &a.TransactionID, &a.MessageID, &a.FileName, &a.StoredRef,
		&a.SizeBytes, &a.ContentType, &a.Category, &a.IsDeliverable, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttachmentRepo) ListByMessage(ctx context.Context, messageID uuid.UUID) ([]*models.Attachment, error) {
	return r.list(ctx, `
		SELECT id, transaction_id, message_id, file_name, stored_ref, size_bytes, content_type, category, is_deliverable, created_at
		FROM attachments WHERE message_id = $1 ORDER BY created_at
	`, messageID)
}

func (r *AttachmentRepo) ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*models.Attachment, error) {
	return r.list(ctx, `
		SELECT id, transaction_id, message_id, file_name, stored_ref, size_bytes, content_type, category, is_deliverable, created_at
		FROM attachments WHERE transaction_id = $1 ORDER BY created_at
	`, transactionID)
}

func (r *AttachmentRepo) list(ctx context.Context, query string, arg any) ([]*models.Attachment, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.TransactionID, &a.MessageID, &a.FileName, &a.StoredRef,
			&a.SizeBytes, &a.ContentType, &a.Category, &a.IsDeliverable, &a.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}
