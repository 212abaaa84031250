package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairflow/repairflow/internal/domain"
)

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error)
	GetByID(ctx context.Context, id string) (*domain.Attachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO ticket_attachments (ticket_id, storage_key, file_type, original_name, uploaded_by)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		attachment.TicketID,
		attachment.StorageKey,
		attachment.FileType,
		attachment.OriginalName,
		attachment.UploadedBy,
	).Scan(&attachment.ID, &attachment.CreatedAt)
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, storage_key, file_type, original_name, uploaded_by, created_at
        FROM ticket_attachments WHERE ticket_id=$1 ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var attachment domain.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.TicketID,
			&attachment.StorageKey,
			&attachment.FileType,
			&attachment.OriginalName,
			&attachment.UploadedBy,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}

func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, storage_key, file_type, original_name, uploaded_by, created_at
        FROM ticket_attachments WHERE id=$1`
	var attachment domain.Attachment
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&attachment.ID,
		&attachment.TicketID,
		&attachment.StorageKey,
		&attachment.FileType,
		&attachment.OriginalName,
		&attachment.UploadedBy,
		&attachment.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &attachment, nil
}
