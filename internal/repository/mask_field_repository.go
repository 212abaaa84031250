package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairflow/repairflow/internal/domain"
)

// MaskFieldRepository persists custom masking rules.
type MaskFieldRepository interface {
	Create(ctx context.Context, field *domain.MaskField) error
	List(ctx context.Context) ([]domain.MaskField, error)
	Delete(ctx context.Context, id string) error
}

type maskFieldRepository struct {
	pool *pgxpool.Pool
}

// NewMaskFieldRepository constructs repository.
func NewMaskFieldRepository(pool *pgxpool.Pool) MaskFieldRepository {
	return &maskFieldRepository{pool: pool}
}

func (r *maskFieldRepository) Create(ctx context.Context, field *domain.MaskField) error {
	const query = `
        INSERT INTO mask_fields (label, mask_type, keep_chars)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		field.Label,
		field.MaskType,
		field.KeepChars,
	).Scan(&field.ID, &field.CreatedAt)
}

func (r *maskFieldRepository) List(ctx context.Context) ([]domain.MaskField, error) {
	const query = `SELECT id, label, mask_type, keep_chars, created_at FROM mask_fields ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MaskField
	for rows.Next() {
		var field domain.MaskField
		if err := rows.Scan(
			&field.ID,
			&field.Label,
			&field.MaskType,
			&field.KeepChars,
			&field.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, field)
	}
	return result, rows.Err()
}

func (r *maskFieldRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM mask_fields WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
