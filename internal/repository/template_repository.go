package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairflow/repairflow/internal/domain"
)

// TemplateRepository persists form templates.
type TemplateRepository interface {
	Create(ctx context.Context, template *domain.Template) error
	Update(ctx context.Context, template *domain.Template) error
	GetByID(ctx context.Context, id string) (*domain.Template, error)
	List(ctx context.Context) ([]domain.Template, error)
	Delete(ctx context.Context, id string) error
}

type templateRepository struct {
	pool *pgxpool.Pool
}

// NewTemplateRepository constructs repository.
func NewTemplateRepository(pool *pgxpool.Pool) TemplateRepository {
	return &templateRepository{pool: pool}
}

func (r *templateRepository) Create(ctx context.Context, template *domain.Template) error {
	const query = `
        INSERT INTO templates (name, fields)
        VALUES ($1,$2)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		template.Name,
		template.Fields,
	).Scan(&template.ID, &template.CreatedAt, &template.UpdatedAt)
}

func (r *templateRepository) Update(ctx context.Context, template *domain.Template) error {
	const query = `
        UPDATE templates SET name=$1, fields=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, template.Name, template.Fields, template.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *templateRepository) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	const query = `SELECT id, name, fields, created_at, updated_at FROM templates WHERE id=$1`
	var template domain.Template
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&template.ID,
		&template.Name,
		&template.Fields,
		&template.CreatedAt,
		&template.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *templateRepository) List(ctx context.Context) ([]domain.Template, error) {
	const query = `SELECT id, name, fields, created_at, updated_at FROM templates ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Template
	for rows.Next() {
		var template domain.Template
		if err := rows.Scan(
			&template.ID,
			&template.Name,
			&template.Fields,
			&template.CreatedAt,
			&template.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, template)
	}
	return result, rows.Err()
}

func (r *templateRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM templates WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
