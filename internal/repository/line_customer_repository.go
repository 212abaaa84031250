package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairflow/repairflow/internal/domain"
)

// LineCustomerRepository persists messaging contacts registered through
// the inbound webhook.
type LineCustomerRepository interface {
	Upsert(ctx context.Context, customer *domain.LineCustomer) error
	GetByLineUserID(ctx context.Context, lineUserID string) (*domain.LineCustomer, error)
	GetByPhone(ctx context.Context, phone string) (*domain.LineCustomer, error)
}

type lineCustomerRepository struct {
	pool *pgxpool.Pool
}

// NewLineCustomerRepository constructs repository.
func NewLineCustomerRepository(pool *pgxpool.Pool) LineCustomerRepository {
	return &lineCustomerRepository{pool: pool}
}

func (r *lineCustomerRepository) Upsert(ctx context.Context, customer *domain.LineCustomer) error {
	const query = `
        INSERT INTO line_customers (line_user_id, line_display_name, phone)
        VALUES ($1,$2,$3)
        ON CONFLICT (line_user_id) DO UPDATE
            SET line_display_name=EXCLUDED.line_display_name,
                phone=COALESCE(EXCLUDED.phone, line_customers.phone),
                updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		customer.LineUserID,
		customer.LineDisplayName,
		customer.Phone,
	).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt)
}

func (r *lineCustomerRepository) GetByLineUserID(ctx context.Context, lineUserID string) (*domain.LineCustomer, error) {
	return r.fetchSingle(ctx, `WHERE line_user_id=$1`, lineUserID)
}

func (r *lineCustomerRepository) GetByPhone(ctx context.Context, phone string) (*domain.LineCustomer, error) {
	return r.fetchSingle(ctx, `WHERE phone=$1 ORDER BY updated_at DESC LIMIT 1`, phone)
}

func (r *lineCustomerRepository) fetchSingle(ctx context.Context, where string, arg any) (*domain.LineCustomer, error) {
	query := `SELECT id, line_user_id, line_display_name, phone, created_at, updated_at FROM line_customers ` + where
	var customer domain.LineCustomer
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&customer.ID,
		&customer.LineUserID,
		&customer.LineDisplayName,
		&customer.Phone,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &customer, nil
}
