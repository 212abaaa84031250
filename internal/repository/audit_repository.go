package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairflow/repairflow/internal/domain"
)

// AuditRepository persists mask audit records.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.MaskAuditLog) error
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository constructs repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Create(ctx context.Context, log *domain.MaskAuditLog) error {
	const query = `
        INSERT INTO mask_audit_logs (input_hash, stats, method, purpose, ip_address)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		log.InputHash,
		log.Stats,
		log.Method,
		log.Purpose,
		log.IPAddress,
	).Scan(&log.ID, &log.CreatedAt)
}
