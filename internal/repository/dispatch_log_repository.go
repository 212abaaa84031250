package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairflow/repairflow/internal/domain"
)

// DispatchLogRepository persists dispatch audit records.
type DispatchLogRepository interface {
	Create(ctx context.Context, log *domain.DispatchLog) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.DispatchLog, error)
}

type dispatchLogRepository struct {
	pool *pgxpool.Pool
}

// NewDispatchLogRepository constructs repository.
func NewDispatchLogRepository(pool *pgxpool.Pool) DispatchLogRepository {
	return &dispatchLogRepository{pool: pool}
}

func (r *dispatchLogRepository) Create(ctx context.Context, log *domain.DispatchLog) error {
	const query = `
        INSERT INTO dispatch_logs (ticket_id, dispatcher_user_id, technician_ids, payload_snapshot)
        VALUES ($1,$2,$3,$4)
        RETURNING id, dispatched_at`
	return r.pool.QueryRow(ctx, query,
		log.TicketID,
		log.DispatcherUserID,
		log.TechnicianIDs,
		log.PayloadSnapshot,
	).Scan(&log.ID, &log.DispatchedAt)
}

func (r *dispatchLogRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.DispatchLog, error) {
	const query = `
        SELECT id, ticket_id, dispatcher_user_id, technician_ids, payload_snapshot, dispatched_at
        FROM dispatch_logs WHERE ticket_id=$1 ORDER BY dispatched_at`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DispatchLog
	for rows.Next() {
		var log domain.DispatchLog
		if err := rows.Scan(
			&log.ID,
			&log.TicketID,
			&log.DispatcherUserID,
			&log.TechnicianIDs,
			&log.PayloadSnapshot,
			&log.DispatchedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, log)
	}
	return result, rows.Err()
}
