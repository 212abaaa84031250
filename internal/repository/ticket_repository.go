package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/repairflow/repairflow/internal/domain"
)

// ErrVersionConflict signals that a versioned update lost the race to a
// concurrent writer.
var ErrVersionConflict = errors.New("ticket version conflict")

// TicketFilter captures list parameters. VisibleToWorker scopes results to
// tickets assigned to that worker plus the unassigned open pool.
type TicketFilter struct {
	CreatedBy       *string
	VisibleToWorker *string
	Statuses        []domain.TicketStatus
	Priorities      []domain.TicketPriority
	IsUrgent        *bool
	SearchTerm      *string
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	Limit           int
	Offset          int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByTicketNo(ctx context.Context, ticketNo string) (*domain.Ticket, error)
	LastTicketNoWithPrefix(ctx context.Context, prefix string) (string, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Accept(ctx context.Context, ticketID, workerID string) (bool, error)
	ListScheduledBetween(ctx context.Context, from, to time.Time) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_no, title, category, priority, status, created_by,
               customer_name, customer_phone, customer_address, description_raw,
               preferred_time_slot, is_urgent, notes_internal,
               template_id, fields, masked_fields, masked_text, mask_method, mask_stats,
               assigned_user_ids, accepted_by, accepted_at,
               quote, schedule, cancel, completion_note, completed_at, closed_at,
               version, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_no, title, category, priority, status, created_by,
            customer_name, customer_phone, customer_address, description_raw,
            preferred_time_slot, is_urgent, notes_internal,
            template_id, fields, masked_fields, masked_text, mask_method, mask_stats,
            assigned_user_ids, quote, schedule, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,1)
        RETURNING id, version, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.TicketNo,
		ticket.Title,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.CreatedBy,
		ticket.CustomerName,
		ticket.Phone,
		ticket.Address,
		ticket.DescriptionRaw,
		ticket.PreferredTimeSlot,
		ticket.IsUrgent,
		ticket.NotesInternal,
		ticket.TemplateID,
		ticket.Fields,
		ticket.MaskedFields,
		ticket.MaskedText,
		ticket.MaskMethod,
		ticket.MaskStats,
		ticket.AssignedUserIDs,
		ticket.Quote,
		ticket.Schedule,
	).Scan(&ticket.ID, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
}

// Update persists the mutable portion of a ticket guarded by its version.
// A concurrent writer bumping the version first makes this call return
// ErrVersionConflict.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, category=$2, priority=$3, status=$4,
            customer_name=$5, customer_phone=$6, customer_address=$7, description_raw=$8,
            preferred_time_slot=$9, is_urgent=$10, notes_internal=$11,
            fields=$12, masked_fields=$13, masked_text=$14, mask_method=$15, mask_stats=$16,
            assigned_user_ids=$17, accepted_by=$18, accepted_at=$19,
            quote=$20, schedule=$21, cancel=$22, completion_note=$23,
            completed_at=$24, closed_at=$25,
            version=version+1, updated_at=NOW()
        WHERE id=$26 AND version=$27`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Title,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.CustomerName,
		ticket.Phone,
		ticket.Address,
		ticket.DescriptionRaw,
		ticket.PreferredTimeSlot,
		ticket.IsUrgent,
		ticket.NotesInternal,
		ticket.Fields,
		ticket.MaskedFields,
		ticket.MaskedText,
		ticket.MaskMethod,
		ticket.MaskStats,
		ticket.AssignedUserIDs,
		ticket.AcceptedBy,
		ticket.AcceptedAt,
		ticket.Quote,
		ticket.Schedule,
		ticket.Cancel,
		ticket.CompletionNote,
		ticket.CompletedAt,
		ticket.ClosedAt,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	ticket.Version++
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByTicketNo(ctx context.Context, ticketNo string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE ticket_no=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, ticketNo)
}

// LastTicketNoWithPrefix returns the highest ticket number sharing the day
// prefix, or empty when none exists yet.
func (r *ticketRepository) LastTicketNoWithPrefix(ctx context.Context, prefix string) (string, error) {
	const query = `SELECT ticket_no FROM tickets WHERE ticket_no LIKE $1 ORDER BY ticket_no DESC LIMIT 1`
	var ticketNo string
	err := r.pool.QueryRow(ctx, query, prefix+"%").Scan(&ticketNo)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ticketNo, nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ticketRepository) scanTicket(row rowScanner, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.TicketNo,
		&ticket.Title,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedBy,
		&ticket.CustomerName,
		&ticket.Phone,
		&ticket.Address,
		&ticket.DescriptionRaw,
		&ticket.PreferredTimeSlot,
		&ticket.IsUrgent,
		&ticket.NotesInternal,
		&ticket.TemplateID,
		&ticket.Fields,
		&ticket.MaskedFields,
		&ticket.MaskedText,
		&ticket.MaskMethod,
		&ticket.MaskStats,
		&ticket.AssignedUserIDs,
		&ticket.AcceptedBy,
		&ticket.AcceptedAt,
		&ticket.Quote,
		&ticket.Schedule,
		&ticket.Cancel,
		&ticket.CompletionNote,
		&ticket.CompletedAt,
		&ticket.ClosedAt,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.VisibleToWorker != nil {
		args = append(args, *filter.VisibleToWorker)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(accepted_by=%s OR %s = ANY(assigned_user_ids) OR (accepted_by IS NULL AND cardinality(assigned_user_ids)=0))",
			placeholder, placeholder))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.IsUrgent != nil {
		args = append(args, *filter.IsUrgent)
		clauses = append(clauses, fmt.Sprintf("is_urgent=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(ticket_no) LIKE %s)", placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := r.scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

// Accept claims the ticket for a worker. The conditional update keeps
// acceptance exclusive: only the first worker to reach an unclaimed row
// succeeds.
func (r *ticketRepository) Accept(ctx context.Context, ticketID, workerID string) (bool, error) {
	const query = `
        UPDATE tickets SET accepted_by=$2, accepted_at=NOW(), status=$3,
            version=version+1, updated_at=NOW()
        WHERE id=$1 AND accepted_by IS NULL AND status IN ($4,$5)`
	cmd, err := r.pool.Exec(ctx, query,
		ticketID, workerID,
		domain.TicketStatusProcessing,
		domain.TicketStatusPending, domain.TicketStatusProcessing,
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// ListScheduledBetween returns open tickets whose confirmed slot starts
// inside the window. Used by the reminder worker.
func (r *ticketRepository) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE schedule->>'stage' = $1
          AND (schedule->'confirmed'->>'start')::timestamptz >= $2
          AND (schedule->'confirmed'->>'start')::timestamptz < $3
          AND status NOT IN ($4,$5)
        ORDER BY created_at`, ticketColumns)

	rows, err := r.pool.Query(ctx, query,
		domain.ScheduleStageConfirmed, from, to,
		domain.TicketStatusClosed, domain.TicketStatusCompleted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []domain.Ticket{}
	for rows.Next() {
		var ticket domain.Ticket
		if err := r.scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}
