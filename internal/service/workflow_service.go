package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/events"
	"github.com/repairflow/repairflow/internal/repository"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

// WorkflowService executes lifecycle actions on tickets. Every action is
// gated by the central transition table and persisted through a versioned
// update, so two racing writers cannot both win.
type WorkflowService struct {
	tickets      repository.TicketRepository
	comments     repository.CommentRepository
	users        repository.UserRepository
	dispatchLogs repository.DispatchLogRepository
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	now          func() time.Time
}

// WorkflowDependencies bundles collaborators for workflow service.
type WorkflowDependencies struct {
	TicketRepo      repository.TicketRepository
	CommentRepo     repository.CommentRepository
	UserRepo        repository.UserRepository
	DispatchLogRepo repository.DispatchLogRepository
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(deps WorkflowDependencies) *WorkflowService {
	return &WorkflowService{
		tickets:      deps.TicketRepo,
		comments:     deps.CommentRepo,
		users:        deps.UserRepo,
		dispatchLogs: deps.DispatchLogRepo,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		now:          time.Now,
	}
}

// Actor is the authenticated party performing a workflow action.
type Actor struct {
	ID   string
	Name string
	Role domain.Role
}

func (s *WorkflowService) load(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// authorize checks the transition table for the action. Role violations
// map to FORBIDDEN, state violations to INVALID_STATE carrying the current
// status.
func authorize(action domain.Action, actor Actor, ticket *domain.Ticket) error {
	rule, ok := domain.RuleFor(action)
	if !ok {
		return apperrors.NewInternalError(fmt.Errorf("unknown action %q", action))
	}
	if !rule.RoleAllowed(actor.Role) {
		return apperrors.NewForbidden(fmt.Sprintf("role %s may not %s", actor.Role, action))
	}
	if !rule.StateAllowed(ticket.Status) {
		return apperrors.NewInvalidState(
			fmt.Sprintf("action %s not allowed in status %s", action, ticket.Status),
			string(ticket.Status),
		)
	}
	return nil
}

// save persists the mutation, translating a lost version race to CONFLICT.
func (s *WorkflowService) save(ctx context.Context, ticket *domain.Ticket) error {
	err := s.tickets.Update(ctx, ticket)
	if errors.Is(err, repository.ErrVersionConflict) {
		return apperrors.NewConflict("ticket changed concurrently, reload and retry", map[string]any{
			"ticket_id": ticket.ID,
		})
	}
	if err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// systemComment appends the transition record to the ledger. The ledger
// write is best-effort: the transition has already committed.
func (s *WorkflowService) systemComment(ctx context.Context, ticket *domain.Ticket, actor Actor, content string) {
	comment := &domain.Comment{
		TicketID:   ticket.ID,
		Kind:       domain.CommentKindSystem,
		Author:     actor.Name,
		AuthorRole: actor.Role,
		Content:    content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		s.logger.Warn("system comment write failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func (s *WorkflowService) publish(ctx context.Context, event events.Event) {
	event.Timestamp = s.now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// DispatchInput selects the technicians for a ticket.
type DispatchInput struct {
	TechnicianIDs []string
	Note          string
}

// Dispatch assigns technicians and pushes the minimum-disclosure work
// order. The exact payload sent out is snapshotted in the dispatch log.
func (s *WorkflowService) Dispatch(ctx context.Context, actor Actor, ticketID string, input DispatchInput) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(domain.ActionDispatch, actor, ticket); err != nil {
		return nil, err
	}
	if len(input.TechnicianIDs) == 0 {
		return nil, apperrors.NewValidationError("at least one technician is required", nil)
	}
	technicians, err := s.users.ListByIDs(ctx, input.TechnicianIDs)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(technicians) != len(input.TechnicianIDs) {
		return nil, apperrors.NewValidationError("unknown technician id", map[string]any{
			"technician_ids": input.TechnicianIDs,
		})
	}
	for _, tech := range technicians {
		if tech.Role != domain.RoleWorker {
			return nil, apperrors.NewValidationError("dispatch target is not a worker", map[string]any{
				"user_id": tech.ID,
			})
		}
	}

	ticket.AssignedUserIDs = input.TechnicianIDs
	ticket.Status = domain.TicketStatusProcessing
	if err := s.save(ctx, ticket); err != nil {
		return nil, err
	}

	payload := dispatchPayload(ticket)
	message := dispatchMessage(ticket, payload)
	payload["message"] = message

	log := &domain.DispatchLog{
		TicketID:         ticket.ID,
		DispatcherUserID: actor.ID,
		TechnicianIDs:    input.TechnicianIDs,
		PayloadSnapshot:  payload,
	}
	if err := s.dispatchLogs.Create(ctx, log); err != nil {
		s.logger.Warn("dispatch log write failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}

	s.systemComment(ctx, ticket, actor, fmt.Sprintf("已派工給 %d 位師傅", len(input.TechnicianIDs)))
	s.publish(ctx, events.Event{
		Type:     events.EventTicketDispatched,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: actor.Role, ID: actor.ID, Name: actor.Name},
		Payload: events.TicketDispatchedPayload{
			TechnicianIDs: input.TechnicianIDs,
			Message:       message,
		},
	})
	return ticket, nil
}

// dispatchPayload is the minimum-disclosure snapshot for field workers:
// masked name, full phone and address, no internal notes.
func dispatchPayload(t *domain.Ticket) map[string]any {
	return map[string]any{
		"ticket_no":           t.TicketNo,
		"category":            t.Category,
		"customer_name":       maskName(t.CustomerName),
		"phone":               t.Phone,
		"address":             t.Address,
		"preferred_time_slot": t.PreferredTimeSlot,
		"description":         truncate(t.DescriptionRaw, 80),
		"is_urgent":           t.IsUrgent,
		"notes":               "",
	}
}

func dispatchMessage(t *domain.Ticket, payload map[string]any) string {
	urgentTag := ""
	if t.IsUrgent {
		urgentTag = "🔴 急件"
	}
	when := t.PreferredTimeSlot
	if t.Schedule.Confirmed != nil {
		when = t.Schedule.Confirmed.Start.Format("01/02 15:04")
	}
	if when == "" {
		when = "待定"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "【派工】%s（%s）%s\n", t.TicketNo, t.Category, urgentTag)
	fmt.Fprintf(&b, "時間：%s\n", when)
	fmt.Fprintf(&b, "客戶：%s\n", payload["customer_name"])
	fmt.Fprintf(&b, "電話：%s\n", payload["phone"])
	fmt.Fprintf(&b, "地址：%s\n", payload["address"])
	fmt.Fprintf(&b, "問題：%s\n", payload["description"])
	b.WriteString("（由系統產生，請勿轉傳）")
	return b.String()
}

// Accept claims the ticket for a worker. Exclusivity is enforced by a
// conditional update: when two workers race, exactly one wins and the
// loser receives CONFLICT.
func (s *WorkflowService) Accept(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(domain.ActionAccept, actor, ticket); err != nil {
		return nil, err
	}
	if !ticket.EligibleToAccept(actor.ID) {
		return nil, apperrors.NewForbidden("ticket is assigned to other workers")
	}
	if ticket.AcceptedBy != nil {
		return nil, apperrors.NewConflict("ticket already accepted", map[string]any{
			"accepted_by": *ticket.AcceptedBy,
		})
	}

	ok, err := s.tickets.Accept(ctx, ticket.ID, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !ok {
		return nil, apperrors.NewConflict("ticket already accepted", nil)
	}

	ticket, err = s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	s.systemComment(ctx, ticket, actor, fmt.Sprintf("%s 已接單", actor.Name))
	s.publish(ctx, events.Event{
		Type:     events.EventTicketAccepted,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: actor.Role, ID: actor.ID, Name: actor.Name},
	})
	return ticket, nil
}

// CancelAcceptance releases a claimed ticket back to its pool. Only the
// accepting worker may release.
func (s *WorkflowService) CancelAcceptance(ctx context.Context, actor Actor, ticketID, reason string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(domain.ActionCancelAcceptance, actor, ticket); err != nil {
		return nil, err
	}
	if ticket.AcceptedBy == nil {
		return nil, apperrors.NewInvalidState("ticket is not accepted", string(ticket.Status))
	}
	if *ticket.AcceptedBy != actor.ID {
		return nil, apperrors.NewForbidden("only the accepting worker may release the ticket")
	}

	ticket.AcceptedBy = nil
	ticket.AcceptedAt = nil
	// Without quote or schedule progress the ticket returns to the pending
	// pool; otherwise work has already started and it stays in processing.
	if ticket.Quote.Stage == domain.QuoteStageNone && ticket.Schedule.Stage == domain.ScheduleStageNone {
		ticket.Status = domain.TicketStatusPending
	}
	if err := s.save(ctx, ticket); err != nil {
		return nil, err
	}

	content := fmt.Sprintf("%s 已取消接單", actor.Name)
	if reason != "" {
		content += "：" + reason
	}
	s.systemComment(ctx, ticket, actor, content)
	return ticket, nil
}

// SubmitQuote records the worker's price. A resubmission supersedes any
// earlier quote and voids its confirmation.
func (s *WorkflowService) SubmitQuote(ctx context.Context, actor Actor, ticketID string, amount int64, description string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(domain.ActionSubmitQuote, actor, ticket); err != nil {
		return nil, err
	}
	if derefStr(ticket.AcceptedBy) != actor.ID {
		return nil, apperrors.NewForbidden("only the accepting worker may quote")
	}
	if amount <= 0 {
		return nil, apperrors.NewValidationError("quote amount must be positive", nil)
	}

	superseded := ticket.Quote.Stage == domain.QuoteStageConfirmed
	submittedAt := s.now()
	ticket.Quote = domain.QuoteTrack{
		Stage:       domain.QuoteStageSubmitted,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		SubmittedBy: actor.ID,
		SubmittedAt: &submittedAt,
	}
	if err := s.save(ctx, ticket); err != nil {
		return nil, err
	}

	content := fmt.Sprintf("報價 NT$%d", amount)
	if superseded {
		content += "（取代先前已確認的報價，需重新確認）"
	}
	s.systemComment(ctx, ticket, actor, content)
	s.publish(ctx, events.Event{
		Type:     events.EventQuoteSubmitted,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: actor.Role, ID: actor.ID, Name: actor.Name},
		Payload: events.QuotePayload{
			Amount:      amount,
			Description: ticket.Quote.Description,
		},
	})
	return ticket, nil
}

// ConfirmQuote locks the submitted quote in. An admin confirming on the
// customer's behalf supplies the reason, which goes into the ledger.
func (s *WorkflowService) ConfirmQuote(ctx context.Context, actor Actor, ticketID, reason string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(domain.ActionConfirmQuote, actor, ticket); err != nil {
		return nil, err
	}
	if ticket.Quote.Stage != domain.QuoteStageSubmitted {
		return nil, apperrors.NewInvalidState("no quote pending confirmation", string(ticket.Status))
	}

	confirmedAt := s.now()
	ticket.Quote.Stage = domain.QuoteStageConfirmed
	ticket.Quote.ConfirmedBy = actor.ID
	ticket.Quote.ConfirmedAt = &confirmedAt
	if err := s.save(ctx, ticket); err != nil {
		return nil, err
	}

	content := fmt.Sprintf("報價 NT$%d 已確認", ticket.Quote.Amount)
	if actor.Role == domain.RoleAdmin && reason != "" {
		content += "（代客戶確認：" + reason + "）"
	}
	s.systemComment(ctx, ticket, actor, content)
	s.publish(ctx, events.Event{
		Type:     events.EventQuoteConfirmed,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: actor.Role, ID: actor.ID, Name: actor.Name},
		Payload: events.QuotePayload{
			Amount:      ticket.Quote.Amount,
			ConfirmedBy: actor.ID,
		},
	})
	return ticket, nil
}

// ProposeSlots offers visit time windows. Requires a confirmed quote:
// scheduling before price agreement is an ordering violation.
func (s *WorkflowService) ProposeSlots(ctx context.Context, actor Actor, ticketID string, slots []domain.TimeSlot) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(domain.ActionProposeSlots, actor, ticket); err != nil {
		return nil, err
	}
	if derefStr(ticket.AcceptedBy) != actor.ID {
		return nil, apperrors.NewForbidden("only the accepting worker may propose slots")
	}
	if ticket.Quote.Stage != domain.QuoteStageConfirmed {
		return nil, apperrors.NewInvalidState("quote must be confirmed before scheduling", string(ticket.Status))
	}
	if err := validateSlots(slots); err != nil {
		return nil, err
	}

	ticket.Schedule.Stage = domain.ScheduleStageProposed
	ticket.Schedule.Proposed = slots
	ticket.Schedule.Confirmed = nil
	ticket.Schedule.ConfirmedBy = ""
	if err := s.save(ctx, ticket); err != nil {
		return nil, err
	}

	s.systemComment(ctx, ticket, actor, fmt.Sprintf("提出 %d 個到府時段", len(slots)))
	s.publish(ctx, events.Event{
		Type:     events.EventSlotsProposed,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: actor.Role, ID: actor.ID, Name: actor.Name},
		Payload:  events.SchedulePayload{Proposed: slots},
	})
	return ticket, nil
}

func validateSlots(slots []domain.TimeSlot) error {
	if len(slots) == 0 {
		return apperrors.NewValidationError("at least one time slot is required", nil)
	}
	for i, slot := range slots {
		if !slot.End.After(slot.Start) {
			return apperrors.NewValidationError("slot end must be after start", map[string]any{"index": i})
		}
	}
	return nil
}

// ConfirmSlot picks one of the proposed windows.
func (s *WorkflowService) ConfirmSlot(ctx context.Context, actor Actor, ticketID string, slot domain.TimeSlot) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(domain.ActionConfirmSlot, actor, ticket); err != nil {
		return nil, err
	}
	if ticket.Schedule.Stage != domain.ScheduleStageProposed {
		return nil, apperrors.NewInvalidState("no slots pending confirmation", string(ticket.Status))
	}

	found := false
	for _, proposed := range ticket.Schedule.Proposed {
		if proposed.Start.Equal(slot.Start) && proposed.End.Equal(slot.End) {
			found = true
			break
		}
	}
	if !found {
		return nil, apperrors.NewValidationError("slot was not among the proposed windows", nil)
	}

	confirmed := slot
	ticket.Schedule.Stage = domain.ScheduleStageConfirmed
	ticket.Schedule.Confirmed = &confirmed
	ticket.Schedule.ConfirmedBy = actor.ID
	if err := s.save(ctx, ticket); err != nil {
		return nil, err
	}

	s.systemComment(ctx, ticket, actor, fmt.Sprintf("到府時間確認：%s", slot.Start.Format("01/02 15:04")))
	s.publish(ctx, events.Event{
		Type:     events.EventSlotConfirmed,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: actor.Role, ID: actor.ID, Name: actor.Name},
		Payload:  events.SchedulePayload{Confirmed: &confirmed},
	})
	return ticket, nil
}

// Reschedule voids a confirmed slot, keeping it in the schedule history,
// and optionally proposes replacement windows. The ledger and both tracks
// survive untouched otherwise.
func (s *WorkflowService) Reschedule(ctx context.Context, actor Actor, ticketID, reason string, slots []domain.TimeSlot) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(domain.ActionReschedule, actor, ticket); err != nil {
		return nil, err
	}
	if ticket.Schedule.Stage != domain.ScheduleStageConfirmed || ticket.Schedule.Confirmed == nil {
		return nil, apperrors.NewInvalidState("no confirmed slot to reschedule", string(ticket.Status))
	}

	ticket.Schedule.History = append(ticket.Schedule.History, *ticket.Schedule.Confirmed)
	ticket.Schedule.Confirmed = nil
	ticket.Schedule.ConfirmedBy = ""
	ticket.Schedule.RescheduleCount++
	if len(slots) > 0 {
		if err := validateSlots(slots); err != nil {
			return nil, err
		}
		ticket.Schedule.Stage = domain.ScheduleStageProposed
		ticket.Schedule.Proposed = slots
	} else {
		ticket.Schedule.Stage = domain.ScheduleStageNone
		ticket.Schedule.Proposed = nil
	}
	if err := s.save(ctx, ticket); err != nil {
		return nil, err
	}

	content := "要求改期"
	if reason != "" {
		content += "：" + reason
	}
	s.systemComment(ctx, ticket, actor, content)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketReschedule,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: actor.Role, ID: actor.ID, Name: actor.Name},
		Payload:  events.SchedulePayload{Proposed: slots, Reason: reason},
	})
	return ticket, nil
}

// Cancel terminates the ticket early. The cancel record keeps who and why;
// the ledger stays readable afterwards.
func (s *WorkflowService) Cancel(ctx context.Context, actor Actor, ticketID, reason string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(domain.ActionCancel, actor, ticket); err != nil {
		return nil, err
	}

	now := s.now()
	ticket.Cancel = &domain.CancelRecord{
		ByID:   actor.ID,
		ByName: actor.Name,
		Role:   actor.Role,
		Reason: strings.TrimSpace(reason),
		At:     now,
	}
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	if err := s.save(ctx, ticket); err != nil {
		return nil, err
	}

	content := "工單已取消"
	if reason != "" {
		content += "：" + reason
	}
	s.systemComment(ctx, ticket, actor, content)
	s.publish(ctx, events.Event{
		Type:     events.EventTicketCancelled,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: actor.Role, ID: actor.ID, Name: actor.Name},
		Payload:  events.CancelPayload{Reason: reason, Role: actor.Role},
	})
	return ticket, nil
}

// Supplement lets the requester add information to an open ticket without
// touching its state.
func (s *WorkflowService) Supplement(ctx context.Context, actor Actor, ticketID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("supplement content is required", nil)
	}

	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(domain.ActionSupplement, actor, ticket); err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		TicketID:   ticket.ID,
		Kind:       domain.CommentKindUser,
		Author:     actor.Name,
		AuthorRole: actor.Role,
		Content:    "【補充】" + content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: actor.Role, ID: actor.ID, Name: actor.Name},
		Payload: events.CommentAddedPayload{
			CommentID: comment.ID,
			Kind:      comment.Kind,
			Preview:   truncate(content, 60),
		},
	})
	return comment, nil
}

// UpdateStatus is the worker's forward-only progress report.
func (s *WorkflowService) UpdateStatus(ctx context.Context, actor Actor, ticketID string, next domain.TicketStatus, note string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(domain.ActionAdvanceStatus, actor, ticket); err != nil {
		return nil, err
	}
	if derefStr(ticket.AcceptedBy) != actor.ID {
		return nil, apperrors.NewForbidden("only the accepting worker may report progress")
	}
	if !domain.WorkerStatusAdvance(ticket.Status, next) {
		return nil, apperrors.NewInvalidState(
			fmt.Sprintf("cannot move from %s to %s", ticket.Status, next),
			string(ticket.Status),
		)
	}

	old := ticket.Status
	ticket.Status = next
	if next == domain.TicketStatusCompleted {
		now := s.now()
		ticket.CompletedAt = &now
		ticket.CompletionNote = strings.TrimSpace(note)
	}
	if err := s.save(ctx, ticket); err != nil {
		return nil, err
	}

	content := fmt.Sprintf("狀態更新：%s → %s", old, next)
	if note != "" {
		content += "，" + note
	}
	s.systemComment(ctx, ticket, actor, content)
	s.publish(ctx, events.Event{
		Type:     events.EventStatusChanged,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: actor.Role, ID: actor.ID, Name: actor.Name},
		Payload: events.StatusChangedPayload{
			OldStatus: old,
			NewStatus: next,
			Comment:   note,
		},
	})
	return ticket, nil
}

// Close archives the ticket. Admin only; the terminal state accepts no
// further actions.
func (s *WorkflowService) Close(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(domain.ActionClose, actor, ticket); err != nil {
		return nil, err
	}

	old := ticket.Status
	now := s.now()
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	if err := s.save(ctx, ticket); err != nil {
		return nil, err
	}

	s.systemComment(ctx, ticket, actor, "工單已結案")
	s.publish(ctx, events.Event{
		Type:     events.EventStatusChanged,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: actor.Role, ID: actor.ID, Name: actor.Name},
		Payload: events.StatusChangedPayload{
			OldStatus: old,
			NewStatus: domain.TicketStatusClosed,
		},
	})
	return ticket, nil
}
