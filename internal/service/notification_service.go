package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/events"
	"github.com/repairflow/repairflow/internal/notify"
	"github.com/repairflow/repairflow/internal/repository"
)

// NotificationService turns domain events into LINE pushes. Everything
// here is best-effort: a failed push is logged and forgotten, and a
// handler error never reaches the transition that emitted the event.
type NotificationService struct {
	dispatcher    events.Dispatcher
	messenger     notify.Messenger
	users         repository.UserRepository
	tickets       repository.TicketRepository
	lineCustomers repository.LineCustomerRepository
	logger        *zap.Logger
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	Dispatcher       events.Dispatcher
	Messenger        notify.Messenger
	UserRepo         repository.UserRepository
	TicketRepo       repository.TicketRepository
	LineCustomerRepo repository.LineCustomerRepository
	Logger           *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		dispatcher:    deps.Dispatcher,
		messenger:     deps.Messenger,
		users:         deps.UserRepo,
		tickets:       deps.TicketRepo,
		lineCustomers: deps.LineCustomerRepo,
		logger:        deps.Logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketDispatched, n.handleTicketDispatched)
	n.dispatcher.Subscribe(events.EventQuoteSubmitted, n.handleQuoteSubmitted)
	n.dispatcher.Subscribe(events.EventSlotConfirmed, n.handleSlotConfirmed)
	n.dispatcher.Subscribe(events.EventStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventTicketCancelled, n.handleTicketCancelled)
}

// pushToAdmins fans a message out to every admin with a LINE binding.
func (n *NotificationService) pushToAdmins(ctx context.Context, message string) {
	admins, err := n.users.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		n.logger.Warn("load admins for notification failed", zap.Error(err))
		return
	}
	n.pushToUsers(ctx, admins, message)
}

func (n *NotificationService) pushToUsers(ctx context.Context, users []domain.User, message string) {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u.LineUserID != nil && *u.LineUserID != "" {
			ids = append(ids, *u.LineUserID)
		}
	}
	n.messenger.PushMulti(ctx, ids, message)
}

// pushToCustomer resolves the ticket's phone to a registered LINE contact.
// Customers without a binding simply get nothing.
func (n *NotificationService) pushToCustomer(ctx context.Context, ticketID, message string) {
	ticket, err := n.tickets.GetByID(ctx, ticketID)
	if err != nil {
		n.logger.Warn("load ticket for notification failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}
	if ticket.Phone == "" {
		return
	}
	customer, err := n.lineCustomers.GetByPhone(ctx, ticket.Phone)
	if err != nil {
		return
	}
	if err := n.messenger.Push(ctx, customer.LineUserID, message); err != nil {
		n.logger.Warn("customer push failed", zap.String("ticket_no", ticket.TicketNo), zap.Error(err))
	}
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok || !payload.Public {
		return nil
	}
	urgent := ""
	if payload.Priority == domain.TicketPriorityHigh {
		urgent = "🔴 "
	}
	message := fmt.Sprintf("%s【新工單】%s（%s）\n%s\n%s", urgent, event.TicketNo, payload.Category, payload.Title, payload.Summary)
	n.pushToAdmins(ctx, message)
	return nil
}

func (n *NotificationService) handleTicketDispatched(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketDispatchedPayload)
	if !ok {
		return nil
	}
	technicians, err := n.users.ListByIDs(ctx, payload.TechnicianIDs)
	if err != nil {
		n.logger.Warn("load technicians for dispatch push failed", zap.Error(err))
		return nil
	}
	n.pushToUsers(ctx, technicians, payload.Message)
	return nil
}

func (n *NotificationService) handleQuoteSubmitted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.QuotePayload)
	if !ok {
		return nil
	}
	message := fmt.Sprintf("【報價】%s\n金額：NT$%d\n請至追蹤頁確認", event.TicketNo, payload.Amount)
	n.pushToCustomer(ctx, event.TicketID, message)
	n.pushToAdmins(ctx, message)
	return nil
}

func (n *NotificationService) handleSlotConfirmed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SchedulePayload)
	if !ok || payload.Confirmed == nil {
		return nil
	}
	message := fmt.Sprintf("【時間確認】%s\n到府時間：%s", event.TicketNo, payload.Confirmed.Start.Format("01/02 15:04"))
	n.pushToCustomer(ctx, event.TicketID, message)
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.StatusChangedPayload)
	if !ok {
		return nil
	}
	switch payload.NewStatus {
	case domain.TicketStatusCompleted:
		message := fmt.Sprintf("【完工】%s 已完成維修，請確認並評價", event.TicketNo)
		n.pushToCustomer(ctx, event.TicketID, message)
		n.pushToAdmins(ctx, message)
	case domain.TicketStatusClosed:
		n.pushToCustomer(ctx, event.TicketID, fmt.Sprintf("【結案】%s 已結案，感謝您的使用", event.TicketNo))
	}
	return nil
}

func (n *NotificationService) handleTicketCancelled(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CancelPayload)
	if !ok {
		return nil
	}
	message := fmt.Sprintf("【取消】%s 已取消", event.TicketNo)
	if payload.Reason != "" {
		message += "：" + payload.Reason
	}
	n.pushToAdmins(ctx, message)
	return nil
}
