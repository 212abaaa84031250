package events

import (
	"time"

	"github.com/repairflow/repairflow/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated    EventType = "ticket_created"
	EventTicketDispatched EventType = "ticket_dispatched"
	EventTicketAccepted   EventType = "ticket_accepted"
	EventQuoteSubmitted   EventType = "quote_submitted"
	EventQuoteConfirmed   EventType = "quote_confirmed"
	EventSlotsProposed    EventType = "slots_proposed"
	EventSlotConfirmed    EventType = "slot_confirmed"
	EventTicketReschedule EventType = "ticket_rescheduled"
	EventTicketCancelled  EventType = "ticket_cancelled"
	EventStatusChanged    EventType = "ticket_status_changed"
	EventCommentAdded     EventType = "ticket_comment_added"
)

// Actor identifies who triggered an event.
type Actor struct {
	Role domain.Role `json:"role"`
	ID   string      `json:"id,omitempty"`
	Name string      `json:"name,omitempty"`
}

// Event is a domain event emitted after a committed state transition.
// Delivery is fire-and-forget; handler failure never rolls the transition
// back.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	TicketNo  string      `json:"ticket_no"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category string                `json:"category,omitempty"`
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
	Public   bool                  `json:"public"`
	Phone    string                `json:"phone,omitempty"`
	Address  string                `json:"address,omitempty"`
	Summary  string                `json:"summary,omitempty"`
}

// TicketDispatchedPayload payload.
type TicketDispatchedPayload struct {
	TechnicianIDs []string `json:"technician_ids"`
	Message       string   `json:"message"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// QuotePayload payload for quote submission and confirmation.
type QuotePayload struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description,omitempty"`
	ConfirmedBy string `json:"confirmed_by,omitempty"`
}

// SchedulePayload payload for slot proposal, confirmation and reschedule.
type SchedulePayload struct {
	Proposed  []domain.TimeSlot `json:"proposed,omitempty"`
	Confirmed *domain.TimeSlot  `json:"confirmed,omitempty"`
	Reason    string            `json:"reason,omitempty"`
}

// CancelPayload payload.
type CancelPayload struct {
	Reason string      `json:"reason,omitempty"`
	Role   domain.Role `json:"role"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID string             `json:"comment_id"`
	Kind      domain.CommentKind `json:"kind"`
	Preview   string             `json:"preview"`
}
