package dto

import (
	"time"

	"github.com/repairflow/repairflow/internal/domain"
)

// DispatchRequest payload.
type DispatchRequest struct {
	TechnicianIDs []string `json:"technician_ids"`
	Note          string   `json:"note"`
}

// QuoteRequest payload.
type QuoteRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// SlotRequest is one proposed window.
type SlotRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ProposeSlotsRequest payload.
type ProposeSlotsRequest struct {
	Slots []SlotRequest `json:"slots"`
}

// ConfirmSlotRequest payload.
type ConfirmSlotRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// RescheduleRequest payload.
type RescheduleRequest struct {
	Reason string        `json:"reason"`
	Slots  []SlotRequest `json:"slots"`
}

// ReasonRequest payload for cancel and release actions.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// SupplementRequest payload.
type SupplementRequest struct {
	Content string `json:"content"`
}

// StatusUpdateRequest payload.
type StatusUpdateRequest struct {
	Status domain.TicketStatus `json:"status"`
	Note   string              `json:"note"`
}

// CustomerActionRequest is the payload for public ticket actions. The
// phone must match the ticket's contact phone; the remaining fields are
// read per action.
type CustomerActionRequest struct {
	Phone   string        `json:"phone"`
	Reason  string        `json:"reason"`
	Content string        `json:"content"`
	Slot    *SlotRequest  `json:"slot"`
	Slots   []SlotRequest `json:"slots"`
}

// ToTimeSlots converts request windows to domain slots.
func ToTimeSlots(slots []SlotRequest) []domain.TimeSlot {
	out := make([]domain.TimeSlot, 0, len(slots))
	for _, s := range slots {
		out = append(out, domain.TimeSlot{Start: s.Start, End: s.End})
	}
	return out
}
