package domain

import "time"

// TicketStatus enumerates the coarse ticket lifecycle.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusProcessing TicketStatus = "PROCESSING"
	TicketStatusCompleted  TicketStatus = "COMPLETED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
)

// MaskMethod selects the detection backend recorded on a ticket.
type MaskMethod string

const (
	MaskMethodRegex MaskMethod = "REGEX"
	MaskMethodAI    MaskMethod = "AI"
)

// TicketField is one filled-in template field. The slice order on the
// ticket equals the template field order at creation time, and Label is a
// frozen copy of the template label so later template edits never rewrite
// ticket history.
type TicketField struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// QuoteStage names the quote negotiation track state.
type QuoteStage string

const (
	QuoteStageNone      QuoteStage = "NONE"
	QuoteStageSubmitted QuoteStage = "SUBMITTED"
	QuoteStageConfirmed QuoteStage = "CONFIRMED"
)

// QuoteTrack holds the quote negotiation between worker and customer.
// A superseding submission resets Stage to SUBMITTED and voids the prior
// confirmation.
type QuoteTrack struct {
	Stage       QuoteStage `json:"stage"`
	Amount      int64      `json:"amount"`
	Description string     `json:"description,omitempty"`
	SubmittedBy string     `json:"submitted_by,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ConfirmedBy string     `json:"confirmed_by,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// ScheduleStage names the time-slot negotiation track state.
type ScheduleStage string

const (
	ScheduleStageNone      ScheduleStage = "NONE"
	ScheduleStageProposed  ScheduleStage = "PROPOSED"
	ScheduleStageConfirmed ScheduleStage = "CONFIRMED"
)

// TimeSlot is a proposed or confirmed visit interval.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ScheduleTrack holds slot proposal and confirmation. Past confirmed slots
// are kept in History when a reschedule clears the confirmation.
type ScheduleTrack struct {
	Stage           ScheduleStage `json:"stage"`
	Proposed        []TimeSlot    `json:"proposed,omitempty"`
	Confirmed       *TimeSlot     `json:"confirmed,omitempty"`
	ConfirmedBy     string        `json:"confirmed_by,omitempty"`
	RescheduleCount int           `json:"reschedule_count"`
	History         []TimeSlot    `json:"history,omitempty"`
}

// CancelRecord documents who closed a ticket early and why.
type CancelRecord struct {
	ByID   string    `json:"by_id,omitempty"`
	ByName string    `json:"by_name"`
	Role   Role      `json:"role"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Ticket is the aggregate for repair requests.
type Ticket struct {
	ID        string
	TicketNo  string
	Title     string
	Category  string
	Priority  TicketPriority
	Status    TicketStatus
	CreatedBy string

	// Customer contact, raw. Never rendered to workers without masking.
	CustomerName      string
	Phone             string
	Address           string
	DescriptionRaw    string
	PreferredTimeSlot string
	IsUrgent          bool
	NotesInternal     string

	// Masking record, frozen at creation. MaskedText is the rendering
	// produced at creation time; it is never recomputed, so AI-assisted
	// results stay stable across reads.
	TemplateID   *string
	Fields       []TicketField
	MaskedFields []string
	MaskedText   string
	MaskMethod   MaskMethod
	MaskStats    map[string]int

	// Workflow tracks.
	AssignedUserIDs []string
	AcceptedBy      *string
	AcceptedAt      *time.Time
	Quote           QuoteTrack
	Schedule        ScheduleTrack
	Cancel          *CancelRecord
	CompletionNote  string
	CompletedAt     *time.Time
	ClosedAt        *time.Time

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OpenPool reports whether the ticket is visible to all workers.
func (t *Ticket) OpenPool() bool {
	return len(t.AssignedUserIDs) == 0
}

// AssignedTo reports whether the worker is in the assignee set.
func (t *Ticket) AssignedTo(userID string) bool {
	for _, id := range t.AssignedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// EligibleToAccept reports whether the worker may claim this ticket.
func (t *Ticket) EligibleToAccept(userID string) bool {
	return t.OpenPool() || t.AssignedTo(userID)
}

// FieldMasked reports whether the field key was marked for redaction at
// creation time.
func (t *Ticket) FieldMasked(key string) bool {
	for _, k := range t.MaskedFields {
		if k == key {
			return true
		}
	}
	return false
}

// Terminal reports whether no further customer or worker action is valid.
func (t *Ticket) Terminal() bool {
	return t.Status == TicketStatusClosed
}
