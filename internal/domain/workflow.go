package domain

// Action names a mutating ticket operation subject to the transition table.
type Action string

const (
	ActionDispatch         Action = "dispatch"
	ActionAccept           Action = "accept"
	ActionCancelAcceptance Action = "cancel_acceptance"
	ActionSubmitQuote      Action = "submit_quote"
	ActionConfirmQuote     Action = "confirm_quote"
	ActionProposeSlots     Action = "propose_slots"
	ActionConfirmSlot      Action = "confirm_slot"
	ActionReschedule       Action = "reschedule"
	ActionCancel           Action = "cancel"
	ActionSupplement       Action = "supplement"
	ActionAdvanceStatus    Action = "advance_status"
	ActionClose            Action = "close"
)

// TransitionRule declares which roles may perform an action and from which
// coarse statuses. Sub-track preconditions (accepted worker, quote stage)
// are checked by the workflow service after this gate.
type TransitionRule struct {
	Roles     []Role
	PreStates []TicketStatus
}

var transitionTable = map[Action]TransitionRule{
	ActionDispatch: {
		Roles:     []Role{RoleAdmin},
		PreStates: []TicketStatus{TicketStatusPending, TicketStatusProcessing},
	},
	ActionAccept: {
		Roles:     []Role{RoleWorker},
		PreStates: []TicketStatus{TicketStatusPending, TicketStatusProcessing},
	},
	ActionCancelAcceptance: {
		Roles:     []Role{RoleWorker},
		PreStates: []TicketStatus{TicketStatusPending, TicketStatusProcessing},
	},
	ActionSubmitQuote: {
		Roles:     []Role{RoleWorker},
		PreStates: []TicketStatus{TicketStatusProcessing},
	},
	ActionConfirmQuote: {
		Roles:     []Role{RoleCustomer, RoleAdmin},
		PreStates: []TicketStatus{TicketStatusProcessing},
	},
	ActionProposeSlots: {
		Roles:     []Role{RoleWorker},
		PreStates: []TicketStatus{TicketStatusProcessing},
	},
	ActionConfirmSlot: {
		Roles:     []Role{RoleCustomer, RoleAdmin},
		PreStates: []TicketStatus{TicketStatusProcessing},
	},
	ActionReschedule: {
		Roles:     []Role{RoleCustomer, RoleWorker, RoleAdmin},
		PreStates: []TicketStatus{TicketStatusProcessing},
	},
	ActionCancel: {
		Roles:     []Role{RoleCustomer, RoleAdmin},
		PreStates: []TicketStatus{TicketStatusPending, TicketStatusProcessing},
	},
	ActionSupplement: {
		Roles:     []Role{RoleCustomer, RoleAdmin},
		PreStates: []TicketStatus{TicketStatusPending, TicketStatusProcessing},
	},
	ActionAdvanceStatus: {
		Roles:     []Role{RoleWorker},
		PreStates: []TicketStatus{TicketStatusProcessing},
	},
	ActionClose: {
		Roles:     []Role{RoleAdmin},
		PreStates: []TicketStatus{TicketStatusPending, TicketStatusProcessing, TicketStatusCompleted},
	},
}

// RuleFor returns the transition rule for an action. The bool is false for
// unknown actions.
func RuleFor(action Action) (TransitionRule, bool) {
	rule, ok := transitionTable[action]
	return rule, ok
}

// RoleAllowed reports whether the role may ever perform the action.
func (r TransitionRule) RoleAllowed(role Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// StateAllowed reports whether the action may start from the status.
func (r TransitionRule) StateAllowed(status TicketStatus) bool {
	for _, allowed := range r.PreStates {
		if allowed == status {
			return true
		}
	}
	return false
}

var statusRank = map[TicketStatus]int{
	TicketStatusPending:    0,
	TicketStatusProcessing: 1,
	TicketStatusCompleted:  2,
	TicketStatusClosed:     3,
}

// WorkerStatusAdvance reports whether a worker-initiated status update is a
// legal forward move. Workers only move within {PROCESSING, COMPLETED};
// PENDING and CLOSED are admin or system territory.
func WorkerStatusAdvance(current, next TicketStatus) bool {
	if next != TicketStatusProcessing && next != TicketStatusCompleted {
		return false
	}
	return statusRank[next] > statusRank[current]
}
