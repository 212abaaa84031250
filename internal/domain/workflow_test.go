package domain

import "testing"

func TestRuleForKnownActions(t *testing.T) {
	actions := []Action{
		ActionDispatch, ActionAccept, ActionCancelAcceptance,
		ActionSubmitQuote, ActionConfirmQuote, ActionProposeSlots,
		ActionConfirmSlot, ActionReschedule, ActionCancel,
		ActionSupplement, ActionAdvanceStatus, ActionClose,
	}
	for _, action := range actions {
		if _, ok := RuleFor(action); !ok {
			t.Errorf("RuleFor(%s) missing", action)
		}
	}
	if _, ok := RuleFor(Action("bogus")); ok {
		t.Error("RuleFor accepted unknown action")
	}
}

func TestTransitionRoles(t *testing.T) {
	tests := []struct {
		action  Action
		role    Role
		allowed bool
	}{
		{ActionDispatch, RoleAdmin, true},
		{ActionDispatch, RoleWorker, false},
		{ActionDispatch, RoleCustomer, false},
		{ActionAccept, RoleWorker, true},
		{ActionAccept, RoleAdmin, false},
		{ActionSubmitQuote, RoleWorker, true},
		{ActionSubmitQuote, RoleCustomer, false},
		{ActionConfirmQuote, RoleCustomer, true},
		{ActionConfirmQuote, RoleAdmin, true},
		{ActionConfirmQuote, RoleWorker, false},
		{ActionConfirmSlot, RoleCustomer, true},
		{ActionConfirmSlot, RoleWorker, false},
		{ActionReschedule, RoleWorker, true},
		{ActionReschedule, RoleCustomer, true},
		{ActionCancel, RoleCustomer, true},
		{ActionCancel, RoleWorker, false},
		{ActionSupplement, RoleCustomer, true},
		{ActionSupplement, RoleWorker, false},
		{ActionAdvanceStatus, RoleWorker, true},
		{ActionClose, RoleAdmin, true},
		{ActionClose, RoleWorker, false},
	}
	for _, tt := range tests {
		rule, ok := RuleFor(tt.action)
		if !ok {
			t.Fatalf("RuleFor(%s) missing", tt.action)
		}
		if got := rule.RoleAllowed(tt.role); got != tt.allowed {
			t.Errorf("%s by %s = %v, want %v", tt.action, tt.role, got, tt.allowed)
		}
	}
}

func TestTransitionPreStates(t *testing.T) {
	tests := []struct {
		action  Action
		status  TicketStatus
		allowed bool
	}{
		{ActionDispatch, TicketStatusPending, true},
		{ActionDispatch, TicketStatusProcessing, true},
		{ActionDispatch, TicketStatusClosed, false},
		{ActionAccept, TicketStatusPending, true},
		{ActionAccept, TicketStatusCompleted, false},
		{ActionSubmitQuote, TicketStatusPending, false},
		{ActionSubmitQuote, TicketStatusProcessing, true},
		{ActionCancel, TicketStatusProcessing, true},
		{ActionCancel, TicketStatusCompleted, false},
		{ActionCancel, TicketStatusClosed, false},
		{ActionSupplement, TicketStatusClosed, false},
		{ActionClose, TicketStatusCompleted, true},
		{ActionClose, TicketStatusClosed, false},
	}
	for _, tt := range tests {
		rule, ok := RuleFor(tt.action)
		if !ok {
			t.Fatalf("RuleFor(%s) missing", tt.action)
		}
		if got := rule.StateAllowed(tt.status); got != tt.allowed {
			t.Errorf("%s from %s = %v, want %v", tt.action, tt.status, got, tt.allowed)
		}
	}
}

func TestWorkerStatusAdvance(t *testing.T) {
	tests := []struct {
		current TicketStatus
		next    TicketStatus
		want    bool
	}{
		{TicketStatusPending, TicketStatusProcessing, true},
		{TicketStatusProcessing, TicketStatusCompleted, true},
		{TicketStatusPending, TicketStatusCompleted, true},
		{TicketStatusProcessing, TicketStatusProcessing, false},
		{TicketStatusCompleted, TicketStatusProcessing, false},
		{TicketStatusProcessing, TicketStatusPending, false},
		{TicketStatusProcessing, TicketStatusClosed, false},
		{TicketStatusCompleted, TicketStatusCompleted, false},
	}
	for _, tt := range tests {
		if got := WorkerStatusAdvance(tt.current, tt.next); got != tt.want {
			t.Errorf("WorkerStatusAdvance(%s, %s) = %v, want %v", tt.current, tt.next, got, tt.want)
		}
	}
}

func TestTicketVisibilityHelpers(t *testing.T) {
	open := &Ticket{}
	if !open.OpenPool() || !open.EligibleToAccept("w1") {
		t.Error("empty assignee set should be open pool")
	}

	assigned := &Ticket{AssignedUserIDs: []string{"w1", "w2"}}
	if assigned.OpenPool() {
		t.Error("assigned ticket reported as open pool")
	}
	if !assigned.EligibleToAccept("w1") || assigned.EligibleToAccept("w3") {
		t.Error("assignment eligibility wrong")
	}
}

func TestTicketTerminal(t *testing.T) {
	if (&Ticket{Status: TicketStatusCompleted}).Terminal() {
		t.Error("completed should not be terminal")
	}
	if !(&Ticket{Status: TicketStatusClosed}).Terminal() {
		t.Error("closed should be terminal")
	}
}
