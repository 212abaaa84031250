package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/events"
	"github.com/repairflow/repairflow/internal/repository"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
	nextID  int

	// denyClaim makes Accept lose, as when another worker's conditional
	// update lands between the caller's load and its claim.
	denyClaim bool
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.nextID++
	ticket.ID = fmt.Sprintf("ticket-%d", r.nextID)
	ticket.Version = 1
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Version != ticket.Version {
		return repository.ErrVersionConflict
	}
	ticket.Version++
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	stored, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (r *fakeTicketRepo) GetByTicketNo(ctx context.Context, ticketNo string) (*domain.Ticket, error) {
	for _, t := range r.tickets {
		if t.TicketNo == ticketNo {
			copied := *t
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) LastTicketNoWithPrefix(ctx context.Context, prefix string) (string, error) {
	last := ""
	for _, t := range r.tickets {
		if strings.HasPrefix(t.TicketNo, prefix) && t.TicketNo > last {
			last = t.TicketNo
		}
	}
	return last, nil
}

func (r *fakeTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for _, t := range r.tickets {
		if filter.VisibleToWorker != nil {
			worker := *filter.VisibleToWorker
			visible := t.AssignedTo(worker) ||
				(t.AcceptedBy != nil && *t.AcceptedBy == worker) ||
				(t.AcceptedBy == nil && t.OpenPool())
			if !visible {
				continue
			}
		}
		result = append(result, *t)
	}
	return result, nil
}

func (r *fakeTicketRepo) Accept(ctx context.Context, ticketID, workerID string) (bool, error) {
	if r.denyClaim {
		return false, nil
	}
	stored, ok := r.tickets[ticketID]
	if !ok {
		return false, nil
	}
	if stored.AcceptedBy != nil {
		return false, nil
	}
	if stored.Status != domain.TicketStatusPending && stored.Status != domain.TicketStatusProcessing {
		return false, nil
	}
	now := time.Now()
	worker := workerID
	stored.AcceptedBy = &worker
	stored.AcceptedAt = &now
	stored.Status = domain.TicketStatusProcessing
	stored.Version++
	return true, nil
}

func (r *fakeTicketRepo) ListScheduledBetween(ctx context.Context, from, to time.Time) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for _, t := range r.tickets {
		if t.Schedule.Stage != domain.ScheduleStageConfirmed || t.Schedule.Confirmed == nil {
			continue
		}
		start := t.Schedule.Confirmed.Start
		if !start.Before(from) && start.Before(to) {
			result = append(result, *t)
		}
	}
	return result, nil
}

type fakeCommentRepo struct {
	comments []domain.Comment
	nextID   int
}

func (r *fakeCommentRepo) Create(ctx context.Context, comment *domain.Comment) error {
	r.nextID++
	comment.ID = fmt.Sprintf("comment-%d", r.nextID)
	comment.CreatedAt = time.Now()
	r.comments = append(r.comments, *comment)
	return nil
}

func (r *fakeCommentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	result := []domain.Comment{}
	for _, c := range r.comments {
		if c.TicketID == ticketID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (r *fakeCommentRepo) lastContent() string {
	if len(r.comments) == 0 {
		return ""
	}
	return r.comments[len(r.comments)-1].Content
}

type fakeUserRepo struct {
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: map[string]*domain.User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	result := []domain.User{}
	for _, u := range r.users {
		if u.Role == role && u.Active {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (r *fakeUserRepo) ListByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	result := []domain.User{}
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			result = append(result, *u)
		}
	}
	return result, nil
}

type fakeDispatchLogRepo struct {
	logs []domain.DispatchLog
}

func (r *fakeDispatchLogRepo) Create(ctx context.Context, log *domain.DispatchLog) error {
	log.ID = fmt.Sprintf("dispatch-%d", len(r.logs)+1)
	log.DispatchedAt = time.Now()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *fakeDispatchLogRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.DispatchLog, error) {
	result := []domain.DispatchLog{}
	for _, l := range r.logs {
		if l.TicketID == ticketID {
			result = append(result, l)
		}
	}
	return result, nil
}

type workflowFixture struct {
	service  *WorkflowService
	tickets  *fakeTicketRepo
	comments *fakeCommentRepo
	users    *fakeUserRepo
	logs     *fakeDispatchLogRepo
}

func newWorkflowFixture(users ...*domain.User) *workflowFixture {
	f := &workflowFixture{
		tickets:  newFakeTicketRepo(),
		comments: &fakeCommentRepo{},
		users:    newFakeUserRepo(users...),
		logs:     &fakeDispatchLogRepo{},
	}
	f.service = NewWorkflowService(WorkflowDependencies{
		TicketRepo:      f.tickets,
		CommentRepo:     f.comments,
		UserRepo:        f.users,
		DispatchLogRepo: f.logs,
		Dispatcher:      events.NewInMemoryDispatcher(),
		Logger:          zap.NewNop(),
	})
	return f
}

func (f *workflowFixture) seedTicket(t *testing.T, mutate func(*domain.Ticket)) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		TicketNo:     "TK260901001",
		Title:        "冷氣不冷",
		Category:     "冷氣維修",
		Priority:     domain.TicketPriorityMedium,
		Status:       domain.TicketStatusPending,
		CustomerName: "王小明",
		Phone:        "0912345678",
		Address:      "台北市信義區松山路100號",
		Quote:        domain.QuoteTrack{Stage: domain.QuoteStageNone},
		Schedule:     domain.ScheduleTrack{Stage: domain.ScheduleStageNone},
	}
	if mutate != nil {
		mutate(ticket)
	}
	if err := f.tickets.Create(context.Background(), ticket); err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return ticket
}

var (
	adminActor   = Actor{ID: "admin-1", Name: "管理員", Role: domain.RoleAdmin}
	workerActor  = Actor{ID: "worker-1", Name: "張師傅", Role: domain.RoleWorker}
	worker2Actor = Actor{ID: "worker-2", Name: "李師傅", Role: domain.RoleWorker}
	custActor    = Actor{ID: "", Name: "王小明", Role: domain.RoleCustomer}
)

func workerUser(id, name string) *domain.User {
	return &domain.User{ID: id, Username: id, Name: name, Role: domain.RoleWorker, Active: true}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestDispatchAssignsAndLogs(t *testing.T) {
	f := newWorkflowFixture(workerUser("worker-1", "張師傅"), workerUser("worker-2", "李師傅"))
	ticket := f.seedTicket(t, nil)

	updated, err := f.service.Dispatch(context.Background(), adminActor, ticket.ID, DispatchInput{
		TechnicianIDs: []string{"worker-1", "worker-2"},
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if updated.Status != domain.TicketStatusProcessing {
		t.Errorf("status = %s, want PROCESSING", updated.Status)
	}
	if len(updated.AssignedUserIDs) != 2 {
		t.Errorf("assigned = %v, want two workers", updated.AssignedUserIDs)
	}
	if len(f.logs.logs) != 1 {
		t.Fatalf("dispatch logs = %d, want 1", len(f.logs.logs))
	}
	snapshot := f.logs.logs[0].PayloadSnapshot
	if snapshot["customer_name"] != "王先生/小姐" {
		t.Errorf("snapshot name = %v, want masked surname", snapshot["customer_name"])
	}
	if snapshot["phone"] != ticket.Phone {
		t.Errorf("snapshot phone = %v, want full phone for field work", snapshot["phone"])
	}
	message, _ := snapshot["message"].(string)
	if !strings.Contains(message, "【派工】TK260901001") {
		t.Errorf("message missing dispatch header: %q", message)
	}
	if f.comments.lastContent() != "已派工給 2 位師傅" {
		t.Errorf("comment = %q", f.comments.lastContent())
	}
}

func TestDispatchRejectsUnknownTechnician(t *testing.T) {
	f := newWorkflowFixture(workerUser("worker-1", "張師傅"))
	ticket := f.seedTicket(t, nil)

	_, err := f.service.Dispatch(context.Background(), adminActor, ticket.ID, DispatchInput{
		TechnicianIDs: []string{"worker-1", "ghost"},
	})
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestDispatchRejectsNonWorkerTarget(t *testing.T) {
	admin := &domain.User{ID: "admin-2", Username: "admin2", Name: "副管理", Role: domain.RoleAdmin, Active: true}
	f := newWorkflowFixture(admin)
	ticket := f.seedTicket(t, nil)

	_, err := f.service.Dispatch(context.Background(), adminActor, ticket.ID, DispatchInput{
		TechnicianIDs: []string{"admin-2"},
	})
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestDispatchRequiresAdmin(t *testing.T) {
	f := newWorkflowFixture(workerUser("worker-1", "張師傅"))
	ticket := f.seedTicket(t, nil)

	_, err := f.service.Dispatch(context.Background(), workerActor, ticket.ID, DispatchInput{
		TechnicianIDs: []string{"worker-1"},
	})
	assertCode(t, err, "FORBIDDEN")
}

func TestAcceptClaimsOpenPoolTicket(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)

	updated, err := f.service.Accept(context.Background(), workerActor, ticket.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if updated.AcceptedBy == nil || *updated.AcceptedBy != "worker-1" {
		t.Errorf("accepted_by = %v, want worker-1", updated.AcceptedBy)
	}
	if updated.Status != domain.TicketStatusProcessing {
		t.Errorf("status = %s, want PROCESSING", updated.Status)
	}
	if f.comments.lastContent() != "張師傅 已接單" {
		t.Errorf("comment = %q", f.comments.lastContent())
	}
}

func TestAcceptSecondWorkerConflicts(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)

	if _, err := f.service.Accept(context.Background(), workerActor, ticket.ID); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	_, err := f.service.Accept(context.Background(), worker2Actor, ticket.ID)
	assertCode(t, err, "CONFLICT")
}

func TestAcceptRacingClaimConflicts(t *testing.T) {
	// The loaded snapshot shows an unclaimed ticket but the conditional
	// claim loses to a concurrent worker.
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	f.tickets.denyClaim = true

	_, err := f.service.Accept(context.Background(), workerActor, ticket.ID)
	assertCode(t, err, "CONFLICT")
}

func TestAcceptOutsideAssignmentForbidden(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, func(tk *domain.Ticket) {
		tk.AssignedUserIDs = []string{"worker-2"}
		tk.Status = domain.TicketStatusProcessing
	})

	_, err := f.service.Accept(context.Background(), workerActor, ticket.ID)
	assertCode(t, err, "FORBIDDEN")
}

func TestCancelAcceptanceReturnsToPool(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	if _, err := f.service.Accept(context.Background(), workerActor, ticket.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	updated, err := f.service.CancelAcceptance(context.Background(), workerActor, ticket.ID, "臨時有事")
	if err != nil {
		t.Fatalf("cancel acceptance: %v", err)
	}
	if updated.AcceptedBy != nil {
		t.Errorf("accepted_by = %v, want nil", updated.AcceptedBy)
	}
	if updated.Status != domain.TicketStatusPending {
		t.Errorf("status = %s, want PENDING for untouched tracks", updated.Status)
	}
	if f.comments.lastContent() != "張師傅 已取消接單：臨時有事" {
		t.Errorf("comment = %q", f.comments.lastContent())
	}
}

func TestCancelAcceptanceKeepsProcessingAfterQuote(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	ctx := context.Background()
	if _, err := f.service.Accept(ctx, workerActor, ticket.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.service.SubmitQuote(ctx, workerActor, ticket.ID, 1500, "更換壓縮機"); err != nil {
		t.Fatalf("quote: %v", err)
	}

	updated, err := f.service.CancelAcceptance(ctx, workerActor, ticket.ID, "")
	if err != nil {
		t.Fatalf("cancel acceptance: %v", err)
	}
	if updated.Status != domain.TicketStatusProcessing {
		t.Errorf("status = %s, want PROCESSING once work started", updated.Status)
	}
}

func TestCancelAcceptanceOnlyAcceptor(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	if _, err := f.service.Accept(context.Background(), workerActor, ticket.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := f.service.CancelAcceptance(context.Background(), worker2Actor, ticket.ID, "")
	assertCode(t, err, "FORBIDDEN")
}

func TestCancelAcceptanceWithoutClaim(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, func(tk *domain.Ticket) {
		tk.Status = domain.TicketStatusProcessing
	})

	_, err := f.service.CancelAcceptance(context.Background(), workerActor, ticket.ID, "")
	assertCode(t, err, "INVALID_STATE")
}

func TestSubmitQuoteValidatesAmount(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	ctx := context.Background()
	if _, err := f.service.Accept(ctx, workerActor, ticket.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := f.service.SubmitQuote(ctx, workerActor, ticket.ID, 0, "")
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestSubmitQuoteOnlyAcceptor(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	ctx := context.Background()
	if _, err := f.service.Accept(ctx, workerActor, ticket.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := f.service.SubmitQuote(ctx, worker2Actor, ticket.ID, 1500, "")
	assertCode(t, err, "FORBIDDEN")
}

func TestQuoteResubmissionSupersedesConfirmation(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	ctx := context.Background()
	if _, err := f.service.Accept(ctx, workerActor, ticket.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.service.SubmitQuote(ctx, workerActor, ticket.ID, 1500, "更換壓縮機"); err != nil {
		t.Fatalf("quote: %v", err)
	}
	if _, err := f.service.ConfirmQuote(ctx, custActor, ticket.ID, ""); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	updated, err := f.service.SubmitQuote(ctx, workerActor, ticket.ID, 2200, "加購冷媒")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if updated.Quote.Stage != domain.QuoteStageSubmitted {
		t.Errorf("stage = %s, want SUBMITTED", updated.Quote.Stage)
	}
	if updated.Quote.Amount != 2200 {
		t.Errorf("amount = %d, want 2200", updated.Quote.Amount)
	}
	if updated.Quote.ConfirmedBy != "" || updated.Quote.ConfirmedAt != nil {
		t.Errorf("confirmation not voided: %+v", updated.Quote)
	}
	if !strings.Contains(f.comments.lastContent(), "取代先前已確認的報價") {
		t.Errorf("comment = %q, want supersession note", f.comments.lastContent())
	}
}

func TestConfirmQuoteRequiresSubmission(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, func(tk *domain.Ticket) {
		tk.Status = domain.TicketStatusProcessing
	})

	_, err := f.service.ConfirmQuote(context.Background(), custActor, ticket.ID, "")
	assertCode(t, err, "INVALID_STATE")
}

func TestProposeSlotsRequiresConfirmedQuote(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	ctx := context.Background()
	if _, err := f.service.Accept(ctx, workerActor, ticket.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.service.SubmitQuote(ctx, workerActor, ticket.ID, 1500, ""); err != nil {
		t.Fatalf("quote: %v", err)
	}

	start := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)
	_, err := f.service.ProposeSlots(ctx, workerActor, ticket.ID, []domain.TimeSlot{
		{Start: start, End: start.Add(2 * time.Hour)},
	})
	assertCode(t, err, "INVALID_STATE")
}

func TestProposeSlotsRejectsInvertedWindow(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	ctx := context.Background()
	acceptAndConfirmQuote(t, f, ticket.ID)

	start := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)
	_, err := f.service.ProposeSlots(ctx, workerActor, ticket.ID, []domain.TimeSlot{
		{Start: start, End: start},
	})
	assertCode(t, err, "VALIDATION_FAILED")
}

func acceptAndConfirmQuote(t *testing.T, f *workflowFixture, ticketID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.service.Accept(ctx, workerActor, ticketID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.service.SubmitQuote(ctx, workerActor, ticketID, 1500, ""); err != nil {
		t.Fatalf("quote: %v", err)
	}
	if _, err := f.service.ConfirmQuote(ctx, custActor, ticketID, ""); err != nil {
		t.Fatalf("confirm quote: %v", err)
	}
}

func proposeAndConfirmSlot(t *testing.T, f *workflowFixture, ticketID string, start time.Time) {
	t.Helper()
	ctx := context.Background()
	slot := domain.TimeSlot{Start: start, End: start.Add(2 * time.Hour)}
	if _, err := f.service.ProposeSlots(ctx, workerActor, ticketID, []domain.TimeSlot{slot}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := f.service.ConfirmSlot(ctx, custActor, ticketID, slot); err != nil {
		t.Fatalf("confirm slot: %v", err)
	}
}

func TestConfirmSlotMustMatchProposal(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	ctx := context.Background()
	acceptAndConfirmQuote(t, f, ticket.ID)

	start := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)
	if _, err := f.service.ProposeSlots(ctx, workerActor, ticket.ID, []domain.TimeSlot{
		{Start: start, End: start.Add(2 * time.Hour)},
	}); err != nil {
		t.Fatalf("propose: %v", err)
	}

	_, err := f.service.ConfirmSlot(ctx, custActor, ticket.ID, domain.TimeSlot{
		Start: start.Add(time.Hour), End: start.Add(3 * time.Hour),
	})
	assertCode(t, err, "VALIDATION_FAILED")

	updated, err := f.service.ConfirmSlot(ctx, custActor, ticket.ID, domain.TimeSlot{
		Start: start, End: start.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("confirm matching slot: %v", err)
	}
	if updated.Schedule.Stage != domain.ScheduleStageConfirmed || updated.Schedule.Confirmed == nil {
		t.Errorf("schedule = %+v, want confirmed", updated.Schedule)
	}
}

func TestRescheduleKeepsHistory(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	ctx := context.Background()
	acceptAndConfirmQuote(t, f, ticket.ID)
	firstStart := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)
	proposeAndConfirmSlot(t, f, ticket.ID, firstStart)

	newStart := time.Date(2026, 9, 5, 14, 0, 0, 0, time.UTC)
	updated, err := f.service.Reschedule(ctx, custActor, ticket.ID, "家裡沒人", []domain.TimeSlot{
		{Start: newStart, End: newStart.Add(2 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if updated.Schedule.Stage != domain.ScheduleStageProposed {
		t.Errorf("stage = %s, want PROPOSED with replacement slots", updated.Schedule.Stage)
	}
	if updated.Schedule.Confirmed != nil {
		t.Errorf("confirmed = %+v, want voided", updated.Schedule.Confirmed)
	}
	if updated.Schedule.RescheduleCount != 1 {
		t.Errorf("reschedule count = %d, want 1", updated.Schedule.RescheduleCount)
	}
	if len(updated.Schedule.History) != 1 || !updated.Schedule.History[0].Start.Equal(firstStart) {
		t.Errorf("history = %+v, want voided slot kept", updated.Schedule.History)
	}
}

func TestRescheduleWithoutSlotsClearsTrack(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	acceptAndConfirmQuote(t, f, ticket.ID)
	proposeAndConfirmSlot(t, f, ticket.ID, time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC))

	updated, err := f.service.Reschedule(context.Background(), custActor, ticket.ID, "", nil)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if updated.Schedule.Stage != domain.ScheduleStageNone {
		t.Errorf("stage = %s, want NONE", updated.Schedule.Stage)
	}
	if updated.Schedule.Proposed != nil {
		t.Errorf("proposed = %+v, want cleared", updated.Schedule.Proposed)
	}
}

func TestRescheduleRequiresConfirmedSlot(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, func(tk *domain.Ticket) {
		tk.Status = domain.TicketStatusProcessing
	})

	_, err := f.service.Reschedule(context.Background(), custActor, ticket.ID, "", nil)
	assertCode(t, err, "INVALID_STATE")
}

func TestCancelRecordsActorAndReason(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)

	updated, err := f.service.Cancel(context.Background(), custActor, ticket.ID, "已自行修復")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.Status != domain.TicketStatusClosed || updated.ClosedAt == nil {
		t.Errorf("status = %s closed_at = %v, want CLOSED", updated.Status, updated.ClosedAt)
	}
	if updated.Cancel == nil || updated.Cancel.Reason != "已自行修復" || updated.Cancel.Role != domain.RoleCustomer {
		t.Errorf("cancel record = %+v", updated.Cancel)
	}
}

func TestActionsRejectedAfterClose(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	ctx := context.Background()
	if _, err := f.service.Cancel(ctx, custActor, ticket.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := f.service.Accept(ctx, workerActor, ticket.ID); !apperrors.IsCode(err, "INVALID_STATE") {
		t.Errorf("accept after close = %v, want INVALID_STATE", err)
	}
	if _, err := f.service.Supplement(ctx, custActor, ticket.ID, "補充說明"); !apperrors.IsCode(err, "INVALID_STATE") {
		t.Errorf("supplement after close = %v, want INVALID_STATE", err)
	}
	if _, err := f.service.Cancel(ctx, custActor, ticket.ID, ""); !apperrors.IsCode(err, "INVALID_STATE") {
		t.Errorf("second cancel = %v, want INVALID_STATE", err)
	}
}

func TestSupplementAppendsTaggedComment(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)

	comment, err := f.service.Supplement(context.Background(), custActor, ticket.ID, "門口有監視器")
	if err != nil {
		t.Fatalf("supplement: %v", err)
	}
	if comment.Content != "【補充】門口有監視器" {
		t.Errorf("content = %q", comment.Content)
	}
	if comment.Kind != domain.CommentKindUser {
		t.Errorf("kind = %s, want USER", comment.Kind)
	}
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	ctx := context.Background()
	if _, err := f.service.Accept(ctx, workerActor, ticket.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if _, err := f.service.UpdateStatus(ctx, workerActor, ticket.ID, domain.TicketStatusPending, ""); !apperrors.IsCode(err, "INVALID_STATE") {
		t.Errorf("backward move = %v, want INVALID_STATE", err)
	}

	updated, err := f.service.UpdateStatus(ctx, workerActor, ticket.ID, domain.TicketStatusCompleted, "已更換零件")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if updated.Status != domain.TicketStatusCompleted || updated.CompletedAt == nil {
		t.Errorf("status = %s completed_at = %v", updated.Status, updated.CompletedAt)
	}
	if updated.CompletionNote != "已更換零件" {
		t.Errorf("completion note = %q", updated.CompletionNote)
	}
	if f.comments.lastContent() != "狀態更新：PROCESSING → COMPLETED，已更換零件" {
		t.Errorf("comment = %q", f.comments.lastContent())
	}
}

func TestUpdateStatusOnlyAcceptor(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, nil)
	ctx := context.Background()
	if _, err := f.service.Accept(ctx, workerActor, ticket.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := f.service.UpdateStatus(ctx, worker2Actor, ticket.ID, domain.TicketStatusCompleted, "")
	assertCode(t, err, "FORBIDDEN")
}

func TestCloseIsAdminOnly(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, func(tk *domain.Ticket) {
		tk.Status = domain.TicketStatusCompleted
	})

	if _, err := f.service.Close(context.Background(), workerActor, ticket.ID); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Errorf("worker close = %v, want FORBIDDEN", err)
	}

	updated, err := f.service.Close(context.Background(), adminActor, ticket.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if updated.Status != domain.TicketStatusClosed || updated.ClosedAt == nil {
		t.Errorf("status = %s closed_at = %v", updated.Status, updated.ClosedAt)
	}
	if f.comments.lastContent() != "工單已結案" {
		t.Errorf("comment = %q", f.comments.lastContent())
	}
}

func TestSaveTranslatesVersionConflict(t *testing.T) {
	f := newWorkflowFixture()
	ticket := f.seedTicket(t, func(tk *domain.Ticket) {
		tk.Status = domain.TicketStatusProcessing
	})

	stale, err := f.tickets.GetByID(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Another writer bumps the version before our save lands.
	fresh, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if err := f.tickets.Update(context.Background(), fresh); err != nil {
		t.Fatalf("concurrent update: %v", err)
	}

	saveErr := f.service.save(context.Background(), stale)
	assertCode(t, saveErr, "CONFLICT")
}
