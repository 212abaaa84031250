package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/events"
	"github.com/repairflow/repairflow/internal/filestore"
	"github.com/repairflow/repairflow/internal/masking"
	"github.com/repairflow/repairflow/internal/repository"
	apperrors "github.com/repairflow/repairflow/pkg/util/errorutil"
)

const ticketNoPrefix = "TK"

// TicketService coordinates ticket intake, projection and the comment and
// attachment ledger.
type TicketService struct {
	tickets     repository.TicketRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	templates   repository.TemplateRepository
	maskFields  repository.MaskFieldRepository
	frequent    repository.FrequentRepository
	engine      *masking.Engine
	files       filestore.Store
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	TemplateRepo   repository.TemplateRepository
	MaskFieldRepo  repository.MaskFieldRepository
	FrequentRepo   repository.FrequentRepository
	Engine         *masking.Engine
	Files          filestore.Store
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		templates:   deps.TemplateRepo,
		maskFields:  deps.MaskFieldRepo,
		frequent:    deps.FrequentRepo,
		engine:      deps.Engine,
		files:       deps.Files,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// RepairTicketInput describes a customer repair request.
type RepairTicketInput struct {
	Title             string
	Category          string
	Priority          domain.TicketPriority
	CustomerName      string
	Phone             string
	Address           string
	Description       string
	PreferredTimeSlot string
	IsUrgent          bool
	CreatedBy         string
}

// CreateRepairTicket registers a plain repair request. Raw contact fields
// are stored as-is; disclosure is controlled at read time per role.
func (s *TicketService) CreateRepairTicket(ctx context.Context, input RepairTicketInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, apperrors.NewValidationError("customer name is required", nil)
	}
	if strings.TrimSpace(input.Phone) == "" {
		return nil, apperrors.NewValidationError("phone is required", nil)
	}

	ticketNo, err := s.nextTicketNo(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "未命名工單"
	}

	ticket := &domain.Ticket{
		TicketNo:          ticketNo,
		Title:             title,
		Category:          strings.TrimSpace(input.Category),
		Priority:          input.Priority,
		Status:            domain.TicketStatusPending,
		CreatedBy:         input.CreatedBy,
		CustomerName:      strings.TrimSpace(input.CustomerName),
		Phone:             strings.TrimSpace(input.Phone),
		Address:           strings.TrimSpace(input.Address),
		DescriptionRaw:    strings.TrimSpace(input.Description),
		PreferredTimeSlot: strings.TrimSpace(input.PreferredTimeSlot),
		IsUrgent:          input.IsUrgent,
		Quote:             domain.QuoteTrack{Stage: domain.QuoteStageNone},
		Schedule:          domain.ScheduleTrack{Stage: domain.ScheduleStageNone},
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: domain.RoleCustomer, Name: maskName(ticket.CustomerName)},
		Payload: events.TicketCreatedPayload{
			Category: ticket.Category,
			Title:    ticket.Title,
			Priority: ticket.Priority,
			Public:   true,
			Phone:    maskPhone(ticket.Phone),
			Address:  maskAddress(ticket.Address),
			Summary:  truncate(ticket.DescriptionRaw, 80),
		},
	})
	return ticket, nil
}

// TemplateTicketInput describes a masked ticket created from a template.
type TemplateTicketInput struct {
	TemplateID string
	Title      string
	Values     map[string]string
	MaskedKeys []string
	Method     domain.MaskMethod
}

// CreateTemplateTicket fills a form template and records the masked
// rendering. Field order and labels are frozen from the template at this
// moment; later template edits never rewrite the ticket.
func (s *TicketService) CreateTemplateTicket(ctx context.Context, userID string, input TemplateTicketInput) (*domain.Ticket, error) {
	template, err := s.templates.GetByID(ctx, input.TemplateID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("template", map[string]any{"template_id": input.TemplateID})
		}
		return nil, apperrors.MapError(err)
	}

	fields := make([]domain.TicketField, 0, len(template.Fields))
	for _, tf := range template.Fields {
		fields = append(fields, domain.TicketField{
			Key:   tf.Key,
			Label: tf.Label,
			Value: strings.TrimSpace(input.Values[tf.Key]),
		})
	}

	customRules, err := s.customRules(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	method := input.Method
	if method == "" {
		method = domain.MaskMethodRegex
	}

	result := s.engine.MaskFields(ctx, masking.FieldMaskInput{
		Fields:      fields,
		MaskedKeys:  input.MaskedKeys,
		Method:      method,
		CustomRules: customRules,
	})

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = template.Name
	}

	ticketNo, err := s.nextTicketNo(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	templateID := template.ID
	ticket := &domain.Ticket{
		TicketNo:     ticketNo,
		Title:        title,
		Status:       domain.TicketStatusPending,
		Priority:     domain.TicketPriorityMedium,
		CreatedBy:    userID,
		TemplateID:   &templateID,
		Fields:       fields,
		MaskedFields: input.MaskedKeys,
		MaskedText:   masking.RenderText(result.Fields),
		MaskMethod:   method,
		MaskStats:    result.Stats,
		Quote:        domain.QuoteTrack{Stage: domain.QuoteStageNone},
		Schedule:     domain.ScheduleTrack{Stage: domain.ScheduleStageNone},
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.rememberFrequentValues(ctx, userID, template, fields)

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: domain.RoleAdmin, ID: userID},
		Payload: events.TicketCreatedPayload{
			Title:    ticket.Title,
			Priority: ticket.Priority,
		},
	})
	return ticket, nil
}

func (s *TicketService) customRules(ctx context.Context) (map[string]domain.MaskField, error) {
	list, err := s.maskFields.List(ctx)
	if err != nil {
		return nil, err
	}
	rules := make(map[string]domain.MaskField, len(list))
	for _, f := range list {
		rules[f.Label] = f
	}
	return rules, nil
}

// rememberFrequentValues records filled values for autocomplete. Failures
// are logged and ignored.
func (s *TicketService) rememberFrequentValues(ctx context.Context, userID string, template *domain.Template, fields []domain.TicketField) {
	for i, tf := range template.Fields {
		if !tf.EnableFrequent || fields[i].Value == "" {
			continue
		}
		if err := s.frequent.Record(ctx, userID, template.ID, tf.Key, fields[i].Value); err != nil {
			s.logger.Warn("record frequent value failed", zap.Error(err))
		}
	}
}

// nextTicketNo allocates the next ticket number: TK + yymmdd + 3-digit
// per-day sequence.
func (s *TicketService) nextTicketNo(ctx context.Context) (string, error) {
	prefix := ticketNoPrefix + s.now().Format("060102")
	last, err := s.tickets.LastTicketNoWithPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	seq := 1
	if last != "" && len(last) > len(prefix) {
		if n, err := strconv.Atoi(last[len(prefix):]); err == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s%03d", prefix, seq), nil
}

// TicketListFilter describes list parameters after role scoping.
type TicketListFilter struct {
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	IsUrgent    *bool
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// ListTickets returns tickets visible to the principal. Admins see all,
// workers see their assignments plus the open pool.
func (s *TicketService) ListTickets(ctx context.Context, principal *domain.User, filter TicketListFilter) ([]TicketView, error) {
	repoFilter := repository.TicketFilter{
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		IsUrgent:    filter.IsUrgent,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if principal.Role == domain.RoleWorker {
		workerID := principal.ID
		repoFilter.VisibleToWorker = &workerID
	}

	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	views := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		views = append(views, ProjectList(&tickets[i], principal.Role))
	}
	return views, nil
}

// GetTicket returns the role-appropriate detail projection with the
// ledger.
func (s *TicketService) GetTicket(ctx context.Context, principal *domain.User, ticketID string) (*TicketDetail, error) {
	ticket, err := s.loadVisible(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	attachments, err := s.attachments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	view := ProjectDetail(ticket, principal.Role)
	return &TicketDetail{
		TicketView:  view,
		Comments:    comments,
		Attachments: attachments,
	}, nil
}

func (s *TicketService) loadVisible(ctx context.Context, principal *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if principal.Role == domain.RoleWorker && !ticket.EligibleToAccept(principal.ID) && derefStr(ticket.AcceptedBy) != principal.ID {
		return nil, apperrors.NewForbidden("ticket not visible to this worker")
	}
	return ticket, nil
}

// VerifyCustomer resolves a ticket for a public customer action. A wrong
// phone is indistinguishable from a missing ticket.
func (s *TicketService) VerifyCustomer(ctx context.Context, ticketNo, phone string) (*domain.Ticket, error) {
	if strings.TrimSpace(ticketNo) == "" || strings.TrimSpace(phone) == "" {
		return nil, apperrors.NewValidationError("ticket_no and phone are required", nil)
	}
	ticket, err := s.tickets.GetByTicketNo(ctx, strings.TrimSpace(ticketNo))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_no": ticketNo})
		}
		return nil, apperrors.MapError(err)
	}
	if normalizePhone(ticket.Phone) != normalizePhone(phone) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_no": ticketNo})
	}
	return ticket, nil
}

// TrackTicket is the public customer lookup by ticket number plus phone.
// The projection discloses progress only, never raw contact data.
func (s *TicketService) TrackTicket(ctx context.Context, ticketNo, phone string) (*TrackView, error) {
	ticket, err := s.VerifyCustomer(ctx, ticketNo, phone)
	if err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return buildTrackView(ticket, comments), nil
}

// AddComment appends a user note to the ledger. Entries are immutable and
// ordered by append time.
func (s *TicketService) AddComment(ctx context.Context, principal *domain.User, ticketID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("comment content is required", nil)
	}

	ticket, err := s.loadVisible(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Terminal() {
		return nil, apperrors.NewInvalidState("ticket is closed", string(ticket.Status))
	}

	comment := &domain.Comment{
		TicketID:   ticket.ID,
		Kind:       domain.CommentKindUser,
		Author:     principal.Name,
		AuthorRole: principal.Role,
		Content:    content,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticket.ID,
		TicketNo: ticket.TicketNo,
		Actor:    events.Actor{Role: principal.Role, ID: principal.ID, Name: principal.Name},
		Payload: events.CommentAddedPayload{
			CommentID: comment.ID,
			Kind:      comment.Kind,
			Preview:   truncate(content, 60),
		},
	})
	return comment, nil
}

// AttachmentInput describes an upload.
type AttachmentInput struct {
	OriginalName string
	FileType     string
	Content      io.Reader
}

// AddAttachment stores the file bytes and appends the reference to the
// ledger.
func (s *TicketService) AddAttachment(ctx context.Context, principal *domain.User, ticketID string, input AttachmentInput) (*domain.Attachment, error) {
	if input.OriginalName == "" {
		return nil, apperrors.NewValidationError("file name is required", nil)
	}

	ticket, err := s.loadVisible(ctx, principal, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Terminal() {
		return nil, apperrors.NewInvalidState("ticket is closed", string(ticket.Status))
	}

	key, err := s.files.Save("attachments", input.OriginalName, input.Content)
	if err != nil {
		return nil, apperrors.NewDependencyFailure("file store", err)
	}

	attachment := &domain.Attachment{
		TicketID:     ticket.ID,
		StorageKey:   key,
		FileType:     input.FileType,
		OriginalName: input.OriginalName,
		UploadedBy:   principal.ID,
	}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		if delErr := s.files.Delete(key); delErr != nil {
			s.logger.Warn("orphaned attachment blob", zap.String("key", key), zap.Error(delErr))
		}
		return nil, apperrors.MapError(err)
	}
	return attachment, nil
}

// OpenAttachment streams a stored file after a visibility check.
func (s *TicketService) OpenAttachment(ctx context.Context, principal *domain.User, attachmentID string) (*domain.Attachment, io.ReadCloser, error) {
	attachment, err := s.attachments.GetByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("attachment", map[string]any{"attachment_id": attachmentID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	if _, err := s.loadVisible(ctx, principal, attachment.TicketID); err != nil {
		return nil, nil, err
	}

	rc, err := s.files.Open(attachment.StorageKey)
	if err != nil {
		return nil, nil, apperrors.NewDependencyFailure("file store", err)
	}
	return attachment, rc, nil
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	event.Timestamp = s.now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func normalizePhone(p string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, p)
}
