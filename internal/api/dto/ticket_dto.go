package dto

import (
	"time"

	"github.com/repairflow/repairflow/internal/domain"
	"github.com/repairflow/repairflow/internal/service"
)

// CreateRepairTicketRequest payload for the public intake form.
type CreateRepairTicketRequest struct {
	Title             string                `json:"title"`
	Category          string                `json:"category"`
	Priority          domain.TicketPriority `json:"priority"`
	CustomerName      string                `json:"customer_name"`
	Phone             string                `json:"phone"`
	Address           string                `json:"address"`
	Description       string                `json:"description"`
	PreferredTimeSlot string                `json:"preferred_time_slot"`
	IsUrgent          bool                  `json:"is_urgent"`
}

// CreateTemplateTicketRequest payload for masked template tickets.
type CreateTemplateTicketRequest struct {
	TemplateID string            `json:"template_id"`
	Title      string            `json:"title"`
	Values     map[string]string `json:"values"`
	MaskedKeys []string          `json:"masked_keys"`
	Method     domain.MaskMethod `json:"method"`
}

// TicketFieldResponse is one frozen field copy.
type TicketFieldResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// TicketSummary response.
type TicketSummary struct {
	ID           string                `json:"id"`
	TicketNo     string                `json:"ticket_no"`
	Title        string                `json:"title"`
	Category     string                `json:"category,omitempty"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	CustomerName string                `json:"customer_name,omitempty"`
	Phone        string                `json:"phone,omitempty"`
	Address      string                `json:"address,omitempty"`
	Description  string                `json:"description,omitempty"`
	IsUrgent     bool                  `json:"is_urgent"`
	AcceptedBy   *string               `json:"accepted_by,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full role-scoped ticket info.
type TicketDetailResponse struct {
	TicketSummary
	PreferredTimeSlot string                `json:"preferred_time_slot,omitempty"`
	Notes             string                `json:"notes,omitempty"`
	TemplateID        *string               `json:"template_id,omitempty"`
	Fields            []TicketFieldResponse `json:"fields,omitempty"`
	MaskedFields      []string              `json:"masked_fields,omitempty"`
	MaskedText        string                `json:"masked_text,omitempty"`
	MaskMethod        domain.MaskMethod     `json:"mask_method,omitempty"`
	MaskStats         map[string]int        `json:"mask_stats,omitempty"`
	AssignedUserIDs   []string              `json:"assigned_user_ids,omitempty"`
	AcceptedAt        *time.Time            `json:"accepted_at,omitempty"`
	Quote             domain.QuoteTrack     `json:"quote"`
	Schedule          domain.ScheduleTrack  `json:"schedule"`
	Cancel            *domain.CancelRecord  `json:"cancel,omitempty"`
	CompletionNote    string                `json:"completion_note,omitempty"`
	CompletedAt       *time.Time            `json:"completed_at,omitempty"`
	ClosedAt          *time.Time            `json:"closed_at,omitempty"`
	Version           int64                 `json:"version"`
	Comments          []CommentResponse     `json:"comments"`
	Attachments       []AttachmentResponse  `json:"attachments"`
}

// CommentResponse is one ledger entry.
type CommentResponse struct {
	ID         string             `json:"id"`
	Kind       domain.CommentKind `json:"kind"`
	Author     string             `json:"author"`
	AuthorRole domain.Role        `json:"author_role"`
	Content    string             `json:"content"`
	CreatedAt  time.Time          `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"original_name"`
	FileType     string    `json:"file_type"`
	UploadedBy   string    `json:"uploaded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Content string `json:"content"`
}

// TrackRequest is the public lookup payload.
type TrackRequest struct {
	TicketNo string `json:"ticket_no"`
	Phone    string `json:"phone"`
}

// TrackResponse is the public progress projection.
type TrackResponse struct {
	TicketNo       string               `json:"ticket_no"`
	Title          string               `json:"title"`
	Status         domain.TicketStatus  `json:"status"`
	Quote          domain.QuoteTrack    `json:"quote"`
	Schedule       domain.ScheduleTrack `json:"schedule"`
	CompletionNote string               `json:"completion_note,omitempty"`
	Comments       []CommentResponse    `json:"comments"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// FromTicketView maps a service projection to the summary shape.
func FromTicketView(v *service.TicketView) TicketSummary {
	return TicketSummary{
		ID:           v.ID,
		TicketNo:     v.TicketNo,
		Title:        v.Title,
		Category:     v.Category,
		Status:       v.Status,
		Priority:     v.Priority,
		CustomerName: v.CustomerName,
		Phone:        v.Phone,
		Address:      v.Address,
		Description:  v.Description,
		IsUrgent:     v.IsUrgent,
		AcceptedBy:   v.AcceptedBy,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

// FromTicketDetail maps the full projection plus ledger.
func FromTicketDetail(d *service.TicketDetail) TicketDetailResponse {
	fields := make([]TicketFieldResponse, 0, len(d.Fields))
	for _, f := range d.Fields {
		fields = append(fields, TicketFieldResponse{Key: f.Key, Label: f.Label, Value: f.Value})
	}
	return TicketDetailResponse{
		TicketSummary:     FromTicketView(&d.TicketView),
		PreferredTimeSlot: d.PreferredTimeSlot,
		Notes:             d.Notes,
		TemplateID:        d.TemplateID,
		Fields:            fields,
		MaskedFields:      d.MaskedFields,
		MaskedText:        d.MaskedText,
		MaskMethod:        d.MaskMethod,
		MaskStats:         d.MaskStats,
		AssignedUserIDs:   d.AssignedUserIDs,
		AcceptedAt:        d.AcceptedAt,
		Quote:             d.Quote,
		Schedule:          d.Schedule,
		Cancel:            d.Cancel,
		CompletionNote:    d.CompletionNote,
		CompletedAt:       d.CompletedAt,
		ClosedAt:          d.ClosedAt,
		Version:           d.Version,
		Comments:          FromComments(d.Comments),
		Attachments:       FromAttachments(d.Attachments),
	}
}

// FromComments maps ledger entries.
func FromComments(comments []domain.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentResponse{
			ID:         c.ID,
			Kind:       c.Kind,
			Author:     c.Author,
			AuthorRole: c.AuthorRole,
			Content:    c.Content,
			CreatedAt:  c.CreatedAt,
		})
	}
	return out
}

// FromAttachments maps attachment references.
func FromAttachments(attachments []domain.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		out = append(out, AttachmentResponse{
			ID:           a.ID,
			OriginalName: a.OriginalName,
			FileType:     a.FileType,
			UploadedBy:   a.UploadedBy,
			CreatedAt:    a.CreatedAt,
		})
	}
	return out
}

// FromTrackView maps the public projection.
func FromTrackView(v *service.TrackView) TrackResponse {
	return TrackResponse{
		TicketNo:       v.TicketNo,
		Title:          v.Title,
		Status:         v.Status,
		Quote:          v.Quote,
		Schedule:       v.Schedule,
		CompletionNote: v.CompletionNote,
		Comments:       FromComments(v.Comments),
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
}
