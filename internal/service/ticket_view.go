package service

import (
	"regexp"
	"time"

	"github.com/repairflow/repairflow/internal/domain"
)

// TicketView is the role-scoped read model of a ticket. Raw contact fields
// are replaced with their masked forms before the view leaves the service
// layer, so handlers cannot leak what the role must not see.
type TicketView struct {
	ID                string
	TicketNo          string
	Title             string
	Category          string
	Priority          domain.TicketPriority
	Status            domain.TicketStatus
	CustomerName      string
	Phone             string
	Address           string
	Description       string
	PreferredTimeSlot string
	IsUrgent          bool
	Notes             string
	TemplateID        *string
	Fields            []domain.TicketField
	MaskedFields      []string
	MaskedText        string
	MaskMethod        domain.MaskMethod
	MaskStats         map[string]int
	AssignedUserIDs   []string
	AcceptedBy        *string
	AcceptedAt        *time.Time
	Quote             domain.QuoteTrack
	Schedule          domain.ScheduleTrack
	Cancel            *domain.CancelRecord
	CompletionNote    string
	CompletedAt       *time.Time
	ClosedAt          *time.Time
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TicketDetail bundles the view with its ledger.
type TicketDetail struct {
	TicketView
	Comments    []domain.Comment
	Attachments []domain.Attachment
}

// ProjectDetail builds the single-ticket projection for a role. Admins see
// everything. Workers get the masked name but the full phone and address,
// since they must reach the customer and the site; internal notes and raw
// template values stay hidden.
func ProjectDetail(t *domain.Ticket, role domain.Role) TicketView {
	view := baseView(t)
	switch role {
	case domain.RoleAdmin:
		view.CustomerName = t.CustomerName
		view.Phone = t.Phone
		view.Address = t.Address
		view.Description = t.DescriptionRaw
		view.Notes = t.NotesInternal
		view.Fields = t.Fields
	default:
		view.CustomerName = maskName(t.CustomerName)
		view.Phone = t.Phone
		view.Address = t.Address
		view.Description = t.DescriptionRaw
	}
	return view
}

// ProjectList builds the list projection. Worker lists additionally mask
// phone and address: contact data is disclosed only on tickets the worker
// opens.
func ProjectList(t *domain.Ticket, role domain.Role) TicketView {
	view := baseView(t)
	switch role {
	case domain.RoleAdmin:
		view.CustomerName = t.CustomerName
		view.Phone = t.Phone
		view.Address = t.Address
		view.Description = truncate(t.DescriptionRaw, 80)
		view.Notes = t.NotesInternal
	default:
		view.CustomerName = maskName(t.CustomerName)
		view.Phone = maskPhone(t.Phone)
		view.Address = maskAddress(t.Address)
		view.Description = truncate(t.DescriptionRaw, 80)
	}
	return view
}

func baseView(t *domain.Ticket) TicketView {
	return TicketView{
		ID:                t.ID,
		TicketNo:          t.TicketNo,
		Title:             t.Title,
		Category:          t.Category,
		Priority:          t.Priority,
		Status:            t.Status,
		PreferredTimeSlot: t.PreferredTimeSlot,
		IsUrgent:          t.IsUrgent,
		TemplateID:        t.TemplateID,
		MaskedFields:      t.MaskedFields,
		MaskedText:        t.MaskedText,
		MaskMethod:        t.MaskMethod,
		MaskStats:         t.MaskStats,
		AssignedUserIDs:   t.AssignedUserIDs,
		AcceptedBy:        t.AcceptedBy,
		AcceptedAt:        t.AcceptedAt,
		Quote:             t.Quote,
		Schedule:          t.Schedule,
		Cancel:            t.Cancel,
		CompletionNote:    t.CompletionNote,
		CompletedAt:       t.CompletedAt,
		ClosedAt:          t.ClosedAt,
		Version:           t.Version,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// TrackView is the public progress projection for the phone + ticket
// number lookup. It carries no contact data at all.
type TrackView struct {
	TicketNo       string
	Title          string
	Status         domain.TicketStatus
	Quote          domain.QuoteTrack
	Schedule       domain.ScheduleTrack
	CompletionNote string
	Comments       []domain.Comment
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func buildTrackView(t *domain.Ticket, comments []domain.Comment) *TrackView {
	visible := make([]domain.Comment, 0, len(comments))
	for _, c := range comments {
		visible = append(visible, c)
	}
	return &TrackView{
		TicketNo:       t.TicketNo,
		Title:          t.Title,
		Status:         t.Status,
		Quote:          t.Quote,
		Schedule:       t.Schedule,
		CompletionNote: t.CompletionNote,
		Comments:       visible,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

var addressHead = regexp.MustCompile(`^(.{2,3}[市縣].{2,3}[區鎮鄉市])`)

// maskName keeps the surname only: 王大明 becomes 王先生/小姐.
func maskName(name string) string {
	runes := []rune(name)
	if len(runes) == 0 {
		return "客戶"
	}
	return string(runes[0]) + "先生/小姐"
}

// maskPhone keeps the prefix and last three digits: 0912345678 becomes
// 0912***678.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return phone[:4] + "***" + phone[len(phone)-3:]
}

// maskAddress keeps the county and district head when one can be found,
// otherwise the first six characters.
func maskAddress(address string) string {
	if address == "" {
		return ""
	}
	if m := addressHead.FindString(address); m != "" {
		return m + "***"
	}
	runes := []rune(address)
	if len(runes) <= 6 {
		return address
	}
	return string(runes[:6]) + "***"
}
