package domain

import "time"

// DispatchLog is the audit record written when an admin sends a ticket to
// the field. PayloadSnapshot is the minimum-disclosure text actually pushed
// to workers, kept verbatim for later review.
type DispatchLog struct {
	ID               string
	TicketID         string
	DispatcherUserID string
	TechnicianIDs    []string
	PayloadSnapshot  map[string]any
	DispatchedAt     time.Time
}

// MaskAuditLog records an ad-hoc masking operation. Only a hash of the
// input is stored; the raw text never is.
type MaskAuditLog struct {
	ID        string
	InputHash string
	Stats     map[string]int
	Method    MaskMethod
	Purpose   string
	IPAddress string
	CreatedAt time.Time
}
