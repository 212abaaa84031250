package domain

import "time"

// CommentKind separates human notes from system transition records.
type CommentKind string

const (
	CommentKindUser   CommentKind = "USER"
	CommentKindSystem CommentKind = "SYSTEM"
)

// Comment is an append-only note on a ticket. Ordering is append order;
// entries are immutable once written.
type Comment struct {
	ID         string
	TicketID   string
	Kind       CommentKind
	Author     string
	AuthorRole Role
	Content    string
	CreatedAt  time.Time
}

// Attachment is a file reference attached to a ticket. Bytes live in the
// file store; only the storage key is persisted here.
type Attachment struct {
	ID           string
	TicketID     string
	StorageKey   string
	FileType     string
	OriginalName string
	UploadedBy   string
	CreatedAt    time.Time
}
