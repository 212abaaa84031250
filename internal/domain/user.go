package domain

import "time"

// Role enumerates the three actor classes.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleWorker   Role = "WORKER"
	RoleAdmin    Role = "ADMIN"
)

// User is an authenticated operator account (admins and field workers).
// Customers submit repair requests without an account and identify
// themselves by phone + ticket number, or through their LINE binding.
type User struct {
	ID           string
	Username     string
	Name         string
	PasswordHash string
	Role         Role
	LineUserID   *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LineCustomer is a messaging contact registered through the inbound
// webhook when a customer adds the service account.
type LineCustomer struct {
	ID              string
	LineUserID      string
	LineDisplayName string
	Phone           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
