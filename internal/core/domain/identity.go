package domain

import "time"

// UserStatus enumerates possible account lifecycle states.
type UserStatus string

const (
	UserStatusPending         UserStatus = "pending"
	UserStatusActive          UserStatus = "active"
	UserStatusLockedTemporary UserStatus = "locked_temporary"
	UserStatusLockedPermanent UserStatus = "locked_permanent"
)

// IsLocked reports whether the status is one of the lockout states.
func (s UserStatus) IsLocked() bool {
	return s == UserStatusLockedTemporary || s == UserStatusLockedPermanent
}

// UserRole enumerates the account roles recognised by the platform.
type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleAdmin    UserRole = "admin"
)

// User mirrors the persisted representation in the users table.
// Status transitions are driven only by the failed-attempt tracker and
// explicit admin action; this subsystem never deletes users.
type User struct {
	ID         string
	Email      string
	Phone      *string
	Role       UserRole
	Status     UserStatus
	MfaEnabled bool
	CreatedAt  time.Time
	LastLogin  *time.Time
}

// Credential holds the password material owned by the credential store.
// One row per user; prior hashes live in CredentialHistory.
type Credential struct {
	UserID            string
	PasswordHash      string
	LastChangedAt     time.Time
	MaxFailedAttempts *int
}

// CredentialHistory tracks historical password hashes for reuse prevention.
// History is retained indefinitely.
type CredentialHistory struct {
	ID           string
	UserID       string
	PasswordHash string
	SetAt        time.Time
}
