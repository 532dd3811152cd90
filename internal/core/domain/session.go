package domain

import "time"

// ClientClass partitions sessions by the kind of client that opened them.
// Interactive sessions use the tunable session lifetime and sliding renewal;
// long-lived classes (named non-browser clients) get a fixed extended TTL.
type ClientClass string

const (
	ClientClassInteractive ClientClass = "interactive"
	ClientClassLongLived   ClientClass = "long_lived"
)

// Session represents a persisted login session backing a bearer token.
// The session row is the unit of revocation: the token value is replaced in
// place on renewal (same row, new token hash and expiration) rather than
// creating a new row.
type Session struct {
	ID           string
	UserID       string
	TokenHash    string
	ClientID     string
	ClientClass  ClientClass
	IP           *string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
	RevokedAt    *time.Time
	RevokeReason *string
}

// IsActive reports whether the session is still valid (not revoked and not
// expired at the supplied moment).
func (s Session) IsActive(at time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return s.ExpiresAt.After(at)
}

// NearExpiry reports whether the session falls inside the renewal window.
func (s Session) NearExpiry(at time.Time, threshold time.Duration) bool {
	return s.ExpiresAt.Sub(at) < threshold
}

// Revoke marks the session revoked. Returns true when the session changed
// state, false when it was already revoked.
func (s *Session) Revoke(at time.Time, reason string) bool {
	if s.RevokedAt != nil {
		return false
	}
	s.RevokedAt = &at
	s.RevokeReason = &reason
	return true
}
