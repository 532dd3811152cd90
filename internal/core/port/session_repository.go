package port

import (
	"context"
	"time"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
)

// SessionRepository persists bearer sessions. Mutations for a given user run
// inside user-scoped row-locking transactions so concurrent logins, renewals
// and revocations serialize.
type SessionRepository interface {
	// CreateWithCap inserts the session after locking the owner's user row and
	// re-counting active sessions; it returns ErrSessionCapReached when the cap
	// is already met, without inserting.
	CreateWithCap(ctx context.Context, session domain.Session, cap int) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	// ReplaceToken overwrites the token hash and expiration in place, guarded by
	// the previous token hash and revoked_at IS NULL. Returns ErrNotFound when
	// the guard fails (concurrent revoke or renewal won).
	ReplaceToken(ctx context.Context, sessionID, oldTokenHash, newTokenHash string, expiresAt, at time.Time) error
	TouchActivity(ctx context.Context, sessionID string, at time.Time) error
	// Revoke marks the session revoked. Returns the number of rows that changed
	// state so callers can distinguish first revoke from a repeat.
	Revoke(ctx context.Context, sessionID, reason string, at time.Time) (int, error)
	RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int, error)
	CountActive(ctx context.Context, userID string, at time.Time) (int, error)
	ListActiveByUser(ctx context.Context, userID string, at time.Time) ([]domain.Session, error)
}
