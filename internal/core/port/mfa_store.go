package port

import (
	"context"
	"time"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
)

// MfaChallengeStore keeps the zero-or-one active challenge per account.
// Put overwrites any existing challenge for the account (supersede, never
// accumulate). Expiry is enforced lazily by readers; the store only needs a
// TTL as a cleanup bound.
type MfaChallengeStore interface {
	Put(ctx context.Context, challenge domain.MfaChallenge, ttl time.Duration) error
	Get(ctx context.Context, accountID string) (*domain.MfaChallenge, error)
	// DecrementAttempts returns the attempts remaining after the decrement.
	DecrementAttempts(ctx context.Context, accountID string) (int, error)
	// Invalidate marks the challenge permanently unusable while keeping it
	// readable until the TTL expires, so replays report expired rather than
	// not-found.
	Invalidate(ctx context.Context, accountID string) error
	Delete(ctx context.Context, accountID string) error
}
