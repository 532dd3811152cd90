package port

import (
	"context"
	"time"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
)

// FailedAttemptRepository persists per-user failed-login state. RecordFailure
// is the single serialized read-modify-write required by the tracker: the
// implementation locks the user's rows for the whole increment-then-evaluate
// sequence so two concurrent failures cannot both observe a pre-increment
// count.
type FailedAttemptRepository interface {
	// RecordFailure creates or increments the open record and, when the count
	// reaches threshold, closes it as a lockout episode, updates the user status
	// (temporary, or permanent when episodesInWindow-including-this-one reaches
	// maxEpisodes within the window), all in one transaction.
	RecordFailure(ctx context.Context, userID string, ip *string, threshold int, window time.Duration, maxEpisodes int) (domain.LockoutDecision, error)
	// ResolveOpen closes the open record, if any, without counting it as a
	// lockout episode.
	ResolveOpen(ctx context.Context, userID string, at time.Time) error
	// ResolveAllAndUnlock resolves every unresolved record and restores the user
	// to active status. Historic lockout episodes are left untouched.
	ResolveAllAndUnlock(ctx context.Context, userID string, at time.Time) error
	GetOpen(ctx context.Context, userID string) (*domain.FailedAttemptRecord, error)
	CountEpisodesSince(ctx context.Context, userID string, since time.Time) (int, error)
}
