package domain

import "time"

// FailedAttemptRecord tracks consecutive failed logins for a user.
// At most one unresolved record exists per user at any time; the count only
// increments while unresolved. A record resolved because the threshold was
// breached is a lockout episode and counts toward permanent-lock escalation;
// a record resolved by a successful login or admin unlock does not.
type FailedAttemptRecord struct {
	ID             string
	UserID         string
	Count          int
	FirstAttemptAt time.Time
	LastAttemptAt  time.Time
	IP             *string
	Resolved       bool
	LockoutEpisode bool
	ResolvedAt     *time.Time
}

// LockoutDecision is the outcome of recording one failed attempt.
type LockoutDecision struct {
	Count            int
	Threshold        int
	Locked           bool
	Permanent        bool
	EpisodesInWindow int
}
