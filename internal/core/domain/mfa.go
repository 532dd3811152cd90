package domain

import "time"

// MfaChallenge is a single-use, time-boxed one-time code gating session
// issuance. Zero or one active challenge exists per account; issuing a new
// one supersedes the previous challenge outright.
type MfaChallenge struct {
	AccountID         string
	Code              string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	AttemptsRemaining int
	Invalid           bool
}

// Usable reports whether the challenge may still be verified at the supplied
// moment. Exhausted or consumed challenges are permanently invalid even when
// their code would otherwise match.
func (c MfaChallenge) Usable(at time.Time) bool {
	if c.Invalid || c.AttemptsRemaining <= 0 {
		return false
	}
	return c.ExpiresAt.After(at)
}
