package domain

import "time"

// SecurityConfig is the singleton tunable parameter set for the protection
// engine. Read-mostly; mutated only through the administrative update path.
type SecurityConfig struct {
	JWTLifetime       time.Duration
	SessionLifetime   time.Duration
	RenewalThreshold  time.Duration
	OTPLifetime       time.Duration
	MaxFailedAttempts int
	BlockPeriodDays   int
	MaxBlocksInPeriod int
	UpdatedAt         time.Time
}

// DefaultSecurityConfig returns the values used when no persisted config row
// exists, or for any field the persisted row leaves unset.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		JWTLifetime:       15 * time.Minute,
		SessionLifetime:   15 * time.Minute,
		RenewalThreshold:  5 * time.Minute,
		OTPLifetime:       15 * time.Minute,
		MaxFailedAttempts: 5,
		BlockPeriodDays:   30,
		MaxBlocksInPeriod: 5,
	}
}

// Normalize fills unset fields with defaults so partially persisted rows stay
// usable.
func (c SecurityConfig) Normalize() SecurityConfig {
	defaults := DefaultSecurityConfig()
	if c.JWTLifetime <= 0 {
		c.JWTLifetime = defaults.JWTLifetime
	}
	if c.SessionLifetime <= 0 {
		c.SessionLifetime = defaults.SessionLifetime
	}
	if c.RenewalThreshold <= 0 {
		c.RenewalThreshold = defaults.RenewalThreshold
	}
	if c.OTPLifetime <= 0 {
		c.OTPLifetime = defaults.OTPLifetime
	}
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = defaults.MaxFailedAttempts
	}
	if c.BlockPeriodDays <= 0 {
		c.BlockPeriodDays = defaults.BlockPeriodDays
	}
	if c.MaxBlocksInPeriod <= 0 {
		c.MaxBlocksInPeriod = defaults.MaxBlocksInPeriod
	}
	return c
}

// BlockPeriod returns the lockout-escalation window as a duration.
func (c SecurityConfig) BlockPeriod() time.Duration {
	return time.Duration(c.BlockPeriodDays) * 24 * time.Hour
}
