package handlers

import (
	"time"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
)

// ErrorResponse represents a generic error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	ClientID string `json:"client_id"`
}

// LoginResponse is returned when a session was established.
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Session   *SessionSummary `json:"session,omitempty"`
}

// MfaPendingResponse is returned when a challenge gates session issuance.
type MfaPendingResponse struct {
	MfaRequired bool   `json:"mfa_required"`
	UserID      string `json:"user_id"`
	Message     string `json:"message"`
}

// MfaFailedResponse is returned when a submitted code is rejected, carrying
// the number of attempts the challenge still has.
type MfaFailedResponse struct {
	Error             string `json:"error"`
	AttemptsRemaining int    `json:"attempts_remaining"`
}

// VerifyOTPRequest defines the payload for the challenge verification
// endpoint.
type VerifyOTPRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Code     string `json:"otp" binding:"required"`
	ClientID string `json:"client_id"`
}

// SessionSummary provides a compact view of a session.
type SessionSummary struct {
	ID           string             `json:"id"`
	ClientID     string             `json:"client_id,omitempty"`
	ClientClass  domain.ClientClass `json:"client_class"`
	CreatedAt    time.Time          `json:"created_at"`
	ExpiresAt    time.Time          `json:"expires_at"`
	LastActivity time.Time          `json:"last_activity"`
}

// SessionListResponse wraps the active sessions of a user.
type SessionListResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	Count    int              `json:"count"`
}

// ChangePasswordRequest defines the payload for password rotation.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// SecurityConfigRequest defines the administrative tuning payload. Durations
// are expressed in seconds; zero values keep the documented defaults.
type SecurityConfigRequest struct {
	JWTLifetimeSeconds      int64 `json:"jwt_lifetime_seconds"`
	SessionLifetimeSeconds  int64 `json:"session_lifetime_seconds"`
	RenewalThresholdSeconds int64 `json:"renewal_threshold_seconds"`
	OTPLifetimeSeconds      int64 `json:"otp_lifetime_seconds"`
	MaxFailedAttempts       int   `json:"max_failed_attempts"`
	BlockPeriodDays         int   `json:"block_period_days"`
	MaxBlocksInPeriod       int   `json:"max_blocks_in_period"`
}

// SecurityConfigResponse mirrors the effective parameter set.
type SecurityConfigResponse struct {
	JWTLifetimeSeconds      int64     `json:"jwt_lifetime_seconds"`
	SessionLifetimeSeconds  int64     `json:"session_lifetime_seconds"`
	RenewalThresholdSeconds int64     `json:"renewal_threshold_seconds"`
	OTPLifetimeSeconds      int64     `json:"otp_lifetime_seconds"`
	MaxFailedAttempts       int       `json:"max_failed_attempts"`
	BlockPeriodDays         int       `json:"block_period_days"`
	MaxBlocksInPeriod       int       `json:"max_blocks_in_period"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

func newSessionSummary(session domain.Session) SessionSummary {
	return SessionSummary{
		ID:           session.ID,
		ClientID:     session.ClientID,
		ClientClass:  session.ClientClass,
		CreatedAt:    session.CreatedAt,
		ExpiresAt:    session.ExpiresAt,
		LastActivity: session.LastActivity,
	}
}
