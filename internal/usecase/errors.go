package usecase

import (
	"errors"
	"fmt"
)

// Outcome taxonomy shared by the authentication services. Handlers map these
// to transport responses; everything not listed here is an internal failure.
var (
	// ErrInvalidCredentials covers unknown email and wrong password alike, so
	// responses cannot be used to probe which addresses exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountPending indicates the account has not completed verification.
	ErrAccountPending = errors.New("account pending verification")
	// ErrAccountLockedTemporary indicates the account is under a temporary lockout.
	ErrAccountLockedTemporary = errors.New("account temporarily locked")
	// ErrAccountLockedPermanent indicates the account is permanently locked and
	// requires administrative intervention.
	ErrAccountLockedPermanent = errors.New("account permanently locked")
	// ErrSessionLimitReached indicates the account already holds its maximum
	// number of concurrent sessions.
	ErrSessionLimitReached = errors.New("active session limit reached")
	// ErrMfaInvalidCode indicates the submitted one-time code does not match.
	ErrMfaInvalidCode = errors.New("verification code invalid")
	// ErrMfaExpired indicates the challenge expired, was exhausted, or was
	// already consumed.
	ErrMfaExpired = errors.New("verification code expired")
	// ErrTokenExpired indicates the bearer token or its backing session is past
	// expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid indicates the bearer token is malformed, mis-signed, or
	// does not match its session.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrSessionRevoked indicates the backing session was explicitly revoked.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrSessionNotFound indicates no session backs the presented token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordReused indicates the proposed password matches the current or
	// a historical one.
	ErrPasswordReused = errors.New("password was used before")
)

// MfaCodeError reports a rejected one-time code together with the number of
// attempts the challenge has left, so the caller can tell the user how many
// tries remain. It unwraps to ErrMfaInvalidCode.
type MfaCodeError struct {
	AttemptsRemaining int
}

func (e *MfaCodeError) Error() string {
	return fmt.Sprintf("verification code invalid, %d attempts remaining", e.AttemptsRemaining)
}

func (e *MfaCodeError) Unwrap() error { return ErrMfaInvalidCode }
