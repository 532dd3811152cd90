package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/core/port"
	"github.com/mkravts/commerce-platform-auth/internal/infra/logger"
	"github.com/mkravts/commerce-platform-auth/internal/repository"
)

// LoginInput carries one credential submission.
type LoginInput struct {
	Email    string
	Password string
	ClientID string
	IP       *string
}

// CompleteMfaInput carries one challenge verification attempt.
type CompleteMfaInput struct {
	UserID   string
	Code     string
	ClientID string
	IP       *string
}

// LoginResult is the outcome of a successful credential or challenge step.
// When MfaRequired is set no session exists yet; the caller must complete the
// challenge to obtain a token.
type LoginResult struct {
	MfaRequired bool
	UserID      string
	Token       string
	Session     *domain.Session
	ExpiresAt   time.Time
}

// VerifiedRequest is the outcome of validating a bearer token, including a
// transparently renewed replacement token when the session fell inside the
// renewal window.
type VerifiedRequest struct {
	UserID       string
	Role         domain.UserRole
	SessionID    string
	RenewedToken string
}

// AuthService orchestrates the authentication flow across the credential
// store, the failed-attempt tracker, the challenge service, and the session
// manager. Each step is explicit: gate on account status, verify the
// password, settle the lockout bookkeeping, then either issue a challenge or
// a session.
type AuthService struct {
	users       port.UserRepository
	credentials *CredentialService
	lockout     *LockoutService
	sessions    *SessionService
	mfa         *MfaService
	audit       port.AuditPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(users port.UserRepository, credentials *CredentialService, lockout *LockoutService, sessions *SessionService, mfa *MfaService, audit port.AuditPublisher, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:       users,
		credentials: credentials,
		lockout:     lockout,
		sessions:    sessions,
		mfa:         mfa,
		audit:       audit,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Login runs the credential step. Unknown email and wrong password produce
// the same ErrInvalidCredentials; locked and pending accounts are rejected
// before the password is ever checked, and a wrong password feeds the
// failed-attempt tracker, whose decision may replace the generic rejection
// with a lockout.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("login rejected", zap.String("email", logger.MaskEmail(email)), zap.String("reason", "unknown_email"))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := s.gateStatus(ctx, user, input.IP); err != nil {
		return nil, err
	}

	cred, match, err := s.credentials.Verify(ctx, user.ID, input.Password)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, s.handleFailedPassword(ctx, *user, cred, input.IP)
	}

	if err := s.lockout.Clear(ctx, user.ID); err != nil {
		s.logger.Warn("clear failed attempts", zap.String("user_id", user.ID), zap.Error(err))
	}

	if user.MfaEnabled {
		// Refuse before the challenge is issued: a user over the session cap
		// would otherwise receive and burn a code only to be rejected at
		// session creation. CreateWithCap still guards the insert itself.
		atCap, err := s.sessions.AtCapacity(ctx, *user)
		if err != nil {
			return nil, err
		}
		if atCap {
			return nil, ErrSessionLimitReached
		}
		if _, err := s.mfa.Issue(ctx, *user); err != nil {
			return nil, fmt.Errorf("issue challenge: %w", err)
		}
		return &LoginResult{MfaRequired: true, UserID: user.ID}, nil
	}

	return s.establishSession(ctx, *user, input.ClientID, input.IP)
}

// CompleteMfa finishes a challenge-gated login. The account status is
// re-checked because a lockout may have landed between the credential step
// and the challenge step.
func (s *AuthService) CompleteMfa(ctx context.Context, input CompleteMfaInput) (*LoginResult, error) {
	if strings.TrimSpace(input.UserID) == "" || strings.TrimSpace(input.Code) == "" {
		return nil, ErrMfaInvalidCode
	}

	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMfaExpired
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := s.gateStatus(ctx, user, input.IP); err != nil {
		return nil, err
	}

	if err := s.mfa.Verify(ctx, user.ID, input.Code); err != nil {
		return nil, err
	}

	return s.establishSession(ctx, *user, input.ClientID, input.IP)
}

// Logout revokes the session behind the token. Revoking an already-revoked
// or expired session succeeds without complaint, but a token that resolves to
// no session at all returns ErrSessionNotFound: the caller was never
// authenticated with it.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrTokenInvalid
	}

	// The session is addressed by token hash, so an expired or already-revoked
	// token still resolves and the repeat logout stays idempotent.
	if _, err := s.sessions.RevokeByToken(ctx, token, "user_logout"); err != nil {
		return err
	}
	return nil
}

// VerifyRequest validates a bearer token for request authentication and
// transparently renews it when the session nears expiry. The returned
// RenewedToken, when set, must be handed back to the client.
func (s *AuthService) VerifyRequest(ctx context.Context, token string) (*VerifiedRequest, error) {
	session, claims, err := s.sessions.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	user := domain.User{ID: claims.UserID, Role: claims.Role}
	renewed, ok, err := s.sessions.RenewIfNearExpiry(ctx, session, user)
	if err != nil {
		s.logger.Warn("renew session", zap.String("session_id", session.ID), zap.Error(err))
		renewed, ok = "", false
	}

	result := &VerifiedRequest{
		UserID:    claims.UserID,
		Role:      claims.Role,
		SessionID: session.ID,
	}
	if ok {
		result.RenewedToken = renewed
	}
	return result, nil
}

func (s *AuthService) gateStatus(ctx context.Context, user *domain.User, ip *string) error {
	switch user.Status {
	case domain.UserStatusActive:
		return nil
	case domain.UserStatusPending:
		s.publishRejected(ctx, user.ID, "account pending verification", ip)
		return ErrAccountPending
	case domain.UserStatusLockedTemporary:
		s.publishRejected(ctx, user.ID, "account temporarily locked", ip)
		return ErrAccountLockedTemporary
	case domain.UserStatusLockedPermanent:
		s.publishRejected(ctx, user.ID, "account permanently locked", ip)
		return ErrAccountLockedPermanent
	default:
		s.publishRejected(ctx, user.ID, fmt.Sprintf("unrecognized account status %q", user.Status), ip)
		return ErrInvalidCredentials
	}
}

func (s *AuthService) handleFailedPassword(ctx context.Context, user domain.User, cred *domain.Credential, ip *string) error {
	var override *int
	if cred != nil {
		override = cred.MaxFailedAttempts
	}

	decision, err := s.lockout.RecordFailure(ctx, user, override, ip)
	if err != nil {
		s.logger.Error("record failed attempt", zap.String("user_id", user.ID), zap.Error(err))
		return ErrInvalidCredentials
	}

	s.publishEntry(ctx, user.ID, domain.AuditActionLoginFailed, fmt.Sprintf("password rejected, attempt %d of %d", decision.Count, decision.Threshold), ip)

	switch {
	case decision.Permanent:
		return ErrAccountLockedPermanent
	case decision.Locked:
		return ErrAccountLockedTemporary
	default:
		return ErrInvalidCredentials
	}
}

func (s *AuthService) establishSession(ctx context.Context, user domain.User, clientID string, ip *string) (*LoginResult, error) {
	session, token, err := s.sessions.Create(ctx, user, clientID, ip)
	if err != nil {
		return nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("touch last login", zap.String("user_id", user.ID), zap.Error(err))
	}

	s.publishEntry(ctx, user.ID, domain.AuditActionLoginSucceeded, fmt.Sprintf("session %s established", session.ID), ip)

	return &LoginResult{
		UserID:    user.ID,
		Token:     token,
		Session:   session,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *AuthService) publishRejected(ctx context.Context, userID, detail string, ip *string) {
	s.publishEntry(ctx, userID, domain.AuditActionLoginRejected, detail, ip)
}

func (s *AuthService) publishEntry(ctx context.Context, userID, action, detail string, ip *string) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		ActorID: &userID,
		Action:  action,
		Detail:  detail,
		IP:      ip,
		At:      s.now(),
	}
	if err := s.audit.Publish(ctx, entry); err != nil {
		s.logger.Warn("publish auth audit entry", zap.Error(err))
	}
}
