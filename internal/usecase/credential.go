package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/core/port"
	"github.com/mkravts/commerce-platform-auth/internal/infra/security"
	"github.com/mkravts/commerce-platform-auth/internal/repository"
)

// CredentialService owns password verification and rotation. Passwords are
// stored as Argon2id hashes; prior hashes are retained so a rotation can
// reject reuse.
type CredentialService struct {
	users       port.UserRepository
	credentials port.CredentialRepository
	sessions    *SessionService
	validator   *security.PasswordValidator
	mailer      port.Mailer
	audit       port.AuditPublisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewCredentialService constructs a CredentialService.
func NewCredentialService(users port.UserRepository, credentials port.CredentialRepository, sessions *SessionService, validator *security.PasswordValidator, mailer port.Mailer, audit port.AuditPublisher, logger *zap.Logger) *CredentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validator == nil {
		validator = security.DefaultPasswordValidator()
	}
	return &CredentialService{
		users:       users,
		credentials: credentials,
		sessions:    sessions,
		validator:   validator,
		mailer:      mailer,
		audit:       audit,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *CredentialService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Verify checks the plaintext password against the user's stored hash and
// returns the credential record alongside the outcome. A user without a
// credential row simply does not match.
func (s *CredentialService) Verify(ctx context.Context, userID, password string) (*domain.Credential, bool, error) {
	cred, err := s.credentials.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load credential: %w", err)
	}

	match, err := security.VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		return nil, false, fmt.Errorf("verify password: %w", err)
	}
	return cred, match, nil
}

// ChangePassword rotates the user's password after verifying the current one.
// The new password must pass policy validation and must not match the current
// or any historical hash. Every active session is revoked so stolen tokens do
// not outlive the rotation, and the user is notified.
func (s *CredentialService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	cred, match, err := s.Verify(ctx, userID, currentPassword)
	if err != nil {
		return err
	}
	if cred == nil || !match {
		return ErrInvalidCredentials
	}

	if err := s.validator.Validate(newPassword); err != nil {
		return err
	}

	reused, err := s.isReused(ctx, userID, cred, newPassword)
	if err != nil {
		return err
	}
	if reused {
		return ErrPasswordReused
	}

	newHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	if err := s.credentials.UpdateHash(ctx, userID, newHash, now); err != nil {
		return fmt.Errorf("update credential: %w", err)
	}

	revoked, err := s.sessions.RevokeAll(ctx, userID, "password_changed")
	if err != nil {
		s.logger.Error("revoke sessions after password change", zap.String("user_id", userID), zap.Error(err))
	}

	if s.mailer != nil {
		notification := domain.Notification{
			Kind:      domain.NotificationPasswordChanged,
			Recipient: user.Email,
		}
		if err := s.mailer.Send(ctx, notification); err != nil {
			s.logger.Warn("send password change notice", zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.publishAudit(ctx, userID, fmt.Sprintf("password changed, %d sessions revoked", revoked))

	return nil
}

func (s *CredentialService) isReused(ctx context.Context, userID string, cred *domain.Credential, newPassword string) (bool, error) {
	match, err := security.VerifyPassword(newPassword, cred.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("check password reuse: %w", err)
	}
	if match {
		return true, nil
	}

	history, err := s.credentials.ListHistory(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load credential history: %w", err)
	}
	for _, entry := range history {
		match, err := security.VerifyPassword(newPassword, entry.PasswordHash)
		if err != nil {
			// Unparseable historical hashes cannot match; skip them.
			continue
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func (s *CredentialService) publishAudit(ctx context.Context, userID, detail string) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		ActorID: &userID,
		Action:  domain.AuditActionPasswordChanged,
		Detail:  detail,
		At:      s.now(),
	}
	if err := s.audit.Publish(ctx, entry); err != nil {
		s.logger.Warn("publish credential audit entry", zap.Error(err))
	}
}
