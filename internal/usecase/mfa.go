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
	"github.com/mkravts/commerce-platform-auth/internal/infra/security"
	"github.com/mkravts/commerce-platform-auth/internal/repository"
)

const (
	mfaCodeLength  = 6
	mfaMaxAttempts = 3
)

// MfaService issues and verifies one-time challenge codes. Each account holds
// at most one active challenge; issuing a new one supersedes the previous
// challenge outright. A challenge dies on expiry, on attempt exhaustion, or
// on successful consumption, and replays against a dead challenge report
// expiry rather than leaking whether the code matched.
type MfaService struct {
	store  port.MfaChallengeStore
	mailer port.Mailer
	config *SecurityConfigService
	audit  port.AuditPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewMfaService constructs an MfaService.
func NewMfaService(store port.MfaChallengeStore, mailer port.Mailer, config *SecurityConfigService, audit port.AuditPublisher, logger *zap.Logger) *MfaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MfaService{
		store:  store,
		mailer: mailer,
		config: config,
		audit:  audit,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *MfaService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Issue generates a fresh challenge for the user and dispatches the code. Any
// outstanding challenge for the account is superseded. Delivery failure does
// not fail issuance; the code can be reissued by logging in again.
func (s *MfaService) Issue(ctx context.Context, user domain.User) (*domain.MfaChallenge, error) {
	cfg := s.config.Current(ctx)
	now := s.now()

	code, err := security.GenerateAlphanumericCode(mfaCodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate challenge code: %w", err)
	}

	challenge := domain.MfaChallenge{
		AccountID:         user.ID,
		Code:              code,
		CreatedAt:         now,
		ExpiresAt:         now.Add(cfg.OTPLifetime),
		AttemptsRemaining: mfaMaxAttempts,
	}

	// Keep the key readable past logical expiry so replays report expired
	// instead of unknown.
	if err := s.store.Put(ctx, challenge, 2*cfg.OTPLifetime); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}

	if s.mailer != nil {
		notification := domain.Notification{
			Kind:      domain.NotificationOTPCode,
			Recipient: user.Email,
			Code:      code,
			ExpiresAt: challenge.ExpiresAt,
		}
		if err := s.mailer.Send(ctx, notification); err != nil {
			s.logger.Warn("send challenge code", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	s.publishAudit(ctx, user.ID, domain.AuditActionMfaIssued, "verification code issued")

	return &challenge, nil
}

// Verify checks the submitted code against the account's challenge. A match
// consumes the challenge. A mismatch burns one attempt and returns an
// MfaCodeError carrying the attempts left; burning the last attempt
// invalidates the challenge for good.
func (s *MfaService) Verify(ctx context.Context, accountID, code string) error {
	challenge, err := s.store.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMfaExpired
		}
		return fmt.Errorf("load challenge: %w", err)
	}

	if !challenge.Usable(s.now()) {
		return ErrMfaExpired
	}

	submitted := strings.ToUpper(strings.TrimSpace(code))
	if submitted == challenge.Code {
		if err := s.store.Delete(ctx, accountID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("consume challenge: %w", err)
		}
		s.publishAudit(ctx, accountID, domain.AuditActionMfaVerified, "verification code accepted")
		return nil
	}

	remaining, err := s.store.DecrementAttempts(ctx, accountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("burn challenge attempt: %w", err)
	}

	if remaining <= 0 {
		remaining = 0
		if err := s.store.Invalidate(ctx, accountID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("invalidate exhausted challenge", zap.String("user_id", accountID), zap.Error(err))
		}
		s.publishAudit(ctx, accountID, domain.AuditActionMfaExhausted, "verification attempts exhausted")
	} else {
		s.publishAudit(ctx, accountID, domain.AuditActionMfaFailed, fmt.Sprintf("verification code rejected, %d attempts remaining", remaining))
	}

	return &MfaCodeError{AttemptsRemaining: remaining}
}

func (s *MfaService) publishAudit(ctx context.Context, userID, action, detail string) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		ActorID: &userID,
		Action:  action,
		Detail:  detail,
		At:      s.now(),
	}
	if err := s.audit.Publish(ctx, entry); err != nil {
		s.logger.Warn("publish mfa audit entry", zap.Error(err))
	}
}
