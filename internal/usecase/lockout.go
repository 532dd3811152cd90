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
	"github.com/mkravts/commerce-platform-auth/internal/repository"
)

// LockoutService tracks consecutive failed logins and drives the escalating
// lockout policy: a threshold breach closes the tracking record as a lockout
// episode and locks the account, and repeated episodes inside the rolling
// window escalate to a permanent lock.
type LockoutService struct {
	users    port.UserRepository
	attempts port.FailedAttemptRepository
	config   *SecurityConfigService
	audit    port.AuditPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewLockoutService constructs a LockoutService.
func NewLockoutService(users port.UserRepository, attempts port.FailedAttemptRepository, config *SecurityConfigService, audit port.AuditPublisher, logger *zap.Logger) *LockoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockoutService{
		users:    users,
		attempts: attempts,
		config:   config,
		audit:    audit,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *LockoutService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RecordFailure registers one failed login for the user and returns the
// resulting decision. A per-user threshold override takes precedence over the
// configured default.
func (s *LockoutService) RecordFailure(ctx context.Context, user domain.User, thresholdOverride *int, ip *string) (domain.LockoutDecision, error) {
	cfg := s.config.Current(ctx)

	threshold := cfg.MaxFailedAttempts
	if thresholdOverride != nil && *thresholdOverride > 0 {
		threshold = *thresholdOverride
	}

	decision, err := s.attempts.RecordFailure(ctx, user.ID, ip, threshold, cfg.BlockPeriod(), cfg.MaxBlocksInPeriod)
	if err != nil {
		return domain.LockoutDecision{}, fmt.Errorf("record failed attempt: %w", err)
	}

	if decision.Locked {
		action := domain.AuditActionLockoutTemporary
		detail := fmt.Sprintf("account locked after %d failed attempts", decision.Count)
		if decision.Permanent {
			action = domain.AuditActionLockoutPermanent
			detail = fmt.Sprintf("account permanently locked after %d lockouts within window", decision.EpisodesInWindow)
		}
		s.publishAudit(ctx, user.ID, action, detail, ip)
	}

	return decision, nil
}

// Clear resolves the open failed-attempt record after a successful
// authentication. The resolved record does not count as a lockout episode.
func (s *LockoutService) Clear(ctx context.Context, userID string) error {
	if err := s.attempts.ResolveOpen(ctx, userID, s.now()); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("clear failed attempts: %w", err)
	}
	return nil
}

// AdminUnlock restores a locked account to active status and resolves every
// outstanding failed-attempt record. Historic lockout episodes remain on
// record, so the escalation window is unaffected. This is the only path out
// of a permanent lock.
func (s *LockoutService) AdminUnlock(ctx context.Context, userID, actorID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}

	if err := s.attempts.ResolveAllAndUnlock(ctx, user.ID, s.now()); err != nil {
		return fmt.Errorf("unlock account: %w", err)
	}

	s.logger.Info("account unlocked by administrator",
		zap.String("user_id", user.ID),
		zap.String("actor_id", actorID),
	)
	s.publishAuditActor(ctx, actorID, domain.AuditActionAdminUnlock, fmt.Sprintf("account %s unlocked", user.ID))

	return nil
}

func (s *LockoutService) publishAudit(ctx context.Context, userID, action, detail string, ip *string) {
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
		s.logger.Warn("publish lockout audit entry", zap.Error(err))
	}
}

func (s *LockoutService) publishAuditActor(ctx context.Context, actorID, action, detail string) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		Action: action,
		Detail: detail,
		At:     s.now(),
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	if err := s.audit.Publish(ctx, entry); err != nil {
		s.logger.Warn("publish lockout audit entry", zap.Error(err))
	}
}
