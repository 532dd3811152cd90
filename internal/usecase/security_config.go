package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/core/port"
	"github.com/mkravts/commerce-platform-auth/internal/repository"
)

// securityConfigCacheTTL bounds how stale a cached parameter set can get.
// Tuning changes apply to new logins within this window, never to sessions
// already issued.
const securityConfigCacheTTL = 30 * time.Second

// SecurityConfigService serves the tunable parameter set to the rest of the
// engine. Reads are cached briefly; a missing or unreadable row degrades to
// the documented defaults so authentication never stalls on configuration.
type SecurityConfigService struct {
	repo   port.SecurityConfigRepository
	audit  port.AuditPublisher
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	cached   domain.SecurityConfig
	cachedAt time.Time
	hasCache bool
}

// NewSecurityConfigService constructs a SecurityConfigService.
func NewSecurityConfigService(repo port.SecurityConfigRepository, audit port.AuditPublisher, logger *zap.Logger) *SecurityConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityConfigService{
		repo:   repo,
		audit:  audit,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SecurityConfigService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Current returns the effective parameter set. A missing row yields the
// defaults; a read failure falls back to the last cached value, then to the
// defaults, so callers always get a usable configuration.
func (s *SecurityConfigService) Current(ctx context.Context) domain.SecurityConfig {
	now := s.now()

	s.mu.RLock()
	if s.hasCache && now.Sub(s.cachedAt) < securityConfigCacheTTL {
		cfg := s.cached
		s.mu.RUnlock()
		return cfg
	}
	s.mu.RUnlock()

	cfg, err := s.repo.Get(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return s.store(domain.DefaultSecurityConfig(), now)
	case err != nil:
		s.logger.Warn("read security config", zap.Error(err))
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.hasCache {
			return s.cached
		}
		return domain.DefaultSecurityConfig()
	}

	return s.store(cfg.Normalize(), now)
}

// Update validates and persists a new parameter set, invalidating the cache.
// Sessions and challenges issued before the update keep their original
// lifetimes.
func (s *SecurityConfigService) Update(ctx context.Context, cfg domain.SecurityConfig, actorID string) (domain.SecurityConfig, error) {
	if err := validateSecurityConfig(cfg); err != nil {
		return domain.SecurityConfig{}, err
	}

	now := s.now()
	cfg = cfg.Normalize()
	cfg.UpdatedAt = now

	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return domain.SecurityConfig{}, fmt.Errorf("persist security config: %w", err)
	}

	s.store(cfg, now)
	s.publishAudit(ctx, actorID, now)

	return cfg, nil
}

func (s *SecurityConfigService) store(cfg domain.SecurityConfig, at time.Time) domain.SecurityConfig {
	s.mu.Lock()
	s.cached = cfg
	s.cachedAt = at
	s.hasCache = true
	s.mu.Unlock()
	return cfg
}

func (s *SecurityConfigService) publishAudit(ctx context.Context, actorID string, at time.Time) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		Action: domain.AuditActionConfigUpdated,
		Detail: "security configuration updated",
		At:     at,
	}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	if err := s.audit.Publish(ctx, entry); err != nil {
		s.logger.Warn("publish config audit entry", zap.Error(err))
	}
}

func validateSecurityConfig(cfg domain.SecurityConfig) error {
	switch {
	case cfg.JWTLifetime < 0:
		return fmt.Errorf("jwt lifetime must not be negative")
	case cfg.SessionLifetime < 0:
		return fmt.Errorf("session lifetime must not be negative")
	case cfg.RenewalThreshold < 0:
		return fmt.Errorf("renewal threshold must not be negative")
	case cfg.OTPLifetime < 0:
		return fmt.Errorf("otp lifetime must not be negative")
	case cfg.MaxFailedAttempts < 0:
		return fmt.Errorf("max failed attempts must not be negative")
	case cfg.BlockPeriodDays < 0:
		return fmt.Errorf("block period must not be negative")
	case cfg.MaxBlocksInPeriod < 0:
		return fmt.Errorf("max blocks in period must not be negative")
	}
	return nil
}
