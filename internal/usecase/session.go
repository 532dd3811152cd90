package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/core/port"
	"github.com/mkravts/commerce-platform-auth/internal/infra/config"
	"github.com/mkravts/commerce-platform-auth/internal/infra/security"
	"github.com/mkravts/commerce-platform-auth/internal/repository"
)

// SessionService manages the bearer-session lifecycle: issuance under
// per-role concurrency caps, verification against the session row, sliding
// in-place renewal, and revocation.
type SessionService struct {
	sessions     port.SessionRepository
	signer       *security.TokenSigner
	config       *SecurityConfigService
	audit        port.AuditPublisher
	logger       *zap.Logger
	caps         map[domain.UserRole]int
	longLived    map[string]struct{}
	longLivedTTL time.Duration
	now          func() time.Time
}

// NewSessionService constructs a SessionService. The settings carry the
// per-role caps and the client-class policy naming which client identifiers
// receive fixed long-lived tokens.
func NewSessionService(sessions port.SessionRepository, signer *security.TokenSigner, cfgService *SecurityConfigService, settings config.SessionSettings, audit port.AuditPublisher, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}

	longLived := make(map[string]struct{}, len(settings.LongLivedClients))
	for _, client := range settings.LongLivedClients {
		longLived[client] = struct{}{}
	}

	return &SessionService{
		sessions: sessions,
		signer:   signer,
		config:   cfgService,
		audit:    audit,
		logger:   logger,
		caps: map[domain.UserRole]int{
			domain.RoleCustomer: settings.CustomerCap,
			domain.RoleAdmin:    settings.AdminCap,
		},
		longLived:    longLived,
		longLivedTTL: settings.LongLivedLifetime,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Create issues a new session and bearer token for the user. The session row
// stores only the token hash. Returns ErrSessionLimitReached when the user's
// role cap is already met.
func (s *SessionService) Create(ctx context.Context, user domain.User, clientID string, ip *string) (*domain.Session, string, error) {
	cfg := s.config.Current(ctx)
	now := s.now()

	class, tokenTTL, sessionTTL := s.classify(clientID, cfg)

	sessionID := uuid.NewString()
	token, err := s.signer.Sign(user, sessionID, tokenTTL, now)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}

	session := domain.Session{
		ID:           sessionID,
		UserID:       user.ID,
		TokenHash:    security.HashToken(token),
		ClientID:     clientID,
		ClientClass:  class,
		IP:           ip,
		CreatedAt:    now,
		ExpiresAt:    now.Add(sessionTTL),
		LastActivity: now,
	}

	cap := s.capFor(user.Role)
	if err := s.sessions.CreateWithCap(ctx, session, cap); err != nil {
		if errors.Is(err, repository.ErrSessionCapReached) {
			return nil, "", ErrSessionLimitReached
		}
		return nil, "", fmt.Errorf("create session: %w", err)
	}

	s.publishAudit(ctx, user.ID, domain.AuditActionSessionCreated, fmt.Sprintf("session %s created for client %s", session.ID, clientID), ip)

	return &session, token, nil
}

// Verify resolves the bearer token to its backing session. The session row is
// authoritative: a cryptographically valid token whose row is revoked or
// expired is rejected, and a token whose hash no longer matches the row (a
// renewal superseded it) is invalid.
func (s *SessionService) Verify(ctx context.Context, token string) (*domain.Session, *security.SessionClaims, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrTokenExpired):
			return nil, nil, ErrTokenExpired
		default:
			return nil, nil, ErrTokenInvalid
		}
	}

	session, err := s.sessions.GetByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrSessionNotFound
		}
		return nil, nil, fmt.Errorf("load session: %w", err)
	}

	if session.ID != claims.SessionID {
		return nil, nil, ErrTokenInvalid
	}

	now := s.now()
	if session.RevokedAt != nil {
		return nil, nil, ErrSessionRevoked
	}
	if !session.ExpiresAt.After(now) {
		return nil, nil, ErrTokenExpired
	}

	if err := s.sessions.TouchActivity(ctx, session.ID, now); err != nil {
		s.logger.Warn("touch session activity", zap.String("session_id", session.ID), zap.Error(err))
	}
	session.LastActivity = now

	return session, claims, nil
}

// RenewIfNearExpiry replaces the session's token in place when the session
// falls inside the renewal window. Long-lived sessions never renew. Losing
// the optimistic guard to a concurrent renewal or revoke is not an error; the
// request simply keeps its current token.
func (s *SessionService) RenewIfNearExpiry(ctx context.Context, session *domain.Session, user domain.User) (string, bool, error) {
	if session.ClientClass == domain.ClientClassLongLived {
		return "", false, nil
	}

	cfg := s.config.Current(ctx)
	now := s.now()
	if !session.NearExpiry(now, cfg.RenewalThreshold) {
		return "", false, nil
	}

	token, err := s.signer.Sign(user, session.ID, cfg.JWTLifetime, now)
	if err != nil {
		return "", false, fmt.Errorf("sign renewed token: %w", err)
	}

	newHash := security.HashToken(token)
	newExpiry := now.Add(cfg.SessionLifetime)
	if err := s.sessions.ReplaceToken(ctx, session.ID, session.TokenHash, newHash, newExpiry, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("replace session token: %w", err)
	}

	session.TokenHash = newHash
	session.ExpiresAt = newExpiry
	session.LastActivity = now

	s.publishAudit(ctx, session.UserID, domain.AuditActionSessionRenewed, fmt.Sprintf("session %s renewed", session.ID), session.IP)

	return token, true, nil
}

// Revoke terminates a session. Revocation is idempotent; the boolean reports
// whether this call performed the transition.
func (s *SessionService) Revoke(ctx context.Context, sessionID, reason string) (bool, error) {
	changed, err := s.sessions.Revoke(ctx, sessionID, reason, s.now())
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	if changed > 0 {
		s.publishAudit(ctx, "", domain.AuditActionSessionRevoked, fmt.Sprintf("session %s revoked: %s", sessionID, reason), nil)
	}
	return changed > 0, nil
}

// RevokeByToken revokes the session whose current token hashes to the given
// value. Revoking an already-revoked session is a no-op; a token that maps to
// no session at all returns ErrSessionNotFound, since the caller holds a
// token this service never handed out (or one a renewal superseded). Expiry
// of the token itself does not matter since the row is looked up by hash.
func (s *SessionService) RevokeByToken(ctx context.Context, token, reason string) (bool, error) {
	session, err := s.sessions.GetByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrSessionNotFound
		}
		return false, fmt.Errorf("load session: %w", err)
	}
	return s.Revoke(ctx, session.ID, reason)
}

// RevokeAll terminates every active session the user holds and returns how
// many were revoked.
func (s *SessionService) RevokeAll(ctx context.Context, userID, reason string) (int, error) {
	count, err := s.sessions.RevokeAllForUser(ctx, userID, reason, s.now())
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	if count > 0 {
		s.publishAudit(ctx, userID, domain.AuditActionSessionsRevoked, fmt.Sprintf("%d sessions revoked: %s", count, reason), nil)
	}
	return count, nil
}

// CountActive returns the number of live sessions the user holds.
func (s *SessionService) CountActive(ctx context.Context, userID string) (int, error) {
	count, err := s.sessions.CountActive(ctx, userID, s.now())
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

// AtCapacity reports whether the user already holds as many live sessions as
// their role allows. It is a read-side check for callers that must refuse
// early; CreateWithCap remains the authoritative guard at insert time.
func (s *SessionService) AtCapacity(ctx context.Context, user domain.User) (bool, error) {
	cap := s.capFor(user.Role)
	if cap <= 0 {
		return false, nil
	}
	count, err := s.CountActive(ctx, user.ID)
	if err != nil {
		return false, err
	}
	return count >= cap, nil
}

// ListActive returns the user's live sessions, most recently active first.
func (s *SessionService) ListActive(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.sessions.ListActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionService) classify(clientID string, cfg domain.SecurityConfig) (domain.ClientClass, time.Duration, time.Duration) {
	if _, ok := s.longLived[clientID]; ok && s.longLivedTTL > 0 {
		return domain.ClientClassLongLived, s.longLivedTTL, s.longLivedTTL
	}
	return domain.ClientClassInteractive, cfg.JWTLifetime, cfg.SessionLifetime
}

func (s *SessionService) capFor(role domain.UserRole) int {
	if cap, ok := s.caps[role]; ok && cap > 0 {
		return cap
	}
	return s.caps[domain.RoleCustomer]
}

func (s *SessionService) publishAudit(ctx context.Context, userID, action, detail string, ip *string) {
	if s.audit == nil {
		return
	}
	entry := domain.AuditEntry{
		Action: action,
		Detail: detail,
		IP:     ip,
		At:     s.now(),
	}
	if userID != "" {
		entry.ActorID = &userID
	}
	if err := s.audit.Publish(ctx, entry); err != nil {
		s.logger.Warn("publish session audit entry", zap.Error(err))
	}
}
