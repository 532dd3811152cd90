package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/repository"
)

type fakeUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepository(users ...domain.User) *fakeUserRepository {
	repo := &fakeUserRepository{users: make(map[string]*domain.User)}
	for i := range users {
		userCopy := users[i]
		repo.users[userCopy.ID] = &userCopy
	}
	return repo
}

func (f *fakeUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (f *fakeUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			copy := *user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepository) UpdateStatus(_ context.Context, id string, status domain.UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Status = status
	return nil
}

func (f *fakeUserRepository) TouchLastLogin(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	return nil
}

type fakeCredentialRepository struct {
	creds   map[string]*domain.Credential
	history map[string][]domain.CredentialHistory
}

func newFakeCredentialRepository(creds ...domain.Credential) *fakeCredentialRepository {
	repo := &fakeCredentialRepository{
		creds:   make(map[string]*domain.Credential),
		history: make(map[string][]domain.CredentialHistory),
	}
	for i := range creds {
		credCopy := creds[i]
		repo.creds[credCopy.UserID] = &credCopy
	}
	return repo
}

func (f *fakeCredentialRepository) Get(_ context.Context, userID string) (*domain.Credential, error) {
	cred, ok := f.creds[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *cred
	return &copy, nil
}

func (f *fakeCredentialRepository) UpdateHash(_ context.Context, userID, newHash string, changedAt time.Time) error {
	cred, ok := f.creds[userID]
	if !ok {
		return repository.ErrNotFound
	}
	f.history[userID] = append(f.history[userID], domain.CredentialHistory{
		UserID:       userID,
		PasswordHash: cred.PasswordHash,
		SetAt:        cred.LastChangedAt,
	})
	cred.PasswordHash = newHash
	cred.LastChangedAt = changedAt
	return nil
}

func (f *fakeCredentialRepository) ListHistory(_ context.Context, userID string) ([]domain.CredentialHistory, error) {
	return f.history[userID], nil
}

type fakeSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newFakeSessionRepository(sessions ...domain.Session) *fakeSessionRepository {
	repo := &fakeSessionRepository{sessions: make(map[string]*domain.Session)}
	for i := range sessions {
		sessionCopy := sessions[i]
		repo.sessions[sessionCopy.ID] = &sessionCopy
	}
	return repo
}

func (f *fakeSessionRepository) CreateWithCap(_ context.Context, session domain.Session, cap int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cap > 0 {
		active := 0
		for _, existing := range f.sessions {
			if existing.UserID == session.UserID && existing.IsActive(session.CreatedAt) {
				active++
			}
		}
		if active >= cap {
			return repository.ErrSessionCapReached
		}
	}
	copy := session
	f.sessions[session.ID] = &copy
	return nil
}

func (f *fakeSessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, session := range f.sessions {
		if session.TokenHash == tokenHash {
			copy := *session
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSessionRepository) ReplaceToken(_ context.Context, sessionID, oldTokenHash, newTokenHash string, expiresAt, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok || session.TokenHash != oldTokenHash || session.RevokedAt != nil {
		return repository.ErrNotFound
	}
	session.TokenHash = newTokenHash
	session.ExpiresAt = expiresAt
	session.LastActivity = at
	return nil
}

func (f *fakeSessionRepository) TouchActivity(_ context.Context, sessionID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if session, ok := f.sessions[sessionID]; ok {
		session.LastActivity = at
	}
	return nil
}

func (f *fakeSessionRepository) Revoke(_ context.Context, sessionID, reason string, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[sessionID]
	if !ok {
		return 0, nil
	}
	if !session.Revoke(at, reason) {
		return 0, nil
	}
	return 1, nil
}

func (f *fakeSessionRepository) RevokeAllForUser(_ context.Context, userID, reason string, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, session := range f.sessions {
		if session.UserID != userID || !session.IsActive(at) {
			continue
		}
		if session.Revoke(at, reason) {
			count++
		}
	}
	return count, nil
}

func (f *fakeSessionRepository) CountActive(_ context.Context, userID string, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, session := range f.sessions {
		if session.UserID == userID && session.IsActive(at) {
			count++
		}
	}
	return count, nil
}

func (f *fakeSessionRepository) ListActiveByUser(_ context.Context, userID string, at time.Time) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]domain.Session, 0)
	for _, session := range f.sessions {
		if session.UserID == userID && session.IsActive(at) {
			result = append(result, *session)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActivity.After(result[j].LastActivity)
	})
	return result, nil
}

// fakeFailedAttemptRepository mirrors the transactional semantics of the
// PostgreSQL implementation closely enough to drive the lockout scenarios.
type fakeFailedAttemptRepository struct {
	mu       sync.Mutex
	users    *fakeUserRepository
	open     map[string]*domain.FailedAttemptRecord
	episodes map[string][]time.Time
	now      func() time.Time
}

func newFakeFailedAttemptRepository(users *fakeUserRepository, now func() time.Time) *fakeFailedAttemptRepository {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &fakeFailedAttemptRepository{
		users:    users,
		open:     make(map[string]*domain.FailedAttemptRecord),
		episodes: make(map[string][]time.Time),
		now:      now,
	}
}

func (f *fakeFailedAttemptRepository) RecordFailure(_ context.Context, userID string, ip *string, threshold int, window time.Duration, maxEpisodes int) (domain.LockoutDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	record, ok := f.open[userID]
	if !ok {
		record = &domain.FailedAttemptRecord{
			UserID:         userID,
			FirstAttemptAt: now,
			IP:             ip,
		}
		f.open[userID] = record
	}
	record.Count++
	record.LastAttemptAt = now

	decision := domain.LockoutDecision{Count: record.Count, Threshold: threshold}
	if threshold > 0 && record.Count >= threshold {
		decision.Locked = true
		delete(f.open, userID)
		f.episodes[userID] = append(f.episodes[userID], now)

		since := now.Add(-window)
		inWindow := 0
		for _, at := range f.episodes[userID] {
			if !at.Before(since) {
				inWindow++
			}
		}
		decision.EpisodesInWindow = inWindow

		status := domain.UserStatusLockedTemporary
		if maxEpisodes > 0 && inWindow >= maxEpisodes {
			decision.Permanent = true
			status = domain.UserStatusLockedPermanent
		}
		if f.users != nil {
			_ = f.users.UpdateStatus(context.Background(), userID, status)
		}
	}
	return decision, nil
}

func (f *fakeFailedAttemptRepository) ResolveOpen(_ context.Context, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.open, userID)
	return nil
}

func (f *fakeFailedAttemptRepository) ResolveAllAndUnlock(_ context.Context, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.open, userID)
	if f.users != nil {
		return f.users.UpdateStatus(context.Background(), userID, domain.UserStatusActive)
	}
	return nil
}

func (f *fakeFailedAttemptRepository) GetOpen(_ context.Context, userID string) (*domain.FailedAttemptRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.open[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *record
	return &copy, nil
}

func (f *fakeFailedAttemptRepository) CountEpisodesSince(_ context.Context, userID string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, at := range f.episodes[userID] {
		if !at.Before(since) {
			count++
		}
	}
	return count, nil
}

type fakeSecurityConfigRepository struct {
	cfg *domain.SecurityConfig
	err error
}

func (f *fakeSecurityConfigRepository) Get(_ context.Context) (*domain.SecurityConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.cfg == nil {
		return nil, repository.ErrNotFound
	}
	copy := *f.cfg
	return &copy, nil
}

func (f *fakeSecurityConfigRepository) Upsert(_ context.Context, cfg domain.SecurityConfig) error {
	if f.err != nil {
		return f.err
	}
	copy := cfg
	f.cfg = &copy
	return nil
}

type fakeMfaChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*domain.MfaChallenge
}

func newFakeMfaChallengeStore() *fakeMfaChallengeStore {
	return &fakeMfaChallengeStore{challenges: make(map[string]*domain.MfaChallenge)}
}

func (f *fakeMfaChallengeStore) Put(_ context.Context, challenge domain.MfaChallenge, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := challenge
	f.challenges[challenge.AccountID] = &copy
	return nil
}

func (f *fakeMfaChallengeStore) Get(_ context.Context, accountID string) (*domain.MfaChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	challenge, ok := f.challenges[accountID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *challenge
	return &copy, nil
}

func (f *fakeMfaChallengeStore) DecrementAttempts(_ context.Context, accountID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	challenge, ok := f.challenges[accountID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	challenge.AttemptsRemaining--
	return challenge.AttemptsRemaining, nil
}

func (f *fakeMfaChallengeStore) Invalidate(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	challenge, ok := f.challenges[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	challenge.Invalid = true
	return nil
}

func (f *fakeMfaChallengeStore) Delete(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.challenges[accountID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.challenges, accountID)
	return nil
}

type fakeAuditPublisher struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (f *fakeAuditPublisher) Publish(_ context.Context, entry domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditPublisher) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	actions := make([]string, 0, len(f.entries))
	for _, entry := range f.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (f *fakeMailer) Send(_ context.Context, notification domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification)
	return nil
}

func (f *fakeMailer) lastCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].Kind == domain.NotificationOTPCode {
			return f.sent[i].Code
		}
	}
	return ""
}
