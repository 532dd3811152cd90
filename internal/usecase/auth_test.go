package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/infra/config"
	"github.com/mkravts/commerce-platform-auth/internal/infra/security"
)

const testPassword = "correct horse 42 staple"

type authHarness struct {
	auth     *AuthService
	sessions *SessionService
	users    *fakeUserRepository
	creds    *fakeCredentialRepository
	attempts *fakeFailedAttemptRepository
	store    *fakeMfaChallengeStore
	audit    *fakeAuditPublisher
	mailer   *fakeMailer
	clock    *testClock
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
func (c *testClock) fn() func() time.Time    { return func() time.Time { return c.now } }

func testSessionSettings() config.SessionSettings {
	return config.SessionSettings{
		CustomerCap:       5,
		AdminCap:          2,
		LongLivedClients:  []string{"mobile-app"},
		LongLivedLifetime: 720 * time.Hour,
	}
}

func newAuthHarness(t *testing.T, users ...domain.User) *authHarness {
	t.Helper()

	hash, err := security.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	log := zaptest.NewLogger(t)

	userRepo := newFakeUserRepository(users...)
	creds := make([]domain.Credential, 0, len(users))
	for _, user := range users {
		creds = append(creds, domain.Credential{
			UserID:        user.ID,
			PasswordHash:  hash,
			LastChangedAt: clock.Now().Add(-24 * time.Hour),
		})
	}
	credRepo := newFakeCredentialRepository(creds...)
	sessionRepo := newFakeSessionRepository()
	attemptRepo := newFakeFailedAttemptRepository(userRepo, clock.fn())
	store := newFakeMfaChallengeStore()
	audit := &fakeAuditPublisher{}
	mail := &fakeMailer{}

	signer, err := security.NewTokenSigner("test-secret-that-is-long-enough", "test")
	if err != nil {
		t.Fatalf("new token signer: %v", err)
	}
	signer.WithClock(clock.fn())

	configService := NewSecurityConfigService(&fakeSecurityConfigRepository{}, audit, log)
	configService.WithClock(clock.fn())

	sessionService := NewSessionService(sessionRepo, signer, configService, testSessionSettings(), audit, log)
	sessionService.WithClock(clock.fn())

	credentialService := NewCredentialService(userRepo, credRepo, sessionService, security.DefaultPasswordValidator(), mail, audit, log)
	credentialService.WithClock(clock.fn())

	lockoutService := NewLockoutService(userRepo, attemptRepo, configService, audit, log)
	lockoutService.WithClock(clock.fn())

	mfaService := NewMfaService(store, mail, configService, audit, log)
	mfaService.WithClock(clock.fn())

	authService := NewAuthService(userRepo, credentialService, lockoutService, sessionService, mfaService, audit, log)
	authService.WithClock(clock.fn())

	return &authHarness{
		auth:     authService,
		sessions: sessionService,
		users:    userRepo,
		creds:    credRepo,
		attempts: attemptRepo,
		store:    store,
		audit:    audit,
		mailer:   mail,
		clock:    clock,
	}
}

func activeUser(id, email string) domain.User {
	return domain.User{
		ID:     id,
		Email:  email,
		Role:   domain.RoleCustomer,
		Status: domain.UserStatusActive,
	}
}

func TestLoginSuccessEstablishesSession(t *testing.T) {
	h := newAuthHarness(t, activeUser("u1", "alice@example.com"))

	result, err := h.auth.Login(context.Background(), LoginInput{
		Email:    "alice@example.com",
		Password: testPassword,
		ClientID: "web",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.MfaRequired {
		t.Fatal("expected no challenge for account without MFA")
	}
	if result.Token == "" {
		t.Fatal("expected a bearer token")
	}
	if result.Session == nil || result.Session.ClientClass != domain.ClientClassInteractive {
		t.Fatalf("expected interactive session, got %+v", result.Session)
	}

	verified, err := h.auth.VerifyRequest(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("verify request: %v", err)
	}
	if verified.UserID != "u1" {
		t.Fatalf("verified user = %q, want u1", verified.UserID)
	}
}

func TestLoginUnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	h := newAuthHarness(t, activeUser("u1", "alice@example.com"))

	_, unknownErr := h.auth.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: testPassword})
	_, wrongErr := h.auth.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "not the password 1"})

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown email error = %v, want ErrInvalidCredentials", unknownErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v, want ErrInvalidCredentials", wrongErr)
	}
}

func TestLoginGatesLockedAndPendingAccounts(t *testing.T) {
	pending := activeUser("u1", "pending@example.com")
	pending.Status = domain.UserStatusPending
	lockedTemp := activeUser("u2", "temp@example.com")
	lockedTemp.Status = domain.UserStatusLockedTemporary
	lockedPerm := activeUser("u3", "perm@example.com")
	lockedPerm.Status = domain.UserStatusLockedPermanent

	h := newAuthHarness(t, pending, lockedTemp, lockedPerm)

	cases := []struct {
		email string
		want  error
	}{
		{"pending@example.com", ErrAccountPending},
		{"temp@example.com", ErrAccountLockedTemporary},
		{"perm@example.com", ErrAccountLockedPermanent},
	}
	for _, tc := range cases {
		_, err := h.auth.Login(context.Background(), LoginInput{Email: tc.email, Password: testPassword})
		if !errors.Is(err, tc.want) {
			t.Fatalf("login %s error = %v, want %v", tc.email, err, tc.want)
		}
	}
}

func TestFifthFailedAttemptLocksAccount(t *testing.T) {
	h := newAuthHarness(t, activeUser("u1", "alice@example.com"))

	for i := 0; i < 4; i++ {
		_, err := h.auth.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "wrong password 1"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d error = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	_, err := h.auth.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: "wrong password 1"})
	if !errors.Is(err, ErrAccountLockedTemporary) {
		t.Fatalf("fifth attempt error = %v, want ErrAccountLockedTemporary", err)
	}

	user, _ := h.users.GetByID(context.Background(), "u1")
	if user.Status != domain.UserStatusLockedTemporary {
		t.Fatalf("status = %q, want locked_temporary", user.Status)
	}

	// The correct password is rejected too once the lock is in place.
	_, err = h.auth.Login(context.Background(), LoginInput{Email: "alice@example.com", Password: testPassword})
	if !errors.Is(err, ErrAccountLockedTemporary) {
		t.Fatalf("post-lock login error = %v, want ErrAccountLockedTemporary", err)
	}
}

func TestSuccessfulLoginClearsFailedAttempts(t *testing.T) {
	h := newAuthHarness(t, activeUser("u1", "alice@example.com"))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = h.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong password 1"})
	}
	if _, err := h.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: testPassword}); err != nil {
		t.Fatalf("login after failures: %v", err)
	}

	// The streak restarts: four more failures do not lock.
	for i := 0; i < 4; i++ {
		_, err := h.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong password 1"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d after reset error = %v, want ErrInvalidCredentials", i+1, err)
		}
	}
}

func TestRepeatedLockoutsEscalateToPermanent(t *testing.T) {
	h := newAuthHarness(t, activeUser("u1", "alice@example.com"))
	ctx := context.Background()

	lockOnce := func() error {
		var last error
		for i := 0; i < 5; i++ {
			_, last = h.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong password 1"})
		}
		return last
	}

	for episode := 1; episode <= 4; episode++ {
		if err := lockOnce(); !errors.Is(err, ErrAccountLockedTemporary) {
			t.Fatalf("episode %d error = %v, want ErrAccountLockedTemporary", episode, err)
		}
		// Admin unlock between episodes keeps the episode history.
		if err := h.authAdminUnlock(ctx, "u1"); err != nil {
			t.Fatalf("unlock after episode %d: %v", episode, err)
		}
	}

	if err := lockOnce(); !errors.Is(err, ErrAccountLockedPermanent) {
		t.Fatalf("fifth episode error = %v, want ErrAccountLockedPermanent", err)
	}

	user, _ := h.users.GetByID(ctx, "u1")
	if user.Status != domain.UserStatusLockedPermanent {
		t.Fatalf("status = %q, want locked_permanent", user.Status)
	}
}

func TestMfaLoginFlow(t *testing.T) {
	user := activeUser("u1", "alice@example.com")
	user.MfaEnabled = true
	h := newAuthHarness(t, user)
	ctx := context.Background()

	result, err := h.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: testPassword, ClientID: "web"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !result.MfaRequired {
		t.Fatal("expected challenge for MFA-enabled account")
	}
	if result.Token != "" {
		t.Fatal("no token may be issued before the challenge completes")
	}

	code := h.mailer.lastCode()
	if code == "" {
		t.Fatal("expected challenge code to be dispatched")
	}

	completed, err := h.auth.CompleteMfa(ctx, CompleteMfaInput{UserID: "u1", Code: code, ClientID: "web"})
	if err != nil {
		t.Fatalf("complete mfa: %v", err)
	}
	if completed.Token == "" {
		t.Fatal("expected a bearer token after challenge completion")
	}

	// The consumed challenge cannot be replayed.
	_, err = h.auth.CompleteMfa(ctx, CompleteMfaInput{UserID: "u1", Code: code})
	if !errors.Is(err, ErrMfaExpired) {
		t.Fatalf("replay error = %v, want ErrMfaExpired", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	h := newAuthHarness(t, activeUser("u1", "alice@example.com"))
	ctx := context.Background()

	result, err := h.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := h.auth.Logout(ctx, result.Token); err != nil {
		t.Fatalf("first logout: %v", err)
	}
	if err := h.auth.Logout(ctx, result.Token); err != nil {
		t.Fatalf("repeat logout: %v", err)
	}

	_, err = h.auth.VerifyRequest(ctx, result.Token)
	if !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("verify after logout error = %v, want ErrSessionRevoked", err)
	}
}

func TestLogoutWithSupersededTokenIsNotAuthenticated(t *testing.T) {
	h := newAuthHarness(t, activeUser("u1", "alice@example.com"))
	ctx := context.Background()

	result, err := h.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// A renewal replaces the session's token, so the original hash no longer
	// maps to any row.
	h.clock.Advance(11 * time.Minute)
	verified, err := h.auth.VerifyRequest(ctx, result.Token)
	if err != nil {
		t.Fatalf("verify request: %v", err)
	}
	if verified.RenewedToken == "" {
		t.Fatal("expected a renewed token inside the renewal window")
	}

	if err := h.auth.Logout(ctx, result.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("logout with superseded token error = %v, want ErrSessionNotFound", err)
	}

	// The current token still logs out cleanly.
	if err := h.auth.Logout(ctx, verified.RenewedToken); err != nil {
		t.Fatalf("logout with current token: %v", err)
	}
}

func TestLoginAtSessionCapRejectsBeforeChallenge(t *testing.T) {
	user := activeUser("u1", "alice@example.com")
	user.MfaEnabled = true
	h := newAuthHarness(t, user)
	ctx := context.Background()

	for i := 0; i < testSessionSettings().CustomerCap; i++ {
		if _, _, err := h.sessions.Create(ctx, user, "web", nil); err != nil {
			t.Fatalf("seed session %d: %v", i+1, err)
		}
	}

	// The cap must reject the login before any code is issued or dispatched.
	_, err := h.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: testPassword, ClientID: "web"})
	if !errors.Is(err, ErrSessionLimitReached) {
		t.Fatalf("login at cap error = %v, want ErrSessionLimitReached", err)
	}
	if code := h.mailer.lastCode(); code != "" {
		t.Fatalf("challenge code %q dispatched despite cap rejection", code)
	}
}

func TestVerifyRequestBeforeThresholdKeepsToken(t *testing.T) {
	h := newAuthHarness(t, activeUser("u1", "alice@example.com"))
	ctx := context.Background()

	result, err := h.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Still outside the renewal window (15m lifetime, 5m threshold).
	h.clock.Advance(5 * time.Minute)

	verified, err := h.auth.VerifyRequest(ctx, result.Token)
	if err != nil {
		t.Fatalf("verify request: %v", err)
	}
	if verified.RenewedToken != "" {
		t.Fatalf("token renewed before the threshold: %q", verified.RenewedToken)
	}

	// The original token keeps resolving.
	if _, err := h.auth.VerifyRequest(ctx, result.Token); err != nil {
		t.Fatalf("repeat verify: %v", err)
	}
}

func TestVerifyRequestRenewsNearExpiry(t *testing.T) {
	h := newAuthHarness(t, activeUser("u1", "alice@example.com"))
	ctx := context.Background()

	result, err := h.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: testPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Inside the renewal window (15m lifetime, 5m threshold).
	h.clock.Advance(11 * time.Minute)

	verified, err := h.auth.VerifyRequest(ctx, result.Token)
	if err != nil {
		t.Fatalf("verify request: %v", err)
	}
	if verified.RenewedToken == "" {
		t.Fatal("expected a renewed token inside the renewal window")
	}
	if verified.RenewedToken == result.Token {
		t.Fatal("renewed token must differ from the original")
	}

	// The superseded token no longer resolves.
	if _, err := h.auth.VerifyRequest(ctx, result.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("old token error = %v, want ErrSessionNotFound", err)
	}

	// The renewed token carries the extended expiry.
	h.clock.Advance(10 * time.Minute)
	if _, err := h.auth.VerifyRequest(ctx, verified.RenewedToken); err != nil {
		t.Fatalf("verify renewed token: %v", err)
	}
}

// authAdminUnlock is a helper reaching the lockout service through the
// harness.
func (h *authHarness) authAdminUnlock(ctx context.Context, userID string) error {
	return h.auth.lockout.AdminUnlock(ctx, userID, "admin-1")
}
