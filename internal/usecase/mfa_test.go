package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newMfaHarness(t *testing.T) (*MfaService, *fakeMfaChallengeStore, *fakeMailer, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := newFakeMfaChallengeStore()
	mailer := &fakeMailer{}

	configService := NewSecurityConfigService(&fakeSecurityConfigRepository{}, nil, zaptest.NewLogger(t))
	configService.WithClock(clock.fn())

	service := NewMfaService(store, mailer, configService, &fakeAuditPublisher{}, zaptest.NewLogger(t))
	service.WithClock(clock.fn())

	return service, store, mailer, clock
}

func TestIssueDeliversCodeAndVerifyConsumesIt(t *testing.T) {
	service, _, mailer, _ := newMfaHarness(t)
	ctx := context.Background()
	user := activeUser("u1", "alice@example.com")

	challenge, err := service.Issue(ctx, user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if challenge.AttemptsRemaining != mfaMaxAttempts {
		t.Fatalf("attempts remaining = %d, want %d", challenge.AttemptsRemaining, mfaMaxAttempts)
	}

	code := mailer.lastCode()
	if len(code) != mfaCodeLength {
		t.Fatalf("delivered code %q, want %d characters", code, mfaCodeLength)
	}

	if err := service.Verify(ctx, "u1", code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// The challenge is consumed on success; a replay sees nothing.
	if err := service.Verify(ctx, "u1", code); !errors.Is(err, ErrMfaExpired) {
		t.Fatalf("replay error = %v, want ErrMfaExpired", err)
	}
}

func TestVerifyAcceptsCaseAndWhitespaceVariants(t *testing.T) {
	service, _, mailer, _ := newMfaHarness(t)
	ctx := context.Background()

	if _, err := service.Issue(ctx, activeUser("u1", "alice@example.com")); err != nil {
		t.Fatalf("issue: %v", err)
	}

	code := "  " + mailer.lastCode() + " "
	if err := service.Verify(ctx, "u1", code); err != nil {
		t.Fatalf("verify with padded code: %v", err)
	}
}

func TestReissueSupersedesPreviousChallenge(t *testing.T) {
	service, _, mailer, _ := newMfaHarness(t)
	ctx := context.Background()
	user := activeUser("u1", "alice@example.com")

	if _, err := service.Issue(ctx, user); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	firstCode := mailer.lastCode()

	if _, err := service.Issue(ctx, user); err != nil {
		t.Fatalf("second issue: %v", err)
	}
	secondCode := mailer.lastCode()

	if firstCode == secondCode {
		t.Fatal("reissue produced the same code")
	}
	if err := service.Verify(ctx, "u1", firstCode); !errors.Is(err, ErrMfaInvalidCode) {
		t.Fatalf("superseded code error = %v, want ErrMfaInvalidCode", err)
	}
	if err := service.Verify(ctx, "u1", secondCode); err != nil {
		t.Fatalf("verify current code: %v", err)
	}
}

func TestThreeWrongCodesExhaustTheChallenge(t *testing.T) {
	service, _, mailer, _ := newMfaHarness(t)
	ctx := context.Background()

	if _, err := service.Issue(ctx, activeUser("u1", "alice@example.com")); err != nil {
		t.Fatalf("issue: %v", err)
	}

	for i := 0; i < mfaMaxAttempts; i++ {
		if err := service.Verify(ctx, "u1", "WRONG1"); !errors.Is(err, ErrMfaInvalidCode) {
			t.Fatalf("wrong code %d error = %v, want ErrMfaInvalidCode", i+1, err)
		}
	}

	// Even the right code is dead after exhaustion.
	if err := service.Verify(ctx, "u1", mailer.lastCode()); !errors.Is(err, ErrMfaExpired) {
		t.Fatalf("post-exhaustion error = %v, want ErrMfaExpired", err)
	}
}

func TestVerifyReportsAttemptsRemaining(t *testing.T) {
	service, _, _, _ := newMfaHarness(t)
	ctx := context.Background()

	if _, err := service.Issue(ctx, activeUser("u1", "alice@example.com")); err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Each rejection surfaces the count left on the challenge.
	for want := mfaMaxAttempts - 1; want >= 0; want-- {
		err := service.Verify(ctx, "u1", "WRONG1")
		var codeErr *MfaCodeError
		if !errors.As(err, &codeErr) {
			t.Fatalf("wrong code error = %v, want *MfaCodeError", err)
		}
		if codeErr.AttemptsRemaining != want {
			t.Fatalf("attempts remaining = %d, want %d", codeErr.AttemptsRemaining, want)
		}
	}
}

func TestChallengeExpiresAfterOTPLifetime(t *testing.T) {
	service, _, mailer, clock := newMfaHarness(t)
	ctx := context.Background()

	if _, err := service.Issue(ctx, activeUser("u1", "alice@example.com")); err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.Advance(16 * time.Minute)
	if err := service.Verify(ctx, "u1", mailer.lastCode()); !errors.Is(err, ErrMfaExpired) {
		t.Fatalf("expired challenge error = %v, want ErrMfaExpired", err)
	}
}

func TestVerifyWithoutChallengeReportsExpired(t *testing.T) {
	service, _, _, _ := newMfaHarness(t)

	if err := service.Verify(context.Background(), "ghost", "ABC123"); !errors.Is(err, ErrMfaExpired) {
		t.Fatalf("missing challenge error = %v, want ErrMfaExpired", err)
	}
}
