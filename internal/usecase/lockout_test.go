package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
)

type lockoutHarness struct {
	lockout  *LockoutService
	users    *fakeUserRepository
	attempts *fakeFailedAttemptRepository
	clock    *testClock
}

func newLockoutHarness(t *testing.T, users ...domain.User) *lockoutHarness {
	t.Helper()

	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	log := zaptest.NewLogger(t)

	userRepo := newFakeUserRepository(users...)
	attemptRepo := newFakeFailedAttemptRepository(userRepo, clock.fn())

	configService := NewSecurityConfigService(&fakeSecurityConfigRepository{}, nil, log)
	configService.WithClock(clock.fn())

	service := NewLockoutService(userRepo, attemptRepo, configService, &fakeAuditPublisher{}, log)
	service.WithClock(clock.fn())

	return &lockoutHarness{lockout: service, users: userRepo, attempts: attemptRepo, clock: clock}
}

func TestRecordFailureLocksAtConfiguredThreshold(t *testing.T) {
	user := activeUser("u1", "alice@example.com")
	h := newLockoutHarness(t, user)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		decision, err := h.lockout.RecordFailure(ctx, user, nil, nil)
		if err != nil {
			t.Fatalf("record failure %d: %v", i+1, err)
		}
		if decision.Locked {
			t.Fatalf("locked after %d failures", i+1)
		}
	}

	decision, err := h.lockout.RecordFailure(ctx, user, nil, nil)
	if err != nil {
		t.Fatalf("record fifth failure: %v", err)
	}
	if !decision.Locked || decision.Permanent {
		t.Fatalf("decision = %+v, want temporary lock", decision)
	}

	locked, err := h.users.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if locked.Status != domain.UserStatusLockedTemporary {
		t.Fatalf("status = %q, want locked_temporary", locked.Status)
	}
}

func TestRecordFailureHonorsPerUserThresholdOverride(t *testing.T) {
	user := activeUser("u1", "alice@example.com")
	h := newLockoutHarness(t, user)
	ctx := context.Background()

	override := 3
	var decision domain.LockoutDecision
	var err error
	for i := 0; i < 3; i++ {
		decision, err = h.lockout.RecordFailure(ctx, user, &override, nil)
		if err != nil {
			t.Fatalf("record failure %d: %v", i+1, err)
		}
	}
	if !decision.Locked {
		t.Fatalf("decision = %+v, want lock at overridden threshold 3", decision)
	}
	if decision.Threshold != 3 {
		t.Fatalf("threshold = %d, want 3", decision.Threshold)
	}
}

func TestClearResolvesOpenWindow(t *testing.T) {
	user := activeUser("u1", "alice@example.com")
	h := newLockoutHarness(t, user)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := h.lockout.RecordFailure(ctx, user, nil, nil); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}
	if err := h.lockout.Clear(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	// The counter restarts: four more failures still do not lock.
	for i := 0; i < 4; i++ {
		decision, err := h.lockout.RecordFailure(ctx, user, nil, nil)
		if err != nil {
			t.Fatalf("record failure: %v", err)
		}
		if decision.Locked {
			t.Fatalf("locked after %d post-clear failures", i+1)
		}
	}
}

func TestClearWithoutOpenWindowIsANoOp(t *testing.T) {
	h := newLockoutHarness(t, activeUser("u1", "alice@example.com"))

	if err := h.lockout.Clear(context.Background(), "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
}

func TestAdminUnlockRestoresAccount(t *testing.T) {
	user := activeUser("u1", "alice@example.com")
	h := newLockoutHarness(t, user)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := h.lockout.RecordFailure(ctx, user, nil, nil); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	if err := h.lockout.AdminUnlock(ctx, "u1", "admin-1"); err != nil {
		t.Fatalf("admin unlock: %v", err)
	}

	restored, err := h.users.GetByID(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if restored.Status != domain.UserStatusActive {
		t.Fatalf("status = %q, want active", restored.Status)
	}
}

func TestAdminUnlockUnknownUser(t *testing.T) {
	h := newLockoutHarness(t)

	err := h.lockout.AdminUnlock(context.Background(), "ghost", "admin-1")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("error = %v, want ErrUserNotFound", err)
	}
}
