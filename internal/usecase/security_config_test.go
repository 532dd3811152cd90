package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
)

func newConfigHarness(t *testing.T, repo *fakeSecurityConfigRepository) (*SecurityConfigService, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	service := NewSecurityConfigService(repo, &fakeAuditPublisher{}, zaptest.NewLogger(t))
	service.WithClock(clock.fn())
	return service, clock
}

func TestCurrentFallsBackToDefaultsWhenUnset(t *testing.T) {
	service, _ := newConfigHarness(t, &fakeSecurityConfigRepository{})

	cfg := service.Current(context.Background())
	if cfg != domain.DefaultSecurityConfig() {
		t.Fatalf("config = %+v, want defaults", cfg)
	}
}

func TestCurrentServesStaleCacheOnReadFailure(t *testing.T) {
	repo := &fakeSecurityConfigRepository{cfg: &domain.SecurityConfig{JWTLifetime: 20 * time.Minute}}
	service, clock := newConfigHarness(t, repo)
	ctx := context.Background()

	first := service.Current(ctx)
	if first.JWTLifetime != 20*time.Minute {
		t.Fatalf("jwt lifetime = %v, want 20m", first.JWTLifetime)
	}

	repo.err = errors.New("connection refused")
	clock.Advance(time.Minute)

	stale := service.Current(ctx)
	if stale.JWTLifetime != 20*time.Minute {
		t.Fatalf("stale jwt lifetime = %v, want cached 20m", stale.JWTLifetime)
	}
}

func TestCurrentCachesWithinTTL(t *testing.T) {
	repo := &fakeSecurityConfigRepository{cfg: &domain.SecurityConfig{JWTLifetime: 20 * time.Minute}}
	service, clock := newConfigHarness(t, repo)
	ctx := context.Background()

	if got := service.Current(ctx).JWTLifetime; got != 20*time.Minute {
		t.Fatalf("jwt lifetime = %v, want 20m", got)
	}

	// A backend change is invisible until the cache window lapses.
	repo.cfg = &domain.SecurityConfig{JWTLifetime: 45 * time.Minute}
	clock.Advance(10 * time.Second)
	if got := service.Current(ctx).JWTLifetime; got != 20*time.Minute {
		t.Fatalf("jwt lifetime within TTL = %v, want 20m", got)
	}

	clock.Advance(securityConfigCacheTTL)
	if got := service.Current(ctx).JWTLifetime; got != 45*time.Minute {
		t.Fatalf("jwt lifetime after TTL = %v, want 45m", got)
	}
}

func TestUpdatePersistsAndRefreshesCache(t *testing.T) {
	repo := &fakeSecurityConfigRepository{}
	service, _ := newConfigHarness(t, repo)
	ctx := context.Background()

	updated, err := service.Update(ctx, domain.SecurityConfig{JWTLifetime: 10 * time.Minute}, "admin-1")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.JWTLifetime != 10*time.Minute {
		t.Fatalf("jwt lifetime = %v, want 10m", updated.JWTLifetime)
	}
	// Unset fields are normalized to defaults before persisting.
	if updated.MaxFailedAttempts != domain.DefaultSecurityConfig().MaxFailedAttempts {
		t.Fatalf("max failed attempts = %d, want default", updated.MaxFailedAttempts)
	}

	if got := service.Current(ctx).JWTLifetime; got != 10*time.Minute {
		t.Fatalf("cached jwt lifetime = %v, want 10m", got)
	}
	if repo.cfg == nil || repo.cfg.JWTLifetime != 10*time.Minute {
		t.Fatalf("persisted config = %+v, want 10m jwt lifetime", repo.cfg)
	}
}

func TestUpdateRejectsNegativeValues(t *testing.T) {
	service, _ := newConfigHarness(t, &fakeSecurityConfigRepository{})

	_, err := service.Update(context.Background(), domain.SecurityConfig{JWTLifetime: -time.Minute}, "admin-1")
	if err == nil {
		t.Fatal("negative lifetime accepted")
	}
}
