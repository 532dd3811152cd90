package port

import (
	"context"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
)

// SecurityConfigRepository persists the singleton tunable parameter set.
// Get returns repository.ErrNotFound when no row has ever been written.
type SecurityConfigRepository interface {
	Get(ctx context.Context) (*domain.SecurityConfig, error)
	Upsert(ctx context.Context, cfg domain.SecurityConfig) error
}
