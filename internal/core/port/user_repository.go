package port

import (
	"context"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
)

// UserRepository exposes the slice of the user registry this subsystem needs.
// The registry itself (registration, profile data) is owned elsewhere.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error
	TouchLastLogin(ctx context.Context, id string) error
}
