package port

import (
	"context"
	"time"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
)

// CredentialRepository persists password material for the credential store.
type CredentialRepository interface {
	Get(ctx context.Context, userID string) (*domain.Credential, error)
	// UpdateHash replaces the current hash and records the previous one in the
	// credential history within the same transaction.
	UpdateHash(ctx context.Context, userID, newHash string, changedAt time.Time) error
	ListHistory(ctx context.Context, userID string) ([]domain.CredentialHistory, error)
}
