package port

import (
	"context"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
)

// AuditPublisher hands structured activity entries to the audit collaborator.
// Publishing must never fail a caller's state transition; implementations log
// and drop on error.
type AuditPublisher interface {
	Publish(ctx context.Context, entry domain.AuditEntry) error
}

// Mailer dispatches outbound email triggers. Fire-and-forget from this core's
// perspective: a delivery failure must not roll back the state that prompted
// the send.
type Mailer interface {
	Send(ctx context.Context, notification domain.Notification) error
}
