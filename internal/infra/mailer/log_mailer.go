// Package mailer delivers user-facing notifications. The production
// deployment hands messages to a dedicated delivery service; this package
// currently ships a log-backed implementation suitable for development and
// integration environments.
package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/core/port"
	"github.com/mkravts/commerce-platform-auth/internal/infra/logger"
)

// LogMailer writes notifications to the structured log instead of sending
// them. OTP codes are never logged in full.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a mailer backed by the provided logger.
func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{logger: log}
}

// Send records the notification. The OTP body is masked so that codes do not
// end up in log aggregation.
func (m *LogMailer) Send(_ context.Context, n domain.Notification) error {
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.String("recipient", logger.MaskEmail(n.Recipient)),
	}
	if !n.ExpiresAt.IsZero() {
		fields = append(fields, zap.Time("expires_at", n.ExpiresAt.UTC()))
	}
	m.logger.Info("notification dispatched", fields...)
	return nil
}

var _ port.Mailer = (*LogMailer)(nil)
