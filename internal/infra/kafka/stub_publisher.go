package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/core/port"
)

// StubPublisher logs audit entries instead of sending them to Kafka. Used
// when brokers are not configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly audit publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

// Publish logs the entry at info level.
func (p *StubPublisher) Publish(_ context.Context, entry domain.AuditEntry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	fields := []zap.Field{
		zap.String("action", entry.Action),
		zap.String("detail", entry.Detail),
		zap.Time("timestamp", at.UTC()),
	}
	if entry.ActorID != nil {
		fields = append(fields, zap.String("actor_id", *entry.ActorID))
	}
	if entry.IP != nil {
		fields = append(fields, zap.String("ip", *entry.IP))
	}

	p.logger.Info("audit entry", fields...)
	return nil
}

var _ port.AuditPublisher = (*StubPublisher)(nil)
