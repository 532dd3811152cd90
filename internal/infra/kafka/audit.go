package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkravts/commerce-platform-auth/internal/core/domain"
	"github.com/mkravts/commerce-platform-auth/internal/core/port"
	"github.com/mkravts/commerce-platform-auth/internal/infra/config"
)

const schemaVersion = "1.0"

// AuditPublisher implements port.AuditPublisher on top of Kafka.
type AuditPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewAuditPublisher constructs a Kafka-backed audit publisher.
func NewAuditPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *AuditPublisher {
	return &AuditPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type auditEnvelope struct {
	EventID     string    `json:"event_id"`
	Action      string    `json:"action"`
	ActorID     *string   `json:"actor_id,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	IP          *string   `json:"ip,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Version     string    `json:"version"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
}

// Publish serializes the entry and hands it to the async producer.
func (p *AuditPublisher) Publish(ctx context.Context, entry domain.AuditEntry) error {
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	id := entry.EventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := auditEnvelope{
		EventID:     id,
		Action:      entry.Action,
		ActorID:     entry.ActorID,
		Detail:      entry.Detail,
		IP:          entry.IP,
		Timestamp:   at.UTC(),
		Version:     schemaVersion,
		Service:     p.appCfg.Name,
		Environment: p.appCfg.Env,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal audit envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.Topic(),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.AuditPublisher = (*AuditPublisher)(nil)
