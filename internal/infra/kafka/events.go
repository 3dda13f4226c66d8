package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/credential-authority/internal/core/domain"
	"github.com/arklim/credential-authority/internal/core/port"
	"github.com/arklim/credential-authority/internal/infra/config"
)

const schemaVersion = "1.0"

// Event type names double as topic suffixes under the configured prefix.
const (
	eventLoginSucceeded  = "authority.login.succeeded"
	eventLoginFailed     = "authority.login.failed"
	eventAccountLocked   = "authority.account.locked"
	eventPasswordChanged = "authority.password.changed"
	eventAccountCreated  = "authority.account.created"
	eventPasswordReset   = "authority.password.reset"
)

// EventPublisher implements port.EventPublisher on top of Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed security event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	AccountID string           `json:"account_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(accountID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLoginSucceeded publishes authority.login.succeeded events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		AccountID  string         `json:"account_id"`
		Role       string         `json:"role"`
		OccurredAt time.Time      `json:"occurred_at"`
		IP         *string        `json:"ip_address,omitempty"`
		UserAgent  *string        `json:"user_agent,omitempty"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:  event.AccountID,
		Role:       string(event.Role),
		OccurredAt: event.OccurredAt.UTC(),
		IP:         event.IP,
		UserAgent:  event.UserAgent,
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventLoginSucceeded, event.AccountID, event.OccurredAt, payload)
}

// PublishLoginFailed publishes authority.login.failed events.
func (p *EventPublisher) PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error {
	payload := struct {
		AccountID      string         `json:"account_id"`
		Reason         string         `json:"reason"`
		FailedAttempts int            `json:"failed_attempts"`
		OccurredAt     time.Time      `json:"occurred_at"`
		IP             *string        `json:"ip_address,omitempty"`
		Metadata       map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:      event.AccountID,
		Reason:         event.Reason,
		FailedAttempts: event.FailedAttempts,
		OccurredAt:     event.OccurredAt.UTC(),
		IP:             event.IP,
		Metadata:       event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventLoginFailed, event.AccountID, event.OccurredAt, payload)
}

// PublishAccountLocked publishes authority.account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		AccountID   string         `json:"account_id"`
		LockedUntil time.Time      `json:"locked_until"`
		Attempts    int            `json:"attempts"`
		OccurredAt  time.Time      `json:"occurred_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:   event.AccountID,
		LockedUntil: event.LockedUntil.UTC(),
		Attempts:    event.Attempts,
		OccurredAt:  event.OccurredAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventAccountLocked, event.AccountID, event.OccurredAt, payload)
}

// PublishPasswordChanged publishes authority.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID string         `json:"account_id"`
		ChangedBy string         `json:"changed_by"`
		Forced    bool           `json:"forced"`
		ChangedAt time.Time      `json:"changed_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		AccountID: event.AccountID,
		ChangedBy: event.ChangedBy,
		Forced:    event.Forced,
		ChangedAt: event.ChangedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventPasswordChanged, event.AccountID, event.ChangedAt, payload)
}

// PublishAccountCreated publishes authority.account.created events.
func (p *EventPublisher) PublishAccountCreated(ctx context.Context, event domain.AccountCreatedEvent) error {
	payload := struct {
		AccountID string         `json:"account_id"`
		Role      string         `json:"role"`
		CreatedBy string         `json:"created_by"`
		CreatedAt time.Time      `json:"created_at"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		AccountID: event.AccountID,
		Role:      string(event.Role),
		CreatedBy: event.CreatedBy,
		CreatedAt: event.CreatedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventAccountCreated, event.AccountID, event.CreatedAt, payload)
}

// PublishPasswordReset publishes authority.password.reset events. The
// payload never carries the temporary password itself.
func (p *EventPublisher) PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error {
	payload := struct {
		AccountID  string         `json:"account_id"`
		ResetBy    string         `json:"reset_by"`
		OccurredAt time.Time      `json:"occurred_at"`
		Metadata   map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:  event.AccountID,
		ResetBy:    event.ResetBy,
		OccurredAt: event.OccurredAt.UTC(),
		Metadata:   event.Metadata,
	}

	return p.publish(ctx, event.EventID, eventPasswordReset, event.AccountID, event.OccurredAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
