package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/credential-authority/internal/core/domain"
	"github.com/arklim/credential-authority/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishLoginSucceeded logs authority.login.succeeded events.
func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	payload := map[string]any{
		"account_id":  event.AccountID,
		"role":        event.Role,
		"occurred_at": event.OccurredAt,
		"ip_address":  event.IP,
		"user_agent":  event.UserAgent,
		"metadata":    event.Metadata,
	}
	p.logEvent(eventLoginSucceeded, event.AccountID, event.OccurredAt, payload)
	return nil
}

// PublishLoginFailed logs authority.login.failed events.
func (p *StubPublisher) PublishLoginFailed(_ context.Context, event domain.LoginFailedEvent) error {
	payload := map[string]any{
		"account_id":      event.AccountID,
		"reason":          event.Reason,
		"failed_attempts": event.FailedAttempts,
		"occurred_at":     event.OccurredAt,
		"ip_address":      event.IP,
		"metadata":        event.Metadata,
	}
	p.logEvent(eventLoginFailed, event.AccountID, event.OccurredAt, payload)
	return nil
}

// PublishAccountLocked logs authority.account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	payload := map[string]any{
		"account_id":   event.AccountID,
		"locked_until": event.LockedUntil,
		"attempts":     event.Attempts,
		"occurred_at":  event.OccurredAt,
		"metadata":     event.Metadata,
	}
	p.logEvent(eventAccountLocked, event.AccountID, event.OccurredAt, payload)
	return nil
}

// PublishPasswordChanged logs authority.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"changed_by": event.ChangedBy,
		"forced":     event.Forced,
		"changed_at": event.ChangedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent(eventPasswordChanged, event.AccountID, event.ChangedAt, payload)
	return nil
}

// PublishAccountCreated logs authority.account.created events.
func (p *StubPublisher) PublishAccountCreated(_ context.Context, event domain.AccountCreatedEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"role":       event.Role,
		"created_by": event.CreatedBy,
		"created_at": event.CreatedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent(eventAccountCreated, event.AccountID, event.CreatedAt, payload)
	return nil
}

// PublishPasswordReset logs authority.password.reset events.
func (p *StubPublisher) PublishPasswordReset(_ context.Context, event domain.PasswordResetEvent) error {
	payload := map[string]any{
		"account_id":  event.AccountID,
		"reset_by":    event.ResetBy,
		"occurred_at": event.OccurredAt,
		"metadata":    event.Metadata,
	}
	p.logEvent(eventPasswordReset, event.AccountID, event.OccurredAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
