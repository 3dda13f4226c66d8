package port

import (
	"context"

	"github.com/arklim/credential-authority/internal/core/domain"
)

// EventPublisher emits security events for downstream consumers. Publishing
// is best-effort; the authority never fails a request on publish errors.
type EventPublisher interface {
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishAccountCreated(ctx context.Context, event domain.AccountCreatedEvent) error
	PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error
}
