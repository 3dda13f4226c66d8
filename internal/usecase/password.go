package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/credential-authority/internal/core/domain"
	"github.com/arklim/credential-authority/internal/infra/logger"
	"github.com/arklim/credential-authority/internal/infra/security"
	"github.com/arklim/credential-authority/internal/repository"
)

const tempPasswordMaxAttempts = 5

// ChangePasswordInput carries an authenticated password rotation request.
// The current password is re-verified; a session token alone is not enough
// to rotate a credential.
type ChangePasswordInput struct {
	AccountID       string
	CurrentPassword string
	NewPassword     string
	IP              string
}

// ChangePasswordResult summarizes a completed rotation.
type ChangePasswordResult struct {
	AccountID string
	ChangedAt time.Time
}

// ResetPasswordInput carries an administrative temporary-password reset.
type ResetPasswordInput struct {
	ActorID   string
	ActorRole domain.Role
	AccountID string
}

// ResetPasswordResult returns the generated temporary credential. Delivery
// to the account holder is the caller's concern.
type ResetPasswordResult struct {
	AccountID    string
	TempPassword string
	ExpiresAt    time.Time
}

// CheckPolicy evaluates a candidate password for display purposes. The
// result carries every violation, warnings, and the strength band.
func (a *Authority) CheckPolicy(candidate string, class domain.AccountClass) domain.PolicyResult {
	return a.policy.Evaluate(candidate, class)
}

// ChangePassword rotates a credential after verifying the old one. Policy,
// reuse-history, and cooldown checks run in order; the cooldown is skipped
// for forced and temporary-password changes so they are never blocked.
func (a *Authority) ChangePassword(ctx context.Context, input ChangePasswordInput) (*ChangePasswordResult, error) {
	accountID := strings.TrimSpace(input.AccountID)
	if accountID == "" || input.CurrentPassword == "" {
		return nil, ErrInvalidCredentials
	}
	if input.NewPassword == "" {
		return nil, &PolicyViolationError{Result: a.policy.Evaluate("", domain.ClassCustomer)}
	}

	account, err := a.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, a.storeError("lookup account", err)
	}

	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	now := a.now().UTC()
	if account.IsCurrentlyLocked(now) {
		return nil, ErrAccountLocked
	}

	ok, err := a.hasher.Verify(input.CurrentPassword, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify current password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	// The old credential stays one-time-valid for this flow even when the
	// temporary window has lapsed flags-wise; what is enforced here is the
	// cooldown for voluntary changes only.
	forced := account.MustChangePassword || account.IsTemporaryPassword
	if !forced && now.Sub(account.LastPasswordChange) < a.minChangeInterval() {
		return nil, ErrChangeTooSoon
	}

	result := a.policy.Evaluate(input.NewPassword, domain.ClassForRole(account.Role))
	if !result.Accepted {
		a.metrics.ObservePolicyRejection()
		return nil, &PolicyViolationError{Result: result}
	}

	if err := a.checkHistory(input.NewPassword, account); err != nil {
		return nil, err
	}

	digest, err := a.hashSecret(input.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("hash new password: %w", err)
	}

	maxAge := a.passwordMaxAge()
	historyLimit := a.historyLimit()

	updated, err := a.persist(ctx, *account, func(acc *domain.Account) {
		acc.PasswordHash = digest
		acc.RememberPassword(digest, historyLimit)
		acc.MustChangePassword = false
		acc.IsTemporaryPassword = false
		acc.PasswordCreatedAt = now
		acc.LastPasswordChange = now
		acc.PasswordExpiresAt = now.Add(maxAge)
		acc.RecordSuccess()
	})
	if err != nil {
		return nil, err
	}

	a.publishPasswordChanged(ctx, updated, accountID, forced)

	return &ChangePasswordResult{
		AccountID: updated.ID,
		ChangedAt: now,
	}, nil
}

// ResetPassword issues a fresh system-generated temporary password for the
// target account. The operation is privileged: the actor must hold the admin
// role, and no knowledge of the old password is required. Any active lock is
// cleared.
func (a *Authority) ResetPassword(ctx context.Context, input ResetPasswordInput) (*ResetPasswordResult, error) {
	if input.ActorRole != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	accountID := strings.TrimSpace(input.AccountID)
	if accountID == "" {
		return nil, ErrAccountNotFound
	}

	account, err := a.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, a.storeError("lookup account", err)
	}

	tempPassword, err := a.generateTempPassword(domain.ClassForRole(account.Role))
	if err != nil {
		return nil, err
	}

	digest, err := a.hashSecret(tempPassword)
	if err != nil {
		return nil, fmt.Errorf("hash temporary password: %w", err)
	}

	now := a.now().UTC()
	maxAge := a.passwordMaxAge()

	updated, err := a.persist(ctx, *account, func(acc *domain.Account) {
		acc.PasswordHash = digest
		acc.MustChangePassword = true
		acc.IsTemporaryPassword = true
		acc.PasswordCreatedAt = now
		acc.LastPasswordChange = now
		acc.PasswordExpiresAt = now.Add(maxAge)
		acc.RecordSuccess()
	})
	if err != nil {
		return nil, err
	}

	a.publishPasswordReset(ctx, updated, input.ActorID)

	return &ResetPasswordResult{
		AccountID:    updated.ID,
		TempPassword: tempPassword,
		ExpiresAt:    now.Add(a.tempPasswordTTL()),
	}, nil
}

// checkHistory rejects candidates matching the current digest or any of the
// retained history entries.
func (a *Authority) checkHistory(candidate string, account *domain.Account) error {
	if same, err := a.hasher.Verify(candidate, account.PasswordHash); err != nil {
		return fmt.Errorf("compare current password: %w", err)
	} else if same {
		return ErrPasswordReused
	}

	limit := a.historyLimit()
	for i, entry := range account.PasswordHistory {
		if limit > 0 && i >= limit {
			break
		}
		if reused, err := a.hasher.Verify(candidate, entry); err != nil {
			return fmt.Errorf("compare password history: %w", err)
		} else if reused {
			return ErrPasswordReused
		}
	}
	return nil
}

// generateTempPassword draws candidates until one satisfies the policy for
// the target class. The generator guarantees all character classes, so the
// loop exists only to absorb the rare banned-substring collision.
func (a *Authority) generateTempPassword(class domain.AccountClass) (string, error) {
	length := security.DefaultTempPasswordLength
	if a.cfg != nil && a.cfg.Policy.TempPasswordLength > 0 {
		length = a.cfg.Policy.TempPasswordLength
	}

	for attempt := 0; attempt < tempPasswordMaxAttempts; attempt++ {
		candidate, err := security.GenerateTempPassword(length)
		if err != nil {
			return "", fmt.Errorf("generate temporary password: %w", err)
		}
		if a.policy.Evaluate(candidate, class).Accepted {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("could not generate policy-compliant temporary password")
}

func (a *Authority) publishPasswordChanged(ctx context.Context, account *domain.Account, changedBy string, forced bool) {
	if a.events == nil {
		return
	}
	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		AccountID: account.ID,
		ChangedBy: changedBy,
		Forced:    forced,
		ChangedAt: a.now().UTC(),
	}
	if err := a.events.PublishPasswordChanged(ctx, event); err != nil {
		a.logger.Warn("publish password changed failed",
			zap.String("account_id", logger.MaskString(account.ID)), zap.Error(err))
	}
}

func (a *Authority) publishPasswordReset(ctx context.Context, account *domain.Account, resetBy string) {
	if a.events == nil {
		return
	}
	event := domain.PasswordResetEvent{
		EventID:    uuid.NewString(),
		AccountID:  account.ID,
		ResetBy:    resetBy,
		OccurredAt: a.now().UTC(),
	}
	if err := a.events.PublishPasswordReset(ctx, event); err != nil {
		a.logger.Warn("publish password reset failed",
			zap.String("account_id", logger.MaskString(account.ID)), zap.Error(err))
	}
}
