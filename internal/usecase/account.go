package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/credential-authority/internal/core/domain"
	"github.com/arklim/credential-authority/internal/core/port"
	"github.com/arklim/credential-authority/internal/infra/logger"
	"github.com/arklim/credential-authority/internal/repository"
)

// CreateAccountInput carries an administrative provisioning request.
// AccountID is optional; a random identifier is assigned when empty.
type CreateAccountInput struct {
	ActorID   string
	ActorRole domain.Role
	AccountID string
	Role      domain.Role
}

// CreateAccountResult returns the provisioned account plus the generated
// temporary credential the holder must rotate on first login.
type CreateAccountResult struct {
	Account      domain.Account
	TempPassword string
}

// CreateAccount provisions a new account with a system-generated temporary
// password. Privileged: the actor must hold the admin role.
func (a *Authority) CreateAccount(ctx context.Context, input CreateAccountInput) (*CreateAccountResult, error) {
	if input.ActorRole != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if !input.Role.Valid() {
		return nil, fmt.Errorf("invalid account role %q", input.Role)
	}

	accountID := strings.TrimSpace(input.AccountID)
	if accountID == "" {
		accountID = uuid.NewString()
	}

	tempPassword, err := a.generateTempPassword(domain.ClassForRole(input.Role))
	if err != nil {
		return nil, err
	}

	digest, err := a.hashSecret(tempPassword)
	if err != nil {
		return nil, fmt.Errorf("hash temporary password: %w", err)
	}

	now := a.now().UTC()

	account := domain.Account{
		ID:                  accountID,
		Role:                input.Role,
		PasswordHash:        digest,
		IsActive:            true,
		MustChangePassword:  true,
		IsTemporaryPassword: true,
		PasswordCreatedAt:   now,
		LastPasswordChange:  now,
		PasswordExpiresAt:   now.Add(a.passwordMaxAge()),
		CreatedAt:           now,
		CreatedBy:           stringPtrOrNil(input.ActorID),
	}

	if err := a.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, ErrAccountExists
		}
		return nil, a.storeError("create account", err)
	}

	a.publishAccountCreated(ctx, &account, input.ActorID)

	return &CreateAccountResult{
		Account:      account.Sanitized(),
		TempPassword: tempPassword,
	}, nil
}

// GetAccount fetches an account for administrative inspection. Unlike the
// authentication boundary, absence surfaces distinctly here.
func (a *Authority) GetAccount(ctx context.Context, actorRole domain.Role, accountID string) (*domain.Account, error) {
	if actorRole != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	account, err := a.accounts.GetByID(ctx, strings.TrimSpace(accountID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, a.storeError("lookup account", err)
	}

	sanitized := account.Sanitized()
	return &sanitized, nil
}

// ListAccounts returns accounts matching the filter, for administrative
// listings only; the authentication hot path never scans.
func (a *Authority) ListAccounts(ctx context.Context, actorRole domain.Role, filter port.AccountFilter) ([]domain.Account, error) {
	if actorRole != domain.RoleAdmin {
		return nil, ErrForbidden
	}

	accounts, err := a.accounts.List(ctx, filter)
	if err != nil {
		return nil, a.storeError("list accounts", err)
	}

	sanitized := make([]domain.Account, 0, len(accounts))
	for _, account := range accounts {
		sanitized = append(sanitized, account.Sanitized())
	}
	return sanitized, nil
}

func (a *Authority) publishAccountCreated(ctx context.Context, account *domain.Account, createdBy string) {
	if a.events == nil {
		return
	}
	event := domain.AccountCreatedEvent{
		EventID:   uuid.NewString(),
		AccountID: account.ID,
		Role:      account.Role,
		CreatedBy: createdBy,
		CreatedAt: account.CreatedAt,
	}
	if err := a.events.PublishAccountCreated(ctx, event); err != nil {
		a.logger.Warn("publish account created failed",
			zap.String("account_id", logger.MaskString(account.ID)), zap.Error(err))
	}
}
