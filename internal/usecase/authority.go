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
	"github.com/arklim/credential-authority/internal/core/port"
	"github.com/arklim/credential-authority/internal/infra/config"
	"github.com/arklim/credential-authority/internal/infra/logger"
	"github.com/arklim/credential-authority/internal/infra/telemetry"
	"github.com/arklim/credential-authority/internal/repository"
)

const (
	defaultHistoryLimit      = 5
	defaultLockThreshold     = 3
	defaultLockDuration      = 15 * time.Minute
	defaultPasswordMaxAge    = 90 * 24 * time.Hour
	defaultTempPasswordTTL   = 24 * time.Hour
	defaultMinChangeInterval = 7 * 24 * time.Hour

	loginFailureBadPassword = "bad_password"
)

// LoginStatus distinguishes a full session grant from the forced-change
// outcome that withholds a token.
type LoginStatus string

const (
	// LoginStatusIssued means credentials verified and a token was minted.
	LoginStatusIssued LoginStatus = "issued"
	// LoginStatusMustChangePassword means credentials verified but the
	// password is stale, temporary, or flagged; no token is issued and the
	// caller must complete the change-password flow.
	LoginStatusMustChangePassword LoginStatus = "must_change_password"
)

// LoginInput carries a presented credential pair plus request metadata.
type LoginInput struct {
	AccountID string
	Password  string
	IP        string
	UserAgent string
}

// LoginResult is the outcome of a successful authentication.
type LoginResult struct {
	Status         LoginStatus
	Token          string
	TokenExpiresAt time.Time
	Account        domain.Account
}

// Authority orchestrates credential verification, lockout tracking, policy
// freshness checks, and token issuance for the account store.
type Authority struct {
	cfg      *config.AppConfig
	accounts port.AccountRepository
	hasher   port.PasswordHasher
	policy   port.PasswordPolicy
	issuer   port.TokenIssuer
	verifier port.TokenVerifier
	events   port.EventPublisher
	logger   *zap.Logger
	metrics  *telemetry.Provider
	now      func() time.Time
}

// NewAuthority constructs the credential authority.
func NewAuthority(
	cfg *config.AppConfig,
	accounts port.AccountRepository,
	hasher port.PasswordHasher,
	policy port.PasswordPolicy,
	issuer port.TokenIssuer,
	verifier port.TokenVerifier,
	events port.EventPublisher,
	logger *zap.Logger,
) (*Authority, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if policy == nil {
		return nil, fmt.Errorf("password policy is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Authority{
		cfg:      cfg,
		accounts: accounts,
		hasher:   hasher,
		policy:   policy,
		issuer:   issuer,
		verifier: verifier,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// WithClock overrides the authority clock, primarily for tests.
func (a *Authority) WithClock(now func() time.Time) *Authority {
	if now != nil {
		a.now = now
	}
	return a
}

// WithMetrics attaches the service metrics provider. All observations are
// nil-safe, so the authority works unchanged without one.
func (a *Authority) WithMetrics(metrics *telemetry.Provider) *Authority {
	a.metrics = metrics
	return a
}

// Login drives the authentication state machine: locate the account, check
// the lock, verify the hash, evaluate credential freshness, and issue a
// token. Unknown accounts and wrong passwords are indistinguishable to the
// caller.
func (a *Authority) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	accountID := strings.TrimSpace(input.AccountID)
	if accountID == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	account, err := a.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			a.metrics.ObserveLogin("rejected")
			return nil, ErrInvalidCredentials
		}
		return nil, a.storeError("lookup account", err)
	}

	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	now := a.now().UTC()

	// Locked accounts are rejected before the password is evaluated so the
	// response cannot reveal whether the password would have matched.
	if account.IsCurrentlyLocked(now) {
		a.metrics.ObserveLogin("locked")
		return nil, ErrAccountLocked
	}

	ok, err := a.hasher.Verify(input.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		updated, persistErr := a.persist(ctx, *account, func(acc *domain.Account) {
			acc.RecordFailure(now, a.lockThreshold(), a.lockDuration())
		})
		if persistErr != nil {
			a.logger.Warn("persist failed login attempt",
				zap.String("account_id", logger.MaskString(accountID)), zap.Error(persistErr))
		} else {
			a.publishLoginFailed(ctx, updated, input.IP)
			if updated.IsLocked {
				a.metrics.ObserveLockout()
				a.publishAccountLocked(ctx, updated)
			}
		}
		a.metrics.ObserveLogin("rejected")
		return nil, ErrInvalidCredentials
	}

	if account.TemporaryPasswordExpired(now, a.tempPasswordTTL()) {
		return nil, ErrTemporaryPasswordExpired
	}

	// Any successful verification resets the failure counter, even when a
	// forced change withholds the token.
	account, err = a.persist(ctx, *account, func(acc *domain.Account) {
		acc.RecordSuccess()
	})
	if err != nil {
		return nil, err
	}

	if account.RequiresPasswordChange(now) {
		a.metrics.ObserveLogin("must_change")
		return &LoginResult{
			Status:  LoginStatusMustChangePassword,
			Account: account.Sanitized(),
		}, nil
	}

	if a.issuer == nil {
		return nil, fmt.Errorf("token issuer not configured")
	}

	token, expiresAt, err := a.issuer.Issue(account.ID, account.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	a.metrics.ObserveLogin("issued")
	a.publishLoginSucceeded(ctx, account, input.IP, input.UserAgent)

	return &LoginResult{
		Status:         LoginStatusIssued,
		Token:          token,
		TokenExpiresAt: expiresAt,
		Account:        account.Sanitized(),
	}, nil
}

// VerifyToken validates a bearer token and recovers its claims.
func (a *Authority) VerifyToken(token string) (*port.SessionClaims, error) {
	if a.verifier == nil {
		return nil, fmt.Errorf("token verifier not configured")
	}
	return a.verifier.Verify(token)
}

// persist applies mutate to the account and writes it back keyed on the
// version read. On a conflict it re-fetches once, re-applies the mutation to
// the fresh record, and retries; a second conflict surfaces as fatal.
func (a *Authority) persist(ctx context.Context, account domain.Account, mutate func(*domain.Account)) (*domain.Account, error) {
	mutate(&account)

	updated, err := a.accounts.Update(ctx, account, account.Version)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, repository.ErrConflict) {
		return nil, a.storeError("update account", err)
	}

	fresh, err := a.accounts.GetByID(ctx, account.ID)
	if err != nil {
		return nil, a.storeError("refetch account", err)
	}

	mutate(fresh)

	updated, err = a.accounts.Update(ctx, *fresh, fresh.Version)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: account %s", ErrStoreConflict, account.ID)
		}
		return nil, a.storeError("update account", err)
	}

	return updated, nil
}

// hashSecret derives a digest, timing the derivation for the hash metric.
func (a *Authority) hashSecret(password string) (string, error) {
	start := time.Now()
	digest, err := a.hasher.Hash(password)
	a.metrics.ObserveHashDuration(time.Since(start).Seconds())
	return digest, err
}

func (a *Authority) storeError(op string, err error) error {
	if errors.Is(err, repository.ErrUnavailable) {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (a *Authority) lockThreshold() int {
	if a.cfg != nil && a.cfg.Lockout.MaxFailedAttempts > 0 {
		return a.cfg.Lockout.MaxFailedAttempts
	}
	return defaultLockThreshold
}

func (a *Authority) lockDuration() time.Duration {
	if a.cfg != nil && a.cfg.Lockout.LockDuration > 0 {
		return a.cfg.Lockout.LockDuration
	}
	return defaultLockDuration
}

func (a *Authority) historyLimit() int {
	if a.cfg != nil && a.cfg.Policy.HistoryLimit > 0 {
		return a.cfg.Policy.HistoryLimit
	}
	return defaultHistoryLimit
}

func (a *Authority) passwordMaxAge() time.Duration {
	if a.cfg != nil && a.cfg.Policy.PasswordMaxAge > 0 {
		return a.cfg.Policy.PasswordMaxAge
	}
	return defaultPasswordMaxAge
}

func (a *Authority) tempPasswordTTL() time.Duration {
	if a.cfg != nil && a.cfg.Policy.TempPasswordTTL > 0 {
		return a.cfg.Policy.TempPasswordTTL
	}
	return defaultTempPasswordTTL
}

func (a *Authority) minChangeInterval() time.Duration {
	if a.cfg != nil && a.cfg.Policy.MinChangeInterval > 0 {
		return a.cfg.Policy.MinChangeInterval
	}
	return defaultMinChangeInterval
}

func (a *Authority) publishLoginSucceeded(ctx context.Context, account *domain.Account, ip, userAgent string) {
	if a.events == nil {
		return
	}
	event := domain.LoginSucceededEvent{
		EventID:    uuid.NewString(),
		AccountID:  account.ID,
		Role:       account.Role,
		OccurredAt: a.now().UTC(),
		IP:         stringPtrOrNil(ip),
		UserAgent:  stringPtrOrNil(userAgent),
	}
	if err := a.events.PublishLoginSucceeded(ctx, event); err != nil {
		a.logger.Warn("publish login succeeded failed",
			zap.String("account_id", logger.MaskString(account.ID)), zap.Error(err))
	}
}

func (a *Authority) publishLoginFailed(ctx context.Context, account *domain.Account, ip string) {
	if a.events == nil {
		return
	}
	event := domain.LoginFailedEvent{
		EventID:        uuid.NewString(),
		AccountID:      account.ID,
		Reason:         loginFailureBadPassword,
		FailedAttempts: account.FailedAttempts,
		OccurredAt:     a.now().UTC(),
		IP:             stringPtrOrNil(ip),
	}
	if err := a.events.PublishLoginFailed(ctx, event); err != nil {
		a.logger.Warn("publish login failed event failed",
			zap.String("account_id", logger.MaskString(account.ID)), zap.Error(err))
	}
}

func (a *Authority) publishAccountLocked(ctx context.Context, account *domain.Account) {
	if a.events == nil || account.LockedUntil == nil {
		return
	}
	event := domain.AccountLockedEvent{
		EventID:     uuid.NewString(),
		AccountID:   account.ID,
		LockedUntil: *account.LockedUntil,
		Attempts:    account.FailedAttempts,
		OccurredAt:  a.now().UTC(),
	}
	if err := a.events.PublishAccountLocked(ctx, event); err != nil {
		a.logger.Warn("publish account locked failed",
			zap.String("account_id", logger.MaskString(account.ID)), zap.Error(err))
	}
}

func stringPtrOrNil(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
