package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arklim/credential-authority/internal/core/domain"
	"github.com/arklim/credential-authority/internal/core/port"
	"github.com/arklim/credential-authority/internal/infra/config"
	"github.com/arklim/credential-authority/internal/infra/security"
	"github.com/arklim/credential-authority/internal/repository"
)

// memoryAccountRepo is an in-memory AccountRepository with fault injection
// hooks for store failures and optimistic-concurrency conflicts.
type memoryAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]domain.Account

	getErr       error
	conflictNext int
	updateCalls  int
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{accounts: make(map[string]domain.Account)}
}

func (r *memoryAccountRepo) put(account domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account.Version == 0 {
		account.Version = 1
	}
	r.accounts[account.ID] = account
}

func (r *memoryAccountRepo) get(id string) domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id]
}

func (r *memoryAccountRepo) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[account.ID]; exists {
		return repository.ErrAlreadyExists
	}
	account.Version = 1
	r.accounts[account.ID] = account
	return nil
}

func (r *memoryAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := account
	copied.PasswordHistory = append([]string(nil), account.PasswordHistory...)
	return &copied, nil
}

func (r *memoryAccountRepo) Update(_ context.Context, account domain.Account, expectedVersion int64) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.conflictNext > 0 {
		r.conflictNext--
		return nil, repository.ErrConflict
	}
	stored, ok := r.accounts[account.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return nil, repository.ErrConflict
	}
	account.Version = stored.Version + 1
	r.accounts[account.ID] = account
	copied := account
	copied.PasswordHistory = append([]string(nil), account.PasswordHistory...)
	return &copied, nil
}

func (r *memoryAccountRepo) List(_ context.Context, filter port.AccountFilter) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		if filter.Role != nil && account.Role != *filter.Role {
			continue
		}
		out = append(out, account)
	}
	return out, nil
}

// recordingPublisher captures the event types emitted during a flow.
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) record(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, name)
}

func (p *recordingPublisher) seen(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, event := range p.events {
		if event == name {
			return true
		}
	}
	return false
}

func (p *recordingPublisher) PublishLoginSucceeded(context.Context, domain.LoginSucceededEvent) error {
	p.record("login_succeeded")
	return nil
}

func (p *recordingPublisher) PublishLoginFailed(context.Context, domain.LoginFailedEvent) error {
	p.record("login_failed")
	return nil
}

func (p *recordingPublisher) PublishAccountLocked(context.Context, domain.AccountLockedEvent) error {
	p.record("account_locked")
	return nil
}

func (p *recordingPublisher) PublishPasswordChanged(context.Context, domain.PasswordChangedEvent) error {
	p.record("password_changed")
	return nil
}

func (p *recordingPublisher) PublishAccountCreated(context.Context, domain.AccountCreatedEvent) error {
	p.record("account_created")
	return nil
}

func (p *recordingPublisher) PublishPasswordReset(context.Context, domain.PasswordResetEvent) error {
	p.record("password_reset")
	return nil
}

type authorityFixture struct {
	authority *Authority
	repo      *memoryAccountRepo
	events    *recordingPublisher
	hasher    *security.Hasher
	now       time.Time
}

func newAuthorityFixture(t *testing.T) *authorityFixture {
	t.Helper()

	hasher, err := security.NewHasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("failed to build hasher: %v", err)
	}

	tokens, err := security.NewTokenService(
		[]byte("0123456789abcdef0123456789abcdef"), "credential-authority", time.Hour)
	if err != nil {
		t.Fatalf("failed to build token service: %v", err)
	}

	repo := newMemoryAccountRepo()
	events := &recordingPublisher{}
	policy := security.NewPolicyEngine(security.DefaultPolicyConfig())

	cfg := &config.AppConfig{}
	cfg.Lockout.MaxFailedAttempts = 3
	cfg.Lockout.LockDuration = 15 * time.Minute
	cfg.Policy.HistoryLimit = 5
	cfg.Policy.PasswordMaxAge = 90 * 24 * time.Hour
	cfg.Policy.TempPasswordTTL = 24 * time.Hour
	cfg.Policy.MinChangeInterval = 7 * 24 * time.Hour

	authority, err := NewAuthority(cfg, repo, hasher, policy, tokens, tokens, events, nil)
	if err != nil {
		t.Fatalf("failed to build authority: %v", err)
	}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	authority.WithClock(func() time.Time { return now })

	return &authorityFixture{
		authority: authority,
		repo:      repo,
		events:    events,
		hasher:    hasher,
		now:       now,
	}
}

func (f *authorityFixture) advance(t *testing.T, d time.Duration) {
	t.Helper()
	f.now = f.now.Add(d)
	frozen := f.now
	f.authority.WithClock(func() time.Time { return frozen })
}

// seedAccount stores an active account with the given password hashed for real.
func (f *authorityFixture) seedAccount(t *testing.T, id, password string, mutate func(*domain.Account)) {
	t.Helper()

	digest, err := f.hasher.Hash(password)
	if err != nil {
		t.Fatalf("failed to hash seed password: %v", err)
	}

	account := domain.Account{
		ID:                 id,
		Role:               domain.RoleCustomer,
		PasswordHash:       digest,
		IsActive:           true,
		PasswordCreatedAt:  f.now.Add(-time.Hour),
		LastPasswordChange: f.now.Add(-30 * 24 * time.Hour),
		PasswordExpiresAt:  f.now.Add(60 * 24 * time.Hour),
		CreatedAt:          f.now.Add(-time.Hour),
	}
	account.RememberPassword(digest, 5)
	if mutate != nil {
		mutate(&account)
	}
	f.repo.put(account)
}

func TestLogin_Success(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Corr3ct!horse", nil)

	result, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1",
		Password:  "Corr3ct!horse",
		IP:        "198.51.100.7",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Status != LoginStatusIssued {
		t.Fatalf("expected issued status, got %s", result.Status)
	}
	if result.Token == "" {
		t.Fatalf("expected a session token")
	}
	if result.Account.PasswordHash != "" || result.Account.PasswordHistory != nil {
		t.Fatalf("expected sanitized account in result")
	}

	claims, err := f.authority.VerifyToken(result.Token)
	if err != nil {
		t.Fatalf("token verification failed: %v", err)
	}
	if claims.AccountID != "acct-1" || claims.Role != domain.RoleCustomer {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if !f.events.seen("login_succeeded") {
		t.Fatalf("expected login_succeeded event")
	}
}

func TestLogin_UnknownAccountAndWrongPasswordIndistinguishable(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Corr3ct!horse", nil)

	_, missingErr := f.authority.Login(context.Background(), LoginInput{
		AccountID: "no-such-account", Password: "whatever!X7",
	})
	_, wrongErr := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "wrong-password!X7",
	})

	if !errors.Is(missingErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown account, got %v", missingErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", wrongErr)
	}
}

func TestLogin_EmptyInput(t *testing.T) {
	f := newAuthorityFixture(t)

	for _, input := range []LoginInput{
		{},
		{AccountID: "acct-1"},
		{Password: "secret"},
		{AccountID: "   ", Password: "secret"},
	} {
		if _, err := f.authority.Login(context.Background(), input); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for %+v, got %v", input, err)
		}
	}
}

func TestLogin_LockoutEngagesAtThreshold(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Corr3ct!horse", nil)

	for i := 0; i < 3; i++ {
		if _, err := f.authority.Login(context.Background(), LoginInput{
			AccountID: "acct-1", Password: "wrong-password!X7",
		}); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	stored := f.repo.get("acct-1")
	if !stored.IsLocked || stored.FailedAttempts != 3 {
		t.Fatalf("expected lock after 3 failures, got %+v", stored)
	}
	if !f.events.seen("account_locked") {
		t.Fatalf("expected account_locked event")
	}

	// The correct password is rejected while the lock holds, with the
	// dedicated sentinel for the transport layer to conflate.
	if _, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "Corr3ct!horse",
	}); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestLogin_LockExpiresAutomatically(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Corr3ct!horse", nil)

	for i := 0; i < 3; i++ {
		_, _ = f.authority.Login(context.Background(), LoginInput{
			AccountID: "acct-1", Password: "wrong-password!X7",
		})
	}

	f.advance(t, 16*time.Minute)

	result, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "Corr3ct!horse",
	})
	if err != nil {
		t.Fatalf("expected login after lock expiry, got %v", err)
	}
	if result.Status != LoginStatusIssued {
		t.Fatalf("expected issued status, got %s", result.Status)
	}

	stored := f.repo.get("acct-1")
	if stored.IsLocked || stored.FailedAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("expected lock state cleared after success, got %+v", stored)
	}
}

func TestLogin_FailureCounterResetsOnSuccess(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Corr3ct!horse", nil)

	for i := 0; i < 2; i++ {
		_, _ = f.authority.Login(context.Background(), LoginInput{
			AccountID: "acct-1", Password: "wrong-password!X7",
		})
	}
	if _, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "Corr3ct!horse",
	}); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if stored := f.repo.get("acct-1"); stored.FailedAttempts != 0 {
		t.Fatalf("expected counter reset, got %d", stored.FailedAttempts)
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Corr3ct!horse", func(acc *domain.Account) {
		acc.IsActive = false
	})

	if _, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "Corr3ct!horse",
	}); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestLogin_MustChangePasswordWithholdsToken(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Corr3ct!horse", func(acc *domain.Account) {
		acc.MustChangePassword = true
	})

	result, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "Corr3ct!horse",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Status != LoginStatusMustChangePassword {
		t.Fatalf("expected must-change status, got %s", result.Status)
	}
	if result.Token != "" {
		t.Fatalf("no token may be issued before the forced change")
	}
}

func TestLogin_ExpiredPasswordForcesChange(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Corr3ct!horse", func(acc *domain.Account) {
		acc.PasswordExpiresAt = f.now.Add(-time.Hour)
	})

	result, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "Corr3ct!horse",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Status != LoginStatusMustChangePassword {
		t.Fatalf("expected must-change status for expired password, got %s", result.Status)
	}
}

func TestLogin_TemporaryPasswordWithinWindow(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Temp0rary!pw", func(acc *domain.Account) {
		acc.IsTemporaryPassword = true
		acc.MustChangePassword = true
		acc.PasswordCreatedAt = f.now.Add(-time.Hour)
	})

	result, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "Temp0rary!pw",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.Status != LoginStatusMustChangePassword {
		t.Fatalf("expected must-change status, got %s", result.Status)
	}
}

func TestLogin_TemporaryPasswordExpired(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Temp0rary!pw", func(acc *domain.Account) {
		acc.IsTemporaryPassword = true
		acc.MustChangePassword = true
		acc.PasswordCreatedAt = f.now.Add(-25 * time.Hour)
	})

	if _, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "Temp0rary!pw",
	}); !errors.Is(err, ErrTemporaryPasswordExpired) {
		t.Fatalf("expected ErrTemporaryPasswordExpired, got %v", err)
	}
}

func TestLogin_StoreUnavailable(t *testing.T) {
	f := newAuthorityFixture(t)
	f.repo.getErr = repository.ErrUnavailable

	_, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "Corr3ct!horse",
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("store outage must never look like bad credentials")
	}
}

func TestLogin_ConflictRetriesOnce(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Corr3ct!horse", nil)

	// One injected conflict: the success-path write retries against the
	// re-fetched record and completes.
	f.repo.conflictNext = 1

	result, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "Corr3ct!horse",
	})
	if err != nil {
		t.Fatalf("expected retry to absorb one conflict, got %v", err)
	}
	if result.Status != LoginStatusIssued {
		t.Fatalf("expected issued status, got %s", result.Status)
	}
	if f.repo.updateCalls != 2 {
		t.Fatalf("expected exactly 2 update calls, got %d", f.repo.updateCalls)
	}
}

func TestLogin_SecondConflictIsFatal(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Corr3ct!horse", nil)

	f.repo.conflictNext = 2

	if _, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "Corr3ct!horse",
	}); !errors.Is(err, ErrStoreConflict) {
		t.Fatalf("expected ErrStoreConflict after exhausted retry, got %v", err)
	}
	if f.repo.updateCalls != 2 {
		t.Fatalf("expected exactly 2 update calls, got %d", f.repo.updateCalls)
	}
}

func TestVerifyToken_RejectsTampered(t *testing.T) {
	f := newAuthorityFixture(t)
	f.seedAccount(t, "acct-1", "Corr3ct!horse", nil)

	result, err := f.authority.Login(context.Background(), LoginInput{
		AccountID: "acct-1", Password: "Corr3ct!horse",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	last := result.Token[len(result.Token)-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}
	tampered := result.Token[:len(result.Token)-1] + string(flipped)
	if _, err := f.authority.VerifyToken(tampered); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
}

func TestNewAuthority_RequiresCollaborators(t *testing.T) {
	repo := newMemoryAccountRepo()
	policy := security.NewPolicyEngine(security.DefaultPolicyConfig())
	hasher, err := security.NewHasher(security.Argon2Config{
		Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("failed to build hasher: %v", err)
	}

	if _, err := NewAuthority(nil, nil, hasher, policy, nil, nil, nil, nil); err == nil {
		t.Fatalf("expected missing repository to be rejected")
	}
	if _, err := NewAuthority(nil, repo, nil, policy, nil, nil, nil, nil); err == nil {
		t.Fatalf("expected missing hasher to be rejected")
	}
	if _, err := NewAuthority(nil, repo, hasher, nil, nil, nil, nil, nil); err == nil {
		t.Fatalf("expected missing policy to be rejected")
	}
	if _, err := NewAuthority(nil, repo, hasher, policy, nil, nil, nil, nil); err != nil {
		t.Fatalf("expected construction with defaults to succeed, got %v", err)
	}
}
