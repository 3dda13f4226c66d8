package domain

import "time"

// Role identifies the privilege tier assigned to an account.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

// Account mirrors the persisted representation in the accounts table.
// The version column backs optimistic concurrency on read-modify-write cycles.
type Account struct {
	ID                  string
	Role                Role
	PasswordHash        string
	IsActive            bool
	IsLocked            bool
	FailedAttempts      int
	LockedUntil         *time.Time
	PasswordCreatedAt   time.Time
	LastPasswordChange  time.Time
	PasswordExpiresAt   time.Time
	MustChangePassword  bool
	IsTemporaryPassword bool
	PasswordHistory     []string
	CreatedAt           time.Time
	CreatedBy           *string
	Version             int64
}

// RecordFailure increments the failure counter and engages the lock once the
// threshold is reached. The caller persists the mutated account.
func (a *Account) RecordFailure(now time.Time, threshold int, lockDuration time.Duration) {
	a.FailedAttempts++
	if threshold > 0 && a.FailedAttempts >= threshold {
		until := now.Add(lockDuration)
		a.IsLocked = true
		a.LockedUntil = &until
	}
}

// RecordSuccess resets the failure counter and clears any lock state.
func (a *Account) RecordSuccess() {
	a.FailedAttempts = 0
	a.IsLocked = false
	a.LockedUntil = nil
}

// IsCurrentlyLocked evaluates lock state at the given instant. An elapsed
// lockedUntil means the lock has expired regardless of the stored flag; the
// flag itself is only reconciled on the next write.
func (a *Account) IsCurrentlyLocked(now time.Time) bool {
	if !a.IsLocked || a.LockedUntil == nil {
		return false
	}
	return now.Before(*a.LockedUntil)
}

// PasswordExpired reports whether the regular rotation window has elapsed.
func (a *Account) PasswordExpired(now time.Time) bool {
	if a.PasswordExpiresAt.IsZero() {
		return false
	}
	return !now.Before(a.PasswordExpiresAt)
}

// TemporaryPasswordExpired reports whether a system-generated credential has
// outlived its short validity window, measured from creation.
func (a *Account) TemporaryPasswordExpired(now time.Time, ttl time.Duration) bool {
	if !a.IsTemporaryPassword || ttl <= 0 {
		return false
	}
	return !now.Before(a.PasswordCreatedAt.Add(ttl))
}

// RequiresPasswordChange reports whether a fresh session token may be issued
// or the account must first rotate its credential.
func (a *Account) RequiresPasswordChange(now time.Time) bool {
	return a.MustChangePassword || a.IsTemporaryPassword || a.PasswordExpired(now)
}

// RememberPassword prepends the digest to the history, truncating to limit.
// The history is most-recent-first and includes the current digest.
func (a *Account) RememberPassword(digest string, limit int) {
	history := make([]string, 0, len(a.PasswordHistory)+1)
	history = append(history, digest)
	history = append(history, a.PasswordHistory...)
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	a.PasswordHistory = history
}

// Sanitized returns a copy safe to hand back to transport layers.
func (a Account) Sanitized() Account {
	a.PasswordHash = ""
	a.PasswordHistory = nil
	return a
}
