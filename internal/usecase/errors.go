package usecase

import (
	"errors"
	"strings"

	"github.com/arklim/credential-authority/internal/core/domain"
)

var (
	// ErrInvalidCredentials indicates the account id or password is wrong.
	// Unknown accounts surface identically so callers gain no existence oracle.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the account is inside an active lockout window.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountInactive indicates the account has been deactivated.
	ErrAccountInactive = errors.New("account inactive")
	// ErrTemporaryPasswordExpired indicates the system-generated credential
	// outlived its validity window and a fresh administrative reset is needed.
	ErrTemporaryPasswordExpired = errors.New("temporary password expired")
	// ErrPasswordReused indicates the candidate matches a recent password.
	ErrPasswordReused = errors.New("password recently used")
	// ErrChangeTooSoon indicates the minimum inter-change interval has not elapsed.
	ErrChangeTooSoon = errors.New("password changed too recently")
	// ErrAccountNotFound is surfaced by administrative lookups only.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists indicates an administrative create collided.
	ErrAccountExists = errors.New("account already exists")
	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("operation requires admin role")
	// ErrStoreUnavailable indicates the credential store could not be reached.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrStoreConflict indicates concurrent updates exhausted the single
	// re-fetch-and-retry the authority performs.
	ErrStoreConflict = errors.New("credential store conflict")
)

// PolicyViolationError carries the structured evaluation result for a
// rejected candidate password. Always recoverable; callers render the
// violations for display.
type PolicyViolationError struct {
	Result domain.PolicyResult
}

// Error implements error.
func (e *PolicyViolationError) Error() string {
	if e == nil || len(e.Result.Violations) == 0 {
		return "password policy violation"
	}
	messages := make([]string, 0, len(e.Result.Violations))
	for _, v := range e.Result.Violations {
		messages = append(messages, v.Message)
	}
	return "password policy violation: " + strings.Join(messages, "; ")
}
