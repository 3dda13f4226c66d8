package port

import (
	"time"

	"github.com/arklim/credential-authority/internal/core/domain"
)

// PasswordHasher hashes and verifies secrets using the configured algorithm.
// Digests are self-describing; verification needs no side-channel state.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// PasswordPolicy evaluates a candidate password for an account class,
// collecting every violation rather than stopping at the first.
type PasswordPolicy interface {
	Evaluate(candidate string, class domain.AccountClass) domain.PolicyResult
}

// SessionClaims is the verified claim set recovered from a bearer token.
type SessionClaims struct {
	AccountID string
	Role      domain.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer mints signed, stateless bearer tokens.
type TokenIssuer interface {
	Issue(accountID string, role domain.Role) (token string, expiresAt time.Time, err error)
}

// TokenVerifier validates bearer tokens and recovers their claims.
type TokenVerifier interface {
	Verify(token string) (*SessionClaims, error)
}
