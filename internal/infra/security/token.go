package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/arklim/credential-authority/internal/core/domain"
	"github.com/arklim/credential-authority/internal/core/port"
)

var (
	// ErrTokenExpired indicates the token's expiry instant has passed.
	ErrTokenExpired = errors.New("session token expired")
	// ErrTokenMalformed indicates the token could not be parsed or carries
	// incomplete claims.
	ErrTokenMalformed = errors.New("session token malformed")
	// ErrTokenSignatureInvalid indicates the signature did not verify or the
	// algorithm field does not match the expected algorithm.
	ErrTokenSignatureInvalid = errors.New("session token signature invalid")
)

const defaultSessionTTL = 24 * time.Hour

// sessionClaims is the wire representation of a session token's claim set.
type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HMAC-SHA-256 signed session tokens.
// Tokens are stateless: validity is purely cryptographic and time-based,
// with no revocation list; compromise mitigation relies on the short TTL.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService constructs a TokenService with a fixed signing secret.
func NewTokenService(secret []byte, issuer string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &TokenService{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the clock, primarily for tests simulating expiry.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue signs a claim set for the account with the fixed TTL.
func (s *TokenService) Issue(accountID string, role domain.Role) (string, time.Time, error) {
	if accountID == "" {
		return "", time.Time{}, fmt.Errorf("account id is required")
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)

	claims := sessionClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify validates the token and recovers its claims. The signing method is
// pinned to HS256; tokens carrying any other algorithm are rejected before
// signature evaluation.
func (s *TokenService) Verify(token string) (*port.SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMalformed
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignatureInvalid
		default:
			return nil, ErrTokenMalformed
		}
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenMalformed
	}

	accountID := strings.TrimSpace(claims.Subject)
	role := domain.Role(claims.Role)
	if accountID == "" || !role.Valid() {
		return nil, ErrTokenMalformed
	}

	result := &port.SessionClaims{
		AccountID: accountID,
		Role:      role,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}

	return result, nil
}

var (
	_ port.TokenIssuer   = (*TokenService)(nil)
	_ port.TokenVerifier = (*TokenService)(nil)
)
