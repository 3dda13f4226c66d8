package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/credential-authority/internal/core/domain"
	"github.com/arklim/credential-authority/internal/core/port"
	"github.com/arklim/credential-authority/internal/infra/security"
)

// ClaimsKey is the context key holding the verified session claims.
const ClaimsKey = "claims"

// ErrorResponse matches the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// TokenVerifier validates bearer tokens presented to the HTTP layer.
type TokenVerifier interface {
	VerifyToken(token string) (*port.SessionClaims, error)
}

// RequireAuth validates the Authorization header and stores the verified
// claims on the request context.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		if verifyBearer(c, verifier, authHeader) {
			c.Next()
		}
	}
}

// OptionalAuth verifies a bearer token when one is presented but lets
// anonymous requests through. A presented-but-invalid token still fails;
// handlers behind it must authenticate anonymous callers by other means.
func OptionalAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		if verifyBearer(c, verifier, authHeader) {
			c.Next()
		}
	}
}

// verifyBearer parses and verifies the Authorization header, storing the
// claims on success. On failure it aborts the request and returns false.
func verifyBearer(c *gin.Context, verifier TokenVerifier, authHeader string) bool {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
		return false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			newErrorResponse(c, "missing access token"))
		return false
	}

	claims, err := verifier.VerifyToken(token)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrTokenExpired):
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "token expired"))
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid token"))
		}
		return false
	}

	c.Set(AccountIDKey, claims.AccountID)
	c.Set(ClaimsKey, claims)

	if reqCtx := GetRequestContext(c); reqCtx != nil {
		reqCtx.AccountID = claims.AccountID
	}

	return true
}

// RequireRole checks that the authenticated caller holds one of the given
// roles. Must run after RequireAuth.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetSessionClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		for _, role := range roles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden,
			newErrorResponse(c, "insufficient permissions"))
	}
}

// GetSessionClaims retrieves verified claims stored by RequireAuth.
func GetSessionClaims(c *gin.Context) *port.SessionClaims {
	raw, exists := c.Get(ClaimsKey)
	if !exists {
		return nil
	}

	claims, ok := raw.(*port.SessionClaims)
	if !ok {
		return nil
	}

	return claims
}

// GetAuthenticatedAccountID retrieves the account ID from context.
func GetAuthenticatedAccountID(c *gin.Context) (string, bool) {
	accountID, exists := c.Get(AccountIDKey)
	if !exists {
		return "", false
	}

	if id, ok := accountID.(string); ok {
		return id, true
	}

	return "", false
}
