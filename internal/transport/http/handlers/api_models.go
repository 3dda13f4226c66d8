package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/credential-authority/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary is the sanitized account view returned by the API. It
// never carries the digest or the password history.
type AccountSummary struct {
	ID                  string      `json:"id"`
	Role                domain.Role `json:"role"`
	IsActive            bool        `json:"is_active"`
	IsLocked            bool        `json:"is_locked"`
	MustChangePassword  bool        `json:"must_change_password"`
	IsTemporaryPassword bool        `json:"is_temporary_password"`
	PasswordExpiresAt   time.Time   `json:"password_expires_at"`
	CreatedAt           time.Time   `json:"created_at"`
	CreatedBy           *string     `json:"created_by,omitempty"`
}

func newAccountSummary(account domain.Account) AccountSummary {
	return AccountSummary{
		ID:                  account.ID,
		Role:                account.Role,
		IsActive:            account.IsActive,
		IsLocked:            account.IsLocked,
		MustChangePassword:  account.MustChangePassword,
		IsTemporaryPassword: account.IsTemporaryPassword,
		PasswordExpiresAt:   account.PasswordExpiresAt,
		CreatedAt:           account.CreatedAt,
		CreatedBy:           account.CreatedBy,
	}
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int            `json:"expires_in"`
	Account     AccountSummary `json:"account"`
}

// MustChangeResponse is returned when credentials verified but a rotation
// is required before a session can be granted.
type MustChangeResponse struct {
	Message            string         `json:"message"`
	MustChangePassword bool           `json:"must_change_password"`
	Account            AccountSummary `json:"account"`
}

// IntrospectRequest carries a token for server-side verification.
type IntrospectRequest struct {
	Token string `json:"token" binding:"required"`
}

// IntrospectResponse conveys token verification results. Mirrors the
// RFC 7662 active flag: invalid tokens yield {"active": false}, not 401.
type IntrospectResponse struct {
	Active    bool        `json:"active"`
	AccountID string      `json:"account_id,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
	IssuedAt  *time.Time  `json:"issued_at,omitempty"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// PasswordChangeRequest defines the self-service rotation payload.
// AccountID is only honored for callers without a session token, such as
// an account completing a forced change with a temporary credential.
type PasswordChangeRequest struct {
	AccountID       string `json:"account_id"`
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// PasswordChangeResponse is returned after a successful rotation.
type PasswordChangeResponse struct {
	Message   string    `json:"message"`
	ChangedAt time.Time `json:"changed_at"`
}

// PolicyCheckRequest carries a candidate password for advisory evaluation.
// Class overrides the role-derived tier when set, so UIs can preview the
// constrained tier that no role maps to.
type PolicyCheckRequest struct {
	Password string              `json:"password"`
	Role     domain.Role         `json:"role"`
	Class    domain.AccountClass `json:"class"`
}

// PolicyCheckResponse surfaces the full policy evaluation.
type PolicyCheckResponse struct {
	IsValid    bool               `json:"is_valid"`
	Violations []domain.Violation `json:"violations,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
	Score      int                `json:"score"`
	Strength   domain.Strength    `json:"strength"`
}

// PasswordResetResponse returns the administrative temporary credential.
// The caller is responsible for out-of-band delivery.
type PasswordResetResponse struct {
	AccountID    string    `json:"account_id"`
	TempPassword string    `json:"temp_password"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AccountCreateRequest defines the administrative provisioning payload.
type AccountCreateRequest struct {
	AccountID string      `json:"account_id"`
	Role      domain.Role `json:"role" binding:"required"`
}

// AccountCreateResponse returns the new account and its temporary credential.
type AccountCreateResponse struct {
	Account      AccountSummary `json:"account"`
	TempPassword string         `json:"temp_password"`
}

// AccountListResponse wraps a page of accounts.
type AccountListResponse struct {
	Accounts []AccountSummary `json:"accounts"`
	Total    int              `json:"total"`
}

// HealthResponse reports liveness status.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports per-dependency readiness.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
