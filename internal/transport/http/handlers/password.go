package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/credential-authority/internal/core/domain"
	"github.com/arklim/credential-authority/internal/transport/http/middleware"
	"github.com/arklim/credential-authority/internal/usecase"
)

// PasswordHandler exposes endpoints for password management.
type PasswordHandler struct {
	authority *usecase.Authority
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(authority *usecase.Authority) *PasswordHandler {
	return &PasswordHandler{authority: authority}
}

// ChangePassword rotates the caller's own credential. The current password
// is re-verified; holding a valid session token alone is not sufficient.
// Callers without a token, such as an account completing a forced change
// with a temporary credential, identify themselves with account_id in the
// body and authenticate with the current password alone.
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid change password payload"))
		return
	}

	actorID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok || strings.TrimSpace(actorID) == "" {
		actorID = req.AccountID
	}
	if strings.TrimSpace(actorID) == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication or account id required"))
		return
	}

	input := usecase.ChangePasswordInput{
		AccountID:       strings.TrimSpace(actorID),
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		IP:              c.ClientIP(),
	}

	result, err := h.authority.ChangePassword(c.Request.Context(), input)
	if err != nil {
		h.respondChangeError(c, err)
		return
	}

	c.JSON(http.StatusOK, PasswordChangeResponse{
		Message:   "password changed",
		ChangedAt: result.ChangedAt,
	})
}

func (h *PasswordHandler) respondChangeError(c *gin.Context, err error) {
	var policyErr *usecase.PolicyViolationError
	if errors.As(err, &policyErr) {
		c.JSON(http.StatusUnprocessableEntity, PolicyCheckResponse{
			IsValid:    false,
			Violations: policyErr.Result.Violations,
			Warnings:   policyErr.Result.Warnings,
			Score:      policyErr.Result.Score,
			Strength:   policyErr.Result.Strength,
		})
		return
	}

	RespondWithMappedError(c, err, []ErrorCase{
		{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
		{Err: usecase.ErrAccountLocked, Status: http.StatusForbidden, Message: "account locked"},
		{Err: usecase.ErrAccountInactive, Status: http.StatusForbidden, Message: "account inactive"},
		{Err: usecase.ErrPasswordReused, Status: http.StatusConflict, Message: "password was used recently"},
		{Err: usecase.ErrChangeTooSoon, Status: http.StatusConflict, Message: "password changed too recently"},
		{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		{Err: usecase.ErrStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "service temporarily unavailable"},
		{Err: usecase.ErrStoreConflict, Status: http.StatusConflict, Message: "concurrent update, retry"},
	}, http.StatusInternalServerError, "failed to change password")
}

// ResetPassword issues a temporary credential for another account.
// Privileged: admin role enforced both here and in the authority.
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	claims := middleware.GetSessionClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	accountID := strings.TrimSpace(c.Param("id"))
	if accountID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "account id is required"))
		return
	}

	result, err := h.authority.ResetPassword(c.Request.Context(), usecase.ResetPasswordInput{
		ActorID:   claims.AccountID,
		ActorRole: claims.Role,
		AccountID: accountID,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
			{Err: usecase.ErrStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "service temporarily unavailable"},
			{Err: usecase.ErrStoreConflict, Status: http.StatusConflict, Message: "concurrent update, retry"},
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, PasswordResetResponse{
		AccountID:    result.AccountID,
		TempPassword: result.TempPassword,
		ExpiresAt:    result.ExpiresAt,
	})
}

// CheckPolicy evaluates a candidate password without persisting anything.
// No authentication; signup forms call this for live feedback.
func (h *PasswordHandler) CheckPolicy(c *gin.Context) {
	var req PolicyCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid policy check payload"))
		return
	}

	class := req.Class
	if class == "" {
		role := req.Role
		if role == "" {
			role = domain.RoleCustomer
		}
		class = domain.ClassForRole(role)
	}
	if !class.Valid() {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown account class"))
		return
	}

	result := h.authority.CheckPolicy(req.Password, class)

	c.JSON(http.StatusOK, PolicyCheckResponse{
		IsValid:    result.Accepted,
		Violations: result.Violations,
		Warnings:   result.Warnings,
		Score:      result.Score,
		Strength:   result.Strength,
	})
}
