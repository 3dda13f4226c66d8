package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/credential-authority/internal/usecase"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	authority *usecase.Authority
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(authority *usecase.Authority) *AuthHandler {
	return &AuthHandler{authority: authority}
}

// RegisterRoutes binds authentication routes, applying optional middleware
// ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		chain = append(chain, h.login)
		r.POST("/login", chain...)
	} else {
		r.POST("/login", h.login)
	}

	r.POST("/introspect", h.introspect)
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	input := usecase.LoginInput{
		AccountID: strings.TrimSpace(req.AccountID),
		Password:  req.Password,
		IP:        strings.TrimSpace(c.ClientIP()),
		UserAgent: strings.TrimSpace(c.Request.UserAgent()),
	}

	result, err := h.authority.Login(c.Request.Context(), input)
	if err != nil {
		h.respondLoginError(c, err)
		return
	}

	if result.Status == usecase.LoginStatusMustChangePassword {
		c.JSON(http.StatusOK, MustChangeResponse{
			Message:            "password change required",
			MustChangePassword: true,
			Account:            newAccountSummary(result.Account),
		})
		return
	}

	expiresIn := int(time.Until(result.TokenExpiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		Account:     newAccountSummary(result.Account),
	})
}

// respondLoginError keeps rejection responses uniform: an unknown account,
// a wrong password, a locked account, and an inactive account all yield the
// same 401 so the endpoint cannot be used to probe which accounts exist.
func (h *AuthHandler) respondLoginError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials),
		errors.Is(err, usecase.ErrAccountLocked),
		errors.Is(err, usecase.ErrAccountInactive):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid credentials"))
	case errors.Is(err, usecase.ErrTemporaryPasswordExpired):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "temporary password expired"))
	case errors.Is(err, usecase.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "service temporarily unavailable"))
	case errors.Is(err, usecase.ErrStoreConflict):
		c.JSON(http.StatusConflict, NewErrorResponse(c, "concurrent update, retry"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authentication failed"))
	}
}

// introspect verifies a bearer token server-side. Invalid or expired tokens
// report active=false with a 200; the endpoint itself never 401s.
func (h *AuthHandler) introspect(c *gin.Context) {
	var req IntrospectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token is required"))
		return
	}

	claims, err := h.authority.VerifyToken(strings.TrimSpace(req.Token))
	if err != nil {
		c.JSON(http.StatusOK, IntrospectResponse{Active: false})
		return
	}

	issuedAt := claims.IssuedAt
	expiresAt := claims.ExpiresAt

	c.JSON(http.StatusOK, IntrospectResponse{
		Active:    true,
		AccountID: claims.AccountID,
		Role:      claims.Role,
		IssuedAt:  &issuedAt,
		ExpiresAt: &expiresAt,
	})
}
