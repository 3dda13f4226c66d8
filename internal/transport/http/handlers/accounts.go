package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/credential-authority/internal/core/domain"
	"github.com/arklim/credential-authority/internal/core/port"
	"github.com/arklim/credential-authority/internal/transport/http/middleware"
	"github.com/arklim/credential-authority/internal/usecase"
)

// AccountHandler exposes administrative account management endpoints.
type AccountHandler struct {
	authority *usecase.Authority
}

// NewAccountHandler constructs AccountHandler.
func NewAccountHandler(authority *usecase.Authority) *AccountHandler {
	return &AccountHandler{authority: authority}
}

// RegisterRoutes binds account management routes. The caller applies
// authentication and role middleware to the group.
func (h *AccountHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.create)
	r.GET("", h.list)
	r.GET("/:id", h.get)
}

func (h *AccountHandler) create(c *gin.Context) {
	claims := middleware.GetSessionClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req AccountCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid account payload"))
		return
	}

	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown role"))
		return
	}

	result, err := h.authority.CreateAccount(c.Request.Context(), usecase.CreateAccountInput{
		ActorID:   claims.AccountID,
		ActorRole: claims.Role,
		AccountID: strings.TrimSpace(req.AccountID),
		Role:      req.Role,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrAccountExists, Status: http.StatusConflict, Message: "account already exists"},
			{Err: usecase.ErrStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "service temporarily unavailable"},
		}, http.StatusInternalServerError, "failed to create account")
		return
	}

	c.JSON(http.StatusCreated, AccountCreateResponse{
		Account:      newAccountSummary(result.Account),
		TempPassword: result.TempPassword,
	})
}

func (h *AccountHandler) get(c *gin.Context) {
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

	account, err := h.authority.GetAccount(c.Request.Context(), claims.Role, accountID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
			{Err: usecase.ErrStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "service temporarily unavailable"},
		}, http.StatusInternalServerError, "failed to fetch account")
		return
	}

	c.JSON(http.StatusOK, newAccountSummary(*account))
}

func (h *AccountHandler) list(c *gin.Context) {
	claims := middleware.GetSessionClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	filter := port.AccountFilter{}

	if roleParam := strings.TrimSpace(c.Query("role")); roleParam != "" {
		role := domain.Role(roleParam)
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown role"))
			return
		}
		filter.Role = &role
	}

	filter.Limit = parsePositiveQuery(c, "limit", 50)
	filter.Offset = parsePositiveQuery(c, "offset", 0)

	accounts, err := h.authority.ListAccounts(c.Request.Context(), claims.Role, filter)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "insufficient permissions"},
			{Err: usecase.ErrStoreUnavailable, Status: http.StatusServiceUnavailable, Message: "service temporarily unavailable"},
		}, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	summaries := make([]AccountSummary, 0, len(accounts))
	for _, account := range accounts {
		summaries = append(summaries, newAccountSummary(account))
	}

	c.JSON(http.StatusOK, AccountListResponse{
		Accounts: summaries,
		Total:    len(summaries),
	})
}

func parsePositiveQuery(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}

	return value
}
