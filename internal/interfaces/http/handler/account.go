package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	chatapp "github.com/nurcrm/backend/internal/application/chat"
)

// AccountHandler handles chat account API endpoints
type AccountHandler struct {
	BaseHandler
	accountService   *chatapp.AccountService
	autoLoginService *chatapp.AutoLoginService
	loginLimiter     gin.HandlerFunc
}

// NewAccountHandler creates a new AccountHandler. loginLimiter guards the
// credentialed endpoints; pass nil to disable limiting (tests).
func NewAccountHandler(
	accountService *chatapp.AccountService,
	autoLoginService *chatapp.AutoLoginService,
	loginLimiter gin.HandlerFunc,
) *AccountHandler {
	if loginLimiter == nil {
		loginLimiter = func(c *gin.Context) { c.Next() }
	}
	return &AccountHandler{
		accountService:   accountService,
		autoLoginService: autoLoginService,
		loginLimiter:     loginLimiter,
	}
}

// RegisterRoutes registers account routes
func (h *AccountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	accounts := rg.Group("/chat/accounts")
	{
		accounts.GET("", h.List)
		accounts.GET("/:id", h.Get)
		accounts.POST("/connect", h.loginLimiter, h.Connect)
		accounts.POST("/:id/login", h.loginLimiter, h.Login)
		accounts.POST("/:id/logout", h.Logout)
		accounts.POST("/autologin", h.AutoLogin)
	}
}

// List returns the company's active chat accounts
func (h *AccountHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}

	accounts, err := h.accountService.List(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, accounts)
}

// Get returns one chat account
func (h *AccountHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account id")
		return
	}

	account, err := h.accountService.GetByID(c.Request.Context(), tenantID, accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// Connect creates-or-finds an account and performs a manual login. Login
// failures map to dedicated error codes (2FA, checkpoint, rate limit) so the
// client can render the next step.
func (h *AccountHandler) Connect(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}

	var req chatapp.ConnectAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	account, err := h.accountService.Connect(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// Login re-authenticates an account, resuming the stored session when
// possible
func (h *AccountHandler) Login(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account id")
		return
	}

	var req chatapp.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	account, err := h.accountService.Login(c.Request.Context(), tenantID, accountID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// Logout deactivates an account
func (h *AccountHandler) Logout(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account id")
		return
	}

	account, err := h.accountService.Logout(c.Request.Context(), tenantID, accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// AutoLogin sweeps the company's accounts and reports per-account outcomes
func (h *AccountHandler) AutoLogin(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}

	results, err := h.autoLoginService.RunForCompany(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, results)
}
