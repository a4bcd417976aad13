package handler

import (
	"github.com/gin-gonic/gin"

	chatapp "github.com/nurcrm/backend/internal/application/chat"
)

// BridgeHandler handles bridge session API endpoints
type BridgeHandler struct {
	BaseHandler
	bridgeService *chatapp.BridgeService
}

// NewBridgeHandler creates a new BridgeHandler
func NewBridgeHandler(bridgeService *chatapp.BridgeService) *BridgeHandler {
	return &BridgeHandler{
		bridgeService: bridgeService,
	}
}

// RegisterRoutes registers bridge routes
func (h *BridgeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	bridge := rg.Group("/chat/bridge")
	{
		bridge.GET("/session", h.GetSession)
		bridge.POST("/start", h.Start)
		bridge.POST("/stop", h.Stop)
	}
}

// GetSession returns the company's bridge session with live process state
func (h *BridgeHandler) GetSession(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}

	session, err := h.bridgeService.GetSession(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session)
}

// Start launches the company's bridge process
func (h *BridgeHandler) Start(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}

	session, err := h.bridgeService.Start(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session)
}

// Stop terminates the company's bridge process
func (h *BridgeHandler) Stop(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}

	session, err := h.bridgeService.Stop(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, session)
}
