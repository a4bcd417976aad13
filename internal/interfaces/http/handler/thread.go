package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	chatapp "github.com/nurcrm/backend/internal/application/chat"
)

// ThreadHandler handles live inbox API endpoints
type ThreadHandler struct {
	BaseHandler
	threadService *chatapp.ThreadService
}

// NewThreadHandler creates a new ThreadHandler
func NewThreadHandler(threadService *chatapp.ThreadService) *ThreadHandler {
	return &ThreadHandler{
		threadService: threadService,
	}
}

// RegisterRoutes registers thread routes
func (h *ThreadHandler) RegisterRoutes(rg *gin.RouterGroup) {
	accounts := rg.Group("/chat/accounts/:id")
	{
		accounts.GET("/threads", h.ListThreads)
		accounts.GET("/threads/:threadID/messages", h.ListMessages)
		accounts.GET("/threads/:threadID/messages/live", h.ListLiveMessages)
		accounts.POST("/threads/:threadID/messages", h.SendMessage)
	}
}

// ListThreads fetches the account's newest threads from the live session
func (h *ThreadHandler) ListThreads(c *gin.Context) {
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

	amount := 0
	if raw := c.Query("amount"); raw != "" {
		amount, err = strconv.Atoi(raw)
		if err != nil || amount < 0 || amount > 100 {
			h.BadRequest(c, "amount must be between 0 and 100")
			return
		}
	}

	threads, err := h.threadService.ListLiveThreads(c.Request.Context(), tenantID, accountID, amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, threads)
}

// ListMessages returns stored messages of one thread, oldest first
func (h *ThreadHandler) ListMessages(c *gin.Context) {
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
	threadRef := c.Param("threadID")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 || limit > 200 {
			h.BadRequest(c, "limit must be between 0 and 200")
			return
		}
	}

	messages, err := h.threadService.ListStoredMessages(c.Request.Context(), tenantID, accountID, threadRef, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, messages)
}

// ListLiveMessages fetches a thread's newest messages from the live session
func (h *ThreadHandler) ListLiveMessages(c *gin.Context) {
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
	threadRef := c.Param("threadID")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 || limit > 200 {
			h.BadRequest(c, "limit must be between 0 and 200")
			return
		}
	}

	messages, err := h.threadService.ListLiveMessages(c.Request.Context(), tenantID, accountID, threadRef, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, messages)
}

// SendMessage sends a text message through the live session
func (h *ThreadHandler) SendMessage(c *gin.Context) {
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
	threadRef := c.Param("threadID")

	var req chatapp.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	message, err := h.threadService.SendText(c.Request.Context(), tenantID, accountID, threadRef, req.Text)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, message)
}
