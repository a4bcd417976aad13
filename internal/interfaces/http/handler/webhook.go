package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	chatapp "github.com/nurcrm/backend/internal/application/chat"
	"github.com/nurcrm/backend/internal/domain/chat"
	"github.com/nurcrm/backend/internal/domain/shared"
)

// WebhookHandler receives callbacks from the per-company bridge process. The
// shared-secret middleware rejects unauthenticated calls before these run.
type WebhookHandler struct {
	BaseHandler
	webhookService *chatapp.WebhookService
	secretGate     gin.HandlerFunc
}

// NewWebhookHandler creates a new WebhookHandler. secretGate is the
// shared-secret middleware; pass nil to disable the gate (tests only).
func NewWebhookHandler(webhookService *chatapp.WebhookService, secretGate gin.HandlerFunc) *WebhookHandler {
	if secretGate == nil {
		secretGate = func(c *gin.Context) { c.Next() }
	}
	return &WebhookHandler{
		webhookService: webhookService,
		secretGate:     secretGate,
	}
}

// RegisterRoutes registers webhook routes under the shared-secret middleware
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhooks := rg.Group("/webhooks/bridge/:tenantID")
	webhooks.Use(h.secretGate)
	{
		webhooks.POST("/qr", h.OnQR)
		webhooks.POST("/status", h.OnStatus)
		webhooks.POST("/message", h.OnMessage)
	}
}

// QRWebhookRequest is the bridge's QR callback payload
type QRWebhookRequest struct {
	AccountID string `json:"account_id"`
	QR        string `json:"qr" binding:"required"`
}

// StatusWebhookRequest is the bridge's connection status callback payload
type StatusWebhookRequest struct {
	AccountID string `json:"account_id"`
	Status    string `json:"status" binding:"required"`
	Phone     string `json:"phone"`
}

// MessageWebhookRequest is the bridge's incoming message callback payload
type MessageWebhookRequest struct {
	EventID string                `json:"event_id" binding:"required"`
	Message MessageWebhookPayload `json:"message" binding:"required"`
}

// MessageWebhookPayload carries the message body of a webhook event
type MessageWebhookPayload struct {
	ExternalID  string            `json:"external_id" binding:"required"`
	ThreadID    string            `json:"thread_id"`
	SenderID    string            `json:"sender_id"`
	Text        string            `json:"text"`
	Attachments []chat.Attachment `json:"attachments"`
	Direction   string            `json:"direction"`
	Timestamp   int64             `json:"timestamp"`
}

func (h *WebhookHandler) tenantFromPath(c *gin.Context) (uuid.UUID, bool) {
	tenantID, err := uuid.Parse(c.Param("tenantID"))
	if err != nil {
		h.BadRequest(c, "Invalid tenant id")
		return uuid.Nil, false
	}
	return tenantID, true
}

// parseAccountID returns the target account: an explicit account_id wins, an
// empty one means the event is bridge-session scoped
func (h *WebhookHandler) parseAccountID(c *gin.Context, raw string) (uuid.UUID, bool) {
	if raw == "" {
		return uuid.Nil, true
	}
	accountID, err := uuid.Parse(raw)
	if err != nil {
		h.BadRequest(c, "Invalid account id")
		return uuid.Nil, false
	}
	return accountID, true
}

// OnQR ingests a pairing QR event
func (h *WebhookHandler) OnQR(c *gin.Context) {
	tenantID, ok := h.tenantFromPath(c)
	if !ok {
		return
	}

	var req QRWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	accountID, ok := h.parseAccountID(c, req.AccountID)
	if !ok {
		return
	}

	if err := h.webhookService.OnQR(c.Request.Context(), tenantID, accountID, req.QR); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"accepted": true})
}

// OnStatus ingests a connection status event
func (h *WebhookHandler) OnStatus(c *gin.Context) {
	tenantID, ok := h.tenantFromPath(c)
	if !ok {
		return
	}

	var req StatusWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	accountID, ok := h.parseAccountID(c, req.AccountID)
	if !ok {
		return
	}

	if err := h.webhookService.OnStatus(c.Request.Context(), tenantID, accountID, req.Status, req.Phone); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"accepted": true})
}

// OnMessage ingests an incoming message event. Replays return the same
// success response as first delivery.
func (h *WebhookHandler) OnMessage(c *gin.Context) {
	tenantID, ok := h.tenantFromPath(c)
	if !ok {
		return
	}

	var req MessageWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	accountID, err := h.webhookService.ResolveMessengerAccount(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "No messenger account for this company")
			return
		}
		h.HandleError(c, err)
		return
	}

	snap := chat.MessageSnapshot{
		ExternalID:  req.Message.ExternalID,
		ThreadID:    req.Message.ThreadID,
		SenderID:    req.Message.SenderID,
		Text:        req.Message.Text,
		Attachments: req.Message.Attachments,
		Direction:   chat.Direction(req.Message.Direction),
	}
	if req.Message.Timestamp > 0 {
		snap.SentAt = time.Unix(req.Message.Timestamp, 0).UTC()
	}

	if err := h.webhookService.OnMessage(c.Request.Context(), tenantID, accountID, req.EventID, snap); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"accepted": true})
}
