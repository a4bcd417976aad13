package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	crmapp "github.com/nurcrm/backend/internal/application/crm"
	"github.com/nurcrm/backend/internal/interfaces/http/dto"
	"github.com/nurcrm/backend/internal/interfaces/http/middleware"
)

// LeadHandler handles lead API endpoints
type LeadHandler struct {
	BaseHandler
	leadService *crmapp.LeadService
}

// NewLeadHandler creates a new LeadHandler
func NewLeadHandler(leadService *crmapp.LeadService) *LeadHandler {
	return &LeadHandler{
		leadService: leadService,
	}
}

// RegisterRoutes registers lead routes
func (h *LeadHandler) RegisterRoutes(rg *gin.RouterGroup) {
	leads := rg.Group("/crm/leads")
	{
		leads.GET("", h.List)
		leads.POST("", h.Create)
		leads.GET("/:id", h.Get)
		leads.PUT("/:id", h.Update)
		leads.DELETE("/:id", h.Delete)
	}
}

// List returns the company's leads, paginated
func (h *LeadHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	filter := req.ToFilter()

	result, err := h.leadService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Create creates a new lead
func (h *LeadHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}

	var req crmapp.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	lead, err := h.leadService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, lead)
}

// Get returns one lead
func (h *LeadHandler) Get(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lead id")
		return
	}

	lead, err := h.leadService.GetByID(c.Request.Context(), tenantID, leadID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lead)
}

// Update applies a partial update to a lead
func (h *LeadHandler) Update(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lead id")
		return
	}

	var req crmapp.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	lead, err := h.leadService.Update(c.Request.Context(), tenantID, leadID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lead)
}

// Delete removes a lead
func (h *LeadHandler) Delete(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Missing tenant context")
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lead id")
		return
	}

	if err := h.leadService.Delete(c.Request.Context(), tenantID, leadID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
