package crm

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurcrm/backend/internal/domain/crm"
)

// CreateLeadRequest creates a new lead
type CreateLeadRequest struct {
	Name      string           `json:"name" binding:"required"`
	Phone     string           `json:"phone"`
	Source    string           `json:"source"`
	ThreadRef string           `json:"thread_ref"`
	Budget    *decimal.Decimal `json:"budget"`
	Notes     string           `json:"notes"`
}

// UpdateLeadRequest updates an existing lead. Nil fields stay unchanged.
type UpdateLeadRequest struct {
	Name   *string          `json:"name"`
	Phone  *string          `json:"phone"`
	Budget *decimal.Decimal `json:"budget"`
	Status *string          `json:"status"`
	Notes  *string          `json:"notes"`
}

// LeadResponse is the public view of a lead
type LeadResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	Source    string          `json:"source"`
	ThreadRef string          `json:"thread_ref,omitempty"`
	Budget    decimal.Decimal `json:"budget"`
	Status    string          `json:"status"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ToLeadResponse converts a lead to its response DTO
func ToLeadResponse(lead *crm.Lead) LeadResponse {
	return LeadResponse{
		ID:        lead.ID,
		Name:      lead.Name,
		Phone:     lead.Phone,
		Source:    string(lead.Source),
		ThreadRef: lead.ThreadRef,
		Budget:    lead.Budget,
		Status:    string(lead.Status),
		Notes:     lead.Notes,
		CreatedAt: lead.CreatedAt,
		UpdatedAt: lead.UpdatedAt,
	}
}
