package crm

import (
	"context"

	"github.com/google/uuid"

	"github.com/nurcrm/backend/internal/domain/crm"
	"github.com/nurcrm/backend/internal/domain/shared"
)

// LeadService handles lead-related business operations
type LeadService struct {
	leadRepo crm.LeadRepository
}

// NewLeadService creates a new LeadService
func NewLeadService(leadRepo crm.LeadRepository) *LeadService {
	return &LeadService{
		leadRepo: leadRepo,
	}
}

// Create creates a new lead
func (s *LeadService) Create(ctx context.Context, tenantID uuid.UUID, req CreateLeadRequest) (*LeadResponse, error) {
	lead, err := crm.NewLead(tenantID, req.Name, crm.LeadSource(req.Source))
	if err != nil {
		return nil, err
	}

	lead.Phone = req.Phone
	lead.ThreadRef = req.ThreadRef
	if req.Notes != "" {
		lead.Notes = req.Notes
	}
	if req.Budget != nil {
		if err := lead.SetBudget(*req.Budget); err != nil {
			return nil, err
		}
	}

	if err := s.leadRepo.Save(ctx, lead); err != nil {
		return nil, err
	}

	response := ToLeadResponse(lead)
	return &response, nil
}

// GetByID retrieves a lead by ID
func (s *LeadService) GetByID(ctx context.Context, tenantID, leadID uuid.UUID) (*LeadResponse, error) {
	lead, err := s.leadRepo.FindByIDForTenant(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	response := ToLeadResponse(lead)
	return &response, nil
}

// List retrieves leads with pagination and an optional name/phone search
func (s *LeadService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[LeadResponse], error) {
	leads, total, err := s.leadRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}

	responses := make([]LeadResponse, 0, len(leads))
	for i := range leads {
		responses = append(responses, ToLeadResponse(&leads[i]))
	}

	result := shared.NewPaginated(responses, total, filter.Page, filter.Limit())
	return &result, nil
}

// Update applies a partial update to a lead
func (s *LeadService) Update(ctx context.Context, tenantID, leadID uuid.UUID, req UpdateLeadRequest) (*LeadResponse, error) {
	lead, err := s.leadRepo.FindByIDForTenant(ctx, tenantID, leadID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, shared.NewDomainError("INVALID_NAME", "Lead name cannot be empty")
		}
		lead.Name = *req.Name
	}
	if req.Phone != nil {
		lead.Phone = *req.Phone
	}
	if req.Budget != nil {
		if err := lead.SetBudget(*req.Budget); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		if err := lead.SetStatus(crm.LeadStatus(*req.Status)); err != nil {
			return nil, err
		}
	}
	if req.Notes != nil {
		lead.Notes = *req.Notes
	}
	lead.Touch()

	if err := s.leadRepo.Save(ctx, lead); err != nil {
		return nil, err
	}

	response := ToLeadResponse(lead)
	return &response, nil
}

// Delete removes a lead
func (s *LeadService) Delete(ctx context.Context, tenantID, leadID uuid.UUID) error {
	return s.leadRepo.Delete(ctx, tenantID, leadID)
}
