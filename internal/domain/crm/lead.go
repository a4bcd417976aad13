package crm

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurcrm/backend/internal/domain/shared"
)

// LeadSource records which channel produced a lead
type LeadSource string

const (
	LeadSourcePhoto     LeadSource = "photo"
	LeadSourceMessenger LeadSource = "messenger"
	LeadSourceManual    LeadSource = "manual"
)

// LeadStatus is the pipeline stage of a lead
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusWon       LeadStatus = "won"
	LeadStatusLost      LeadStatus = "lost"
)

// IsValid reports whether the status is a recognized lead status
func (s LeadStatus) IsValid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusWon, LeadStatusLost:
		return true
	}
	return false
}

// Lead is a sales lead, optionally linked to the chat thread it came from
type Lead struct {
	shared.TenantAggregateRoot
	Name      string
	Phone     string
	Source    LeadSource
	ThreadRef string // external thread id when the lead originated in chat
	Budget    decimal.Decimal
	Status    LeadStatus
	Notes     string
}

// NewLead creates a lead in the new stage
func NewLead(tenantID uuid.UUID, name string, source LeadSource) (*Lead, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Lead name is required")
	}
	if source == "" {
		source = LeadSourceManual
	}
	return &Lead{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Source:              source,
		Budget:              decimal.Zero,
		Status:              LeadStatusNew,
	}, nil
}

// SetBudget sets the expected deal size
func (l *Lead) SetBudget(budget decimal.Decimal) error {
	if budget.IsNegative() {
		return shared.NewDomainError("INVALID_BUDGET", "Budget cannot be negative")
	}
	l.Budget = budget
	l.Touch()
	l.IncrementVersion()
	return nil
}

// SetStatus moves the lead to another pipeline stage
func (l *Lead) SetStatus(status LeadStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown lead status")
	}
	l.Status = status
	l.Touch()
	l.IncrementVersion()
	return nil
}

// LeadRepository persists leads
type LeadRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Lead, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]Lead, int64, error)
	Save(ctx context.Context, lead *Lead) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}
