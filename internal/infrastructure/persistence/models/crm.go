package models

import (
	"github.com/shopspring/decimal"

	"github.com/nurcrm/backend/internal/domain/crm"
)

// LeadModel is the persistence model for the Lead aggregate.
type LeadModel struct {
	TenantAggregateModel
	Name      string          `gorm:"type:varchar(200);not null"`
	Phone     string          `gorm:"type:varchar(50);index"`
	Source    crm.LeadSource  `gorm:"type:varchar(20);not null;default:'manual'"`
	ThreadRef string          `gorm:"type:varchar(200);index"`
	Budget    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status    crm.LeadStatus  `gorm:"type:varchar(20);not null;default:'new';index"`
	Notes     string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (LeadModel) TableName() string {
	return "leads"
}

// ToDomain converts the persistence model to a domain Lead aggregate.
func (m *LeadModel) ToDomain() *crm.Lead {
	lead := &crm.Lead{
		Name:      m.Name,
		Phone:     m.Phone,
		Source:    m.Source,
		ThreadRef: m.ThreadRef,
		Budget:    m.Budget,
		Status:    m.Status,
		Notes:     m.Notes,
	}
	m.PopulateTenantAggregateRoot(&lead.TenantAggregateRoot)
	return lead
}

// FromDomain populates the persistence model from a domain Lead aggregate.
func (m *LeadModel) FromDomain(l *crm.Lead) {
	m.FromDomainTenantAggregateRoot(l.TenantAggregateRoot)
	m.Name = l.Name
	m.Phone = l.Phone
	m.Source = l.Source
	m.ThreadRef = l.ThreadRef
	m.Budget = l.Budget
	m.Status = l.Status
	m.Notes = l.Notes
}

// LeadModelFromDomain creates a persistence model from a domain Lead.
func LeadModelFromDomain(l *crm.Lead) *LeadModel {
	m := &LeadModel{}
	m.FromDomain(l)
	return m
}
