package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurcrm/backend/internal/domain/crm"
	"github.com/nurcrm/backend/internal/domain/shared"
	"github.com/nurcrm/backend/internal/infrastructure/persistence/models"
)

// GormLeadRepository implements crm.LeadRepository using GORM
type GormLeadRepository struct {
	db *gorm.DB
}

// NewGormLeadRepository creates a new GormLeadRepository
func NewGormLeadRepository(db *gorm.DB) *GormLeadRepository {
	return &GormLeadRepository{db: db}
}

// FindByIDForTenant finds a lead by ID within a tenant
func (r *GormLeadRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*crm.Lead, error) {
	var model models.LeadModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists a tenant's leads with the total count
func (r *GormLeadRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]crm.Lead, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.LeadModel{}).Where("tenant_id = ?", tenantID)
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		base = base.Where("name LIKE ? OR phone LIKE ?", pattern, pattern)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var leadModels []models.LeadModel
	if err := base.
		Order("created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&leadModels).Error; err != nil {
		return nil, 0, err
	}

	leads := make([]crm.Lead, len(leadModels))
	for i, model := range leadModels {
		leads[i] = *model.ToDomain()
	}
	return leads, total, nil
}

// Save creates or updates a lead
func (r *GormLeadRepository) Save(ctx context.Context, lead *crm.Lead) error {
	model := models.LeadModelFromDomain(lead)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete removes a lead within a tenant
func (r *GormLeadRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.LeadModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ crm.LeadRepository = (*GormLeadRepository)(nil)
