package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurcrm/backend/internal/domain/chat"
	"github.com/nurcrm/backend/internal/domain/shared"
	"github.com/nurcrm/backend/internal/infrastructure/persistence/models"
)

// GormBridgeSessionRepository implements chat.BridgeSessionRepository using GORM
type GormBridgeSessionRepository struct {
	db *gorm.DB
}

// NewGormBridgeSessionRepository creates a new GormBridgeSessionRepository
func NewGormBridgeSessionRepository(db *gorm.DB) *GormBridgeSessionRepository {
	return &GormBridgeSessionRepository{db: db}
}

// FindByTenant finds the tenant's bridge session
func (r *GormBridgeSessionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*chat.BridgeSession, error) {
	var model models.BridgeSessionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOrCreateByTenant returns the tenant's session, creating the
// disconnected one on first use. A concurrent first use loses the insert
// race and reads the winner's row.
func (r *GormBridgeSessionRepository) FindOrCreateByTenant(ctx context.Context, tenantID uuid.UUID) (*chat.BridgeSession, error) {
	session, err := r.FindByTenant(ctx, tenantID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	session = chat.NewBridgeSession(tenantID)
	model := models.BridgeSessionModelFromDomain(session)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return r.FindByTenant(ctx, tenantID)
		}
		return nil, err
	}
	return session, nil
}

// Save updates a bridge session
func (r *GormBridgeSessionRepository) Save(ctx context.Context, session *chat.BridgeSession) error {
	model := models.BridgeSessionModelFromDomain(session)
	return r.db.WithContext(ctx).Save(model).Error
}

var _ chat.BridgeSessionRepository = (*GormBridgeSessionRepository)(nil)
