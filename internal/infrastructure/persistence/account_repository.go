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

// GormAccountRepository implements chat.AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// FindByID finds an account by its ID
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*chat.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds an account by ID within a tenant
func (r *GormAccountRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*chat.Account, error) {
	var model models.AccountModel
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

// FindByUsername finds an account by platform and username within a tenant
func (r *GormAccountRepository) FindByUsername(ctx context.Context, tenantID uuid.UUID, platform chat.Platform, username string) (*chat.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ? AND username = ?", tenantID, platform, username).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveForTenant finds all non-deactivated accounts of a tenant
func (r *GormAccountRepository) FindActiveForTenant(ctx context.Context, tenantID uuid.UUID) ([]chat.Account, error) {
	var accountModels []models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status <> ?", tenantID, chat.AccountStatusInactive).
		Order("created_at ASC").
		Find(&accountModels).Error; err != nil {
		return nil, err
	}

	accounts := make([]chat.Account, len(accountModels))
	for i, model := range accountModels {
		accounts[i] = *model.ToDomain()
	}
	return accounts, nil
}

// FindByPlatformForTenant finds a tenant's accounts on one platform
func (r *GormAccountRepository) FindByPlatformForTenant(ctx context.Context, tenantID uuid.UUID, platform chat.Platform) ([]chat.Account, error) {
	var accountModels []models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND platform = ?", tenantID, platform).
		Order("created_at ASC").
		Find(&accountModels).Error; err != nil {
		return nil, err
	}

	accounts := make([]chat.Account, len(accountModels))
	for i, model := range accountModels {
		accounts[i] = *model.ToDomain()
	}
	return accounts, nil
}

// Save creates or updates an account
func (r *GormAccountRepository) Save(ctx context.Context, account *chat.Account) error {
	model := models.AccountModelFromDomain(account)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

var _ chat.AccountRepository = (*GormAccountRepository)(nil)
