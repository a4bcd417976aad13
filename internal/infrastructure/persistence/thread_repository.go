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

// GormThreadRepository implements chat.ThreadRepository using GORM
type GormThreadRepository struct {
	db *gorm.DB
}

// NewGormThreadRepository creates a new GormThreadRepository
func NewGormThreadRepository(db *gorm.DB) *GormThreadRepository {
	return &GormThreadRepository{db: db}
}

// FindByExternalID finds a thread by its external id within an account
func (r *GormThreadRepository) FindByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*chat.Thread, error) {
	var model models.ThreadModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND external_id = ?", accountID, externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindForAccount lists an account's threads, most recently active first
func (r *GormThreadRepository) FindForAccount(ctx context.Context, accountID uuid.UUID, filter shared.Filter) ([]chat.Thread, error) {
	var threadModels []models.ThreadModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("last_activity DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&threadModels).Error; err != nil {
		return nil, err
	}

	threads := make([]chat.Thread, len(threadModels))
	for i, model := range threadModels {
		threads[i] = *model.ToDomain()
	}
	return threads, nil
}

// Save creates or updates a thread
func (r *GormThreadRepository) Save(ctx context.Context, thread *chat.Thread) error {
	model := models.ThreadModelFromDomain(thread)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

var _ chat.ThreadRepository = (*GormThreadRepository)(nil)
