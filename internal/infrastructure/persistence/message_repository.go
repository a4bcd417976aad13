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

// GormMessageRepository implements chat.MessageRepository using GORM
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GormMessageRepository
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// FindByExternalID finds a message by its external id within an account
func (r *GormMessageRepository) FindByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*chat.Message, error) {
	var model models.MessageModel
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

// FindForThread lists a thread's messages in chronological order
func (r *GormMessageRepository) FindForThread(ctx context.Context, accountID uuid.UUID, threadRef string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var messageModels []models.MessageModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND thread_ref = ?", accountID, threadRef).
		Order("sent_at ASC").
		Limit(limit).
		Find(&messageModels).Error; err != nil {
		return nil, err
	}

	messages := make([]chat.Message, len(messageModels))
	for i, model := range messageModels {
		messages[i] = *model.ToDomain()
	}
	return messages, nil
}

// Save inserts a message. A concurrent insert of the same external id makes
// the second writer observe shared.ErrAlreadyExists via the unique index.
func (r *GormMessageRepository) Save(ctx context.Context, message *chat.Message) error {
	model := models.MessageModelFromDomain(message)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// ExistsByExternalID reports whether a message with the external id exists
func (r *GormMessageRepository) ExistsByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.MessageModel{}).
		Where("account_id = ? AND external_id = ?", accountID, externalID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ chat.MessageRepository = (*GormMessageRepository)(nil)
