package chat

import (
	"context"

	"github.com/google/uuid"

	"github.com/nurcrm/backend/internal/domain/shared"
)

// AccountRepository persists chat accounts
type AccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Account, error)
	FindByUsername(ctx context.Context, tenantID uuid.UUID, platform Platform, username string) (*Account, error)
	FindActiveForTenant(ctx context.Context, tenantID uuid.UUID) ([]Account, error)
	FindByPlatformForTenant(ctx context.Context, tenantID uuid.UUID, platform Platform) ([]Account, error)
	Save(ctx context.Context, account *Account) error
}

// ThreadRepository persists mirrored conversation threads
type ThreadRepository interface {
	FindByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*Thread, error)
	FindForAccount(ctx context.Context, accountID uuid.UUID, filter shared.Filter) ([]Thread, error)
	Save(ctx context.Context, thread *Thread) error
}

// MessageRepository persists chat messages. Save must be safe against
// concurrent inserts of the same external id: the second writer observes
// shared.ErrAlreadyExists.
type MessageRepository interface {
	FindByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*Message, error)
	FindForThread(ctx context.Context, accountID uuid.UUID, threadRef string, limit int) ([]Message, error)
	Save(ctx context.Context, message *Message) error
	ExistsByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (bool, error)
}

// BridgeSessionRepository persists per-company bridge sessions
type BridgeSessionRepository interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*BridgeSession, error)
	// FindOrCreateByTenant returns the tenant's session, creating the
	// disconnected one on first use.
	FindOrCreateByTenant(ctx context.Context, tenantID uuid.UUID) (*BridgeSession, error)
	Save(ctx context.Context, session *BridgeSession) error
}
