package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/nurcrm/backend/internal/domain/chat"
	"github.com/nurcrm/backend/internal/domain/shared"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockAccountRepository is a mock implementation of chat.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*chat.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*chat.Account, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByUsername(ctx context.Context, tenantID uuid.UUID, platform chat.Platform, username string) (*chat.Account, error) {
	args := m.Called(ctx, tenantID, platform, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Account), args.Error(1)
}

func (m *MockAccountRepository) FindActiveForTenant(ctx context.Context, tenantID uuid.UUID) ([]chat.Account, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByPlatformForTenant(ctx context.Context, tenantID uuid.UUID, platform chat.Platform) ([]chat.Account, error) {
	args := m.Called(ctx, tenantID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.Account), args.Error(1)
}

func (m *MockAccountRepository) Save(ctx context.Context, account *chat.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

// MockThreadRepository is a mock implementation of chat.ThreadRepository
type MockThreadRepository struct {
	mock.Mock
}

func (m *MockThreadRepository) FindByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*chat.Thread, error) {
	args := m.Called(ctx, accountID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Thread), args.Error(1)
}

func (m *MockThreadRepository) FindForAccount(ctx context.Context, accountID uuid.UUID, filter shared.Filter) ([]chat.Thread, error) {
	args := m.Called(ctx, accountID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.Thread), args.Error(1)
}

func (m *MockThreadRepository) Save(ctx context.Context, thread *chat.Thread) error {
	args := m.Called(ctx, thread)
	return args.Error(0)
}

// MockMessageRepository is a mock implementation of chat.MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) FindByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (*chat.Message, error) {
	args := m.Called(ctx, accountID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.Message), args.Error(1)
}

func (m *MockMessageRepository) FindForThread(ctx context.Context, accountID uuid.UUID, threadRef string, limit int) ([]chat.Message, error) {
	args := m.Called(ctx, accountID, threadRef, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.Message), args.Error(1)
}

func (m *MockMessageRepository) Save(ctx context.Context, message *chat.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) ExistsByExternalID(ctx context.Context, accountID uuid.UUID, externalID string) (bool, error) {
	args := m.Called(ctx, accountID, externalID)
	return args.Bool(0), args.Error(1)
}

// MockBridgeSessionRepository is a mock implementation of chat.BridgeSessionRepository
type MockBridgeSessionRepository struct {
	mock.Mock
}

func (m *MockBridgeSessionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*chat.BridgeSession, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.BridgeSession), args.Error(1)
}

func (m *MockBridgeSessionRepository) FindOrCreateByTenant(ctx context.Context, tenantID uuid.UUID) (*chat.BridgeSession, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.BridgeSession), args.Error(1)
}

func (m *MockBridgeSessionRepository) Save(ctx context.Context, session *chat.BridgeSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

// =============================================================================
// Mock Client & Factory
// =============================================================================

// MockClient is a mock implementation of chat.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) ResumeSession(ctx context.Context, sessionBlob []byte) ([]byte, error) {
	args := m.Called(ctx, sessionBlob)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockClient) LoginManual(ctx context.Context, password, verificationCode string) ([]byte, error) {
	args := m.Called(ctx, password, verificationCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockClient) FetchThreads(ctx context.Context, amount int) ([]chat.ThreadSnapshot, error) {
	args := m.Called(ctx, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.ThreadSnapshot), args.Error(1)
}

func (m *MockClient) FetchMessages(ctx context.Context, threadID string, limit int) ([]chat.MessageSnapshot, error) {
	args := m.Called(ctx, threadID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.MessageSnapshot), args.Error(1)
}

func (m *MockClient) SendText(ctx context.Context, threadID, text string) (*chat.MessageSnapshot, error) {
	args := m.Called(ctx, threadID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.MessageSnapshot), args.Error(1)
}

func (m *MockClient) Probe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockClientFactory is a mock implementation of chat.ClientFactory
type MockClientFactory struct {
	mock.Mock
}

func (m *MockClientFactory) NewClient(ctx context.Context, account *chat.Account) (chat.Client, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(chat.Client), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Forget(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
