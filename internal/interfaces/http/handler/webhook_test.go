package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	chatapp "github.com/nurcrm/backend/internal/application/chat"
	"github.com/nurcrm/backend/internal/domain/chat"
	"github.com/nurcrm/backend/internal/domain/shared"
	"github.com/nurcrm/backend/internal/infrastructure/cache"
	"github.com/nurcrm/backend/internal/infrastructure/realtime"
	"github.com/nurcrm/backend/internal/interfaces/http/middleware"
)

// ============================================================================
// Mock Repositories
// ============================================================================

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

// ============================================================================
// Fixture
// ============================================================================

const testWebhookSecret = "bridge-secret-for-tests"

type webhookTestEnv struct {
	router   *gin.Engine
	accounts *MockAccountRepository
	threads  *MockThreadRepository
	messages *MockMessageRepository
	sessions *MockBridgeSessionRepository
	hub      *realtime.Hub
}

func newWebhookTestEnv(t *testing.T) *webhookTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &webhookTestEnv{
		accounts: new(MockAccountRepository),
		threads:  new(MockThreadRepository),
		messages: new(MockMessageRepository),
		sessions: new(MockBridgeSessionRepository),
		hub:      realtime.NewHub(),
	}

	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	svc := chatapp.NewWebhookService(env.accounts, env.threads, env.messages, env.sessions,
		store, env.hub, time.Hour, zap.NewNop())
	h := NewWebhookHandler(svc, middleware.WebhookSecretMiddleware(testWebhookSecret, zap.NewNop()))

	env.router = gin.New()
	api := env.router.Group("/api/v1")
	h.RegisterRoutes(api)
	return env
}

func (env *webhookTestEnv) post(t *testing.T, path, secret string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(middleware.BridgeTokenHeader, secret)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// ============================================================================
// Tests
// ============================================================================

func TestWebhookHandler_RejectsMissingSecret(t *testing.T) {
	env := newWebhookTestEnv(t)
	tenantID := uuid.New()

	w := env.post(t, "/api/v1/webhooks/bridge/"+tenantID.String()+"/qr", "",
		QRWebhookRequest{QR: "data:image/png;base64,AAA"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	// Nothing may be touched before the gate.
	env.sessions.AssertNotCalled(t, "FindOrCreateByTenant", mock.Anything, mock.Anything)
}

func TestWebhookHandler_RejectsWrongSecret(t *testing.T) {
	env := newWebhookTestEnv(t)
	tenantID := uuid.New()

	w := env.post(t, "/api/v1/webhooks/bridge/"+tenantID.String()+"/status", "wrong-secret",
		StatusWebhookRequest{Status: "connected"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	env.sessions.AssertNotCalled(t, "FindOrCreateByTenant", mock.Anything, mock.Anything)
}

func TestWebhookHandler_OnQR_BridgeSession(t *testing.T) {
	env := newWebhookTestEnv(t)
	tenantID := uuid.New()
	session := chat.NewBridgeSession(tenantID)

	env.sessions.On("FindOrCreateByTenant", mock.Anything, tenantID).Return(session, nil)
	env.sessions.On("Save", mock.Anything, session).Return(nil)

	w := env.post(t, "/api/v1/webhooks/bridge/"+tenantID.String()+"/qr", testWebhookSecret,
		QRWebhookRequest{QR: "data:image/png;base64,AAA"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, chat.BridgeStatusPendingQR, session.Status)
}

func TestWebhookHandler_OnStatus_InvalidStatus(t *testing.T) {
	env := newWebhookTestEnv(t)
	tenantID := uuid.New()
	session := chat.NewBridgeSession(tenantID)

	env.sessions.On("FindOrCreateByTenant", mock.Anything, tenantID).Return(session, nil)

	w := env.post(t, "/api/v1/webhooks/bridge/"+tenantID.String()+"/status", testWebhookSecret,
		StatusWebhookRequest{Status: "hyperdrive"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_OnMessage_ReplaySafe(t *testing.T) {
	env := newWebhookTestEnv(t)
	tenantID := uuid.New()

	account, err := chat.NewAccount(tenantID, chat.PlatformMessenger, "company-wa")
	require.NoError(t, err)

	env.accounts.On("FindByPlatformForTenant", mock.Anything, tenantID, chat.PlatformMessenger).
		Return([]chat.Account{*account}, nil)
	env.accounts.On("FindByIDForTenant", mock.Anything, tenantID, account.ID).Return(account, nil)
	env.messages.On("Save", mock.Anything, mock.AnythingOfType("*chat.Message")).Return(nil).Once()
	env.threads.On("FindByExternalID", mock.Anything, account.ID, "77001@s.whatsapp.net").
		Return(nil, shared.ErrNotFound)
	env.threads.On("Save", mock.Anything, mock.AnythingOfType("*chat.Thread")).Return(nil)

	body := MessageWebhookRequest{
		EventID: "wa-ev-1",
		Message: MessageWebhookPayload{
			ExternalID: "wa-msg-1",
			ThreadID:   "77001@s.whatsapp.net",
			SenderID:   "77001",
			Text:       "salem",
			Timestamp:  time.Now().Unix(),
		},
	}

	path := "/api/v1/webhooks/bridge/" + tenantID.String() + "/message"
	first := env.post(t, path, testWebhookSecret, body)
	replay := env.post(t, path, testWebhookSecret, body)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, replay.Code)
	env.messages.AssertNumberOfCalls(t, "Save", 1)
}

func TestWebhookHandler_OnMessage_NoMessengerAccount(t *testing.T) {
	env := newWebhookTestEnv(t)
	tenantID := uuid.New()

	env.accounts.On("FindByPlatformForTenant", mock.Anything, tenantID, chat.PlatformMessenger).
		Return([]chat.Account{}, nil)

	w := env.post(t, "/api/v1/webhooks/bridge/"+tenantID.String()+"/message", testWebhookSecret,
		MessageWebhookRequest{
			EventID: "wa-ev-2",
			Message: MessageWebhookPayload{ExternalID: "wa-msg-2"},
		})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookHandler_InvalidTenantID(t *testing.T) {
	env := newWebhookTestEnv(t)

	w := env.post(t, "/api/v1/webhooks/bridge/not-a-uuid/qr", testWebhookSecret,
		QRWebhookRequest{QR: "data:image/png;base64,AAA"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
