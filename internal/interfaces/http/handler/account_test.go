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
	"github.com/nurcrm/backend/internal/interfaces/http/dto"
	"github.com/nurcrm/backend/internal/interfaces/http/middleware"
)

// MockChatClient is a mock implementation of chat.Client
type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) ResumeSession(ctx context.Context, sessionBlob []byte) ([]byte, error) {
	args := m.Called(ctx, sessionBlob)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockChatClient) LoginManual(ctx context.Context, password, verificationCode string) ([]byte, error) {
	args := m.Called(ctx, password, verificationCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockChatClient) FetchThreads(ctx context.Context, amount int) ([]chat.ThreadSnapshot, error) {
	args := m.Called(ctx, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.ThreadSnapshot), args.Error(1)
}

func (m *MockChatClient) FetchMessages(ctx context.Context, threadID string, limit int) ([]chat.MessageSnapshot, error) {
	args := m.Called(ctx, threadID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.MessageSnapshot), args.Error(1)
}

func (m *MockChatClient) SendText(ctx context.Context, threadID, text string) (*chat.MessageSnapshot, error) {
	args := m.Called(ctx, threadID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.MessageSnapshot), args.Error(1)
}

func (m *MockChatClient) Probe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockChatClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockChatClientFactory is a mock implementation of chat.ClientFactory
type MockChatClientFactory struct {
	mock.Mock
}

func (m *MockChatClientFactory) NewClient(ctx context.Context, account *chat.Account) (chat.Client, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(chat.Client), args.Error(1)
}

// fakeAuthContext injects the identity the JWT middleware would have set
func fakeAuthContext(tenantID, userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.JWTTenantIDKey, tenantID.String())
		c.Set(middleware.JWTUserIDKey, userID.String())
		c.Next()
	}
}

type accountTestEnv struct {
	router   *gin.Engine
	accounts *MockAccountRepository
	factory  *MockChatClientFactory
	pool     *chatapp.ClientPool
	tenantID uuid.UUID
}

func newAccountTestEnv(t *testing.T) *accountTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &accountTestEnv{
		accounts: new(MockAccountRepository),
		factory:  new(MockChatClientFactory),
		pool:     chatapp.NewClientPool(),
		tenantID: uuid.New(),
	}
	t.Cleanup(env.pool.Shutdown)

	auth := chatapp.NewAuthService(env.accounts, env.factory, env.pool, time.Second, time.Second, zap.NewNop())
	accountService := chatapp.NewAccountService(env.accounts, auth)
	autoLoginService := chatapp.NewAutoLoginService(env.accounts, auth, zap.NewNop())
	h := NewAccountHandler(accountService, autoLoginService, nil)

	env.router = gin.New()
	api := env.router.Group("/api/v1")
	api.Use(fakeAuthContext(env.tenantID, uuid.New()))
	h.RegisterRoutes(api)
	return env
}

func (env *accountTestEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAccountHandler_List(t *testing.T) {
	env := newAccountTestEnv(t)

	account, err := chat.NewAccount(env.tenantID, chat.PlatformPhoto, "studio")
	require.NoError(t, err)
	env.accounts.On("FindActiveForTenant", mock.Anything, env.tenantID).
		Return([]chat.Account{*account}, nil)

	w := env.do(t, http.MethodGet, "/api/v1/chat/accounts", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
}

func TestAccountHandler_Connect_Success(t *testing.T) {
	env := newAccountTestEnv(t)

	env.accounts.On("FindByUsername", mock.Anything, env.tenantID, chat.PlatformPhoto, "studio").
		Return(nil, shared.ErrNotFound)
	env.accounts.On("Save", mock.Anything, mock.AnythingOfType("*chat.Account")).Return(nil)

	client := new(MockChatClient)
	client.On("LoginManual", mock.Anything, "hunter2", "").Return([]byte("session"), nil)
	client.On("Close").Return(nil)
	env.factory.On("NewClient", mock.Anything, mock.AnythingOfType("*chat.Account")).Return(client, nil)

	w := env.do(t, http.MethodPost, "/api/v1/chat/accounts/connect", chatapp.ConnectAccountRequest{
		Platform: "photo",
		Username: "studio",
		Password: "hunter2",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ready", data["status"])
	assert.Equal(t, true, data["has_session"])
}

func TestAccountHandler_Connect_TwoFactorRequired(t *testing.T) {
	env := newAccountTestEnv(t)

	env.accounts.On("FindByUsername", mock.Anything, env.tenantID, chat.PlatformPhoto, "studio").
		Return(nil, shared.ErrNotFound)
	env.accounts.On("Save", mock.Anything, mock.AnythingOfType("*chat.Account")).Return(nil)

	client := new(MockChatClient)
	client.On("LoginManual", mock.Anything, "hunter2", "").Return(nil, chat.ErrTwoFactorRequired)
	client.On("Close").Return(nil)
	env.factory.On("NewClient", mock.Anything, mock.AnythingOfType("*chat.Account")).Return(client, nil)

	w := env.do(t, http.MethodPost, "/api/v1/chat/accounts/connect", chatapp.ConnectAccountRequest{
		Platform: "photo",
		Username: "studio",
		Password: "hunter2",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeTwoFactorRequired, resp.Error.Code)
}

func TestAccountHandler_Connect_RateLimited(t *testing.T) {
	env := newAccountTestEnv(t)

	env.accounts.On("FindByUsername", mock.Anything, env.tenantID, chat.PlatformPhoto, "studio").
		Return(nil, shared.ErrNotFound)
	env.accounts.On("Save", mock.Anything, mock.AnythingOfType("*chat.Account")).Return(nil)

	client := new(MockChatClient)
	client.On("LoginManual", mock.Anything, "hunter2", "").
		Return(nil, &chat.RateLimitedError{RetryAfter: 10 * time.Minute})
	client.On("Close").Return(nil)
	env.factory.On("NewClient", mock.Anything, mock.AnythingOfType("*chat.Account")).Return(client, nil)

	w := env.do(t, http.MethodPost, "/api/v1/chat/accounts/connect", chatapp.ConnectAccountRequest{
		Platform: "photo",
		Username: "studio",
		Password: "hunter2",
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "600", w.Header().Get("Retry-After"))
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeRateLimited, resp.Error.Code)
}

func TestAccountHandler_Connect_InvalidPlatform(t *testing.T) {
	env := newAccountTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/chat/accounts/connect", chatapp.ConnectAccountRequest{
		Platform: "carrier-pigeon",
		Username: "studio",
		Password: "hunter2",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env.accounts.AssertNotCalled(t, "FindByUsername", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountHandler_Login_NoCredentialsNoSession(t *testing.T) {
	env := newAccountTestEnv(t)

	account, err := chat.NewAccount(env.tenantID, chat.PlatformPhoto, "studio")
	require.NoError(t, err)
	env.accounts.On("FindByIDForTenant", mock.Anything, env.tenantID, account.ID).Return(account, nil)

	w := env.do(t, http.MethodPost, "/api/v1/chat/accounts/"+account.ID.String()+"/login", chatapp.LoginRequest{})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeManualLoginRequired, resp.Error.Code)
}

func TestAccountHandler_Logout(t *testing.T) {
	env := newAccountTestEnv(t)

	account, err := chat.NewAccount(env.tenantID, chat.PlatformPhoto, "studio")
	require.NoError(t, err)
	env.accounts.On("FindByIDForTenant", mock.Anything, env.tenantID, account.ID).Return(account, nil)
	env.accounts.On("Save", mock.Anything, account).Return(nil)

	w := env.do(t, http.MethodPost, "/api/v1/chat/accounts/"+account.ID.String()+"/logout", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, chat.AccountStatusInactive, account.Status)
}

func TestAccountHandler_AutoLogin(t *testing.T) {
	env := newAccountTestEnv(t)

	env.accounts.On("FindActiveForTenant", mock.Anything, env.tenantID).Return([]chat.Account{}, nil)

	w := env.do(t, http.MethodPost, "/api/v1/chat/accounts/autologin", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
}

func TestAccountHandler_Get_InvalidID(t *testing.T) {
	env := newAccountTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/chat/accounts/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
