package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nurcrm/backend/internal/domain/chat"
	"github.com/nurcrm/backend/internal/domain/shared"
	"github.com/nurcrm/backend/internal/infrastructure/cache"
	"github.com/nurcrm/backend/internal/infrastructure/realtime"
)

type webhookFixture struct {
	accounts *MockAccountRepository
	threads  *MockThreadRepository
	messages *MockMessageRepository
	sessions *MockBridgeSessionRepository
	hub      *realtime.Hub
	svc      *WebhookService
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	f := &webhookFixture{
		accounts: new(MockAccountRepository),
		threads:  new(MockThreadRepository),
		messages: new(MockMessageRepository),
		sessions: new(MockBridgeSessionRepository),
		hub:      realtime.NewHub(),
	}
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	f.svc = NewWebhookService(f.accounts, f.threads, f.messages, f.sessions, store, f.hub, time.Hour, zap.NewNop())
	return f
}

func drainEvents(sub *realtime.Subscription, wait time.Duration) []realtime.Event {
	var events []realtime.Event
	timeout := time.After(wait)
	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			return events
		}
	}
}

func TestWebhookService_OnQR_AccountScoped(t *testing.T) {
	f := newWebhookFixture(t)
	tenantID := uuid.New()

	account, err := chat.NewAccount(tenantID, chat.PlatformPhoto, "user")
	require.NoError(t, err)

	f.accounts.On("FindByIDForTenant", mock.Anything, tenantID, account.ID).Return(account, nil)
	f.accounts.On("Save", mock.Anything, account).Return(nil)

	sub := f.hub.Subscribe(tenantID, realtime.TopicQR)
	defer sub.Close()

	err = f.svc.OnQR(context.Background(), tenantID, account.ID, "data:image/png;base64,AAA")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAA", account.LastQR)

	events := drainEvents(sub, 100*time.Millisecond)
	require.Len(t, events, 1)
	assert.Equal(t, "data:image/png;base64,AAA", events[0].Payload["qr"])
}

func TestWebhookService_OnQR_NotifiesStatusWatchers(t *testing.T) {
	f := newWebhookFixture(t)
	tenantID := uuid.New()
	session := chat.NewBridgeSession(tenantID)

	f.sessions.On("FindOrCreateByTenant", mock.Anything, tenantID).Return(session, nil)
	f.sessions.On("Save", mock.Anything, session).Return(nil)

	statusSub := f.hub.Subscribe(tenantID, realtime.TopicStatus)
	defer statusSub.Close()

	require.NoError(t, f.svc.OnQR(context.Background(), tenantID, uuid.Nil, "data:image/png;base64,QR"))

	// A subscriber watching only the status topic still learns the bridge
	// moved to pending_qr.
	events := drainEvents(statusSub, 100*time.Millisecond)
	require.Len(t, events, 1)
	assert.Equal(t, string(chat.BridgeStatusPendingQR), events[0].Payload["status"])
	assert.Equal(t, "data:image/png;base64,QR", events[0].Payload["qr"])
}

func TestWebhookService_OnQR_BridgeScoped(t *testing.T) {
	f := newWebhookFixture(t)
	tenantID := uuid.New()
	session := chat.NewBridgeSession(tenantID)

	f.sessions.On("FindOrCreateByTenant", mock.Anything, tenantID).Return(session, nil)
	f.sessions.On("Save", mock.Anything, session).Return(nil)

	err := f.svc.OnQR(context.Background(), tenantID, uuid.Nil, "data:image/png;base64,QR")
	require.NoError(t, err)
	assert.Equal(t, chat.BridgeStatusPendingQR, session.Status)
	assert.Equal(t, "data:image/png;base64,QR", session.LastQR)
}

func TestWebhookService_OnQR_EmptyPayloadRejected(t *testing.T) {
	f := newWebhookFixture(t)
	err := f.svc.OnQR(context.Background(), uuid.New(), uuid.Nil, "")
	assert.Error(t, err)
}

func TestWebhookService_OnStatus_BridgeConnectedClearsQR(t *testing.T) {
	f := newWebhookFixture(t)
	tenantID := uuid.New()
	session := chat.NewBridgeSession(tenantID)
	session.SetQR("data:image/png;base64,QR")

	f.sessions.On("FindOrCreateByTenant", mock.Anything, tenantID).Return(session, nil)
	f.sessions.On("Save", mock.Anything, session).Return(nil)

	sub := f.hub.Subscribe(tenantID, realtime.TopicStatus)
	defer sub.Close()

	err := f.svc.OnStatus(context.Background(), tenantID, uuid.Nil, "connected", "+7700***4567")
	require.NoError(t, err)
	assert.Equal(t, chat.BridgeStatusConnected, session.Status)
	assert.Empty(t, session.LastQR)
	assert.Equal(t, "+7700***4567", session.PhoneHint)

	events := drainEvents(sub, 100*time.Millisecond)
	require.Len(t, events, 1)
	assert.Equal(t, "connected", events[0].Payload["status"])
}

func TestWebhookService_OnStatus_UnknownStatusRejected(t *testing.T) {
	f := newWebhookFixture(t)
	tenantID := uuid.New()
	session := chat.NewBridgeSession(tenantID)

	f.sessions.On("FindOrCreateByTenant", mock.Anything, tenantID).Return(session, nil)

	err := f.svc.OnStatus(context.Background(), tenantID, uuid.Nil, "warp-speed", "")
	assert.Error(t, err)
	f.sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestWebhookService_OnMessage_StoresOncePublishesOnce(t *testing.T) {
	f := newWebhookFixture(t)
	tenantID := uuid.New()

	account, err := chat.NewAccount(tenantID, chat.PlatformMessenger, "user")
	require.NoError(t, err)

	snap := chat.MessageSnapshot{
		ExternalID: "ev-100",
		ThreadID:   "77001234567@s.whatsapp.net",
		SenderID:   "77001234567",
		Text:       "hello",
		SentAt:     time.Now().UTC(),
	}

	f.accounts.On("FindByIDForTenant", mock.Anything, tenantID, account.ID).Return(account, nil)
	f.messages.On("Save", mock.Anything, mock.AnythingOfType("*chat.Message")).Return(nil).Once()
	f.threads.On("FindByExternalID", mock.Anything, account.ID, snap.ThreadID).Return(nil, shared.ErrNotFound)
	f.threads.On("Save", mock.Anything, mock.AnythingOfType("*chat.Thread")).Return(nil)

	sub := f.hub.Subscribe(tenantID, realtime.TopicMessage)
	defer sub.Close()

	// First delivery stores and publishes.
	require.NoError(t, f.svc.OnMessage(context.Background(), tenantID, account.ID, "ev-100", snap))
	// Replay is a successful no-op.
	require.NoError(t, f.svc.OnMessage(context.Background(), tenantID, account.ID, "ev-100", snap))

	events := drainEvents(sub, 100*time.Millisecond)
	assert.Len(t, events, 1)
	f.messages.AssertNumberOfCalls(t, "Save", 1)
}

func TestWebhookService_OnMessage_UniqueIndexBackstop(t *testing.T) {
	f := newWebhookFixture(t)
	tenantID := uuid.New()

	account, err := chat.NewAccount(tenantID, chat.PlatformMessenger, "user")
	require.NoError(t, err)

	snap := chat.MessageSnapshot{ExternalID: "ev-200", ThreadID: "t-1", Text: "dup"}

	f.accounts.On("FindByIDForTenant", mock.Anything, tenantID, account.ID).Return(account, nil)
	// The idempotency store missed the replay; the unique index catches it.
	f.messages.On("Save", mock.Anything, mock.AnythingOfType("*chat.Message")).Return(shared.ErrAlreadyExists)

	sub := f.hub.Subscribe(tenantID, realtime.TopicMessage)
	defer sub.Close()

	err = f.svc.OnMessage(context.Background(), tenantID, account.ID, "ev-200-other-key", snap)
	require.NoError(t, err)

	events := drainEvents(sub, 100*time.Millisecond)
	assert.Empty(t, events)
	f.threads.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestWebhookService_OnMessage_FailedDeliveryStaysRetryable(t *testing.T) {
	f := newWebhookFixture(t)
	tenantID := uuid.New()

	account, err := chat.NewAccount(tenantID, chat.PlatformMessenger, "user")
	require.NoError(t, err)

	snap := chat.MessageSnapshot{ExternalID: "ev-400", ThreadID: "t-4", Text: "flaky", SentAt: time.Now().UTC()}

	f.accounts.On("FindByIDForTenant", mock.Anything, tenantID, account.ID).Return(account, nil)
	// First save hits a transient storage error, the retry goes through.
	f.messages.On("Save", mock.Anything, mock.AnythingOfType("*chat.Message")).
		Return(errors.New("connection reset")).Once()
	f.messages.On("Save", mock.Anything, mock.AnythingOfType("*chat.Message")).Return(nil).Once()
	f.threads.On("FindByExternalID", mock.Anything, account.ID, "t-4").Return(nil, shared.ErrNotFound)
	f.threads.On("Save", mock.Anything, mock.AnythingOfType("*chat.Thread")).Return(nil)

	sub := f.hub.Subscribe(tenantID, realtime.TopicMessage)
	defer sub.Close()

	require.Error(t, f.svc.OnMessage(context.Background(), tenantID, account.ID, "ev-400", snap))
	// The failed delivery released its idempotency mark, so the bridge's
	// redelivery is processed, not dropped as a replay.
	require.NoError(t, f.svc.OnMessage(context.Background(), tenantID, account.ID, "ev-400", snap))

	f.messages.AssertNumberOfCalls(t, "Save", 2)
	events := drainEvents(sub, 100*time.Millisecond)
	assert.Len(t, events, 1)
}

func TestWebhookService_OnMessage_MissingEventIDRejected(t *testing.T) {
	f := newWebhookFixture(t)
	err := f.svc.OnMessage(context.Background(), uuid.New(), uuid.New(), "", chat.MessageSnapshot{})
	assert.Error(t, err)
}

func TestWebhookService_OnMessage_RefreshesExistingThread(t *testing.T) {
	f := newWebhookFixture(t)
	tenantID := uuid.New()

	account, err := chat.NewAccount(tenantID, chat.PlatformMessenger, "user")
	require.NoError(t, err)

	thread, err := chat.NewThread(tenantID, account.ID, chat.ThreadSnapshot{
		ThreadID:     "t-9",
		LastActivity: time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)

	snap := chat.MessageSnapshot{ExternalID: "ev-300", ThreadID: "t-9", Text: "newer", SentAt: time.Now().UTC()}

	f.accounts.On("FindByIDForTenant", mock.Anything, tenantID, account.ID).Return(account, nil)
	f.messages.On("Save", mock.Anything, mock.AnythingOfType("*chat.Message")).Return(nil)
	f.threads.On("FindByExternalID", mock.Anything, account.ID, "t-9").Return(thread, nil)
	f.threads.On("Save", mock.Anything, thread).Return(nil)

	require.NoError(t, f.svc.OnMessage(context.Background(), tenantID, account.ID, "ev-300", snap))
	assert.WithinDuration(t, snap.SentAt, thread.LastActivity, time.Second)
	f.threads.AssertCalled(t, "Save", mock.Anything, thread)
}
