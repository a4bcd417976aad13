package chatgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nurcrm/backend/internal/domain/chat"
)

func newTestAccount(t *testing.T) *chat.Account {
	t.Helper()
	account, err := chat.NewAccount(uuid.New(), chat.PlatformPhoto, "alice")
	require.NoError(t, err)
	return account
}

func newTestFactory(t *testing.T, handler http.Handler) (*Factory, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	factory, err := NewFactory(&Config{
		BaseURL: server.URL,
		Token:   "gw-token",
	}, zap.NewNop())
	require.NoError(t, err)
	return factory, server
}

func TestFactory_ValidatesConfig(t *testing.T) {
	_, err := NewFactory(&Config{}, zap.NewNop())
	require.Error(t, err)

	_, err = NewFactory(&Config{BaseURL: "ftp://bad"}, zap.NewNop())
	require.Error(t, err)
}

func TestClient_ResumeSession_Success(t *testing.T) {
	var gotAuth string
	factory, _ := newTestFactory(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sessions/resume", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req resumeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "photo", req.Platform)
		assert.Equal(t, "alice", req.Username)

		json.NewEncoder(w).Encode(sessionResponse{SessionBlob: []byte("refreshed")})
	}))

	cl, err := factory.NewClient(context.Background(), newTestAccount(t))
	require.NoError(t, err)

	blob, err := cl.ResumeSession(context.Background(), []byte("stale"))
	require.NoError(t, err)
	assert.Equal(t, []byte("refreshed"), blob)
	assert.Equal(t, "Bearer gw-token", gotAuth)
}

func TestClient_ResumeSession_Expired(t *testing.T) {
	factory, _ := newTestFactory(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(sessionResponse{
			errorEnvelope: errorEnvelope{Error: &gatewayError{Code: codeSessionExpired, Message: "session expired"}},
		})
	}))

	cl, err := factory.NewClient(context.Background(), newTestAccount(t))
	require.NoError(t, err)

	_, err = cl.ResumeSession(context.Background(), []byte("stale"))
	assert.ErrorIs(t, err, chat.ErrSessionExpired)
}

func TestClient_LoginManual_ErrorTranslation(t *testing.T) {
	cases := []struct {
		name    string
		geErr   gatewayError
		wantErr error
	}{
		{"two factor", gatewayError{Code: codeTwoFactorRequired}, chat.ErrTwoFactorRequired},
		{"challenge", gatewayError{Code: codeChallengeRequired}, chat.ErrChallengeRequired},
		{"auth failed", gatewayError{Code: codeAuthFailed}, chat.ErrAuthFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			factory, _ := newTestFactory(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(sessionResponse{
					errorEnvelope: errorEnvelope{Error: &tc.geErr},
				})
			}))

			cl, err := factory.NewClient(context.Background(), newTestAccount(t))
			require.NoError(t, err)

			_, err = cl.LoginManual(context.Background(), "secret", "")
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestClient_LoginManual_RateLimited(t *testing.T) {
	factory, _ := newTestFactory(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(sessionResponse{
			errorEnvelope: errorEnvelope{Error: &gatewayError{
				Code:              codeRateLimited,
				Message:           "please wait a few minutes",
				RetryAfterSeconds: 300,
			}},
		})
	}))

	cl, err := factory.NewClient(context.Background(), newTestAccount(t))
	require.NoError(t, err)

	_, err = cl.LoginManual(context.Background(), "secret", "")
	rateLimited, ok := chat.AsRateLimited(err)
	require.True(t, ok, "expected rate limited error, got %v", err)
	assert.Equal(t, 5*time.Minute, rateLimited.RetryAfter)
}

func TestClient_FetchThreads(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	factory, _ := newTestFactory(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/threads/list", r.URL.Path)
		json.NewEncoder(w).Encode(threadsResponse{
			Threads: []threadPayload{
				{
					ID:           "t-1",
					Title:        "Customer chat",
					Participants: []participantPayload{{ID: "u-9", Username: "bob"}},
					LastActivity: now,
				},
			},
		})
	}))

	cl, err := factory.NewClient(context.Background(), newTestAccount(t))
	require.NoError(t, err)

	threads, err := cl.FetchThreads(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "t-1", threads[0].ThreadID)
	assert.Equal(t, "Customer chat", threads[0].Title)
	require.Len(t, threads[0].Participants, 1)
	assert.Equal(t, "bob", threads[0].Participants[0].Username)
	assert.True(t, threads[0].LastActivity.Equal(now))
}

func TestClient_SendText(t *testing.T) {
	factory, _ := newTestFactory(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(sendResponse{
			Message: &messagePayload{
				ID:       "m-1",
				SenderID: "self",
				Text:     req.Text,
				SentAt:   time.Now().UTC(),
			},
		})
	}))

	cl, err := factory.NewClient(context.Background(), newTestAccount(t))
	require.NoError(t, err)

	msg, err := cl.SendText(context.Background(), "t-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "t-1", msg.ThreadID)
	assert.Equal(t, chat.DirectionOut, msg.Direction)
}

func TestClient_Probe_DeadSession(t *testing.T) {
	factory, _ := newTestFactory(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(probeResponse{Alive: false})
	}))

	cl, err := factory.NewClient(context.Background(), newTestAccount(t))
	require.NoError(t, err)

	assert.ErrorIs(t, cl.Probe(context.Background()), chat.ErrSessionExpired)
}

func TestClient_GatewayDown(t *testing.T) {
	factory, _ := newTestFactory(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	cl, err := factory.NewClient(context.Background(), newTestAccount(t))
	require.NoError(t, err)

	_, err = cl.ResumeSession(context.Background(), nil)
	assert.ErrorIs(t, err, chat.ErrBridgeDown)
}
