package chatgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nurcrm/backend/internal/domain/chat"
)

// Factory creates gateway-backed chat clients
type Factory struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewFactory creates a client factory for the chat gateway
func NewFactory(config *Config, logger *zap.Logger) (*Factory, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Factory{
		config: config,
		httpClient: &http.Client{
			// Per-request deadlines come from context; this is the hard ceiling.
			Timeout: config.LoginTimeout + 15*time.Second,
		},
		logger: logger,
	}, nil
}

// NewClient creates a client bound to one account.
// The client carries the account's session blob and refreshes it on resume.
func (f *Factory) NewClient(_ context.Context, account *chat.Account) (chat.Client, error) {
	if account == nil {
		return nil, fmt.Errorf("chatgateway: account is required")
	}

	return &client{
		factory:  f,
		platform: string(account.Platform),
		username: account.Username,
		blob:     account.SessionBlob,
	}, nil
}

var _ chat.ClientFactory = (*Factory)(nil)

type client struct {
	factory  *Factory
	platform string
	username string

	mu   sync.RWMutex
	blob []byte
}

func (c *client) currentBlob() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blob
}

func (c *client) setBlob(blob []byte) {
	c.mu.Lock()
	c.blob = blob
	c.mu.Unlock()
}

// ResumeSession validates the stored session blob against the platform.
// On success the possibly refreshed blob is retained and returned.
func (c *client) ResumeSession(ctx context.Context, blob []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.factory.config.ResumeTimeout)
	defer cancel()

	var resp sessionResponse
	err := c.factory.doRequest(ctx, "/v1/sessions/resume", resumeRequest{
		Platform:    c.platform,
		Username:    c.username,
		SessionBlob: blob,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := translateError(resp.Error); err != nil {
		return nil, err
	}

	c.setBlob(resp.SessionBlob)
	return resp.SessionBlob, nil
}

// LoginManual performs a credentialed login, optionally with a 2FA code
func (c *client) LoginManual(ctx context.Context, password, verificationCode string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.factory.config.LoginTimeout)
	defer cancel()

	var resp sessionResponse
	err := c.factory.doRequest(ctx, "/v1/sessions/login", loginRequest{
		Platform:         c.platform,
		Username:         c.username,
		Password:         password,
		VerificationCode: verificationCode,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := translateError(resp.Error); err != nil {
		return nil, err
	}

	c.setBlob(resp.SessionBlob)
	return resp.SessionBlob, nil
}

// FetchThreads pulls the most recent threads for the account
func (c *client) FetchThreads(ctx context.Context, amount int) ([]chat.ThreadSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.factory.config.FetchTimeout)
	defer cancel()

	var resp threadsResponse
	err := c.factory.doRequest(ctx, "/v1/threads/list", threadsRequest{
		Platform:    c.platform,
		Username:    c.username,
		SessionBlob: c.currentBlob(),
		Amount:      amount,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := translateError(resp.Error); err != nil {
		return nil, err
	}

	threads := make([]chat.ThreadSnapshot, 0, len(resp.Threads))
	for _, t := range resp.Threads {
		threads = append(threads, toThreadSnapshot(t))
	}
	return threads, nil
}

// FetchMessages pulls recent messages from a thread
func (c *client) FetchMessages(ctx context.Context, threadID string, limit int) ([]chat.MessageSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.factory.config.FetchTimeout)
	defer cancel()

	var resp messagesResponse
	err := c.factory.doRequest(ctx, "/v1/threads/messages", messagesRequest{
		Platform:    c.platform,
		Username:    c.username,
		SessionBlob: c.currentBlob(),
		ThreadID:    threadID,
		Limit:       limit,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := translateError(resp.Error); err != nil {
		return nil, err
	}

	messages := make([]chat.MessageSnapshot, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		snap := toMessageSnapshot(m)
		snap.ThreadID = threadID
		messages = append(messages, snap)
	}
	return messages, nil
}

// SendText sends a text message into a thread
func (c *client) SendText(ctx context.Context, threadID, text string) (*chat.MessageSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.factory.config.FetchTimeout)
	defer cancel()

	var resp sendResponse
	err := c.factory.doRequest(ctx, "/v1/messages/send", sendRequest{
		Platform:    c.platform,
		Username:    c.username,
		SessionBlob: c.currentBlob(),
		ThreadID:    threadID,
		Text:        text,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if err := translateError(resp.Error); err != nil {
		return nil, err
	}
	if resp.Message == nil {
		return nil, fmt.Errorf("chatgateway: send returned no message")
	}

	snap := toMessageSnapshot(*resp.Message)
	snap.ThreadID = threadID
	snap.Direction = chat.DirectionOut
	return &snap, nil
}

// Probe checks whether the session is still alive on the platform
func (c *client) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.factory.config.ResumeTimeout)
	defer cancel()

	var resp probeResponse
	err := c.factory.doRequest(ctx, "/v1/sessions/probe", probeRequest{
		Platform:    c.platform,
		Username:    c.username,
		SessionBlob: c.currentBlob(),
	}, &resp)
	if err != nil {
		return err
	}
	if err := translateError(resp.Error); err != nil {
		return err
	}
	if !resp.Alive {
		return chat.ErrSessionExpired
	}
	return nil
}

// Close releases the client. The gateway holds no per-client server state.
func (c *client) Close() error {
	return nil
}

var _ chat.Client = (*client)(nil)

func (f *Factory) doRequest(ctx context.Context, path string, payload any, out any) error {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("chatgateway: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.config.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("chatgateway: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if f.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.config.Token)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", chat.ErrBridgeDown, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("chatgateway: failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: HTTP %d", chat.ErrBridgeDown, resp.StatusCode)
	}

	// 4xx responses carry an error envelope the caller translates.
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("chatgateway: failed to parse response: %w", err)
	}
	return nil
}

// translateError maps gateway error codes to domain errors
func translateError(ge *gatewayError) error {
	if ge == nil {
		return nil
	}
	switch ge.Code {
	case codeTwoFactorRequired:
		return chat.ErrTwoFactorRequired
	case codeChallengeRequired:
		return chat.ErrChallengeRequired
	case codeRateLimited:
		retryAfter := time.Duration(ge.RetryAfterSeconds) * time.Second
		if retryAfter <= 0 {
			retryAfter = 5 * time.Minute
		}
		return &chat.RateLimitedError{RetryAfter: retryAfter}
	case codeAuthFailed:
		return chat.ErrAuthFailed
	case codeSessionExpired, codeNoSession:
		return chat.ErrSessionExpired
	default:
		return fmt.Errorf("chatgateway: %s - %s", ge.Code, ge.Message)
	}
}

func toThreadSnapshot(t threadPayload) chat.ThreadSnapshot {
	participants := make([]chat.ThreadParticipant, 0, len(t.Participants))
	for _, p := range t.Participants {
		participants = append(participants, chat.ThreadParticipant{
			ExternalID: p.ID,
			Username:   p.Username,
		})
	}
	return chat.ThreadSnapshot{
		ThreadID:     t.ID,
		Title:        t.Title,
		Participants: participants,
		LastActivity: t.LastActivity,
	}
}

func toMessageSnapshot(m messagePayload) chat.MessageSnapshot {
	attachments := make([]chat.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, chat.Attachment{
			Type: a.Type,
			URL:  a.URL,
		})
	}
	return chat.MessageSnapshot{
		ExternalID:  m.ID,
		SenderID:    m.SenderID,
		Text:        m.Text,
		Attachments: attachments,
		Direction:   chat.DirectionIn,
		SentAt:      m.SentAt,
	}
}
