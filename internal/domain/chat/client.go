package chat

import (
	"context"
	"time"
)

// Client is the capability interface over the opaque external chat client.
// Implementations wrap a third-party session (photo platform gateway, bridge
// process) and must translate platform failures into the package taxonomy:
// ErrTwoFactorRequired, ErrChallengeRequired, RateLimitedError,
// ErrSessionExpired, or ErrAuthFailed for anything unclassified.
type Client interface {
	// ResumeSession probes an existing session blob. On success it returns the
	// refreshed blob; a stale session yields ErrSessionExpired.
	ResumeSession(ctx context.Context, sessionBlob []byte) ([]byte, error)

	// LoginManual performs a credentialed login, optionally with a two-factor
	// verification code, and returns the new session blob.
	LoginManual(ctx context.Context, password, verificationCode string) ([]byte, error)

	// FetchThreads returns the most recent threads from the live session,
	// newest first, up to amount.
	FetchThreads(ctx context.Context, amount int) ([]ThreadSnapshot, error)

	// FetchMessages returns messages of one thread in chronological order.
	FetchMessages(ctx context.Context, threadID string, limit int) ([]MessageSnapshot, error)

	// SendText sends an outgoing text message to a thread and returns the
	// snapshot of what was sent.
	SendText(ctx context.Context, threadID, text string) (*MessageSnapshot, error)

	// Probe performs a cheap liveness check of the underlying session.
	Probe(ctx context.Context) error

	// Close releases the client handle.
	Close() error
}

// ClientFactory builds live clients for accounts. The session pool is the
// only caller; it guarantees at most one construction in flight per account.
type ClientFactory interface {
	NewClient(ctx context.Context, account *Account) (Client, error)
}

// ThreadSnapshot is a normalized live-inbox thread as reported by the client
type ThreadSnapshot struct {
	ThreadID     string              `json:"thread_id"`
	Title        string              `json:"title"`
	Participants []ThreadParticipant `json:"participants"`
	LastActivity time.Time           `json:"last_activity"`
}

// ThreadParticipant is a minimal public view of a thread member
type ThreadParticipant struct {
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
}

// MessageSnapshot is a normalized live message as reported by the client
type MessageSnapshot struct {
	ExternalID  string       `json:"external_id"`
	ThreadID    string       `json:"thread_id"`
	SenderID    string       `json:"sender_id"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Direction   Direction    `json:"direction"`
	SentAt      time.Time    `json:"sent_at"`
}

// Attachment is a minimal media descriptor carried with a message
type Attachment struct {
	Type     string  `json:"type"` // image, video, audio, file
	URL      string  `json:"url"`
	Duration float64 `json:"duration,omitempty"`
}
