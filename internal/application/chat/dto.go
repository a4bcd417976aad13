package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurcrm/backend/internal/domain/chat"
)

// ConnectAccountRequest creates-or-finds an account and performs manual login
type ConnectAccountRequest struct {
	Platform         string `json:"platform" binding:"required"`
	Username         string `json:"username" binding:"required"`
	Password         string `json:"password" binding:"required"`
	VerificationCode string `json:"verification_code"`
}

// LoginRequest re-authenticates an existing account. Password is optional:
// when the stored session still resumes no credentials are needed.
type LoginRequest struct {
	Password         string `json:"password"`
	VerificationCode string `json:"verification_code"`
}

// SendMessageRequest sends a text message to a thread
type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// AccountResponse is the public view of a chat account. The session blob is
// never exposed.
type AccountResponse struct {
	ID          uuid.UUID  `json:"id"`
	Platform    string     `json:"platform"`
	Username    string     `json:"username"`
	Status      string     `json:"status"`
	HasSession  bool       `json:"has_session"`
	LastQR      string     `json:"last_qr,omitempty"`
	RetryAfter  *time.Time `json:"retry_after,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ToAccountResponse converts an account to its response DTO
func ToAccountResponse(account *chat.Account) AccountResponse {
	return AccountResponse{
		ID:          account.ID,
		Platform:    string(account.Platform),
		Username:    account.Username,
		Status:      string(account.Status),
		HasSession:  account.HasSession(),
		LastQR:      account.LastQR,
		RetryAfter:  account.RetryAfter,
		LastLoginAt: account.LastLoginAt,
		CreatedAt:   account.CreatedAt,
		UpdatedAt:   account.UpdatedAt,
	}
}

// MessageResponse is the public view of a stored message
type MessageResponse struct {
	ID          uuid.UUID         `json:"id"`
	ThreadRef   string            `json:"thread_ref"`
	ExternalID  string            `json:"external_id"`
	SenderID    string            `json:"sender_id"`
	Text        string            `json:"text"`
	Attachments []chat.Attachment `json:"attachments,omitempty"`
	Direction   string            `json:"direction"`
	SentAt      time.Time         `json:"sent_at"`
}

// ToMessageResponse converts a message to its response DTO
func ToMessageResponse(message *chat.Message) MessageResponse {
	return MessageResponse{
		ID:          message.ID,
		ThreadRef:   message.ThreadRef,
		ExternalID:  message.ExternalID,
		SenderID:    message.SenderID,
		Text:        message.Text,
		Attachments: message.Attachments,
		Direction:   string(message.Direction),
		SentAt:      message.SentAt,
	}
}

// BridgeSessionResponse is the public view of a company's bridge session
type BridgeSessionResponse struct {
	ID           uuid.UUID `json:"id"`
	Status       string    `json:"status"`
	LastQR       string    `json:"last_qr,omitempty"`
	PhoneHint    string    `json:"phone_hint,omitempty"`
	ProcessState string    `json:"process_state"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ToBridgeSessionResponse converts a bridge session to its response DTO
func ToBridgeSessionResponse(session *chat.BridgeSession, processState string) BridgeSessionResponse {
	return BridgeSessionResponse{
		ID:           session.ID,
		Status:       string(session.Status),
		LastQR:       session.LastQR,
		PhoneHint:    session.PhoneHint,
		ProcessState: processState,
		UpdatedAt:    session.UpdatedAt,
	}
}

// AccountResumeResult is the per-account outcome of an autologin sweep
type AccountResumeResult struct {
	AccountID uuid.UUID `json:"account_id"`
	Username  string    `json:"username"`
	Resumed   bool      `json:"resumed"`
	Error     string    `json:"error,omitempty"`
}
