package chatgateway

import "time"

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Gateway error codes returned in the error envelope
const (
	codeTwoFactorRequired = "two_factor_required"
	codeChallengeRequired = "challenge_required"
	codeRateLimited       = "rate_limited"
	codeAuthFailed        = "auth_failed"
	codeSessionExpired    = "session_expired"
	codeNoSession         = "no_session"
)

type errorEnvelope struct {
	Error *gatewayError `json:"error,omitempty"`
}

type gatewayError struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

type resumeRequest struct {
	Platform    string `json:"platform"`
	Username    string `json:"username"`
	SessionBlob []byte `json:"session_blob"`
}

type loginRequest struct {
	Platform         string `json:"platform"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	VerificationCode string `json:"verification_code,omitempty"`
}

type sessionResponse struct {
	errorEnvelope
	SessionBlob []byte `json:"session_blob"`
}

type threadsRequest struct {
	Platform    string `json:"platform"`
	Username    string `json:"username"`
	SessionBlob []byte `json:"session_blob"`
	Amount      int    `json:"amount"`
}

type threadsResponse struct {
	errorEnvelope
	Threads []threadPayload `json:"threads"`
}

type threadPayload struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	Participants []participantPayload `json:"participants"`
	LastActivity time.Time            `json:"last_activity"`
}

type participantPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
}

type messagesRequest struct {
	Platform    string `json:"platform"`
	Username    string `json:"username"`
	SessionBlob []byte `json:"session_blob"`
	ThreadID    string `json:"thread_id"`
	Limit       int    `json:"limit"`
}

type messagesResponse struct {
	errorEnvelope
	Messages []messagePayload `json:"messages"`
}

type messagePayload struct {
	ID          string              `json:"id"`
	SenderID    string              `json:"sender_id"`
	Text        string              `json:"text"`
	Attachments []attachmentPayload `json:"attachments,omitempty"`
	SentAt      time.Time           `json:"sent_at"`
}

type attachmentPayload struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type sendRequest struct {
	Platform    string `json:"platform"`
	Username    string `json:"username"`
	SessionBlob []byte `json:"session_blob"`
	ThreadID    string `json:"thread_id"`
	Text        string `json:"text"`
}

type sendResponse struct {
	errorEnvelope
	Message *messagePayload `json:"message"`
}

type probeRequest struct {
	Platform    string `json:"platform"`
	Username    string `json:"username"`
	SessionBlob []byte `json:"session_blob"`
}

type probeResponse struct {
	errorEnvelope
	Alive bool `json:"alive"`
}
