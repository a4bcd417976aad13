package chat

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the authentication and ingestion taxonomy. Callers use
// errors.Is/errors.As to pick the right remediation; anything the external
// client raises that is not classified here is wrapped as ErrAuthFailed.
var (
	// ErrTwoFactorRequired means the platform demands a verification code;
	// the caller must retry manual login with the code.
	ErrTwoFactorRequired = errors.New("two-factor verification code required")

	// ErrChallengeRequired means the platform raised a checkpoint that must be
	// resolved manually outside this system; there is no automatic retry path.
	ErrChallengeRequired = errors.New("checkpoint challenge must be resolved manually")

	// ErrAuthFailed is the generic login failure, also used to wrap
	// unclassified failures from the opaque external client.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrSessionExpired means a stored session blob no longer authenticates.
	ErrSessionExpired = errors.New("session expired")

	// ErrBridgeDown means the company's bridge process is not running.
	ErrBridgeDown = errors.New("bridge process is down")

	// ErrInvalidWebhookAuth means the webhook shared secret did not match.
	// It short-circuits before any state mutation.
	ErrInvalidWebhookAuth = errors.New("invalid webhook credentials")

	// ErrDuplicateEvent marks an already-ingested external event. It is a
	// successful no-op, not a failure.
	ErrDuplicateEvent = errors.New("event already ingested")

	// ErrManualLoginRequired means no resumable session exists and the caller
	// must supply credentials.
	ErrManualLoginRequired = errors.New("manual login required")
)

// RateLimitedError carries the platform's retry-after hint
type RateLimitedError struct {
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by platform, retry after %s", e.RetryAfter)
	}
	return "rate limited by platform"
}

// AsRateLimited extracts a RateLimitedError from an error chain
func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
