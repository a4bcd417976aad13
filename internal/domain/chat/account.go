package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurcrm/backend/internal/domain/shared"
)

// Platform identifies which external chat platform an account belongs to
type Platform string

const (
	// PlatformPhoto is the photo-sharing platform (direct client sessions)
	PlatformPhoto Platform = "photo"
	// PlatformMessenger is the messaging platform (bridge process sessions)
	PlatformMessenger Platform = "messenger"
)

// IsValid reports whether the platform tag is recognized
func (p Platform) IsValid() bool {
	return p == PlatformPhoto || p == PlatformMessenger
}

// AccountStatus represents the authentication state of an external chat account
type AccountStatus string

const (
	AccountStatusNew            AccountStatus = "new"
	AccountStatusAuthenticating AccountStatus = "authenticating"
	AccountStatusReady          AccountStatus = "ready"
	AccountStatusNeedsTwoFactor AccountStatus = "needs_2fa"
	AccountStatusNeedsChallenge AccountStatus = "needs_challenge"
	AccountStatusRateLimited    AccountStatus = "rate_limited"
	AccountStatusFailed         AccountStatus = "failed"
	AccountStatusInactive       AccountStatus = "inactive"
)

// IsValid reports whether the status is a recognized account status
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountStatusNew, AccountStatusAuthenticating, AccountStatusReady,
		AccountStatusNeedsTwoFactor, AccountStatusNeedsChallenge,
		AccountStatusRateLimited, AccountStatusFailed, AccountStatusInactive:
		return true
	}
	return false
}

// Account is a company-owned external chat identity. It is the aggregate root
// for session state: the opaque session blob is only ever written on a
// successful resume or login, and status transitions are driven exclusively
// by the auth orchestrator.
type Account struct {
	shared.TenantAggregateRoot
	Platform    Platform
	Username    string
	Status      AccountStatus
	SessionBlob []byte // opaque resumable credential/cookie state from the external client
	LastQR      string // last QR/challenge artifact, usually a data URL
	RetryAfter  *time.Time
	LastLoginAt *time.Time
}

// NewAccount creates a new account in the NEW state
func NewAccount(tenantID uuid.UUID, platform Platform, username string) (*Account, error) {
	if !platform.IsValid() {
		return nil, shared.NewDomainError("INVALID_PLATFORM", "Unknown chat platform")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, shared.NewDomainError("INVALID_USERNAME", "Username is required")
	}
	return &Account{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Platform:            platform,
		Username:            username,
		Status:              AccountStatusNew,
	}, nil
}

// HasSession reports whether a resumable session blob is stored
func (a *Account) HasSession() bool {
	return len(a.SessionBlob) > 0
}

// IsReady reports whether the account holds a live, usable session
func (a *Account) IsReady() bool {
	return a.Status == AccountStatusReady
}

// IsActive reports whether the account participates in autologin sweeps
func (a *Account) IsActive() bool {
	return a.Status != AccountStatusInactive
}

// MarkAuthenticating transitions the account into the in-flight login state
func (a *Account) MarkAuthenticating() {
	a.Status = AccountStatusAuthenticating
	a.RetryAfter = nil
	a.Touch()
	a.IncrementVersion()
}

// MarkReady records a successful login or resume together with the refreshed
// session blob. The blob must never be written through any other transition.
func (a *Account) MarkReady(sessionBlob []byte) {
	now := time.Now()
	a.Status = AccountStatusReady
	a.SessionBlob = sessionBlob
	a.LastQR = ""
	a.RetryAfter = nil
	a.LastLoginAt = &now
	a.Touch()
	a.IncrementVersion()
}

// MarkSessionLost resets the account to NEW after a failed resume probe
func (a *Account) MarkSessionLost() {
	a.Status = AccountStatusNew
	a.Touch()
	a.IncrementVersion()
}

// MarkNeedsTwoFactor records that the platform demanded a verification code
func (a *Account) MarkNeedsTwoFactor() {
	a.Status = AccountStatusNeedsTwoFactor
	a.Touch()
	a.IncrementVersion()
}

// MarkNeedsChallenge records a platform checkpoint that requires manual action
func (a *Account) MarkNeedsChallenge() {
	a.Status = AccountStatusNeedsChallenge
	a.Touch()
	a.IncrementVersion()
}

// MarkRateLimited records a platform rate limit with an optional retry hint
func (a *Account) MarkRateLimited(retryAfter time.Duration) {
	a.Status = AccountStatusRateLimited
	if retryAfter > 0 {
		t := time.Now().Add(retryAfter)
		a.RetryAfter = &t
	}
	a.Touch()
	a.IncrementVersion()
}

// MarkFailed records a generic login failure; the state is retryable by
// invoking manual login again
func (a *Account) MarkFailed() {
	a.Status = AccountStatusFailed
	a.Touch()
	a.IncrementVersion()
}

// Deactivate marks the account inactive. Accounts are never hard-deleted by
// the chat subsystem.
func (a *Account) Deactivate() {
	a.Status = AccountStatusInactive
	a.Touch()
	a.IncrementVersion()
}

// SetQR stores the latest QR/challenge artifact for the account
func (a *Account) SetQR(qr string) {
	a.LastQR = qr
	a.Touch()
	a.IncrementVersion()
}

// SetStatus applies a status reported by the external bridge. Unlike the
// orchestrator transitions it never touches the session blob.
func (a *Account) SetStatus(status AccountStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown account status")
	}
	a.Status = status
	a.Touch()
	a.IncrementVersion()
	return nil
}

// Key returns the in-memory pool key for this account
func (a *Account) Key() AccountKey {
	return AccountKey{TenantID: a.TenantID, AccountID: a.ID}
}

// AccountKey identifies a live client in the session pool
type AccountKey struct {
	TenantID  uuid.UUID
	AccountID uuid.UUID
}

// String renders the key for logging and singleflight grouping
func (k AccountKey) String() string {
	return k.TenantID.String() + "/" + k.AccountID.String()
}
