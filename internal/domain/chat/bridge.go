package chat

import (
	"github.com/google/uuid"

	"github.com/nurcrm/backend/internal/domain/shared"
)

// BridgeStatus is the connection state reported by the messaging bridge
type BridgeStatus string

const (
	BridgeStatusDisconnected BridgeStatus = "disconnected"
	BridgeStatusPendingQR    BridgeStatus = "pending_qr"
	BridgeStatusConnected    BridgeStatus = "connected"
)

// IsValid reports whether the status is a recognized bridge status
func (s BridgeStatus) IsValid() bool {
	switch s {
	case BridgeStatusDisconnected, BridgeStatusPendingQR, BridgeStatusConnected:
		return true
	}
	return false
}

// BridgeSession is the per-company messaging-platform session state. There
// is exactly one per tenant; the supervised bridge process writes into it
// through webhooks.
type BridgeSession struct {
	shared.TenantAggregateRoot
	Status    BridgeStatus
	LastQR    string // last QR artifact as a data URL
	PhoneHint string
}

// NewBridgeSession creates a disconnected bridge session for a tenant
func NewBridgeSession(tenantID uuid.UUID) *BridgeSession {
	return &BridgeSession{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Status:              BridgeStatusDisconnected,
	}
}

// SetStatus applies a bridge-reported connection status
func (s *BridgeSession) SetStatus(status BridgeStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown bridge status")
	}
	s.Status = status
	if status == BridgeStatusConnected {
		s.LastQR = ""
	}
	s.Touch()
	s.IncrementVersion()
	return nil
}

// SetQR stores a fresh pairing QR and moves the session to pending_qr
func (s *BridgeSession) SetQR(qr string) {
	s.LastQR = qr
	s.Status = BridgeStatusPendingQR
	s.Touch()
	s.IncrementVersion()
}

// SetPhoneHint records the phone number hint reported after pairing
func (s *BridgeSession) SetPhoneHint(hint string) {
	s.PhoneHint = hint
	s.Touch()
	s.IncrementVersion()
}
