package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurcrm/backend/internal/domain/shared"
)

// Direction marks whether a message was received or sent by us
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// IsValid reports whether the direction tag is recognized
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Message is one chat message tied to an account. ExternalID is the
// deduplication key: re-ingesting the same external event never creates a
// second row.
type Message struct {
	shared.BaseEntity
	TenantID    uuid.UUID
	AccountID   uuid.UUID
	ThreadRef   string // external thread id or phone identifier
	ExternalID  string
	SenderID    string
	Text        string
	Attachments []Attachment
	Direction   Direction
	SentAt      time.Time
}

// NewMessage creates a message record from a normalized snapshot
func NewMessage(tenantID, accountID uuid.UUID, snap MessageSnapshot) (*Message, error) {
	if snap.ExternalID == "" {
		return nil, shared.NewDomainError("INVALID_MESSAGE", "External message id is required")
	}
	direction := snap.Direction
	if !direction.IsValid() {
		direction = DirectionIn
	}
	sentAt := snap.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	return &Message{
		BaseEntity:  shared.NewBaseEntity(),
		TenantID:    tenantID,
		AccountID:   accountID,
		ThreadRef:   snap.ThreadID,
		ExternalID:  snap.ExternalID,
		SenderID:    snap.SenderID,
		Text:        snap.Text,
		Attachments: snap.Attachments,
		Direction:   direction,
		SentAt:      sentAt,
	}, nil
}

// Snapshot renders the message back into the wire form used by live fanout
func (m *Message) Snapshot() MessageSnapshot {
	return MessageSnapshot{
		ExternalID:  m.ExternalID,
		ThreadID:    m.ThreadRef,
		SenderID:    m.SenderID,
		Text:        m.Text,
		Attachments: m.Attachments,
		Direction:   m.Direction,
		SentAt:      m.SentAt,
	}
}
