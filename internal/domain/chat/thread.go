package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/nurcrm/backend/internal/domain/shared"
)

// Thread mirrors one external conversation of an account. The external
// thread id is unique within the account.
type Thread struct {
	shared.BaseEntity
	TenantID     uuid.UUID
	AccountID    uuid.UUID
	ExternalID   string
	Title        string
	Participants []ThreadParticipant
	LastActivity time.Time
}

// NewThread creates a thread record from a live snapshot
func NewThread(tenantID, accountID uuid.UUID, snap ThreadSnapshot) (*Thread, error) {
	if snap.ThreadID == "" {
		return nil, shared.NewDomainError("INVALID_THREAD", "External thread id is required")
	}
	last := snap.LastActivity
	if last.IsZero() {
		last = time.Now()
	}
	return &Thread{
		BaseEntity:   shared.NewBaseEntity(),
		TenantID:     tenantID,
		AccountID:    accountID,
		ExternalID:   snap.ThreadID,
		Title:        snap.Title,
		Participants: snap.Participants,
		LastActivity: last,
	}, nil
}

// Refresh merges a newer snapshot into the thread. Returns true when
// anything changed and the record needs to be persisted.
func (t *Thread) Refresh(snap ThreadSnapshot) bool {
	changed := false
	if snap.Title != "" && snap.Title != t.Title {
		t.Title = snap.Title
		changed = true
	}
	if len(snap.Participants) > 0 {
		t.Participants = snap.Participants
		changed = true
	}
	if !snap.LastActivity.IsZero() && snap.LastActivity.After(t.LastActivity) {
		t.LastActivity = snap.LastActivity
		changed = true
	}
	if changed {
		t.Touch()
	}
	return changed
}
