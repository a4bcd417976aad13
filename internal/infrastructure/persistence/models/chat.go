package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nurcrm/backend/internal/domain/chat"
	"github.com/nurcrm/backend/internal/domain/shared"
)

// AccountModel is the persistence model for the chat Account aggregate.
// The (tenant_id, platform, username) unique constraint lives in the
// migrations.
type AccountModel struct {
	TenantAggregateModel
	Platform    chat.Platform      `gorm:"type:varchar(20);not null;index"`
	Username    string             `gorm:"type:varchar(200);not null;index"`
	Status      chat.AccountStatus `gorm:"type:varchar(30);not null;default:'new';index"`
	SessionBlob []byte             `gorm:"type:bytea"`
	LastQR      string             `gorm:"type:text"`
	RetryAfter  *time.Time
	LastLoginAt *time.Time
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "chat_accounts"
}

// ToDomain converts the persistence model to a domain Account aggregate.
func (m *AccountModel) ToDomain() *chat.Account {
	account := &chat.Account{
		Platform:    m.Platform,
		Username:    m.Username,
		Status:      m.Status,
		SessionBlob: m.SessionBlob,
		LastQR:      m.LastQR,
		RetryAfter:  m.RetryAfter,
		LastLoginAt: m.LastLoginAt,
	}
	m.PopulateTenantAggregateRoot(&account.TenantAggregateRoot)
	return account
}

// FromDomain populates the persistence model from a domain Account aggregate.
func (m *AccountModel) FromDomain(a *chat.Account) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.Platform = a.Platform
	m.Username = a.Username
	m.Status = a.Status
	m.SessionBlob = a.SessionBlob
	m.LastQR = a.LastQR
	m.RetryAfter = a.RetryAfter
	m.LastLoginAt = a.LastLoginAt
}

// AccountModelFromDomain creates a persistence model from a domain Account.
func AccountModelFromDomain(a *chat.Account) *AccountModel {
	m := &AccountModel{}
	m.FromDomain(a)
	return m
}

// ThreadModel is the persistence model for mirrored conversation threads.
type ThreadModel struct {
	BaseModel
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index"`
	AccountID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_thread_account_external,priority:1"`
	ExternalID   string    `gorm:"type:varchar(200);not null;uniqueIndex:idx_thread_account_external,priority:2"`
	Title        string    `gorm:"type:varchar(500)"`
	Participants string    `gorm:"type:jsonb"`
	LastActivity time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ThreadModel) TableName() string {
	return "chat_threads"
}

// ToDomain converts the persistence model to a domain Thread entity.
func (m *ThreadModel) ToDomain() *chat.Thread {
	var participants []chat.ThreadParticipant
	if m.Participants != "" {
		_ = json.Unmarshal([]byte(m.Participants), &participants)
	}
	return &chat.Thread{
		BaseEntity:   m.BaseModel.ToDomain(),
		TenantID:     m.TenantID,
		AccountID:    m.AccountID,
		ExternalID:   m.ExternalID,
		Title:        m.Title,
		Participants: participants,
		LastActivity: m.LastActivity,
	}
}

// FromDomain populates the persistence model from a domain Thread entity.
func (m *ThreadModel) FromDomain(t *chat.Thread) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.TenantID = t.TenantID
	m.AccountID = t.AccountID
	m.ExternalID = t.ExternalID
	m.Title = t.Title
	m.Participants = marshalJSON(t.Participants)
	m.LastActivity = t.LastActivity
}

// ThreadModelFromDomain creates a persistence model from a domain Thread.
func ThreadModelFromDomain(t *chat.Thread) *ThreadModel {
	m := &ThreadModel{}
	m.FromDomain(t)
	return m
}

// MessageModel is the persistence model for chat messages. The
// (account_id, external_id) unique index is the ingestion dedupe guard.
type MessageModel struct {
	BaseModel
	TenantID    uuid.UUID      `gorm:"type:uuid;not null;index"`
	AccountID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_message_account_external,priority:1"`
	ThreadRef   string         `gorm:"type:varchar(200);not null;index"`
	ExternalID  string         `gorm:"type:varchar(200);not null;uniqueIndex:idx_message_account_external,priority:2"`
	SenderID    string         `gorm:"type:varchar(200)"`
	Text        string         `gorm:"type:text"`
	Attachments string         `gorm:"type:jsonb"`
	Direction   chat.Direction `gorm:"type:varchar(10);not null"`
	SentAt      time.Time      `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (MessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts the persistence model to a domain Message entity.
func (m *MessageModel) ToDomain() *chat.Message {
	var attachments []chat.Attachment
	if m.Attachments != "" {
		_ = json.Unmarshal([]byte(m.Attachments), &attachments)
	}
	return &chat.Message{
		BaseEntity:  m.BaseModel.ToDomain(),
		TenantID:    m.TenantID,
		AccountID:   m.AccountID,
		ThreadRef:   m.ThreadRef,
		ExternalID:  m.ExternalID,
		SenderID:    m.SenderID,
		Text:        m.Text,
		Attachments: attachments,
		Direction:   m.Direction,
		SentAt:      m.SentAt,
	}
}

// FromDomain populates the persistence model from a domain Message entity.
func (m *MessageModel) FromDomain(msg *chat.Message) {
	m.FromDomainBaseEntity(msg.BaseEntity)
	m.TenantID = msg.TenantID
	m.AccountID = msg.AccountID
	m.ThreadRef = msg.ThreadRef
	m.ExternalID = msg.ExternalID
	m.SenderID = msg.SenderID
	m.Text = msg.Text
	m.Attachments = marshalJSON(msg.Attachments)
	m.Direction = msg.Direction
	m.SentAt = msg.SentAt
}

// MessageModelFromDomain creates a persistence model from a domain Message.
func MessageModelFromDomain(msg *chat.Message) *MessageModel {
	m := &MessageModel{}
	m.FromDomain(msg)
	return m
}

// BridgeSessionModel is the persistence model for per-company bridge sessions.
type BridgeSessionModel struct {
	AggregateModel
	TenantID  uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex"`
	Status    chat.BridgeStatus `gorm:"type:varchar(20);not null;default:'disconnected'"`
	LastQR    string            `gorm:"type:text"`
	PhoneHint string            `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (BridgeSessionModel) TableName() string {
	return "bridge_sessions"
}

// ToDomain converts the persistence model to a domain BridgeSession aggregate.
func (m *BridgeSessionModel) ToDomain() *chat.BridgeSession {
	session := &chat.BridgeSession{
		TenantAggregateRoot: shared.TenantAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			TenantID: m.TenantID,
		},
		Status:    m.Status,
		LastQR:    m.LastQR,
		PhoneHint: m.PhoneHint,
	}
	return session
}

// FromDomain populates the persistence model from a domain BridgeSession.
func (m *BridgeSessionModel) FromDomain(s *chat.BridgeSession) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.TenantID = s.TenantID
	m.Status = s.Status
	m.LastQR = s.LastQR
	m.PhoneHint = s.PhoneHint
}

// BridgeSessionModelFromDomain creates a persistence model from a domain BridgeSession.
func BridgeSessionModelFromDomain(s *chat.BridgeSession) *BridgeSessionModel {
	m := &BridgeSessionModel{}
	m.FromDomain(s)
	return m
}

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
