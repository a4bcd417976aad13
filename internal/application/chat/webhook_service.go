package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nurcrm/backend/internal/domain/chat"
	"github.com/nurcrm/backend/internal/domain/shared"
	"github.com/nurcrm/backend/internal/infrastructure/realtime"
)

// WebhookService ingests callbacks from the per-company bridge process.
// Every handler is duplicate-safe: the idempotency store drops replayed
// events up front and the unique message index backstops concurrent inserts.
// The shared-secret gate runs in HTTP middleware before any of these methods.
type WebhookService struct {
	accounts       chat.AccountRepository
	threads        chat.ThreadRepository
	messages       chat.MessageRepository
	bridgeSessions chat.BridgeSessionRepository
	idempotency    shared.IdempotencyStore
	hub            *realtime.Hub
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(
	accounts chat.AccountRepository,
	threads chat.ThreadRepository,
	messages chat.MessageRepository,
	bridgeSessions chat.BridgeSessionRepository,
	idempotency shared.IdempotencyStore,
	hub *realtime.Hub,
	idempotencyTTL time.Duration,
	logger *zap.Logger,
) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	return &WebhookService{
		accounts:       accounts,
		threads:        threads,
		messages:       messages,
		bridgeSessions: bridgeSessions,
		idempotency:    idempotency,
		hub:            hub,
		idempotencyTTL: idempotencyTTL,
		logger:         logger,
	}
}

// ResolveMessengerAccount returns the tenant's messenger account id. Bridge
// events do not carry internal account ids; the bridge serves exactly one
// messenger identity per company.
func (s *WebhookService) ResolveMessengerAccount(ctx context.Context, tenantID uuid.UUID) (uuid.UUID, error) {
	accounts, err := s.accounts.FindByPlatformForTenant(ctx, tenantID, chat.PlatformMessenger)
	if err != nil {
		return uuid.Nil, err
	}
	for i := range accounts {
		if accounts[i].IsActive() {
			return accounts[i].ID, nil
		}
	}
	return uuid.Nil, shared.ErrNotFound
}

// OnQR stores a fresh pairing QR. With a zero accountID the QR belongs to the
// company bridge session, otherwise to the named account.
func (s *WebhookService) OnQR(ctx context.Context, tenantID, accountID uuid.UUID, qr string) error {
	if qr == "" {
		return shared.NewDomainError("INVALID_QR", "QR payload is required")
	}

	payload := map[string]any{"qr": qr}

	if accountID == uuid.Nil {
		session, err := s.bridgeSessions.FindOrCreateByTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		session.SetQR(qr)
		if err := s.bridgeSessions.Save(ctx, session); err != nil {
			return err
		}
		payload["status"] = string(session.Status)
	} else {
		account, err := s.accounts.FindByIDForTenant(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		account.SetQR(qr)
		if err := s.accounts.Save(ctx, account); err != nil {
			return err
		}
		payload["status"] = string(account.Status)
		payload["account_id"] = accountID.String()
	}

	s.hub.Publish(realtime.Event{
		Topic:    realtime.TopicQR,
		TenantID: tenantID,
		Payload:  payload,
	})
	// Status watchers learn about the pairing state change too; the QR modal
	// and the status badge subscribe to different topics.
	s.hub.Publish(realtime.Event{
		Topic:    realtime.TopicStatus,
		TenantID: tenantID,
		Payload:  payload,
	})
	return nil
}

// OnStatus applies a connection status reported by the bridge. With a zero
// accountID the status targets the company bridge session; phoneHint, when
// present, records the paired phone number.
func (s *WebhookService) OnStatus(ctx context.Context, tenantID, accountID uuid.UUID, newStatus, phoneHint string) error {
	payload := map[string]any{"status": newStatus}

	if accountID == uuid.Nil {
		session, err := s.bridgeSessions.FindOrCreateByTenant(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := session.SetStatus(chat.BridgeStatus(newStatus)); err != nil {
			return err
		}
		if phoneHint != "" {
			session.SetPhoneHint(phoneHint)
		}
		if err := s.bridgeSessions.Save(ctx, session); err != nil {
			return err
		}
	} else {
		account, err := s.accounts.FindByIDForTenant(ctx, tenantID, accountID)
		if err != nil {
			return err
		}
		if err := account.SetStatus(chat.AccountStatus(newStatus)); err != nil {
			return err
		}
		if err := s.accounts.Save(ctx, account); err != nil {
			return err
		}
		payload["account_id"] = accountID.String()
	}

	s.hub.Publish(realtime.Event{
		Topic:    realtime.TopicStatus,
		TenantID: tenantID,
		Payload:  payload,
	})
	return nil
}

// OnMessage ingests one incoming message event. Replays are successful
// no-ops: a fresh event is stored exactly once and published exactly once.
func (s *WebhookService) OnMessage(ctx context.Context, tenantID, accountID uuid.UUID, externalEventID string, snap chat.MessageSnapshot) error {
	if externalEventID == "" {
		externalEventID = snap.ExternalID
	}
	if externalEventID == "" {
		return shared.NewDomainError("INVALID_EVENT", "External event id is required")
	}

	eventKey := fmt.Sprintf("%s:%s:%s", tenantID, accountID, externalEventID)
	fresh, err := s.idempotency.MarkProcessed(ctx, eventKey, s.idempotencyTTL)
	marked := err == nil && fresh
	if err != nil {
		// The store being unreachable must not drop events; the unique
		// message index still dedupes.
		s.logger.Warn("idempotency store unavailable, relying on unique index",
			zap.String("event", eventKey),
			zap.Error(err))
	} else if !fresh {
		s.logger.Debug("dropping replayed message event",
			zap.String("event", eventKey))
		return nil
	}

	account, err := s.accounts.FindByIDForTenant(ctx, tenantID, accountID)
	if err != nil {
		s.rollbackMark(ctx, eventKey, marked)
		return err
	}

	message, err := chat.NewMessage(tenantID, account.ID, snap)
	if err != nil {
		s.rollbackMark(ctx, eventKey, marked)
		return err
	}
	if err := s.messages.Save(ctx, message); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			s.logger.Debug("message already stored",
				zap.String("event", eventKey))
			return nil
		}
		s.rollbackMark(ctx, eventKey, marked)
		return err
	}

	if err := s.upsertThread(ctx, account, snap); err != nil {
		// The message is already stored; thread mirroring is best effort.
		s.logger.Warn("failed to upsert thread for message",
			zap.String("event", eventKey),
			zap.Error(err))
	}

	s.hub.Publish(realtime.Event{
		Topic:    realtime.TopicMessage,
		TenantID: tenantID,
		Payload: map[string]any{
			"account_id": account.ID.String(),
			"message":    ToMessageResponse(message),
		},
	})
	return nil
}

// rollbackMark releases a freshly set idempotency key after a failed
// delivery, so the bridge's retry is processed instead of dropped as a
// replay until the TTL lapses.
func (s *WebhookService) rollbackMark(ctx context.Context, eventKey string, marked bool) {
	if !marked {
		return
	}
	if err := s.idempotency.Forget(ctx, eventKey); err != nil {
		s.logger.Warn("failed to release idempotency key",
			zap.String("event", eventKey),
			zap.Error(err))
	}
}

func (s *WebhookService) upsertThread(ctx context.Context, account *chat.Account, snap chat.MessageSnapshot) error {
	if snap.ThreadID == "" {
		return nil
	}

	thread, err := s.threads.FindByExternalID(ctx, account.ID, snap.ThreadID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		thread, err = chat.NewThread(account.TenantID, account.ID, chat.ThreadSnapshot{
			ThreadID:     snap.ThreadID,
			LastActivity: snap.SentAt,
		})
		if err != nil {
			return err
		}
		return s.threads.Save(ctx, thread)
	}

	if thread.Refresh(chat.ThreadSnapshot{ThreadID: snap.ThreadID, LastActivity: snap.SentAt}) {
		return s.threads.Save(ctx, thread)
	}
	return nil
}
