package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nurcrm/backend/internal/domain/chat"
	"github.com/nurcrm/backend/internal/domain/shared"
	"github.com/nurcrm/backend/internal/infrastructure/realtime"
)

// ThreadService serves live inbox reads and outgoing sends. All live
// operations are gated on a READY account; a session that dies mid-operation
// resets the account so the next caller is told to log in again.
type ThreadService struct {
	accounts     chat.AccountRepository
	threads      chat.ThreadRepository
	messages     chat.MessageRepository
	factory      chat.ClientFactory
	pool         *ClientPool
	hub          *realtime.Hub
	fetchTimeout time.Duration
	threadAmount int
	logger       *zap.Logger
}

// NewThreadService creates a new ThreadService
func NewThreadService(
	accounts chat.AccountRepository,
	threads chat.ThreadRepository,
	messages chat.MessageRepository,
	factory chat.ClientFactory,
	pool *ClientPool,
	hub *realtime.Hub,
	fetchTimeout time.Duration,
	threadAmount int,
	logger *zap.Logger,
) *ThreadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	if threadAmount <= 0 {
		threadAmount = 20
	}
	return &ThreadService{
		accounts:     accounts,
		threads:      threads,
		messages:     messages,
		factory:      factory,
		pool:         pool,
		hub:          hub,
		fetchTimeout: fetchTimeout,
		threadAmount: threadAmount,
		logger:       logger,
	}
}

// ListLiveThreads fetches the newest threads from the live session and
// mirrors them into storage. A non-READY account yields
// chat.ErrManualLoginRequired.
func (s *ThreadService) ListLiveThreads(ctx context.Context, tenantID, accountID uuid.UUID, amount int) ([]chat.ThreadSnapshot, error) {
	account, client, err := s.liveClient(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		amount = s.threadAmount
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	snapshots, err := client.FetchThreads(fetchCtx, amount)
	cancel()
	if err != nil {
		return nil, s.handleLiveError(ctx, account, err)
	}

	s.mirrorThreads(ctx, account, snapshots)
	return snapshots, nil
}

// ListLiveMessages fetches a thread's newest messages from the live session
// and mirrors them into storage. A non-READY account yields
// chat.ErrManualLoginRequired.
func (s *ThreadService) ListLiveMessages(ctx context.Context, tenantID, accountID uuid.UUID, threadRef string, limit int) ([]chat.MessageSnapshot, error) {
	account, client, err := s.liveClient(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	snapshots, err := client.FetchMessages(fetchCtx, threadRef, limit)
	cancel()
	if err != nil {
		return nil, s.handleLiveError(ctx, account, err)
	}

	s.mirrorMessages(ctx, account, snapshots)
	return snapshots, nil
}

// ListStoredMessages returns persisted messages of one thread in
// chronological order
func (s *ThreadService) ListStoredMessages(ctx context.Context, tenantID, accountID uuid.UUID, threadRef string, limit int) ([]MessageResponse, error) {
	account, err := s.accounts.FindByIDForTenant(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}

	messages, err := s.messages.FindForThread(ctx, account.ID, threadRef, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		responses = append(responses, ToMessageResponse(&messages[i]))
	}
	return responses, nil
}

// SendText sends a text message through the live session, stores the sent
// message and publishes it to live viewers.
func (s *ThreadService) SendText(ctx context.Context, tenantID, accountID uuid.UUID, threadRef, text string) (*MessageResponse, error) {
	if text == "" {
		return nil, shared.NewDomainError("INVALID_MESSAGE", "Message text is required")
	}

	account, client, err := s.liveClient(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	snap, err := client.SendText(sendCtx, threadRef, text)
	cancel()
	if err != nil {
		return nil, s.handleLiveError(ctx, account, err)
	}

	message, err := chat.NewMessage(tenantID, account.ID, *snap)
	if err != nil {
		return nil, err
	}
	if err := s.messages.Save(ctx, message); err != nil && !errors.Is(err, shared.ErrAlreadyExists) {
		// The message went out; losing the mirror row is logged, not fatal.
		s.logger.Warn("failed to store sent message",
			zap.String("account", account.Key().String()),
			zap.Error(err))
	}

	response := ToMessageResponse(message)
	s.hub.Publish(realtime.Event{
		Topic:    realtime.TopicMessage,
		TenantID: tenantID,
		Payload: map[string]any{
			"account_id": account.ID.String(),
			"message":    response,
		},
	})
	return &response, nil
}

// liveClient resolves the account and its pooled client, constructing one
// from the stored session when the pool is cold.
func (s *ThreadService) liveClient(ctx context.Context, tenantID, accountID uuid.UUID) (*chat.Account, chat.Client, error) {
	account, err := s.accounts.FindByIDForTenant(ctx, tenantID, accountID)
	if err != nil {
		return nil, nil, err
	}
	if !account.IsReady() {
		return nil, nil, chat.ErrManualLoginRequired
	}

	client, err := s.pool.GetOrCreate(ctx, account.Key(), func(ctx context.Context) (chat.Client, error) {
		return s.factory.NewClient(ctx, account)
	})
	if err != nil {
		return nil, nil, err
	}
	return account, client, nil
}

// handleLiveError resets the account when the live session died mid-call so
// the caller is told to log in again.
func (s *ThreadService) handleLiveError(ctx context.Context, account *chat.Account, err error) error {
	if errors.Is(err, chat.ErrSessionExpired) {
		s.pool.Evict(account.Key())
		account.MarkSessionLost()
		if saveErr := s.accounts.Save(ctx, account); saveErr != nil {
			s.logger.Warn("failed to persist lost session",
				zap.String("account", account.Key().String()),
				zap.Error(saveErr))
		}
		return chat.ErrManualLoginRequired
	}
	return err
}

// mirrorMessages persists live message snapshots, best effort. The unique
// external-id index makes re-mirroring already stored messages a no-op.
func (s *ThreadService) mirrorMessages(ctx context.Context, account *chat.Account, snapshots []chat.MessageSnapshot) {
	for _, snap := range snapshots {
		message, err := chat.NewMessage(account.TenantID, account.ID, snap)
		if err != nil {
			continue
		}
		if err := s.messages.Save(ctx, message); err != nil && !errors.Is(err, shared.ErrAlreadyExists) {
			s.logger.Warn("failed to mirror message",
				zap.String("message", snap.ExternalID),
				zap.Error(err))
		}
	}
}

// mirrorThreads persists live thread snapshots, best effort
func (s *ThreadService) mirrorThreads(ctx context.Context, account *chat.Account, snapshots []chat.ThreadSnapshot) {
	for _, snap := range snapshots {
		thread, err := s.threads.FindByExternalID(ctx, account.ID, snap.ThreadID)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				s.logger.Warn("failed to load thread for mirror",
					zap.String("thread", snap.ThreadID),
					zap.Error(err))
				continue
			}
			thread, err = chat.NewThread(account.TenantID, account.ID, snap)
			if err != nil {
				continue
			}
			if err := s.threads.Save(ctx, thread); err != nil {
				s.logger.Warn("failed to mirror thread",
					zap.String("thread", snap.ThreadID),
					zap.Error(err))
			}
			continue
		}

		if thread.Refresh(snap) {
			if err := s.threads.Save(ctx, thread); err != nil {
				s.logger.Warn("failed to refresh thread",
					zap.String("thread", snap.ThreadID),
					zap.Error(err))
			}
		}
	}
}
