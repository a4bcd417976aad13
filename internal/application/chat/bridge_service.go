package chat

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nurcrm/backend/internal/domain/chat"
	"github.com/nurcrm/backend/internal/infrastructure/bridge"
)

// BridgeService manages the per-company messaging bridge: one supervised
// process and one session row per tenant.
type BridgeService struct {
	sessions   chat.BridgeSessionRepository
	accounts   chat.AccountRepository
	supervisor *bridge.Supervisor
	logger     *zap.Logger
}

// NewBridgeService creates a new BridgeService
func NewBridgeService(sessions chat.BridgeSessionRepository, accounts chat.AccountRepository, supervisor *bridge.Supervisor, logger *zap.Logger) *BridgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BridgeService{
		sessions:   sessions,
		accounts:   accounts,
		supervisor: supervisor,
		logger:     logger,
	}
}

// GetSession returns the tenant's bridge session together with the live
// process state
func (s *BridgeService) GetSession(ctx context.Context, tenantID uuid.UUID) (*BridgeSessionResponse, error) {
	session, err := s.sessions.FindOrCreateByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	response := ToBridgeSessionResponse(session, string(s.supervisor.Status(tenantID)))
	return &response, nil
}

// Start launches the tenant's bridge process. The process re-attaches to
// existing session files in its state dir, so a previously paired bridge
// comes back without a new QR.
func (s *BridgeService) Start(ctx context.Context, tenantID uuid.UUID) (*BridgeSessionResponse, error) {
	session, err := s.sessions.FindOrCreateByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if err := s.supervisor.StartTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	s.logger.Info("bridge start requested", zap.String("tenant_id", tenantID.String()))
	response := ToBridgeSessionResponse(session, string(s.supervisor.Status(tenantID)))
	return &response, nil
}

// Stop terminates the tenant's bridge process and marks the session
// disconnected. Stopping an already stopped bridge is a no-op.
func (s *BridgeService) Stop(ctx context.Context, tenantID uuid.UUID) (*BridgeSessionResponse, error) {
	if err := s.supervisor.StopTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	session, err := s.sessions.FindOrCreateByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if session.Status != chat.BridgeStatusDisconnected {
		if err := session.SetStatus(chat.BridgeStatusDisconnected); err != nil {
			return nil, err
		}
		if err := s.sessions.Save(ctx, session); err != nil {
			return nil, err
		}
	}

	s.logger.Info("bridge stopped", zap.String("tenant_id", tenantID.String()))
	response := ToBridgeSessionResponse(session, string(s.supervisor.Status(tenantID)))
	return &response, nil
}

// MarkTenantDown is wired as the supervisor's restart-exhausted callback. It
// flips the session to disconnected and takes the tenant's messenger accounts
// out of READY so live reads stop until an operator restarts the bridge.
func (s *BridgeService) MarkTenantDown(tenantID uuid.UUID) {
	ctx := context.Background()
	session, err := s.sessions.FindOrCreateByTenant(ctx, tenantID)
	if err != nil {
		s.logger.Error("failed to load session for downed bridge",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return
	}
	if session.Status != chat.BridgeStatusDisconnected {
		if err := session.SetStatus(chat.BridgeStatusDisconnected); err != nil {
			return
		}
		if err := s.sessions.Save(ctx, session); err != nil {
			s.logger.Error("failed to persist downed bridge session",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
		}
	}

	s.resetMessengerAccounts(ctx, tenantID)
}

// resetMessengerAccounts moves the tenant's READY messenger accounts back to
// NEW. Their live sessions ran inside the downed bridge process, so serving
// them as READY would hand out dead clients.
func (s *BridgeService) resetMessengerAccounts(ctx context.Context, tenantID uuid.UUID) {
	accounts, err := s.accounts.FindByPlatformForTenant(ctx, tenantID, chat.PlatformMessenger)
	if err != nil {
		s.logger.Error("failed to load messenger accounts for downed bridge",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return
	}
	for i := range accounts {
		account := &accounts[i]
		if !account.IsReady() {
			continue
		}
		account.MarkSessionLost()
		if err := s.accounts.Save(ctx, account); err != nil {
			s.logger.Error("failed to reset messenger account for downed bridge",
				zap.String("account", account.Key().String()),
				zap.Error(err))
		}
	}
}
