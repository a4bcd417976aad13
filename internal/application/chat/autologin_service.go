package chat

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nurcrm/backend/internal/domain/chat"
)

// AutoLoginService sweeps a company's active accounts and tries to resume
// each one from its stored session. One broken account never aborts the
// sweep for its siblings.
type AutoLoginService struct {
	accounts       chat.AccountRepository
	auth           *AuthService
	logger         *zap.Logger
	warmupTimeout  time.Duration
	warmupFailures atomic.Int64
}

// NewAutoLoginService creates a new AutoLoginService
func NewAutoLoginService(accounts chat.AccountRepository, auth *AuthService, logger *zap.Logger) *AutoLoginService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoLoginService{
		accounts:      accounts,
		auth:          auth,
		logger:        logger,
		warmupTimeout: 2 * time.Minute,
	}
}

// RunForCompany resumes every active account of the tenant sequentially and
// returns one result per account. Per-account failures, panics included, are
// captured in the result instead of aborting the sweep.
func (s *AutoLoginService) RunForCompany(ctx context.Context, tenantID uuid.UUID) ([]AccountResumeResult, error) {
	accounts, err := s.accounts.FindActiveForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	results := make([]AccountResumeResult, 0, len(accounts))
	for i := range accounts {
		results = append(results, s.resumeOne(ctx, &accounts[i]))
	}

	s.logger.Info("autologin sweep finished",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("accounts", len(results)))
	return results, nil
}

// WarmupAsync kicks off a background sweep for the tenant. It never blocks
// the caller; failures are logged and counted, never propagated.
func (s *AutoLoginService) WarmupAsync(tenantID uuid.UUID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.warmupTimeout)
		defer cancel()

		results, err := s.RunForCompany(ctx, tenantID)
		if err != nil {
			s.warmupFailures.Add(1)
			s.logger.Warn("warmup sweep failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
			return
		}
		for _, result := range results {
			if result.Error != "" {
				s.warmupFailures.Add(1)
			}
		}
	}()
}

// WarmupFailureCount reports how many warmup attempts have failed so far
func (s *AutoLoginService) WarmupFailureCount() int64 {
	return s.warmupFailures.Load()
}

func (s *AutoLoginService) resumeOne(ctx context.Context, account *chat.Account) (result AccountResumeResult) {
	result = AccountResumeResult{
		AccountID: account.ID,
		Username:  account.Username,
	}

	defer func() {
		if r := recover(); r != nil {
			result.Resumed = false
			result.Error = fmt.Sprintf("panic: %v", r)
			s.logger.Error("resume panicked",
				zap.String("account", account.Key().String()),
				zap.Any("panic", r))
		}
	}()

	resumed, err := s.auth.TryResume(ctx, account)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Resumed = resumed
	return result
}
