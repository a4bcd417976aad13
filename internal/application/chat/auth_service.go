package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nurcrm/backend/internal/domain/chat"
)

// AuthService drives account authentication state. It is the only writer of
// account status transitions and of the session blob; every successful
// transition is persisted before the call returns.
type AuthService struct {
	accounts      chat.AccountRepository
	factory       chat.ClientFactory
	pool          *ClientPool
	resumeTimeout time.Duration
	loginTimeout  time.Duration
	logger        *zap.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	accounts chat.AccountRepository,
	factory chat.ClientFactory,
	pool *ClientPool,
	resumeTimeout, loginTimeout time.Duration,
	logger *zap.Logger,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if resumeTimeout <= 0 {
		resumeTimeout = 15 * time.Second
	}
	if loginTimeout <= 0 {
		loginTimeout = 45 * time.Second
	}
	return &AuthService{
		accounts:      accounts,
		factory:       factory,
		pool:          pool,
		resumeTimeout: resumeTimeout,
		loginTimeout:  loginTimeout,
		logger:        logger,
	}
}

// TryResume probes the stored session blob. A missing blob or a dead session
// is the normal negative outcome and returns (false, nil); errors are reserved
// for infrastructure failures such as a failed persist.
func (s *AuthService) TryResume(ctx context.Context, account *chat.Account) (bool, error) {
	if !account.HasSession() {
		return false, nil
	}

	client, err := s.factory.NewClient(ctx, account)
	if err != nil {
		s.logger.Warn("could not build client for resume",
			zap.String("account", account.Key().String()),
			zap.Error(err))
		return false, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.resumeTimeout)
	refreshed, err := client.ResumeSession(probeCtx, account.SessionBlob)
	cancel()
	if err != nil {
		_ = client.Close()
		s.logger.Info("session resume failed",
			zap.String("account", account.Key().String()),
			zap.String("username", account.Username),
			zap.Error(err))

		account.MarkSessionLost()
		if saveErr := s.accounts.Save(ctx, account); saveErr != nil {
			return false, saveErr
		}
		return false, nil
	}

	account.MarkReady(refreshed)
	if err := s.accounts.Save(ctx, account); err != nil {
		_ = client.Close()
		return false, err
	}

	s.pool.Install(account.Key(), client)
	s.logger.Info("session resumed",
		zap.String("account", account.Key().String()),
		zap.String("username", account.Username))
	return true, nil
}

// LoginManual performs a credentialed login. Classified client failures move
// the account into the matching status and surface as the package sentinels;
// anything unclassified becomes FAILED wrapped in chat.ErrAuthFailed. FAILED
// and NEEDS_2FA are retryable by calling LoginManual again.
func (s *AuthService) LoginManual(ctx context.Context, account *chat.Account, password, verificationCode string) error {
	account.MarkAuthenticating()
	if err := s.accounts.Save(ctx, account); err != nil {
		return err
	}

	client, err := s.factory.NewClient(ctx, account)
	if err != nil {
		account.MarkFailed()
		if saveErr := s.accounts.Save(ctx, account); saveErr != nil {
			return saveErr
		}
		return fmt.Errorf("%w: %v", chat.ErrAuthFailed, err)
	}

	loginCtx, cancel := context.WithTimeout(ctx, s.loginTimeout)
	blob, err := client.LoginManual(loginCtx, password, verificationCode)
	cancel()
	if err != nil {
		_ = client.Close()
		return s.recordLoginFailure(ctx, account, err)
	}

	account.MarkReady(blob)
	if err := s.accounts.Save(ctx, account); err != nil {
		_ = client.Close()
		return err
	}

	s.pool.Install(account.Key(), client)
	s.logger.Info("manual login succeeded",
		zap.String("account", account.Key().String()),
		zap.String("username", account.Username))
	return nil
}

// Logout deactivates the account and evicts any live client. It succeeds from
// any state.
func (s *AuthService) Logout(ctx context.Context, account *chat.Account) error {
	s.pool.Evict(account.Key())
	account.Deactivate()
	return s.accounts.Save(ctx, account)
}

func (s *AuthService) recordLoginFailure(ctx context.Context, account *chat.Account, loginErr error) error {
	result := loginErr

	switch {
	case errors.Is(loginErr, chat.ErrTwoFactorRequired):
		account.MarkNeedsTwoFactor()
	case errors.Is(loginErr, chat.ErrChallengeRequired):
		account.MarkNeedsChallenge()
	default:
		if rl, ok := chat.AsRateLimited(loginErr); ok {
			account.MarkRateLimited(rl.RetryAfter)
			break
		}
		account.MarkFailed()
		if !errors.Is(loginErr, chat.ErrAuthFailed) {
			result = fmt.Errorf("%w: %v", chat.ErrAuthFailed, loginErr)
		}
	}

	s.logger.Info("manual login failed",
		zap.String("account", account.Key().String()),
		zap.String("username", account.Username),
		zap.String("status", string(account.Status)),
		zap.Error(loginErr))

	if err := s.accounts.Save(ctx, account); err != nil {
		return err
	}
	return result
}
