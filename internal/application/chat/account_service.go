package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nurcrm/backend/internal/domain/chat"
	"github.com/nurcrm/backend/internal/domain/shared"
)

// AccountService is the HTTP-facing surface over chat accounts. Status
// transitions themselves are delegated to AuthService.
type AccountService struct {
	accounts chat.AccountRepository
	auth     *AuthService
}

// NewAccountService creates a new AccountService
func NewAccountService(accounts chat.AccountRepository, auth *AuthService) *AccountService {
	return &AccountService{
		accounts: accounts,
		auth:     auth,
	}
}

// List returns the company's active accounts
func (s *AccountService) List(ctx context.Context, tenantID uuid.UUID) ([]AccountResponse, error) {
	accounts, err := s.accounts.FindActiveForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	responses := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		responses = append(responses, ToAccountResponse(&accounts[i]))
	}
	return responses, nil
}

// GetByID returns one account scoped to the tenant
func (s *AccountService) GetByID(ctx context.Context, tenantID, accountID uuid.UUID) (*AccountResponse, error) {
	account, err := s.accounts.FindByIDForTenant(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	response := ToAccountResponse(account)
	return &response, nil
}

// Connect creates the account if it does not exist yet and performs a manual
// login. A previously deactivated account with the same username is revived.
// The returned response reflects the post-login account state even when the
// login itself failed.
func (s *AccountService) Connect(ctx context.Context, tenantID uuid.UUID, req ConnectAccountRequest) (*AccountResponse, error) {
	platform := chat.Platform(req.Platform)
	if !platform.IsValid() {
		return nil, shared.NewDomainError("INVALID_PLATFORM", "Unknown chat platform")
	}

	account, err := s.accounts.FindByUsername(ctx, tenantID, platform, req.Username)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		account, err = chat.NewAccount(tenantID, platform, req.Username)
		if err != nil {
			return nil, err
		}
		if err := s.accounts.Save(ctx, account); err != nil {
			return nil, err
		}
	}

	loginErr := s.auth.LoginManual(ctx, account, req.Password, req.VerificationCode)
	response := ToAccountResponse(account)
	return &response, loginErr
}

// Login re-authenticates an existing account. A stored session is tried
// first; when it does not resume and no password was supplied the caller
// gets chat.ErrManualLoginRequired.
func (s *AccountService) Login(ctx context.Context, tenantID, accountID uuid.UUID, req LoginRequest) (*AccountResponse, error) {
	account, err := s.accounts.FindByIDForTenant(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}

	resumed, err := s.auth.TryResume(ctx, account)
	if err != nil {
		return nil, err
	}
	if resumed {
		response := ToAccountResponse(account)
		return &response, nil
	}

	if req.Password == "" {
		response := ToAccountResponse(account)
		return &response, chat.ErrManualLoginRequired
	}

	loginErr := s.auth.LoginManual(ctx, account, req.Password, req.VerificationCode)
	response := ToAccountResponse(account)
	return &response, loginErr
}

// Logout deactivates the account
func (s *AccountService) Logout(ctx context.Context, tenantID, accountID uuid.UUID) (*AccountResponse, error) {
	account, err := s.accounts.FindByIDForTenant(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Logout(ctx, account); err != nil {
		return nil, err
	}
	response := ToAccountResponse(account)
	return &response, nil
}
