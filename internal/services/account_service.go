package services

import (
	"context"
	"strings"
	"time"

	"github.com/commonshare/flow-backend/internal/auth"
	"github.com/commonshare/flow-backend/internal/config"
	"github.com/commonshare/flow-backend/internal/models"
	repo "github.com/commonshare/flow-backend/internal/repository"
)

// AccountService is the thin identity surface the engine needs: it
// registers accounts (balance row plus basic-tier progression) and
// turns credentials into JWT pairs. Everything richer (profiles,
// sessions) lives outside this service.
type AccountService struct {
	accounts repo.Accounts
	balances repo.Balances
	prog     *ProgressionService
	cfg      config.Config
	tm       *auth.TokenManager
}

func NewAccountService(accounts repo.Accounts, balances repo.Balances, prog *ProgressionService, cfg config.Config, tm *auth.TokenManager) *AccountService {
	return &AccountService{accounts: accounts, balances: balances, prog: prog, cfg: cfg, tm: tm}
}

func (s *AccountService) Register(ctx context.Context, username, email, password string) (models.Account, error) {
	a := models.Account{Username: strings.TrimSpace(username), Email: strings.TrimSpace(email), Role: "user"}
	if err := a.Validate(); err != nil {
		return models.Account{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.Account{}, err
	}
	a, err = s.accounts.Create(ctx, a.Username, a.Email, hash, a.Role)
	if err != nil {
		return models.Account{}, err
	}
	if _, err := s.balances.Grant(ctx, a.ID, s.cfg.Flow.InitialGrant); err != nil {
		return models.Account{}, err
	}
	if err := s.prog.EnsureCreated(ctx, a.ID, a.CreatedAt); err != nil {
		return models.Account{}, err
	}
	return a, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (access, refresh string, exp time.Time, err error) {
	a, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return "", "", time.Time{}, err
	}
	if err := auth.VerifyPassword(password, a.PasswordHash); err != nil {
		return "", "", time.Time{}, err
	}
	return s.tm.GeneratePair(a.ID, a.Role)
}

func (s *AccountService) GetByID(ctx context.Context, id string) (models.Account, error) {
	return s.accounts.GetByID(ctx, id)
}
