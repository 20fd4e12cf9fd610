package services

import (
	"context"

	"github.com/commonshare/flow-backend/internal/models"
	repo "github.com/commonshare/flow-backend/internal/repository"
)

type BalanceService struct {
	balances repo.Balances
	pools    repo.Pools
}

func NewBalanceService(balances repo.Balances, pools repo.Pools) *BalanceService {
	return &BalanceService{balances: balances, pools: pools}
}

func (s *BalanceService) Current(ctx context.Context, accountID string) (models.Balance, error) {
	return s.balances.GetOrCreate(ctx, accountID)
}

func (s *BalanceService) Pools(ctx context.Context) ([]models.Pool, error) {
	return s.pools.List(ctx)
}
