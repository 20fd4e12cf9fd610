package postgres

import (
	repo "github.com/commonshare/flow-backend/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repositories struct {
	Accounts     repo.Accounts
	Balances     repo.Balances
	Transactions repo.Transactions
	Pools        repo.Pools
	PoolRequests repo.PoolRequests
	Progressions repo.Progressions
	AuditLogs    repo.AuditLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Accounts:     &accountsRepo{pool},
		Balances:     &balancesRepo{pool},
		Transactions: &transactionsRepo{pool},
		Pools:        &poolsRepo{pool},
		PoolRequests: &poolRequestsRepo{pool},
		Progressions: &progressionsRepo{pool},
		AuditLogs:    &auditLogsRepo{pool},
	}
}
