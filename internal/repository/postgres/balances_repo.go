package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commonshare/flow-backend/internal/models"
)

type balancesRepo struct{ pool *pgxpool.Pool }

func (r *balancesRepo) GetOrCreate(ctx context.Context, accountID string) (models.Balance, error) {
	if b, err := r.Get(ctx, accountID); err == nil {
		return b, nil
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO balances(account_id, amount, last_updated_at)
		 VALUES($1, 0, now())
		 ON CONFLICT (account_id) DO NOTHING`,
		accountID,
	)
	if err != nil {
		return models.Balance{}, err
	}
	return r.Get(ctx, accountID)
}

func (r *balancesRepo) Get(ctx context.Context, accountID string) (models.Balance, error) {
	var b models.Balance
	err := r.pool.QueryRow(ctx,
		`SELECT account_id, amount, last_updated_at FROM balances WHERE account_id=$1`,
		accountID,
	).Scan(&b.AccountID, &b.Amount, &b.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Balance{}, models.ErrAccountNotFound
	}
	return b, err
}

func (r *balancesRepo) Grant(ctx context.Context, accountID string, delta int64) (models.Balance, error) {
	if delta < 0 {
		return models.Balance{}, models.ErrInvalidAmount
	}
	var b models.Balance
	err := r.pool.QueryRow(ctx,
		`INSERT INTO balances(account_id, amount, last_updated_at)
		 VALUES($1, $2, now())
		 ON CONFLICT (account_id) DO UPDATE
		   SET amount = balances.amount + EXCLUDED.amount,
		       last_updated_at = now()
		 RETURNING account_id, amount, last_updated_at`,
		accountID, delta,
	).Scan(&b.AccountID, &b.Amount, &b.LastUpdatedAt)
	return b, err
}
