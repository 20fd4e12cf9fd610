package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commonshare/flow-backend/internal/models"
)

type poolsRepo struct{ pool *pgxpool.Pool }

func (r *poolsRepo) List(ctx context.Context) ([]models.Pool, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT type, balance, total_received, total_distributed, last_updated_at
		   FROM pools ORDER BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Pool
	for rows.Next() {
		var p models.Pool
		if err := rows.Scan(&p.Type, &p.Balance, &p.TotalReceived, &p.TotalDistributed, &p.LastUpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *poolsRepo) Get(ctx context.Context, pt models.PoolType) (models.Pool, error) {
	var p models.Pool
	err := r.pool.QueryRow(ctx,
		`SELECT type, balance, total_received, total_distributed, last_updated_at
		   FROM pools WHERE type=$1`, pt,
	).Scan(&p.Type, &p.Balance, &p.TotalReceived, &p.TotalDistributed, &p.LastUpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Pool{}, models.ErrUnknownPool
	}
	return p, err
}
