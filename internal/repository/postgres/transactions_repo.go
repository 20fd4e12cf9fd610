package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commonshare/flow-backend/internal/models"
	repo "github.com/commonshare/flow-backend/internal/repository"
)

type transactionsRepo struct{ pool *pgxpool.Pool }

const insertTxn = `
INSERT INTO transactions (
  id, sender_account_id, recipient_account_id, base_amount,
  multiplier_applied, total_credited, pool_contribution, pool_type,
  description, status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING created_at`

// ApplyTransfer moves all three legs of one transfer and appends the
// record in a single database transaction. The pool row is touched
// before the balance rows (the same order Disburse uses) and balance
// rows are locked in account-id order, so a concurrent transfer and
// disbursement on the same pool cannot deadlock.
func (r *transactionsRepo) ApplyTransfer(ctx context.Context, t models.Transaction, quote repo.Quote) (models.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return models.Transaction{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if t.PoolContribution > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE pools
			    SET balance = balance + $2,
			        total_received = total_received + $2,
			        last_updated_at = now()
			  WHERE type = $1`,
			t.PoolType, t.PoolContribution,
		); err != nil {
			return models.Transaction{}, err
		}
	}

	rows, err := tx.Query(ctx,
		`SELECT account_id, amount FROM balances WHERE account_id = ANY($1) ORDER BY account_id FOR UPDATE`,
		[]string{t.SenderID, t.RecipientID},
	)
	if err != nil {
		return models.Transaction{}, err
	}
	var senderBal, recipientBal int64
	locked := 0
	for rows.Next() {
		var id string
		var amount int64
		if err := rows.Scan(&id, &amount); err != nil {
			rows.Close()
			return models.Transaction{}, err
		}
		switch id {
		case t.SenderID:
			senderBal = amount
		case t.RecipientID:
			recipientBal = amount
		}
		locked++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.Transaction{}, err
	}
	if locked != 2 {
		return models.Transaction{}, models.ErrAccountNotFound
	}

	t.Multiplier, t.TotalCredited = quote(senderBal, recipientBal)

	ct, err := tx.Exec(ctx,
		`UPDATE balances SET amount = amount - $2, last_updated_at = now()
		  WHERE account_id = $1 AND amount >= $2`,
		t.SenderID, t.BaseAmount,
	)
	if err != nil {
		return models.Transaction{}, err
	}
	if ct.RowsAffected() == 0 {
		return models.Transaction{}, models.ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx,
		`UPDATE balances SET amount = amount + $2, last_updated_at = now()
		  WHERE account_id = $1`,
		t.RecipientID, t.TotalCredited,
	); err != nil {
		return models.Transaction{}, err
	}

	t.Status = models.TxnCompleted
	if err := tx.QueryRow(ctx, insertTxn,
		t.ID, t.SenderID, t.RecipientID, t.BaseAmount,
		t.Multiplier, t.TotalCredited, t.PoolContribution, t.PoolType,
		t.Description, t.Status,
	).Scan(&t.CreatedAt); err != nil {
		return models.Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Transaction{}, err
	}
	return t, nil
}

func (r *transactionsRepo) RecordFailed(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Status = models.TxnFailed
	err := r.pool.QueryRow(ctx, insertTxn,
		t.ID, t.SenderID, t.RecipientID, t.BaseAmount,
		t.Multiplier, t.TotalCredited, t.PoolContribution, t.PoolType,
		t.Description, t.Status,
	).Scan(&t.CreatedAt)
	return t, err
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	var t models.Transaction
	err := r.pool.QueryRow(ctx,
		`SELECT id, sender_account_id, recipient_account_id, base_amount,
		        multiplier_applied, total_credited, pool_contribution, pool_type,
		        description, status, created_at
		   FROM transactions WHERE id=$1`, id,
	).Scan(&t.ID, &t.SenderID, &t.RecipientID, &t.BaseAmount,
		&t.Multiplier, &t.TotalCredited, &t.PoolContribution, &t.PoolType,
		&t.Description, &t.Status, &t.CreatedAt)
	return t, err
}

func (r *transactionsRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, sender_account_id, recipient_account_id, base_amount,
		        multiplier_applied, total_credited, pool_contribution, pool_type,
		        description, status, created_at
		   FROM transactions
		  WHERE sender_account_id=$1 OR recipient_account_id=$1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.SenderID, &t.RecipientID, &t.BaseAmount,
			&t.Multiplier, &t.TotalCredited, &t.PoolContribution, &t.PoolType,
			&t.Description, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
