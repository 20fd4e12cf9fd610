package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commonshare/flow-backend/internal/models"
)

type poolRequestsRepo struct{ pool *pgxpool.Pool }

const requestCols = `id, requester_account_id, pool_type, requested_amount, reason,
       status, votes_for, votes_against, resolution_note, created_at, resolved_at`

func scanRequest(row pgx.Row) (models.PoolRequest, error) {
	var pr models.PoolRequest
	err := row.Scan(&pr.ID, &pr.RequesterID, &pr.PoolType, &pr.Amount, &pr.Reason,
		&pr.Status, &pr.VotesFor, &pr.VotesAgainst, &pr.ResolutionNote, &pr.CreatedAt, &pr.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PoolRequest{}, models.ErrRequestNotFound
	}
	return pr, err
}

func (r *poolRequestsRepo) Create(ctx context.Context, pr models.PoolRequest) (models.PoolRequest, error) {
	if pr.ID == "" {
		pr.ID = uuid.NewString()
	}
	pr.Status = models.RequestPending
	return scanRequest(r.pool.QueryRow(ctx,
		`INSERT INTO pool_requests (id, requester_account_id, pool_type, requested_amount, reason, status)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING `+requestCols,
		pr.ID, pr.RequesterID, pr.PoolType, pr.Amount, pr.Reason, pr.Status,
	))
}

func (r *poolRequestsRepo) Get(ctx context.Context, id string) (models.PoolRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx,
		`SELECT `+requestCols+` FROM pool_requests WHERE id=$1`, id))
}

func (r *poolRequestsRepo) List(ctx context.Context, status models.RequestStatus) ([]models.PoolRequest, error) {
	q := `SELECT ` + requestCols + ` FROM pool_requests`
	args := []any{}
	if status != "" {
		q += ` WHERE status=$1`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PoolRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// CastVote inserts the vote and bumps the tally under a row lock on the
// request, so two concurrent votes both observe a consistent count. The
// unique index on (request_id, voter_account_id) is the duplicate guard.
func (r *poolRequestsRepo) CastVote(ctx context.Context, requestID, voterID string, inFavor bool) (models.PoolRequest, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return models.PoolRequest{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	pr, err := scanRequest(tx.QueryRow(ctx,
		`SELECT `+requestCols+` FROM pool_requests WHERE id=$1 FOR UPDATE`, requestID))
	if err != nil {
		return models.PoolRequest{}, err
	}
	if !pr.Open() {
		return models.PoolRequest{}, models.ErrRequestClosed
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO pool_votes (request_id, voter_account_id, in_favor) VALUES ($1,$2,$3)`,
		requestID, voterID, inFavor,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.PoolRequest{}, models.ErrDuplicateVote
		}
		return models.PoolRequest{}, err
	}

	col := "votes_against"
	if inFavor {
		col = "votes_for"
	}
	pr, err = scanRequest(tx.QueryRow(ctx,
		`UPDATE pool_requests SET `+col+` = `+col+` + 1 WHERE id=$1 RETURNING `+requestCols,
		requestID,
	))
	if err != nil {
		return models.PoolRequest{}, err
	}
	return pr, tx.Commit(ctx)
}

func (r *poolRequestsRepo) Transition(ctx context.Context, id string, from, to models.RequestStatus, note string) (models.PoolRequest, bool, error) {
	pr, err := scanRequest(r.pool.QueryRow(ctx,
		`UPDATE pool_requests
		    SET status=$3, resolution_note=$4, resolved_at=now()
		  WHERE id=$1 AND status=$2
		  RETURNING `+requestCols,
		id, from, to, note,
	))
	if errors.Is(err, models.ErrRequestNotFound) {
		// Either missing or already transitioned by a concurrent caller.
		pr, err = r.Get(ctx, id)
		return pr, false, err
	}
	return pr, err == nil, err
}

// Disburse performs the exactly-once payout: the request row is locked,
// the pool debit is guarded so the pool can never go negative, and a
// depleted pool flips the request to REJECTED instead of failing.
func (r *poolRequestsRepo) Disburse(ctx context.Context, id string) (models.PoolRequest, bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return models.PoolRequest{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	pr, err := scanRequest(tx.QueryRow(ctx,
		`SELECT `+requestCols+` FROM pool_requests WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return models.PoolRequest{}, false, err
	}
	switch pr.Status {
	case models.RequestDistributed:
		return pr, false, nil
	case models.RequestApproved:
		// proceed
	default:
		return pr, false, models.ErrRequestClosed
	}

	ct, err := tx.Exec(ctx,
		`UPDATE pools
		    SET balance = balance - $2,
		        total_distributed = total_distributed + $2,
		        last_updated_at = now()
		  WHERE type = $1 AND balance >= $2`,
		pr.PoolType, pr.Amount,
	)
	if err != nil {
		return models.PoolRequest{}, false, err
	}
	if ct.RowsAffected() == 0 {
		pr, err = scanRequest(tx.QueryRow(ctx,
			`UPDATE pool_requests SET status=$2, resolution_note=$3, resolved_at=now()
			  WHERE id=$1 RETURNING `+requestCols,
			id, models.RequestRejected, "pool depleted",
		))
		if err != nil {
			return models.PoolRequest{}, false, err
		}
		return pr, false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO balances(account_id, amount, last_updated_at)
		 VALUES($1, $2, now())
		 ON CONFLICT (account_id) DO UPDATE
		   SET amount = balances.amount + EXCLUDED.amount,
		       last_updated_at = now()`,
		pr.RequesterID, pr.Amount,
	); err != nil {
		return models.PoolRequest{}, false, err
	}

	pr, err = scanRequest(tx.QueryRow(ctx,
		`UPDATE pool_requests SET status=$2 WHERE id=$1 RETURNING `+requestCols,
		id, models.RequestDistributed,
	))
	if err != nil {
		return models.PoolRequest{}, false, err
	}
	return pr, true, tx.Commit(ctx)
}

func (r *poolRequestsRepo) ListExpired(ctx context.Context, cutoff time.Time) ([]models.PoolRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+requestCols+` FROM pool_requests WHERE status=$1 AND created_at < $2`,
		models.RequestPending, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PoolRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}
