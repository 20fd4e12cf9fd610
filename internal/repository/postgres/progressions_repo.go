package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commonshare/flow-backend/internal/models"
)

type progressionsRepo struct{ pool *pgxpool.Pool }

const progressionCols = `account_id, tier, total_transactions, credits_transactions,
       first_transaction_at, intermediate_since, advanced_since, onboarding_shown, account_created_at`

func scanProgression(row pgx.Row) (models.Progression, error) {
	var p models.Progression
	err := row.Scan(&p.AccountID, &p.Tier, &p.TotalTransactions, &p.CreditsTransactions,
		&p.FirstTransactionAt, &p.IntermediateSince, &p.AdvancedSince, &p.OnboardingShown, &p.AccountCreatedAt)
	return p, err
}

func (r *progressionsRepo) GetOrCreate(ctx context.Context, accountID string, accountCreatedAt time.Time) (models.Progression, bool, error) {
	p, err := scanProgression(r.pool.QueryRow(ctx,
		`SELECT `+progressionCols+` FROM economy_progress WHERE account_id=$1`, accountID))
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.Progression{}, false, err
	}
	ct, err := r.pool.Exec(ctx,
		`INSERT INTO economy_progress (account_id, tier, account_created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (account_id) DO NOTHING`,
		accountID, models.TierBasic, accountCreatedAt,
	)
	if err != nil {
		return models.Progression{}, false, err
	}
	p, err = scanProgression(r.pool.QueryRow(ctx,
		`SELECT `+progressionCols+` FROM economy_progress WHERE account_id=$1`, accountID))
	return p, ct.RowsAffected() == 1, err
}

func (r *progressionsRepo) RecordTransaction(ctx context.Context, accountID string, usedCredits bool, now time.Time) (models.Progression, error) {
	p, err := scanProgression(r.pool.QueryRow(ctx,
		`UPDATE economy_progress
		    SET total_transactions = total_transactions + 1,
		        credits_transactions = credits_transactions + CASE WHEN $2 THEN 1 ELSE 0 END,
		        first_transaction_at = COALESCE(first_transaction_at, $3)
		  WHERE account_id=$1
		  RETURNING `+progressionCols,
		accountID, usedCredits, now,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Progression{}, models.ErrAccountNotFound
	}
	return p, err
}

// Promote is a compare-and-set on the tier column: concurrent callers
// racing the same step collapse to one winner and the tier can never
// move backwards.
func (r *progressionsRepo) Promote(ctx context.Context, accountID string, from, to models.Tier, now time.Time) (models.Progression, bool, error) {
	p, err := scanProgression(r.pool.QueryRow(ctx,
		`UPDATE economy_progress
		    SET tier = $3,
		        intermediate_since = CASE WHEN $3 = 'intermediate' THEN COALESCE(intermediate_since, $4) ELSE intermediate_since END,
		        advanced_since     = CASE WHEN $3 = 'advanced'     THEN COALESCE(advanced_since, $4)     ELSE advanced_since END
		  WHERE account_id = $1 AND tier = $2
		  RETURNING `+progressionCols,
		accountID, from, to, now,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		p, err = scanProgression(r.pool.QueryRow(ctx,
			`SELECT `+progressionCols+` FROM economy_progress WHERE account_id=$1`, accountID))
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Progression{}, false, models.ErrAccountNotFound
		}
		return p, false, err
	}
	return p, err == nil, err
}

func (r *progressionsRepo) ForceAdvanced(ctx context.Context, accountID string, now time.Time) (models.Progression, error) {
	p, err := scanProgression(r.pool.QueryRow(ctx,
		`INSERT INTO economy_progress (account_id, tier, intermediate_since, advanced_since, onboarding_shown, account_created_at)
		 VALUES ($1, $2, $3, $3, true, $3)
		 ON CONFLICT (account_id) DO UPDATE
		   SET tier = $2,
		       intermediate_since = COALESCE(economy_progress.intermediate_since, $3),
		       advanced_since     = COALESCE(economy_progress.advanced_since, $3),
		       onboarding_shown   = true
		 RETURNING `+progressionCols,
		accountID, models.TierAdvanced, now,
	))
	return p, err
}
