package repository

import (
	"context"
	"time"

	"github.com/commonshare/flow-backend/internal/models"
)

type Accounts interface {
	Create(ctx context.Context, username, email, passwordHash, role string) (models.Account, error)
	GetByID(ctx context.Context, id string) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
	Exists(ctx context.Context, id string) (bool, error)
}

type Balances interface {
	GetOrCreate(ctx context.Context, accountID string) (models.Balance, error)
	Get(ctx context.Context, accountID string) (models.Balance, error)
	// Grant credits an account outside a transfer (initial grant). The
	// delta must be non-negative.
	Grant(ctx context.Context, accountID string, delta int64) (models.Balance, error)
}

// Quote recomputes the multiplier and credited amount from the sender
// and recipient balances as they stand under the apply locks, so a
// racing transfer cannot leave a stale bracket choice in the record.
type Quote func(senderBalance, recipientBalance int64) (multiplier, credited int64)

// Transactions owns the append-only transfer log and the atomic
// multi-leg apply. ApplyTransfer performs, in one storage transaction:
// credit the pool by PoolContribution, debit sender by BaseAmount
// (ErrInsufficientFunds if that would go negative), credit recipient by
// the quoted amount, insert the record. Either all legs commit or none.
type Transactions interface {
	ApplyTransfer(ctx context.Context, tx models.Transaction, quote Quote) (models.Transaction, error)
	// RecordFailed appends a FAILED record; no balances move.
	RecordFailed(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error)
}

type Pools interface {
	List(ctx context.Context) ([]models.Pool, error)
	Get(ctx context.Context, pt models.PoolType) (models.Pool, error)
}

// PoolRequests owns request rows, their votes, and the guarded status
// transitions. Vote uniqueness and transitions are atomic with respect
// to concurrent callers.
type PoolRequests interface {
	Create(ctx context.Context, pr models.PoolRequest) (models.PoolRequest, error)
	Get(ctx context.Context, id string) (models.PoolRequest, error)
	List(ctx context.Context, status models.RequestStatus) ([]models.PoolRequest, error)
	// CastVote records one vote and returns the updated tally.
	// ErrDuplicateVote if the voter already voted, ErrRequestClosed if
	// the request is not PENDING.
	CastVote(ctx context.Context, requestID, voterID string, inFavor bool) (models.PoolRequest, error)
	// Transition moves a request from one status to another. Returns
	// applied=false when the request was no longer in `from`, so exactly
	// one of any set of concurrent resolvers wins.
	Transition(ctx context.Context, id string, from, to models.RequestStatus, note string) (models.PoolRequest, bool, error)
	// Disburse atomically: APPROVED -> DISTRIBUTED, debit the pool,
	// credit the requester. A pool that cannot cover the amount flips
	// the request to REJECTED ("pool depleted") instead. Re-running on
	// an already-DISTRIBUTED request is a no-op (applied=false).
	Disburse(ctx context.Context, id string) (models.PoolRequest, bool, error)
	// ListExpired returns PENDING requests created before the cutoff.
	ListExpired(ctx context.Context, cutoff time.Time) ([]models.PoolRequest, error)
}

type Progressions interface {
	// GetOrCreate returns the progression row, creating it at tier
	// basic when absent; created reports whether a new row was made.
	GetOrCreate(ctx context.Context, accountID string, accountCreatedAt time.Time) (p models.Progression, created bool, err error)
	// RecordTransaction bumps the counters and stamps the first
	// transaction time if unset.
	RecordTransaction(ctx context.Context, accountID string, usedCredits bool, now time.Time) (models.Progression, error)
	// Promote advances exactly one tier; applied=false when the stored
	// tier no longer matches `from`, so concurrent promotions collapse
	// to one and the tier never regresses.
	Promote(ctx context.Context, accountID string, from, to models.Tier, now time.Time) (models.Progression, bool, error)
	// ForceAdvanced is the legacy-account migration: jump straight to
	// advanced and mark onboarding as shown.
	ForceAdvanced(ctx context.Context, accountID string, now time.Time) (models.Progression, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}
