package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonshare/flow-backend/internal/config"
	"github.com/commonshare/flow-backend/internal/events"
	"github.com/commonshare/flow-backend/internal/models"
	repo "github.com/commonshare/flow-backend/internal/repository"
	"github.com/commonshare/flow-backend/internal/repository/memory"
	"github.com/commonshare/flow-backend/internal/worker"
)

type testEnv struct {
	store      *memory.Store
	repos      memory.Repositories
	wp         *worker.Pool
	bus        *events.Bus
	policy     config.FlowPolicy
	prog       *ProgressionService
	transfers  *TransferService
	governance *GovernanceService
}

func newTestEnv(t *testing.T, mutate func(*config.FlowPolicy)) *testEnv {
	t.Helper()
	store := memory.NewStore()
	repos := memory.NewRepositories(store)
	wp := worker.NewPool(2)
	t.Cleanup(wp.Stop)
	bus := events.NewBus(wp)

	policy := config.DefaultFlowPolicy()
	if mutate != nil {
		mutate(&policy)
	}

	prog := NewProgressionService(repos.Progressions, repos.Accounts, repos.Balances, repos.AuditLogs)
	return &testEnv{
		store:      store,
		repos:      repos,
		wp:         wp,
		bus:        bus,
		policy:     policy,
		prog:       prog,
		transfers:  NewTransferService(repos.Accounts, repos.Balances, repos.Transactions, repos.AuditLogs, prog, policy, bus),
		governance: NewGovernanceService(repos.PoolRequests, repos.Accounts, repos.AuditLogs, policy, bus),
	}
}

func (e *testEnv) balance(t *testing.T, id string) int64 {
	t.Helper()
	b, err := e.repos.Balances.Get(context.Background(), id)
	require.NoError(t, err)
	return b.Amount
}

func (e *testEnv) pool(t *testing.T, pt models.PoolType) models.Pool {
	t.Helper()
	p, err := e.repos.Pools.Get(context.Background(), pt)
	require.NoError(t, err)
	return p
}

func TestTransfer_RichToPoor(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("alice", 1000)
	env.store.SeedAccount("bob", 50)

	tx, err := env.transfers.Transfer(context.Background(), "alice", "bob", 100, "groceries")
	require.NoError(t, err)

	// ratio 1000/50 = 20 -> 1.50x
	assert.Equal(t, int64(150), tx.Multiplier)
	assert.Equal(t, int64(150), tx.TotalCredited)
	assert.Equal(t, int64(2), tx.PoolContribution)
	assert.Equal(t, models.TxnCompleted, tx.Status)

	assert.Equal(t, int64(900), env.balance(t, "alice"))
	assert.Equal(t, int64(200), env.balance(t, "bob"))
	assert.Equal(t, int64(2), env.pool(t, models.PoolEquality).Balance)
	assert.Equal(t, int64(50), tx.BonusMinted())
}

func TestTransfer_NoBonusForRicherRecipient(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("alice", 100)
	env.store.SeedAccount("bob", 500)

	tx, err := env.transfers.Transfer(context.Background(), "alice", "bob", 50, "")
	require.NoError(t, err)

	assert.Equal(t, int64(100), tx.Multiplier)
	assert.Equal(t, int64(50), tx.TotalCredited)
	assert.Equal(t, int64(50), env.balance(t, "alice"))
	assert.Equal(t, int64(550), env.balance(t, "bob"))
}

func TestTransfer_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("alice", 100)
	env.store.SeedAccount("bob", 0)
	ctx := context.Background()

	_, err := env.transfers.Transfer(ctx, "alice", "bob", 0, "")
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = env.transfers.Transfer(ctx, "alice", "bob", -5, "")
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = env.transfers.Transfer(ctx, "alice", "alice", 10, "")
	assert.ErrorIs(t, err, models.ErrSelfTransfer)

	_, err = env.transfers.Transfer(ctx, "alice", "ghost", 10, "")
	assert.ErrorIs(t, err, models.ErrAccountNotFound)

	_, err = env.transfers.Transfer(ctx, "alice", "bob", 101, "")
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	// Nothing moved.
	assert.Equal(t, int64(100), env.balance(t, "alice"))
	assert.Equal(t, int64(0), env.balance(t, "bob"))
}

func TestTransfer_EmitsCreditsReceived(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("alice", 1000)
	env.store.SeedAccount("bob", 50)

	got := make(chan events.Event, 1)
	env.bus.Subscribe(func(e events.Event) {
		if e.Type == events.CreditsReceived {
			got <- e
		}
	})

	_, err := env.transfers.Transfer(context.Background(), "alice", "bob", 100, "")
	require.NoError(t, err)

	select {
	case e := <-got:
		assert.Equal(t, "bob", e.AccountID)
		assert.Equal(t, int64(150), e.Payload["amount"])
		assert.Equal(t, "alice", e.Payload["sender_account_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("CreditsReceived event not delivered")
	}
}

func TestTransfer_PromotesOnFirstTransaction(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("alice", 100)
	env.store.SeedAccount("bob", 100)

	_, err := env.transfers.Transfer(context.Background(), "alice", "bob", 10, "")
	require.NoError(t, err)

	p, _, err := env.prog.TierFor(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, models.TierIntermediate, p.Tier)
	assert.Equal(t, int64(1), p.TotalTransactions)
}

// Every debited unit ends up as a recipient credit, a pool
// contribution, or minted bonus; the books always balance.
func TestTransfer_Conservation(t *testing.T) {
	env := newTestEnv(t, nil)
	accounts := []string{"a", "b", "c", "d"}
	seed := []int64{5000, 900, 40, 0}
	var initial int64
	for i, id := range accounts {
		env.store.SeedAccount(id, seed[i])
		initial += seed[i]
	}

	ctx := context.Background()
	var minted, skimmed int64
	transfers := []struct {
		from, to string
		amount   int64
	}{
		{"a", "d", 500}, {"a", "c", 300}, {"b", "c", 100},
		{"c", "a", 50}, {"d", "b", 200}, {"a", "b", 777},
	}
	for _, tr := range transfers {
		tx, err := env.transfers.Transfer(ctx, tr.from, tr.to, tr.amount, "")
		require.NoError(t, err)
		minted += tx.BonusMinted()
		skimmed += tx.PoolContribution
	}

	var total int64
	for _, id := range accounts {
		bal := env.balance(t, id)
		require.GreaterOrEqual(t, bal, int64(0))
		total += bal
	}
	pools, err := env.repos.Pools.List(ctx)
	require.NoError(t, err)
	for _, p := range pools {
		require.GreaterOrEqual(t, p.Balance, int64(0))
		require.Equal(t, p.Balance, p.TotalReceived-p.TotalDistributed)
		total += p.Balance
	}

	assert.Equal(t, initial+minted+skimmed, total)
}

// applyFailTrx fails every apply with a storage error and captures what
// gets handed to RecordFailed.
type applyFailTrx struct {
	repo.Transactions
	failWith error
	recorded []models.Transaction
}

func (f *applyFailTrx) ApplyTransfer(_ context.Context, _ models.Transaction, _ repo.Quote) (models.Transaction, error) {
	return models.Transaction{}, f.failWith
}

func (f *applyFailTrx) RecordFailed(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	f.recorded = append(f.recorded, t)
	return f.Transactions.RecordFailed(ctx, t)
}

// A storage failure during the apply must leave a FAILED record that
// still names the parties and the amount, not an empty one.
func TestTransfer_FailedApplyRecordsDetails(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("alice", 1000)
	env.store.SeedAccount("bob", 50)

	ft := &applyFailTrx{Transactions: env.repos.Transactions, failWith: errors.New("connection reset")}
	transfers := NewTransferService(env.repos.Accounts, env.repos.Balances, ft, env.repos.AuditLogs, env.prog, env.policy, env.bus)

	_, err := transfers.Transfer(context.Background(), "alice", "bob", 100, "groceries")
	require.Error(t, err)

	require.Len(t, ft.recorded, 1)
	rec := ft.recorded[0]
	assert.Equal(t, "alice", rec.SenderID)
	assert.Equal(t, "bob", rec.RecipientID)
	assert.Equal(t, int64(100), rec.BaseAmount)
	assert.Equal(t, int64(2), rec.PoolContribution)

	txs, err := env.repos.Transactions.ListByAccount(context.Background(), "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TxnFailed, txs[0].Status)
	assert.Equal(t, int64(100), txs[0].BaseAmount)

	// No balances moved.
	assert.Equal(t, int64(1000), env.balance(t, "alice"))
	assert.Equal(t, int64(50), env.balance(t, "bob"))
}

// interposeTrx runs a hook once right before delegating the apply, to
// change balances between the service's pre-read and the commit.
type interposeTrx struct {
	repo.Transactions
	before func()
}

func (i *interposeTrx) ApplyTransfer(ctx context.Context, t models.Transaction, q repo.Quote) (models.Transaction, error) {
	if i.before != nil {
		hook := i.before
		i.before = nil
		hook()
	}
	return i.Transactions.ApplyTransfer(ctx, t, q)
}

// The recorded bracket must come from the balances at apply time, not
// from the pre-read: a racing balance change re-quotes the multiplier.
func TestTransfer_MultiplierQuotedAtApply(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("alice", 1000)
	env.store.SeedAccount("bob", 50)

	// Drop alice from ratio 20 (1.50x) to ratio 2 (1.15x) mid-flight.
	it := &interposeTrx{Transactions: env.repos.Transactions, before: func() {
		env.store.SeedAccount("alice", 100)
	}}
	transfers := NewTransferService(env.repos.Accounts, env.repos.Balances, it, env.repos.AuditLogs, env.prog, env.policy, env.bus)

	tx, err := transfers.Transfer(context.Background(), "alice", "bob", 100, "")
	require.NoError(t, err)

	assert.Equal(t, int64(115), tx.Multiplier)
	assert.Equal(t, int64(115), tx.TotalCredited)
	assert.Equal(t, int64(0), env.balance(t, "alice"))
	assert.Equal(t, int64(165), env.balance(t, "bob"))
}

// Concurrent transfers from one sender must serialize on the balance:
// exactly floor(funds/amount) succeed and the balance never goes
// negative.
func TestTransfer_ConcurrentNoOverdraft(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SeedAccount("hub", 50)
	env.store.SeedAccount("sink", 1_000_000) // richer recipient: no minting

	const attempts = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.transfers.Transfer(context.Background(), "hub", "sink", 1, "")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, succeeded)
	assert.Equal(t, int64(0), env.balance(t, "hub"))
	assert.Equal(t, int64(1_000_050), env.balance(t, "sink"))
}
