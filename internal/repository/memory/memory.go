// Package memory is an in-process implementation of every repository
// interface, mirroring the Postgres guarantees (guarded debits,
// conditional status transitions, vote uniqueness) behind one mutex.
// It backs the service tests and local development without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/commonshare/flow-backend/internal/models"
	repo "github.com/commonshare/flow-backend/internal/repository"
)

type Store struct {
	mu           sync.Mutex
	accounts     map[string]models.Account
	balances     map[string]*models.Balance
	transactions []models.Transaction
	pools        map[models.PoolType]*models.Pool
	requests     map[string]*models.PoolRequest
	votes        map[string]map[string]bool // requestID -> voterID -> inFavor
	progressions map[string]*models.Progression
	audits       []models.AuditLog
}

func NewStore() *Store {
	s := &Store{
		accounts:     map[string]models.Account{},
		balances:     map[string]*models.Balance{},
		pools:        map[models.PoolType]*models.Pool{},
		requests:     map[string]*models.PoolRequest{},
		votes:        map[string]map[string]bool{},
		progressions: map[string]*models.Progression{},
	}
	for _, pt := range models.PoolTypes() {
		s.pools[pt] = &models.Pool{Type: pt, LastUpdatedAt: time.Now()}
	}
	return s
}

// Repositories bundles the store behind the repository interfaces, the
// same shape postgres.NewRepositories returns.
type Repositories struct {
	Accounts     repo.Accounts
	Balances     repo.Balances
	Transactions repo.Transactions
	Pools        repo.Pools
	PoolRequests repo.PoolRequests
	Progressions repo.Progressions
	AuditLogs    repo.AuditLogs
}

func NewRepositories(s *Store) Repositories {
	return Repositories{
		Accounts:     (*accountsRepo)(s),
		Balances:     (*balancesRepo)(s),
		Transactions: (*transactionsRepo)(s),
		Pools:        (*poolsRepo)(s),
		PoolRequests: (*poolRequestsRepo)(s),
		Progressions: (*progressionsRepo)(s),
		AuditLogs:    (*auditLogsRepo)(s),
	}
}

// ---------- accounts ----------

type accountsRepo Store

func (r *accountsRepo) Create(_ context.Context, username, email, hash, role string) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := models.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	r.accounts[a.ID] = a
	return a, nil
}

func (r *accountsRepo) GetByID(_ context.Context, id string) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return models.Account{}, models.ErrAccountNotFound
	}
	return a, nil
}

func (r *accountsRepo) GetByEmail(_ context.Context, email string) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return models.Account{}, models.ErrAccountNotFound
}

func (r *accountsRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.accounts[id]
	return ok, nil
}

// SeedAccount registers a bare account with a balance, for tests.
func (s *Store) SeedAccount(id string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.accounts[id] = models.Account{ID: id, Username: id, Email: id + "@test", Role: "user", CreatedAt: now}
	s.balances[id] = &models.Balance{AccountID: id, Amount: balance, LastUpdatedAt: now}
}

// ---------- balances ----------

type balancesRepo Store

func (r *balancesRepo) GetOrCreate(_ context.Context, accountID string) (models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := (*Store)(r).balanceLocked(accountID)
	return *b, nil
}

func (r *balancesRepo) Get(_ context.Context, accountID string) (models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[accountID]
	if !ok {
		return models.Balance{}, models.ErrAccountNotFound
	}
	return *b, nil
}

func (r *balancesRepo) Grant(_ context.Context, accountID string, delta int64) (models.Balance, error) {
	if delta < 0 {
		return models.Balance{}, models.ErrInvalidAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b := (*Store)(r).balanceLocked(accountID)
	b.Amount += delta
	b.LastUpdatedAt = time.Now()
	return *b, nil
}

func (s *Store) balanceLocked(accountID string) *models.Balance {
	b, ok := s.balances[accountID]
	if !ok {
		b = &models.Balance{AccountID: accountID, LastUpdatedAt: time.Now()}
		s.balances[accountID] = b
	}
	return b
}

// ---------- transactions ----------

type transactionsRepo Store

func (r *transactionsRepo) ApplyTransfer(_ context.Context, t models.Transaction, quote repo.Quote) (models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender, okS := r.balances[t.SenderID]
	recipient, okR := r.balances[t.RecipientID]
	if !okS || !okR {
		return models.Transaction{}, models.ErrAccountNotFound
	}
	if sender.Amount < t.BaseAmount {
		return models.Transaction{}, models.ErrInsufficientFunds
	}
	t.Multiplier, t.TotalCredited = quote(sender.Amount, recipient.Amount)

	now := time.Now()
	sender.Amount -= t.BaseAmount
	sender.LastUpdatedAt = now
	recipient.Amount += t.TotalCredited
	recipient.LastUpdatedAt = now
	if t.PoolContribution > 0 {
		p := r.pools[t.PoolType]
		p.Balance += t.PoolContribution
		p.TotalReceived += t.PoolContribution
		p.LastUpdatedAt = now
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Status = models.TxnCompleted
	t.CreatedAt = now
	r.transactions = append(r.transactions, t)
	return t, nil
}

func (r *transactionsRepo) RecordFailed(_ context.Context, t models.Transaction) (models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Status = models.TxnFailed
	t.CreatedAt = time.Now()
	r.transactions = append(r.transactions, t)
	return t, nil
}

func (r *transactionsRepo) GetByID(_ context.Context, id string) (models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.transactions {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Transaction{}, models.ErrAccountNotFound
}

func (r *transactionsRepo) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.Transaction
	for _, t := range r.transactions {
		if t.SenderID == accountID || t.RecipientID == accountID {
			all = append(all, t)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// ---------- pools ----------

type poolsRepo Store

func (r *poolsRepo) List(_ context.Context) ([]models.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Pool, 0, len(r.pools))
	for _, pt := range models.PoolTypes() {
		out = append(out, *r.pools[pt])
	}
	return out, nil
}

func (r *poolsRepo) Get(_ context.Context, pt models.PoolType) (models.Pool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pools[pt]
	if !ok {
		return models.Pool{}, models.ErrUnknownPool
	}
	return *p, nil
}

// SeedPool sets a pool balance directly, for tests.
func (s *Store) SeedPool(pt models.PoolType, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pools[pt]
	p.Balance = balance
	p.TotalReceived = balance
}

// ---------- pool requests ----------

type poolRequestsRepo Store

func (r *poolRequestsRepo) Create(_ context.Context, pr models.PoolRequest) (models.PoolRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pr.ID == "" {
		pr.ID = uuid.NewString()
	}
	pr.Status = models.RequestPending
	pr.CreatedAt = time.Now()
	r.requests[pr.ID] = &pr
	r.votes[pr.ID] = map[string]bool{}
	return pr, nil
}

func (r *poolRequestsRepo) Get(_ context.Context, id string) (models.PoolRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.requests[id]
	if !ok {
		return models.PoolRequest{}, models.ErrRequestNotFound
	}
	return *pr, nil
}

func (r *poolRequestsRepo) List(_ context.Context, status models.RequestStatus) ([]models.PoolRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PoolRequest
	for _, pr := range r.requests {
		if status == "" || pr.Status == status {
			out = append(out, *pr)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *poolRequestsRepo) CastVote(_ context.Context, requestID, voterID string, inFavor bool) (models.PoolRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.requests[requestID]
	if !ok {
		return models.PoolRequest{}, models.ErrRequestNotFound
	}
	if !pr.Open() {
		return models.PoolRequest{}, models.ErrRequestClosed
	}
	if _, voted := r.votes[requestID][voterID]; voted {
		return models.PoolRequest{}, models.ErrDuplicateVote
	}
	r.votes[requestID][voterID] = inFavor
	if inFavor {
		pr.VotesFor++
	} else {
		pr.VotesAgainst++
	}
	return *pr, nil
}

func (r *poolRequestsRepo) Transition(_ context.Context, id string, from, to models.RequestStatus, note string) (models.PoolRequest, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.requests[id]
	if !ok {
		return models.PoolRequest{}, false, models.ErrRequestNotFound
	}
	if pr.Status != from {
		return *pr, false, nil
	}
	now := time.Now()
	pr.Status = to
	pr.ResolutionNote = note
	pr.ResolvedAt = &now
	return *pr, true, nil
}

func (r *poolRequestsRepo) Disburse(_ context.Context, id string) (models.PoolRequest, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.requests[id]
	if !ok {
		return models.PoolRequest{}, false, models.ErrRequestNotFound
	}
	switch pr.Status {
	case models.RequestDistributed:
		return *pr, false, nil
	case models.RequestApproved:
	default:
		return *pr, false, models.ErrRequestClosed
	}

	now := time.Now()
	p := r.pools[pr.PoolType]
	if p.Balance < pr.Amount {
		pr.Status = models.RequestRejected
		pr.ResolutionNote = "pool depleted"
		pr.ResolvedAt = &now
		return *pr, false, nil
	}
	p.Balance -= pr.Amount
	p.TotalDistributed += pr.Amount
	p.LastUpdatedAt = now

	b := (*Store)(r).balanceLocked(pr.RequesterID)
	b.Amount += pr.Amount
	b.LastUpdatedAt = now

	pr.Status = models.RequestDistributed
	return *pr, true, nil
}

func (r *poolRequestsRepo) ListExpired(_ context.Context, cutoff time.Time) ([]models.PoolRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PoolRequest
	for _, pr := range r.requests {
		if pr.Status == models.RequestPending && pr.CreatedAt.Before(cutoff) {
			out = append(out, *pr)
		}
	}
	return out, nil
}

// SetRequestCreatedAt backdates a request, for expiry tests.
func (s *Store) SetRequestCreatedAt(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pr, ok := s.requests[id]; ok {
		pr.CreatedAt = at
	}
}

// ---------- progressions ----------

type progressionsRepo Store

func (r *progressionsRepo) GetOrCreate(_ context.Context, accountID string, accountCreatedAt time.Time) (models.Progression, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.progressions[accountID]
	return *(*Store)(r).progressionLocked(accountID, accountCreatedAt), !existed, nil
}

func (r *progressionsRepo) RecordTransaction(_ context.Context, accountID string, usedCredits bool, now time.Time) (models.Progression, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progressions[accountID]
	if !ok {
		return models.Progression{}, models.ErrAccountNotFound
	}
	p.TotalTransactions++
	if usedCredits {
		p.CreditsTransactions++
	}
	if p.FirstTransactionAt == nil {
		t := now
		p.FirstTransactionAt = &t
	}
	return *p, nil
}

func (r *progressionsRepo) Promote(_ context.Context, accountID string, from, to models.Tier, now time.Time) (models.Progression, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progressions[accountID]
	if !ok {
		return models.Progression{}, false, models.ErrAccountNotFound
	}
	if p.Tier != from {
		return *p, false, nil
	}
	p.Tier = to
	t := now
	switch to {
	case models.TierIntermediate:
		if p.IntermediateSince == nil {
			p.IntermediateSince = &t
		}
	case models.TierAdvanced:
		if p.AdvancedSince == nil {
			p.AdvancedSince = &t
		}
	}
	return *p, true, nil
}

func (r *progressionsRepo) ForceAdvanced(_ context.Context, accountID string, now time.Time) (models.Progression, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := (*Store)(r).progressionLocked(accountID, now)
	t := now
	p.Tier = models.TierAdvanced
	if p.IntermediateSince == nil {
		p.IntermediateSince = &t
	}
	if p.AdvancedSince == nil {
		p.AdvancedSince = &t
	}
	p.OnboardingShown = true
	return *p, nil
}

func (s *Store) progressionLocked(accountID string, accountCreatedAt time.Time) *models.Progression {
	p, ok := s.progressions[accountID]
	if !ok {
		p = &models.Progression{
			AccountID:        accountID,
			Tier:             models.TierBasic,
			AccountCreatedAt: accountCreatedAt,
		}
		s.progressions[accountID] = p
	}
	return p
}

// SetProgression overwrites an account's progression state, for tests.
func (s *Store) SetProgression(p models.Progression) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.progressions[p.AccountID] = &cp
}

// ---------- audit logs ----------

type auditLogsRepo Store

func (r *auditLogsRepo) Create(_ context.Context, l models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.CreatedAt = time.Now()
	r.audits = append(r.audits, l)
	return nil
}

// Audits returns a copy of the audit trail, for tests.
func (s *Store) Audits() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditLog, len(s.audits))
	copy(out, s.audits)
	return out
}
