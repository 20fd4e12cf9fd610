package services

import (
	"context"
	"time"

	"github.com/commonshare/flow-backend/internal/metrics"
	"github.com/commonshare/flow-backend/internal/models"
	repo "github.com/commonshare/flow-backend/internal/repository"
)

// Unlock conditions for tier promotion. Any one condition in a set is
// enough; at most one tier is gained per recorded transaction, so an
// account can never skip intermediate.
const (
	intermediateMinTxns = 1
	intermediateMinAge  = 3 * 24 * time.Hour

	advancedMinCreditsTxns = 5
	advancedMinTenure      = 14 * 24 * time.Hour
	advancedMinTotalTxns   = 10
)

// ProgressionService owns the server-authoritative tier state machine.
// Tier is recomputed from durable counters; a client-asserted tier is
// never accepted.
type ProgressionService struct {
	prog     repo.Progressions
	accounts repo.Accounts
	balances repo.Balances
	audit    repo.AuditLogs
}

func NewProgressionService(prog repo.Progressions, accounts repo.Accounts, balances repo.Balances, audit repo.AuditLogs) *ProgressionService {
	return &ProgressionService{prog: prog, accounts: accounts, balances: balances, audit: audit}
}

// EnsureCreated makes the tier-basic progression row for a fresh
// account. Called at registration time.
func (s *ProgressionService) EnsureCreated(ctx context.Context, accountID string, accountCreatedAt time.Time) error {
	_, _, err := s.prog.GetOrCreate(ctx, accountID, accountCreatedAt)
	return err
}

// RecordTransaction bumps the usage counters for one completed
// transfer and promotes at most one tier if an unlock condition is now
// met.
func (s *ProgressionService) RecordTransaction(ctx context.Context, accountID string, usedCredits bool) (models.Progression, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return models.Progression{}, err
	}
	if _, _, err := s.prog.GetOrCreate(ctx, accountID, acct.CreatedAt); err != nil {
		return models.Progression{}, err
	}
	now := time.Now()
	p, err := s.prog.RecordTransaction(ctx, accountID, usedCredits, now)
	if err != nil {
		return models.Progression{}, err
	}
	if next, due := nextTierDue(p, now); due {
		promoted, applied, err := s.prog.Promote(ctx, accountID, p.Tier, next, now)
		if err != nil {
			return models.Progression{}, err
		}
		if applied {
			metrics.TierPromotionsTotal.WithLabelValues(string(next)).Inc()
			id := accountID
			_ = s.audit.Create(ctx, models.AuditLog{
				EntityType: "progression",
				EntityID:   &id,
				Action:     "promoted",
				Details:    map[string]any{"tier": string(next)},
			})
		}
		return promoted, nil
	}
	return p, nil
}

// TierFor returns the account's tier and unlocked features. Accounts
// that predate the progression rollout and already hold credits are
// grandfathered straight to advanced the first time they are seen.
func (s *ProgressionService) TierFor(ctx context.Context, accountID string) (models.Progression, []string, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return models.Progression{}, nil, err
	}
	p, created, err := s.prog.GetOrCreate(ctx, accountID, acct.CreatedAt)
	if err != nil {
		return models.Progression{}, nil, err
	}
	if created {
		if b, err := s.balances.Get(ctx, accountID); err == nil && b.Amount > 0 {
			p, err = s.ForceAdvanced(ctx, accountID)
			if err != nil {
				return models.Progression{}, nil, err
			}
		}
	}
	return p, p.Tier.Features(), nil
}

// ForceAdvanced is the one-shot legacy migration: jump to advanced and
// mark onboarding as already shown.
func (s *ProgressionService) ForceAdvanced(ctx context.Context, accountID string) (models.Progression, error) {
	p, err := s.prog.ForceAdvanced(ctx, accountID, time.Now())
	if err != nil {
		return models.Progression{}, err
	}
	id := accountID
	_ = s.audit.Create(ctx, models.AuditLog{
		EntityType: "progression",
		EntityID:   &id,
		Action:     "grandfathered",
		Details:    map[string]any{"tier": string(models.TierAdvanced)},
	})
	return p, nil
}

// nextTierDue evaluates the unlock conditions against the state after
// the counter bump. Conditions within a set are OR-ed.
func nextTierDue(p models.Progression, now time.Time) (models.Tier, bool) {
	switch p.Tier {
	case models.TierBasic:
		if p.TotalTransactions >= intermediateMinTxns ||
			now.Sub(p.AccountCreatedAt) >= intermediateMinAge {
			return models.TierIntermediate, true
		}
	case models.TierIntermediate:
		entered := p.AccountCreatedAt
		if p.IntermediateSince != nil {
			entered = *p.IntermediateSince
		}
		if p.CreditsTransactions >= advancedMinCreditsTxns ||
			now.Sub(entered) >= advancedMinTenure ||
			p.TotalTransactions >= advancedMinTotalTxns {
			return models.TierAdvanced, true
		}
	}
	return p.Tier, false
}
