package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/commonshare/flow-backend/internal/config"
	"github.com/commonshare/flow-backend/internal/events"
	"github.com/commonshare/flow-backend/internal/metrics"
	"github.com/commonshare/flow-backend/internal/models"
	repo "github.com/commonshare/flow-backend/internal/repository"
)

// GovernanceService runs pool request voting: requests start PENDING,
// collect idempotent per-voter votes, and resolve against the
// configured threshold. Approval triggers the exactly-once
// disbursement; a depleted pool rejects the request instead.
type GovernanceService struct {
	requests repo.PoolRequests
	accounts repo.Accounts
	audit    repo.AuditLogs
	policy   config.FlowPolicy
	bus      *events.Bus
}

func NewGovernanceService(requests repo.PoolRequests, accounts repo.Accounts, audit repo.AuditLogs, policy config.FlowPolicy, bus *events.Bus) *GovernanceService {
	return &GovernanceService{requests: requests, accounts: accounts, audit: audit, policy: policy, bus: bus}
}

func (s *GovernanceService) CreateRequest(ctx context.Context, requesterID, poolType string, amount int64, reason string) (models.PoolRequest, error) {
	if amount <= 0 {
		return models.PoolRequest{}, models.ErrInvalidAmount
	}
	pt, err := models.ParsePoolType(poolType)
	if err != nil {
		return models.PoolRequest{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.PoolRequest{}, models.ErrReasonRequired
	}
	ok, err := s.accounts.Exists(ctx, requesterID)
	if err != nil {
		return models.PoolRequest{}, err
	}
	if !ok {
		return models.PoolRequest{}, models.ErrAccountNotFound
	}

	pr, err := s.requests.Create(ctx, models.PoolRequest{
		RequesterID: requesterID,
		PoolType:    pt,
		Amount:      amount,
		Reason:      reason,
	})
	if err != nil {
		return models.PoolRequest{}, err
	}
	s.auditRequest(ctx, pr, "created")
	return pr, nil
}

// Get applies the lazy expiry check before returning a request.
func (s *GovernanceService) Get(ctx context.Context, id string) (models.PoolRequest, error) {
	pr, err := s.requests.Get(ctx, id)
	if err != nil {
		return models.PoolRequest{}, err
	}
	return s.expireIfDue(ctx, pr)
}

func (s *GovernanceService) List(ctx context.Context, status models.RequestStatus) ([]models.PoolRequest, error) {
	return s.requests.List(ctx, status)
}

// Vote records one vote and evaluates the resolution rule on the new
// tally. Duplicate votes and votes on closed requests are rejected
// before any state changes.
func (s *GovernanceService) Vote(ctx context.Context, requestID, voterID string, inFavor bool) (models.PoolRequest, error) {
	pr, err := s.Get(ctx, requestID)
	if err != nil {
		return models.PoolRequest{}, err
	}
	if !pr.Open() {
		return models.PoolRequest{}, models.ErrRequestClosed
	}

	pr, err = s.requests.CastVote(ctx, requestID, voterID, inFavor)
	if err != nil {
		return models.PoolRequest{}, err
	}
	metrics.VotesTotal.WithLabelValues(strconv.FormatBool(inFavor)).Inc()

	switch {
	case pr.VotesFor >= s.policy.VoteThreshold && pr.VotesFor > pr.VotesAgainst:
		return s.approveAndDisburse(ctx, pr)
	case pr.VotesAgainst >= s.policy.VoteThreshold:
		rejected, applied, err := s.requests.Transition(ctx, requestID, models.RequestPending, models.RequestRejected, "rejected by vote")
		if err != nil {
			return models.PoolRequest{}, err
		}
		if applied {
			s.resolved(ctx, rejected)
		}
		return rejected, nil
	}
	return pr, nil
}

// SweepExpired rejects PENDING requests older than the expiry window.
// Wired to a cron schedule; also safe to call ad hoc.
func (s *GovernanceService) SweepExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.policy.RequestExpiry)
	expired, err := s.requests.ListExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, pr := range expired {
		rejected, applied, err := s.requests.Transition(ctx, pr.ID, models.RequestPending, models.RequestRejected, "expired")
		if err != nil {
			return n, fmt.Errorf("expire request %s: %w", pr.ID, err)
		}
		if applied {
			n++
			s.resolved(ctx, rejected)
		}
	}
	return n, nil
}

func (s *GovernanceService) approveAndDisburse(ctx context.Context, pr models.PoolRequest) (models.PoolRequest, error) {
	approved, applied, err := s.requests.Transition(ctx, pr.ID, models.RequestPending, models.RequestApproved, "approved by vote")
	if err != nil {
		return models.PoolRequest{}, err
	}
	if !applied {
		// A concurrent voter already resolved it; report what it became.
		return approved, nil
	}
	final, paid, err := s.requests.Disburse(ctx, pr.ID)
	if err != nil {
		return models.PoolRequest{}, fmt.Errorf("disburse request %s: %w", pr.ID, err)
	}
	if paid {
		metrics.DisbursementsTotal.Inc()
	}
	s.resolved(ctx, final)
	return final, nil
}

func (s *GovernanceService) expireIfDue(ctx context.Context, pr models.PoolRequest) (models.PoolRequest, error) {
	if !pr.Open() || time.Since(pr.CreatedAt) < s.policy.RequestExpiry {
		return pr, nil
	}
	expired, applied, err := s.requests.Transition(ctx, pr.ID, models.RequestPending, models.RequestRejected, "expired")
	if err != nil {
		return models.PoolRequest{}, err
	}
	if applied {
		s.resolved(ctx, expired)
	}
	return expired, nil
}

func (s *GovernanceService) resolved(ctx context.Context, pr models.PoolRequest) {
	s.auditRequest(ctx, pr, string(pr.Status))
	s.bus.Publish(events.Event{
		Type:      events.PoolRequestResolved,
		AccountID: pr.RequesterID,
		Payload: map[string]any{
			"request_id": pr.ID,
			"pool_type":  string(pr.PoolType),
			"status":     string(pr.Status),
			"amount":     pr.Amount,
			"note":       pr.ResolutionNote,
		},
	})
}

func (s *GovernanceService) auditRequest(ctx context.Context, pr models.PoolRequest, action string) {
	id := pr.ID
	_ = s.audit.Create(ctx, models.AuditLog{
		EntityType: "pool_request",
		EntityID:   &id,
		Action:     action,
		Details: map[string]any{
			"pool_type": string(pr.PoolType),
			"amount":    pr.Amount,
			"note":      pr.ResolutionNote,
		},
	})
}
