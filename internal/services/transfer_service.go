package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/commonshare/flow-backend/internal/config"
	"github.com/commonshare/flow-backend/internal/events"
	"github.com/commonshare/flow-backend/internal/flow"
	"github.com/commonshare/flow-backend/internal/metrics"
	"github.com/commonshare/flow-backend/internal/models"
	repo "github.com/commonshare/flow-backend/internal/repository"
)

// TransferService orchestrates one account-to-account transfer:
// validate, compute the flow multiplier, apply all balance legs
// atomically, append the record, bump tier progression and emit the
// CreditsReceived event.
type TransferService struct {
	accounts repo.Accounts
	balances repo.Balances
	trx      repo.Transactions
	audit    repo.AuditLogs
	prog     *ProgressionService
	calc     *flow.Calculator
	policy   config.FlowPolicy
	bus      *events.Bus
}

func NewTransferService(
	accounts repo.Accounts,
	balances repo.Balances,
	trx repo.Transactions,
	audit repo.AuditLogs,
	prog *ProgressionService,
	policy config.FlowPolicy,
	bus *events.Bus,
) *TransferService {
	return &TransferService{
		accounts: accounts,
		balances: balances,
		trx:      trx,
		audit:    audit,
		prog:     prog,
		calc:     flow.NewCalculator(policy.Brackets),
		policy:   policy,
		bus:      bus,
	}
}

func (s *TransferService) Transfer(ctx context.Context, senderID, recipientID string, baseAmount int64, description string) (models.Transaction, error) {
	if baseAmount <= 0 {
		return models.Transaction{}, models.ErrInvalidAmount
	}
	if senderID == recipientID {
		return models.Transaction{}, models.ErrSelfTransfer
	}
	for _, id := range []string{senderID, recipientID} {
		ok, err := s.accounts.Exists(ctx, id)
		if err != nil {
			return models.Transaction{}, err
		}
		if !ok {
			return models.Transaction{}, models.ErrAccountNotFound
		}
	}

	senderBal, err := s.balances.GetOrCreate(ctx, senderID)
	if err != nil {
		return models.Transaction{}, err
	}
	if senderBal.Amount < baseAmount {
		return models.Transaction{}, models.ErrInsufficientFunds
	}
	recipientBal, err := s.balances.GetOrCreate(ctx, recipientID)
	if err != nil {
		return models.Transaction{}, err
	}

	// Provisional quote from the pre-read balances; the apply recomputes
	// it under the balance locks so the recorded bracket is exact.
	m := s.calc.Multiplier(senderBal.Amount, recipientBal.Amount)
	t := models.Transaction{
		SenderID:         senderID,
		RecipientID:      recipientID,
		BaseAmount:       baseAmount,
		Multiplier:       m,
		TotalCredited:    flow.Credited(baseAmount, m),
		PoolContribution: flow.Skim(baseAmount, s.policy.FeeBps),
		PoolType:         s.policy.FeePool,
		Description:      description,
	}

	applied, err := s.trx.ApplyTransfer(ctx, t, func(senderBalance, recipientBalance int64) (int64, int64) {
		m := s.calc.Multiplier(senderBalance, recipientBalance)
		return m, flow.Credited(baseAmount, m)
	})
	if err != nil {
		if errors.Is(err, models.ErrInsufficientFunds) || errors.Is(err, models.ErrAccountNotFound) {
			// Lost a race with a concurrent transfer; nothing was written.
			return models.Transaction{}, err
		}
		metrics.TransfersTotal.WithLabelValues(string(models.TxnFailed)).Inc()
		if failed, recErr := s.trx.RecordFailed(ctx, t); recErr == nil {
			s.auditTransfer(ctx, failed, "apply failed: "+err.Error())
		}
		return models.Transaction{}, fmt.Errorf("apply transfer: %w", err)
	}
	t = applied

	// Both parties used the credits currency; either may be promoted.
	if _, err := s.prog.RecordTransaction(ctx, senderID, true); err != nil {
		return t, fmt.Errorf("record sender progression: %w", err)
	}
	if _, err := s.prog.RecordTransaction(ctx, recipientID, true); err != nil {
		return t, fmt.Errorf("record recipient progression: %w", err)
	}

	metrics.TransfersTotal.WithLabelValues(string(models.TxnCompleted)).Inc()
	metrics.BonusMintedTotal.Add(float64(t.BonusMinted()))
	if t.PoolContribution > 0 {
		metrics.PoolContributionsTotal.WithLabelValues(string(t.PoolType)).Inc()
	}

	s.auditTransfer(ctx, t, "transfer completed")
	s.bus.Publish(events.Event{
		Type:      events.CreditsReceived,
		AccountID: t.RecipientID,
		Payload: map[string]any{
			"amount":            t.TotalCredited,
			"sender_account_id": t.SenderID,
			"transaction_id":    t.ID,
		},
	})
	return t, nil
}

func (s *TransferService) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	return s.trx.GetByID(ctx, id)
}

func (s *TransferService) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	return s.trx.ListByAccount(ctx, accountID, limit, offset)
}

func (s *TransferService) auditTransfer(ctx context.Context, t models.Transaction, msg string) {
	id := t.ID
	_ = s.audit.Create(ctx, models.AuditLog{
		EntityType: "transaction",
		EntityID:   &id,
		Action:     string(t.Status),
		Details:    map[string]any{"message": msg, "base_amount": t.BaseAmount},
	})
}
