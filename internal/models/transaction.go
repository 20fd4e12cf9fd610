package models

import "time"

type TransactionStatus string

const (
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
)

// Transaction is one account-to-account credit transfer. Rows are
// append-only: once written they are never mutated.
//
// Multiplier is stored in hundredths (150 == 1.50x) so the record stays
// integer-exact. The sender is debited exactly BaseAmount; the recipient
// receives TotalCredited = floor(BaseAmount * Multiplier / 100). The
// difference is minted by the system, not taken from anyone.
type Transaction struct {
	ID               string            `json:"id"`
	SenderID         string            `json:"sender_account_id"`
	RecipientID      string            `json:"recipient_account_id"`
	BaseAmount       int64             `json:"base_amount"`
	Multiplier       int64             `json:"multiplier_applied"`
	TotalCredited    int64             `json:"total_credited"`
	PoolContribution int64             `json:"pool_contribution"`
	PoolType         PoolType          `json:"pool_type"`
	Description      string            `json:"description,omitempty"`
	Status           TransactionStatus `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
}

// BonusMinted is the value injected by the flow multiplier on top of
// what the sender paid.
func (t Transaction) BonusMinted() int64 {
	if t.TotalCredited > t.BaseAmount {
		return t.TotalCredited - t.BaseAmount
	}
	return 0
}
