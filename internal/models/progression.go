package models

import "time"

// Tier is the economy progression level of an account. Tiers only ever
// advance: basic -> intermediate -> advanced, terminal at advanced.
type Tier string

const (
	TierBasic        Tier = "basic"
	TierIntermediate Tier = "intermediate"
	TierAdvanced     Tier = "advanced"
)

// Rank orders tiers for monotonicity checks.
func (t Tier) Rank() int {
	switch t {
	case TierIntermediate:
		return 1
	case TierAdvanced:
		return 2
	default:
		return 0
	}
}

// Next returns the tier one step up, or the same tier at the top.
func (t Tier) Next() Tier {
	switch t {
	case TierBasic:
		return TierIntermediate
	case TierIntermediate:
		return TierAdvanced
	default:
		return t
	}
}

// Features lists the feature flags unlocked at this tier. Each tier is a
// strict superset of the previous one.
func (t Tier) Features() []string {
	feats := []string{"eur_balance", "eur_payment"}
	if t.Rank() >= TierIntermediate.Rank() {
		feats = append(feats, "credits_balance", "credits_payment", "credits_earn")
	}
	if t.Rank() >= TierAdvanced.Rank() {
		feats = append(feats, "timebank_balance", "timebank_exchange")
	}
	return feats
}

// Progression is the server-authoritative tier state per account. The
// tier is always recomputed from these durable counters; a
// client-asserted tier is never trusted.
type Progression struct {
	AccountID           string     `json:"account_id"`
	Tier                Tier       `json:"tier"`
	TotalTransactions   int64      `json:"total_transactions"`
	CreditsTransactions int64      `json:"credits_transactions"`
	FirstTransactionAt  *time.Time `json:"first_transaction_at,omitempty"`
	IntermediateSince   *time.Time `json:"intermediate_since,omitempty"`
	AdvancedSince       *time.Time `json:"advanced_since,omitempty"`
	OnboardingShown     bool       `json:"onboarding_shown"`
	AccountCreatedAt    time.Time  `json:"account_created_at"`
}
