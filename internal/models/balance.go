package models

import "time"

// Balance is the durable credit balance of one account. Amount is never
// negative; every mutation happens inside a storage transaction.
type Balance struct {
	AccountID     string    `json:"account_id"`
	Amount        int64     `json:"amount"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}
