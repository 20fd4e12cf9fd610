package models

import "time"

type RequestStatus string

const (
	RequestPending     RequestStatus = "PENDING"
	RequestApproved    RequestStatus = "APPROVED"
	RequestRejected    RequestStatus = "REJECTED"
	RequestDistributed RequestStatus = "DISTRIBUTED"
)

// PoolRequest is a proposal to withdraw from a pool, resolved by peer
// voting. Lifecycle: PENDING -> APPROVED -> DISTRIBUTED, or
// PENDING -> REJECTED (terminal). An APPROVED request is disbursed
// exactly once.
type PoolRequest struct {
	ID             string        `json:"id"`
	RequesterID    string        `json:"requester_account_id"`
	PoolType       PoolType      `json:"pool_type"`
	Amount         int64         `json:"requested_amount"`
	Reason         string        `json:"reason"`
	Status         RequestStatus `json:"status"`
	VotesFor       int           `json:"votes_for"`
	VotesAgainst   int           `json:"votes_against"`
	ResolutionNote string        `json:"resolution_note,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
}

// Open reports whether the request still accepts votes.
func (r PoolRequest) Open() bool { return r.Status == RequestPending }
