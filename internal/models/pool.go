package models

import "time"

// PoolType names one of the five fixed community pools.
type PoolType string

const (
	PoolNeeds       PoolType = "NEEDS"
	PoolProjects    PoolType = "PROJECTS"
	PoolEmergency   PoolType = "EMERGENCY"
	PoolCelebration PoolType = "CELEBRATION"
	PoolEquality    PoolType = "EQUALITY"
)

// PoolTypes lists every pool in a stable order; the set is fixed at
// bootstrap and never grows at runtime.
func PoolTypes() []PoolType {
	return []PoolType{PoolNeeds, PoolProjects, PoolEmergency, PoolCelebration, PoolEquality}
}

func ParsePoolType(s string) (PoolType, error) {
	for _, pt := range PoolTypes() {
		if string(pt) == s {
			return pt, nil
		}
	}
	return "", ErrUnknownPool
}

// Pool is a community-owned credit reserve funded by transfer skims.
// Invariant: Balance == TotalReceived - TotalDistributed.
type Pool struct {
	Type             PoolType  `json:"type"`
	Balance          int64     `json:"balance"`
	TotalReceived    int64     `json:"total_received"`
	TotalDistributed int64     `json:"total_distributed"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
}
