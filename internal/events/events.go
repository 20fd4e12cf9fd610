// Package events is the in-process domain event bus. The engine only
// emits events; delivery to users (push, mail) is an external
// collaborator that subscribes here.
package events

import (
	"sync"
	"time"

	"github.com/commonshare/flow-backend/internal/worker"
)

type Type string

const (
	CreditsReceived     Type = "credits.received"
	PoolRequestResolved Type = "pool_request.resolved"
)

type Event struct {
	Type       Type           `json:"type"`
	AccountID  string         `json:"account_id"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Handler func(Event)

// Bus fans events out to subscribers on the worker pool, so publishers
// never block on a slow handler.
type Bus struct {
	wp   *worker.Pool
	mu   sync.RWMutex
	subs []Handler
}

func NewBus(wp *worker.Pool) *Bus { return &Bus{wp: wp} }

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, h)
}

func (b *Bus) Publish(e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	b.mu.RLock()
	subs := make([]Handler, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()
	for _, h := range subs {
		h := h
		b.wp.Submit(func() { h(e) })
	}
}
