package notify

import (
	"context"
	"sync"
	"time"
)

type subscriber struct {
	org string
	ch  chan Notice
}

// Hub fans notices out to live subscribers (SSE clients).
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber for one organization; an empty org receives
// everything. The channel is closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, org string) <-chan Notice {
	ch := make(chan Notice, 16)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = subscriber{org: org, ch: ch}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Notify implements Notifier. Notices scoped to an organization only reach
// that organization's subscribers.
func (h *Hub) Notify(_ context.Context, n Notice) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if n.OrganizationID != "" && s.org != "" && s.org != n.OrganizationID {
			continue
		}
		select {
		case s.ch <- n:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
