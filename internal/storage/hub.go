package storage

import (
	"context"
	"sync"
)

// Hub fans changes out to in-process subscribers. The zero value is ready to use.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

// Subscribe registers fn until ctx is done.
func (h *Hub) Subscribe(ctx context.Context, fn func(Change)) error {
	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[int]func(Change))
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = fn
	h.mu.Unlock()

	<-ctx.Done()

	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
	return ctx.Err()
}

// Publish calls every subscriber synchronously with c.
func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	subs := make([]func(Change), 0, len(h.subs))
	for _, fn := range h.subs {
		subs = append(subs, fn)
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
