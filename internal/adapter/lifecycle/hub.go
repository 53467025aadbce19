// Package lifecycle delivers host lifecycle transitions to the session from
// process signals or any other source that calls Hub.Emit.
package lifecycle

import (
	"log/slog"
	"sync"

	"github.com/pscheid92/pxsession/internal/domain"
)

// Hub fans a stream of lifecycle transitions out to registered observers.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(domain.LifecycleState)
}

var _ domain.LifecycleObserver = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subs: make(map[int]func(domain.LifecycleState))}
}

func (h *Hub) OnTransition(fn func(to domain.LifecycleState)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
		})
	}
}

// Emit delivers to to every observer. Unknown states are dropped.
// Observers run on the caller's goroutine, outside the hub lock.
func (h *Hub) Emit(to domain.LifecycleState) {
	if !to.Valid() {
		slog.Warn("Ignoring unknown lifecycle state", "state", string(to))
		return
	}

	h.mu.Lock()
	fns := make([]func(domain.LifecycleState), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(to)
	}
}
