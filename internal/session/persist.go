package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pscheid92/pxsession/internal/domain"
)

// persister writes record fields to the store on its own goroutine, in the
// order they were queued. The session lock is never held across a store call.
type persister struct {
	store domain.Store

	mu      sync.Mutex
	drained *sync.Cond
	queue   []field
	queued  uint64
	written uint64
	stopped bool

	wake chan struct{}
	done chan struct{}
}

func newPersister(store domain.Store) *persister {
	p := &persister{
		store: store,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	p.drained = sync.NewCond(&p.mu)
	go p.run()
	return p
}

// enqueue queues fields for writing and returns immediately.
func (p *persister) enqueue(fields ...field) {
	if len(fields) == 0 {
		return
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		slog.Warn("Session closed, not persisting fields", "count", len(fields))
		return
	}
	p.queue = append(p.queue, fields...)
	p.queued += uint64(len(fields))
	p.mu.Unlock()

	p.signal()
}

func (p *persister) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.done)
	for {
		p.mu.Lock()
		batch := p.queue
		p.queue = nil
		stopped := p.stopped
		p.mu.Unlock()

		if len(batch) == 0 {
			if stopped {
				return
			}
			<-p.wake
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		saveFields(ctx, p.store, batch...)
		cancel()

		p.mu.Lock()
		p.written += uint64(len(batch))
		p.drained.Broadcast()
		p.mu.Unlock()
	}
}

// flush blocks until every field queued before the call has been written.
func (p *persister) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	target := p.queued
	for p.written < target {
		p.drained.Wait()
	}
}

// stop writes what is still queued and ends the writer goroutine.
func (p *persister) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.signal()
	<-p.done
}
