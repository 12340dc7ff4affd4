// Package bus implements the process-wide MPMC broadcast fan-out:
// monitor publishers on any worker, client subscribers on every
// worker, at-most-once per subscriber, unordered across subscribers,
// per-subscriber FIFO.
package bus

import (
	"sync"

	"remonitor/queue"
	"remonitor/token"
)

// Subscriber is a registered receiver; a Clients registry drains its
// Queue in its own goroutine, the Go analogue of "registered with the
// reactive runtime".
type Subscriber struct {
	id    token.Token
	Queue *queue.Unbounded[[]byte]
}

// Bus is the broadcast bus: created once at startup, shared by every
// worker's Monitors (publisher) and Clients (subscriber) registries.
type Bus struct {
	mu   sync.RWMutex
	subs map[token.Token]*Subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[token.Token]*Subscriber)}
}

// Subscribe registers a new subscriber and returns its handle.
func (b *Bus) Subscribe() *Subscriber {
	s := &Subscriber{id: token.Next(), Queue: queue.NewUnbounded[[]byte]()}
	b.mu.Lock()
	b.subs[s.id] = s
	b.mu.Unlock()
	return s
}

// Unsubscribe removes and closes a subscriber's queue.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subs, s.id)
	b.mu.Unlock()
	s.Queue.Close()
}

// Publish enqueues msg on every currently live subscriber's queue.
// Best-effort: a slow subscriber's queue simply grows, it never blocks
// the publisher.
func (b *Bus) Publish(msg []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		s.Queue.Push(msg)
	}
}
