// Package throttle implements the IP-keyed deny list fed by
// out-of-band auth-failure signals from worker goroutines and
// consulted by the acceptor on every admission attempt.
package throttle

import (
	"time"

	"github.com/patrickmn/go-cache"

	"remonitor/queue"
)

const (
	// MaxEntries caps the deny-map; once full, inserts either displace
	// an already-expired entry or, if every entry is live, are dropped
	// (deny-listing is best-effort, not a hard guarantee).
	MaxEntries = 1024 * 8
	// CheckEvery is the number of admissions between eager sweeps of
	// expired entries.
	CheckEvery = 20
	// Duration is how long a throttled key stays denied.
	Duration = 10 * time.Second
)

// Signal is one (key, ban) pair published by a worker on auth failure.
type Signal struct {
	Key      string
	Start    time.Time
	Duration time.Duration
}

// Gate is both the signal sink (consuming Signals pushed by workers)
// and the admission check consulted by the acceptor for one pipeline
// (TCP client or TCP monitor each own a separate Gate).
type Gate struct {
	deny    *cache.Cache
	sink    *queue.Unbounded[Signal]
	counter int
}

// NewGate creates an empty gate and starts its signal-sink loop.
func NewGate() *Gate {
	g := &Gate{
		// No default expiration: every Set call supplies its own
		// duration. No janitor: sweeps happen explicitly via Admit,
		// per THROTTLE_CHECK.
		deny:    cache.New(cache.NoExpiration, cache.NoExpiration),
		sink:    queue.NewUnbounded[Signal](),
		counter: CheckEvery,
	}
	go g.runSink()
	return g
}

// Send publishes a throttle signal; safe to call from any worker
// goroutine.
func (g *Gate) Send(s Signal) {
	g.sink.Push(s)
}

// runSink drains published signals and inserts/replaces deny entries.
func (g *Gate) runSink() {
	for {
		sig, ok := g.sink.Pop()
		if !ok {
			return
		}
		g.insert(sig)
	}
}

func (g *Gate) insert(sig Signal) {
	remaining := sig.Duration - time.Since(sig.Start)
	if remaining <= 0 {
		// Already expired: it admits just like an absent entry, and
		// go-cache would store a non-positive duration as never expiring.
		g.deny.Delete(sig.Key)
		return
	}
	if g.deny.ItemCount() >= MaxEntries {
		g.deny.DeleteExpired()
	}
	if g.deny.ItemCount() >= MaxEntries {
		if !g.evictOneExpired() {
			// Deny-list is full of live entries; best-effort, drop.
			return
		}
	}
	g.deny.Set(sig.Key, struct{}{}, remaining)
}

// evictOneExpired removes one already-expired entry to make room,
// reporting whether it found one.
func (g *Gate) evictOneExpired() bool {
	for k, item := range g.deny.Items() {
		if item.Expired() {
			g.deny.Delete(k)
			return true
		}
	}
	return false
}

// Admit implements the gate steps in spec.md §4.5: sweep on the
// THROTTLE_CHECK cadence, then admit unless key is present and live.
func (g *Gate) Admit(key string, keyErr error) bool {
	g.counter--
	if g.counter <= 0 {
		g.counter = CheckEvery
		g.deny.DeleteExpired()
	}

	if keyErr != nil {
		// Key resolution is best-effort; fail open.
		return true
	}

	_, found := g.deny.Get(key)
	return !found
}

// Close stops the sink loop. Intended for tests and graceful shutdown.
func (g *Gate) Close() {
	g.sink.Close()
}
