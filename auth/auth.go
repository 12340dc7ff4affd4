// Package auth implements the three-step authentication challenge FSM
// described in spec.md §4.4.
package auth

import (
	"time"
	"unicode/utf8"

	"remonitor/config"
)

// Kind identifies which case of State is active.
type Kind int

const (
	NotAuthenticated Kind = iota
	ClientID
	Authenticated
	Throttled
)

// ThrottleTime is how long a failed auth attempt bans its peer.
const ThrottleTime = 10 * time.Second

// State is the per-connection auth progress. Authenticated connections
// carry no State (the FSM driver discards it on success).
type State struct {
	Kind        Kind
	ClaimedID   []byte
	ThrottledAt time.Time
	Duration    time.Duration
}

// NotAuth is the initial state for every new connection.
func NotAuth() State { return State{Kind: NotAuthenticated} }

// Throttle forces the FSM into Throttled, the same outcome as a wrong
// secret. spec.md §7 treats a malformed auth frame as a wrong-secret
// attempt rather than a protocol error, so the driver calls this
// instead of Next when a frame fails to decode.
func (s State) Throttle() State {
	return State{Kind: Throttled, ThrottledAt: time.Now(), Duration: ThrottleTime}
}

// Next advances the FSM on one inbound AuthMessage payload, per the
// table in spec.md §4.4. Authenticated is terminal: calling Next on it
// is a programming error and panics, matching the source's invariant.
func (s State) Next(payload []byte, cfg *config.Config) State {
	switch s.Kind {
	case NotAuthenticated:
		return State{Kind: ClientID, ClaimedID: append([]byte(nil), payload...)}

	case ClientID:
		id := s.ClaimedID
		if !utf8.Valid(id) {
			return State{Kind: Throttled, ThrottledAt: time.Now(), Duration: ThrottleTime}
		}
		secret, ok := cfg.Auth[string(id)]
		if ok && secret == string(payload) {
			return State{Kind: Authenticated}
		}
		return State{Kind: Throttled, ThrottledAt: time.Now(), Duration: ThrottleTime}

	case Throttled:
		if time.Since(s.ThrottledAt) > s.Duration {
			return State{Kind: ClientID, ClaimedID: append([]byte(nil), payload...)}
		}
		return s

	case Authenticated:
		panic("auth: authenticate() called on an already-Authenticated connection")

	default:
		panic("auth: unreachable state")
	}
}
