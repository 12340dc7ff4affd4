package auth

import (
	"errors"
	"net"

	"go.uber.org/zap"

	"remonitor/codec"
	"remonitor/config"
	"remonitor/connection"
	"remonitor/message"
	"remonitor/throttle"
	"remonitor/utils"
)

// ErrThrottled is returned by Run when the peer's auth attempt lands
// it in the Throttled state; the caller must drop the connection.
var ErrThrottled = errors.New("auth: peer throttled")

// Run drives the auth FSM over conn using c, blocking until the peer
// reaches Authenticated (nil error; the caller installs conn into
// Clients or Monitors reusing c, so any bytes c already buffered past
// the auth frames are not lost) or Throttled (ErrThrottled, a Signal is
// sent to gate if non-nil) or the connection itself fails (any other
// non-nil error, drop silently). A malformed auth frame is treated the
// same as a wrong secret, per spec.md §7, and also throttles. gate may
// be nil (UDS peers are never throttled).
func Run(conn net.Conn, cfg *config.Config, gate *throttle.Gate, c codec.Codec) error {
	state := NotAuth()

	for {
		status, err := c.Decode(conn)
		if status == codec.ConnectionError {
			return err
		}

		for _, frame := range c.Drain() {
			var am message.AuthMessage
			if uerr := codec.Unmarshal(frame, &am); uerr != nil {
				state = state.Throttle()
			} else {
				state = state.Next(am.Payload, cfg)
			}

			switch state.Kind {
			case Authenticated:
				return nil

			case Throttled:
				signalGate(conn, gate, state)
				return ErrThrottled
			}
		}

		if status == codec.Blocked {
			continue
		}
	}
}

func signalGate(conn net.Conn, gate *throttle.Gate, state State) {
	if gate == nil {
		return
	}
	key, kerr := connection.ThrottleKey(conn)
	if kerr != nil {
		utils.Logger.Warn("auth: could not resolve throttle key", zap.Error(kerr))
		return
	}
	gate.Send(throttle.Signal{
		Key:      key,
		Start:    state.ThrottledAt,
		Duration: state.Duration,
	})
}
