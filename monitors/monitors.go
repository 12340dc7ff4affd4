// Package monitors implements the Monitors reactor: a per-worker
// registry of producer connections that decodes inbound frames and
// publishes every well-formed Message to the broadcast bus.
package monitors

import (
	"sync"

	"go.uber.org/zap"

	"remonitor/bus"
	"remonitor/codec"
	"remonitor/connection"
	"remonitor/message"
	"remonitor/token"
	"remonitor/utils"
)

// Registry holds one worker's set of installed monitor connections
// and a handle to the shared bus publisher.
type Registry struct {
	mu    sync.Mutex
	conns map[token.Token]*connection.Connection

	b *bus.Bus
}

// New creates a registry that publishes onto b.
func New(b *bus.Bus) *Registry {
	return &Registry{
		conns: make(map[token.Token]*connection.Connection),
		b:     b,
	}
}

// Install greets conn with Status("OK"), adds it to the registry, and
// starts the goroutine that drains its inbound frames using c. c is
// caller-supplied rather than constructed here so that, on TCP, the
// codec carried over from the auth phase keeps any bytes it already
// buffered past the auth frames.
func (r *Registry) Install(conn *connection.Connection, c codec.Codec) {
	greeting, err := c.Encode(message.Status("OK"))
	if err == nil {
		conn.Push(greeting)
	}

	r.mu.Lock()
	r.conns[conn.Token()] = conn
	r.mu.Unlock()

	go r.readLoop(conn, c)
}

// readLoop decodes inbound frames and publishes each well-formed
// Message to the bus. A malformed frame is echoed back as an Error
// reply to the offending monitor; it never closes the connection and
// never poisons frames queued after it.
func (r *Registry) readLoop(conn *connection.Connection, c codec.Codec) {
	for {
		status, err := c.Decode(conn)
		if status == codec.ConnectionError {
			utils.Logger.Debug("monitor disconnected", zap.Error(err), zap.Uint64("token", uint64(conn.Token())))
			r.remove(conn.Token())
			return
		}

		for _, frame := range c.Drain() {
			var m message.Message
			if uerr := codec.Unmarshal(frame, &m); uerr != nil {
				r.echoError(conn, c)
				continue
			}
			r.b.Publish(encodeOrNil(c, m))
		}
	}
}

func (r *Registry) echoError(conn *connection.Connection, c codec.Codec) {
	raw, err := c.Encode(message.Error("malformed message"))
	if err != nil {
		return
	}
	conn.Push(raw)
}

func encodeOrNil(c codec.Codec, m message.Message) []byte {
	raw, err := c.Encode(m)
	if err != nil {
		return nil
	}
	return raw
}

func (r *Registry) remove(tok token.Token) {
	r.mu.Lock()
	delete(r.conns, tok)
	r.mu.Unlock()
}

// Len reports the number of currently installed connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
