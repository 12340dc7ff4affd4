// Package clients implements the Clients reactor: a per-worker
// registry of subscriber connections that forwards every broadcast
// message to every attached socket.
package clients

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

// Registry holds one worker's set of installed client connections
// plus its single broadcast-bus subscriber.
type Registry struct {
	mu    sync.Mutex
	conns map[token.Token]*connection.Connection

	sub *bus.Subscriber
	c   *codec.LineCodec
}

// New creates a registry and subscribes it to b, starting the
// goroutine that forwards bus messages to every installed connection.
func New(b *bus.Bus) *Registry {
	r := &Registry{
		conns: make(map[token.Token]*connection.Connection),
		sub:   b.Subscribe(),
		c:     codec.NewLineCodec(),
	}
	go r.forwardLoop()
	return r
}

// Install greets conn with Status("OK") and adds it to the registry.
// A reader goroutine is started solely to detect close/EOF; reads
// from a client are not otherwise meaningful.
func (r *Registry) Install(conn *connection.Connection) {
	greeting, err := r.c.Encode(message.Status("OK"))
	if err == nil {
		conn.Push(greeting)
	}

	r.mu.Lock()
	r.conns[conn.Token()] = conn
	r.mu.Unlock()

	go r.watchForClose(conn)
}

// watchForClose drains (and discards) reads until the peer closes,
// then removes the connection from the registry.
func (r *Registry) watchForClose(conn *connection.Connection) {
	buf := make([]byte, 512)
	for {
		if _, err := conn.Read(buf); err != nil {
			utils.Logger.Debug("client disconnected", zap.Uint64("token", uint64(conn.Token())))
			r.remove(conn.Token())
			return
		}
	}
}

func (r *Registry) remove(tok token.Token) {
	r.mu.Lock()
	delete(r.conns, tok)
	r.mu.Unlock()
}

// forwardLoop drains the bus subscription and appends each message to
// every currently installed connection's write queue.
func (r *Registry) forwardLoop() {
	for {
		msg, ok := r.sub.Queue.Pop()
		if !ok {
			return
		}
		r.mu.Lock()
		for _, conn := range r.conns {
			conn.Push(msg)
		}
		r.mu.Unlock()
	}
}

// Len reports the number of currently installed connections; used by
// tests and diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
