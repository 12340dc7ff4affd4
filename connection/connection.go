// Package connection wraps a net.Conn with an ordered write queue and
// the small bit of state tracking a Stream needs: its Token, its
// throttle key, and whether it is still open.
package connection

import (
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"remonitor/queue"
	"remonitor/token"
)

// State is the connection's lifecycle stage.
type State int32

const (
	Open State = iota
	Blocked
	Closed
)

// Connection pairs a net.Conn with a FIFO write queue drained by one
// writer goroutine, so pushes never race with each other and bytes
// are written in the order they were queued.
type Connection struct {
	conn  net.Conn
	tok   token.Token
	state atomic.Int32

	writeq *queue.Unbounded[[]byte]
}

// New wraps conn, allocates a Token, and starts its writer goroutine.
func New(conn net.Conn) *Connection {
	c := &Connection{
		conn:   conn,
		tok:    token.Next(),
		writeq: queue.NewUnbounded[[]byte](),
	}
	c.state.Store(int32(Open))
	go c.writeLoop()
	return c
}

// Token returns this connection's process-unique identifier.
func (c *Connection) Token() token.Token { return c.tok }

// State returns the current lifecycle stage.
func (c *Connection) State() State { return State(c.state.Load()) }

// Conn exposes the underlying net.Conn, e.g. for reads or throttle-key
// resolution.
func (c *Connection) Conn() net.Conn { return c.conn }

// Push appends bytes to the write queue; writeLoop (the writer
// goroutine) drains it in order.
func (c *Connection) Push(b []byte) {
	if c.State() == Closed {
		return
	}
	c.writeq.Push(b)
}

// writeLoop is the dedicated writer: it pops queued buffers and writes
// them in full, relying on net.Conn.Write's contract (write fully or
// return an error; no short-write bookkeeping needed).
func (c *Connection) writeLoop() {
	for {
		buf, ok := c.writeq.Pop()
		if !ok {
			return
		}
		if _, err := c.conn.Write(buf); err != nil {
			c.state.Store(int32(Closed))
			c.writeq.Close()
			return
		}
	}
}

// Read is a passthrough that updates state on EOF or error.
func (c *Connection) Read(p []byte) (int, error) {
	n, err := c.conn.Read(p)
	if err != nil {
		if err == io.EOF {
			c.Close()
		} else {
			c.state.CompareAndSwap(int32(Open), int32(Closed))
		}
	}
	return n, err
}

// Close marks the connection closed, stops the writer goroutine, and
// closes the underlying socket.
func (c *Connection) Close() error {
	if !c.state.CompareAndSwap(int32(Open), int32(Closed)) {
		c.state.Store(int32(Closed))
	}
	c.writeq.Close()
	return c.conn.Close()
}

// ThrottleKey resolves the deny-list key for conn: the peer IP string
// for TCP (TLS or plain), the debug form of the peer address for UDS.
// This is the "small capability surfaced by each stream type" named in
// spec.md §4.5.
func ThrottleKey(conn net.Conn) (string, error) {
	switch addr := conn.RemoteAddr().(type) {
	case *net.TCPAddr:
		return addr.IP.String(), nil
	case *net.UnixAddr:
		return fmt.Sprintf("%#v", addr), nil
	default:
		return "", fmt.Errorf("connection: unsupported remote address type %T", addr)
	}
}
