package auth

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remonitor/codec"
	"remonitor/config"
	"remonitor/throttle"
)

func writeAuthFrame(t *testing.T, conn net.Conn, payload string) {
	t.Helper()
	c := codec.NewLineCodec()
	raw, err := c.Encode(struct {
		Payload []byte `json:"payload"`
	}{Payload: []byte(payload)})
	require.NoError(t, err)
	_, err = conn.Write(raw)
	require.NoError(t, err)
}

func TestRunSucceedsOnCorrectCredentials(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	cfg := &config.Config{Auth: map[string]string{"m1": "sec"}}

	done := make(chan error, 1)
	go func() { done <- Run(local, cfg, nil, codec.NewLineCodec()) }()

	writeAuthFrame(t, remote, "m1")
	writeAuthFrame(t, remote, "sec")

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not complete")
	}
}

// net.Pipe has no TCP or UDS remote address, so no throttle key
// resolves and no Signal reaches gate; this checks only the outcome.
func TestRunThrottlesOnWrongSecret(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	cfg := &config.Config{Auth: map[string]string{"m1": "sec"}}
	gate := throttle.NewGate()
	defer gate.Close()

	done := make(chan error, 1)
	go func() { done <- Run(local, cfg, gate, codec.NewLineCodec()) }()

	writeAuthFrame(t, remote, "m1")
	writeAuthFrame(t, remote, "WRONG")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrThrottled)
	case <-time.After(time.Second):
		t.Fatal("Run did not complete")
	}
}

func TestRunThrottlesOnMalformedFrame(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	cfg := &config.Config{Auth: map[string]string{"m1": "sec"}}
	gate := throttle.NewGate()
	defer gate.Close()

	done := make(chan error, 1)
	go func() { done <- Run(local, cfg, gate, codec.NewLineCodec()) }()

	remote.Write([]byte("not-json\n"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrThrottled)
	case <-time.After(time.Second):
		t.Fatal("Run did not complete")
	}
}
