package throttle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func waitForSink(t *testing.T) {
	t.Helper()
	time.Sleep(20 * time.Millisecond)
}

func TestAdmitDeniesLiveThrottle(t *testing.T) {
	g := NewGate()
	defer g.Close()

	g.Send(Signal{Key: "1.2.3.4", Start: time.Now(), Duration: time.Minute})
	waitForSink(t)

	assert.False(t, g.Admit("1.2.3.4", nil))
}

func TestAdmitAllowsExpiredThrottle(t *testing.T) {
	g := NewGate()
	defer g.Close()

	g.Send(Signal{Key: "5.6.7.8", Start: time.Now().Add(-20 * time.Millisecond), Duration: 10 * time.Millisecond})
	waitForSink(t)

	assert.True(t, g.Admit("5.6.7.8", nil))
}

func TestAdmitFailsOpenOnKeyError(t *testing.T) {
	g := NewGate()
	defer g.Close()

	assert.True(t, g.Admit("anything", assertErr{}))
}

func TestAdmitAllowsUnknownKey(t *testing.T) {
	g := NewGate()
	defer g.Close()

	assert.True(t, g.Admit("never-seen", nil))
}

func TestSweepBoundary(t *testing.T) {
	g := NewGate()
	defer g.Close()

	g.Send(Signal{Key: "sweep-me", Start: time.Now(), Duration: 5 * time.Millisecond})
	waitForSink(t)
	time.Sleep(10 * time.Millisecond)

	for i := 0; i < CheckEvery; i++ {
		g.Admit("irrelevant", nil)
	}

	assert.True(t, g.Admit("sweep-me", nil), "entry should have been swept and expired")
}

type assertErr struct{}

func (assertErr) Error() string { return "key resolution failed" }
