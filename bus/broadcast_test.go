package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishFanOutToAllSubscribers(t *testing.T) {
	b := New()
	s1 := b.Subscribe()
	s2 := b.Subscribe()

	b.Publish([]byte("hello"))

	got1, ok1 := s1.Queue.Pop()
	got2, ok2 := s2.Queue.Pop()
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, "hello", string(got1))
	assert.Equal(t, "hello", string(got2))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	s := b.Subscribe()
	b.Unsubscribe(s)

	b.Publish([]byte("after unsubscribe"))
	_, ok := s.Queue.Pop()
	assert.False(t, ok, "queue should be closed and drained")
}

func TestPerSubscriberFIFOOrder(t *testing.T) {
	b := New()
	s := b.Subscribe()

	for i := 0; i < 100; i++ {
		b.Publish([]byte{byte(i)})
	}

	for i := 0; i < 100; i++ {
		got, ok := s.Queue.Pop()
		assert.True(t, ok)
		assert.Equal(t, byte(i), got[0])
	}
}

func TestConcurrentPublishersFanOutToEverySubscriber(t *testing.T) {
	b := New()
	const subs = 4
	const monitors = 3
	const perMonitor = 100

	subscribers := make([]*Subscriber, subs)
	for i := range subscribers {
		subscribers[i] = b.Subscribe()
	}

	var wg sync.WaitGroup
	for m := 0; m < monitors; m++ {
		wg.Add(1)
		go func(m int) {
			defer wg.Done()
			for i := 0; i < perMonitor; i++ {
				b.Publish([]byte{byte(m), byte(i)})
			}
		}(m)
	}
	wg.Wait()

	for _, s := range subscribers {
		count := 0
		for s.Queue.Len() > 0 {
			s.Queue.Pop()
			count++
		}
		assert.Equal(t, monitors*perMonitor, count)
	}
}
