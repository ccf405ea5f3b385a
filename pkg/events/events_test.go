package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_FanOut(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	first := b.Subscribe()
	second := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{Type: EventWorkerStarted, Message: "worker up", Metadata: map[string]string{"exchange_id": "NYSE"}})

	for _, sub := range []Subscriber{first, second} {
		select {
		case ev := <-sub:
			assert.Equal(t, EventWorkerStarted, ev.Type)
			assert.Equal(t, "NYSE", ev.Metadata["exchange_id"])
			assert.False(t, ev.Timestamp.IsZero(), "publish stamps the event")
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestBroker_SlowSubscriberDropsNotBlocks(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	slow := b.Subscribe()
	fast := b.Subscribe()

	received := make(chan int)
	go func() {
		n := 0
		for range fast {
			n++
			if n == 60 {
				received <- n
				return
			}
		}
	}()

	// The slow subscriber never drains; its buffer fills and the surplus
	// is dropped without stalling the broadcast loop.
	for i := 0; i < 60; i++ {
		b.Publish(&Event{Type: EventWorkflowCompleted, Message: fmt.Sprintf("run %d", i)})
	}

	select {
	case n := <-received:
		assert.Equal(t, 60, n)
	case <-time.After(2 * time.Second):
		t.Fatal("draining subscriber starved by a slow sibling")
	}
	assert.Equal(t, cap(slow), len(slow), "slow subscriber holds a full buffer")
}

func TestBroker_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Zero(t, b.SubscriberCount())

	_, open := <-sub
	require.False(t, open)
}
