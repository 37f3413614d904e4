package fanout

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notary/internal/model"
)

func TestBroadcaster_DeliversToAllListeners(t *testing.T) {
	b := New()
	a, cancelA := b.Subscribe()
	c, cancelC := b.Subscribe()
	defer cancelA()
	defer cancelC()

	b.Publish(model.Event{Type: model.EventNotarized, Hash: "h1"})

	require.Equal(t, 2, b.Count())
	assert.Equal(t, "h1", (<-a).Hash)
	assert.Equal(t, "h1", (<-c).Hash)
}

func TestBroadcaster_CancelRemovesListener(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()

	cancel()
	cancel()

	assert.Equal(t, 0, b.Count())
	_, open := <-ch
	assert.False(t, open)

	assert.NotPanics(t, func() { b.Publish(model.Event{Type: model.EventHello}) })
}

func TestBroadcaster_SlowListenerDoesNotBlock(t *testing.T) {
	var dropped atomic.Int32
	b := New(WithBuffer(1), WithDropHook(func() { dropped.Add(1) }))
	slow, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < 5; i++ {
		b.Publish(model.Event{Type: model.EventDuplicate})
	}

	assert.Equal(t, int32(4), dropped.Load())
	assert.Len(t, slow, 1)
}

func TestBroadcaster_ConcurrentSubscribeAndPublish(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancel := b.Subscribe()
			cancel()
		}()
		go func() {
			defer wg.Done()
			b.Publish(model.Event{Type: model.EventAttested})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.Count())
}
