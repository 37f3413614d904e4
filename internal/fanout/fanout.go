package fanout

import (
	"sync"

	"notary/internal/model"
)

const defaultBuffer = 32

// Broadcaster delivers events to every live listener. A listener that is not
// keeping up loses events instead of stalling publishers.
type Broadcaster struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[uint64]chan model.Event
	buffer    int
	dropped   func()
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithBuffer sets the per-listener channel capacity.
func WithBuffer(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithDropHook is called once for every event dropped for a slow listener.
func WithDropHook(fn func()) Option {
	return func(b *Broadcaster) { b.dropped = fn }
}

func New(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		listeners: make(map[uint64]chan model.Event),
		buffer:    defaultBuffer,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Subscribe registers a listener. The returned cancel func removes it and
// closes the channel; calling it more than once is safe.
func (b *Broadcaster) Subscribe() (<-chan model.Event, func()) {
	ch := make(chan model.Event, b.buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish sends ev to all listeners without blocking.
func (b *Broadcaster) Publish(ev model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.listeners {
		select {
		case ch <- ev:
		default:
			if b.dropped != nil {
				b.dropped()
			}
		}
	}
}

// Count returns the number of live listeners.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
