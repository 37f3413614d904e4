package eventlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryTopic struct {
	msgs []Message
	wake chan struct{}
}

// MemoryLog is an in-process Log. Subscribers are woken on every publish.
type MemoryLog struct {
	mu     sync.Mutex
	topics map[string]*memoryTopic
	topic  topicRef
}

// NewMemoryLog returns an empty MemoryLog. A non-empty topicID is created up front.
func NewMemoryLog(topicID string) *MemoryLog {
	l := &MemoryLog{topics: make(map[string]*memoryTopic)}
	if topicID != "" {
		l.topics[topicID] = &memoryTopic{wake: make(chan struct{})}
		l.topic.id = topicID
	}
	return l
}

var _ Log = (*MemoryLog)(nil)

func (l *MemoryLog) TopicID() string {
	return l.topic.get()
}

func (l *MemoryLog) EnsureTopic(ctx context.Context) (string, error) {
	return l.topic.ensure(ctx, func(context.Context) (string, error) {
		id := uuid.NewString()
		l.mu.Lock()
		l.topics[id] = &memoryTopic{wake: make(chan struct{})}
		l.mu.Unlock()
		return id, nil
	})
}

func (l *MemoryLog) Publish(_ context.Context, topicID string, payload []byte) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.topics[topicID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrTopicNotFound, topicID)
	}
	seq := int64(len(t.msgs) + 1)
	t.msgs = append(t.msgs, Message{
		TopicID:     topicID,
		Sequence:    seq,
		Payload:     append([]byte(nil), payload...),
		PublishedAt: time.Now().UTC(),
	})
	close(t.wake)
	t.wake = make(chan struct{})
	return seq, nil
}

func (l *MemoryLog) Ready(_ context.Context, topicID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.topics[topicID]; !ok {
		return fmt.Errorf("%w: %s", ErrTopicNotFound, topicID)
	}
	return nil
}

func (l *MemoryLog) Subscribe(ctx context.Context, topicID string, from StartPosition, h Handler) error {
	l.mu.Lock()
	t, ok := l.topics[topicID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTopicNotFound, topicID)
	}
	next := 0
	if from == FromNow {
		next = len(t.msgs)
	}
	l.mu.Unlock()

	for {
		l.mu.Lock()
		pending := append([]Message(nil), t.msgs[next:]...)
		wake := t.wake
		l.mu.Unlock()

		for _, m := range pending {
			h(ctx, m)
		}
		next += len(pending)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		}
	}
}

// Messages returns a copy of every message in topicID.
func (l *MemoryLog) Messages(topicID string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.topics[topicID]
	if !ok {
		return nil
	}
	return append([]Message(nil), t.msgs...)
}
