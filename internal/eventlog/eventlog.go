package eventlog

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTopicNotFound is returned for operations on an unknown topic.
var ErrTopicNotFound = errors.New("topic not found")

// StartPosition selects where a subscription begins.
type StartPosition int

const (
	// FromBeginning replays every message of the topic.
	FromBeginning StartPosition = iota
	// FromNow delivers only messages published after the subscription starts.
	FromNow
)

// ParseStartPosition maps "now" to FromNow and anything else to FromBeginning.
func ParseStartPosition(s string) StartPosition {
	if s == "now" {
		return FromNow
	}
	return FromBeginning
}

// Message is one entry of a topic. Sequence numbers start at 1 and have no gaps.
type Message struct {
	TopicID     string
	Sequence    int64
	Payload     []byte
	PublishedAt time.Time
}

// Handler receives messages in sequence order.
type Handler func(ctx context.Context, msg Message)

// Log is an append-only, totally ordered topic log.
type Log interface {
	// EnsureTopic returns the configured topic, creating it on first use.
	EnsureTopic(ctx context.Context) (string, error)
	// TopicID returns the current topic id or "" if none exists yet.
	TopicID() string
	// Publish appends payload and returns its sequence number.
	Publish(ctx context.Context, topicID string, payload []byte) (int64, error)
	// Subscribe delivers messages to h until ctx is done. Delivery is
	// at-least-once across restarts of the subscription.
	Subscribe(ctx context.Context, topicID string, from StartPosition, h Handler) error
	// Ready reports whether topicID can be subscribed to.
	Ready(ctx context.Context, topicID string) error
}

// topicRef remembers the topic id for the lifetime of the process.
type topicRef struct {
	mu sync.Mutex
	id string
}

func (t *topicRef) get() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

func (t *topicRef) ensure(ctx context.Context, create func(context.Context) (string, error)) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.id != "" {
		return t.id, nil
	}
	id, err := create(ctx)
	if err != nil {
		return "", err
	}
	t.id = id
	return id, nil
}
