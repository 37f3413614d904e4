package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const batchSize = 100

// PostgresLog stores topics in PostgreSQL. Publishing locks the topic row to
// draw the next sequence number, so publishers are serialized per topic and
// messages become visible in sequence order.
type PostgresLog struct {
	db           *sql.DB
	memo         string
	pollInterval time.Duration
	topic        topicRef
	now          func() time.Time
}

// NewPostgresLog returns a PostgresLog. topicID may be empty, in which case
// EnsureTopic creates one.
func NewPostgresLog(db *sql.DB, topicID, memo string, pollInterval time.Duration) *PostgresLog {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	l := &PostgresLog{db: db, memo: memo, pollInterval: pollInterval, now: time.Now}
	l.topic.id = topicID
	return l
}

var _ Log = (*PostgresLog)(nil)

func (l *PostgresLog) TopicID() string {
	return l.topic.get()
}

func (l *PostgresLog) EnsureTopic(ctx context.Context) (string, error) {
	return l.topic.ensure(ctx, func(ctx context.Context) (string, error) {
		id := uuid.NewString()
		const q = `INSERT INTO topics (id, memo, next_seq, created_at) VALUES ($1, $2, 1, $3)`
		if _, err := l.db.ExecContext(ctx, q, id, l.memo, l.now().UTC()); err != nil {
			return "", fmt.Errorf("create topic: %w", err)
		}
		return id, nil
	})
}

func (l *PostgresLog) Publish(ctx context.Context, topicID string, payload []byte) (seq int64, err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const qSeq = `UPDATE topics SET next_seq = next_seq + 1 WHERE id = $1 RETURNING next_seq - 1`
	if err = tx.QueryRowContext(ctx, qSeq, topicID).Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrTopicNotFound, topicID)
		}
		return 0, err
	}

	const qMsg = `INSERT INTO topic_messages (topic_id, seq, payload, published_at) VALUES ($1, $2, $3, $4)`
	if _, err = tx.ExecContext(ctx, qMsg, topicID, seq, payload, l.now().UTC()); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return seq, nil
}

func (l *PostgresLog) Ready(ctx context.Context, topicID string) error {
	const q = `SELECT EXISTS (SELECT 1 FROM topics WHERE id = $1)`
	var ok bool
	if err := l.db.QueryRowContext(ctx, q, topicID).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrTopicNotFound, topicID)
	}
	return nil
}

// Subscribe polls for messages after the last delivered sequence number.
func (l *PostgresLog) Subscribe(ctx context.Context, topicID string, from StartPosition, h Handler) error {
	var after int64
	if from == FromNow {
		const q = `SELECT COALESCE(MAX(seq), 0) FROM topic_messages WHERE topic_id = $1`
		if err := l.db.QueryRowContext(ctx, q, topicID).Scan(&after); err != nil {
			return fmt.Errorf("read head: %w", err)
		}
	}

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		msgs, err := l.fetch(ctx, topicID, after)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("poll topic %s: %w", topicID, err)
		}
		for _, m := range msgs {
			h(ctx, m)
			after = m.Sequence
		}
		if len(msgs) == batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *PostgresLog) fetch(ctx context.Context, topicID string, after int64) ([]Message, error) {
	const q = `
		SELECT seq, payload, published_at
		FROM topic_messages
		WHERE topic_id = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3
	`
	rows, err := l.db.QueryContext(ctx, q, topicID, after, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		m := Message{TopicID: topicID}
		if err := rows.Scan(&m.Sequence, &m.Payload, &m.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
