package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notary/internal/model"
)

// DefaultFirstChunk is the largest payload prefix accepted by a create.
const DefaultFirstChunk = 4096

// Publisher drives uploads through created → appended → sealed, journaling
// every completed phase.
type Publisher struct {
	backend    Backend
	journal    Journal
	firstChunk int
	now        func() time.Time
}

// NewPublisher returns a Publisher. A firstChunk of zero or less selects DefaultFirstChunk.
func NewPublisher(backend Backend, journal Journal, firstChunk int) *Publisher {
	if firstChunk <= 0 {
		firstChunk = DefaultFirstChunk
	}
	return &Publisher{backend: backend, journal: journal, firstChunk: firstChunk, now: time.Now}
}

var _ ImmutableStore = (*Publisher)(nil)

// Publish writes data as a new immutable object.
func (p *Publisher) Publish(ctx context.Context, data []byte) (string, error) {
	u := &model.Upload{
		ID:      uuid.NewString(),
		Payload: append([]byte(nil), data...),
	}
	if err := p.advance(ctx, u); err != nil {
		return "", fmt.Errorf("publish %s (phase %q): %w", u.ID, u.Phase, err)
	}
	return u.ObjectID, nil
}

// Fetch reads a sealed object and checks it against its manifest digest.
func (p *Publisher) Fetch(ctx context.Context, objectID string) ([]byte, error) {
	m, data, err := p.backend.Read(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != m.Size || digest(data) != m.SHA256 {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, objectID)
	}
	return data, nil
}

// Resume continues every journaled upload from its last completed phase and
// returns the number of uploads it sealed.
func (p *Publisher) Resume(ctx context.Context) (int, error) {
	uploads, err := p.journal.UnsealedUploads(ctx)
	if err != nil {
		return 0, fmt.Errorf("list unsealed uploads: %w", err)
	}
	sealed := 0
	for i := range uploads {
		u := uploads[i]
		if err := p.advance(ctx, &u); err != nil {
			return sealed, fmt.Errorf("resume %s (phase %q): %w", u.ID, u.Phase, err)
		}
		sealed++
	}
	return sealed, nil
}

func (p *Publisher) advance(ctx context.Context, u *model.Upload) error {
	for u.Phase != model.UploadSealed {
		switch u.Phase {
		case "":
			v, err := p.backend.Create(ctx, u.ID, u.Payload[:min(len(u.Payload), p.firstChunk)])
			if err != nil {
				return fmt.Errorf("create: %w", err)
			}
			u.ChunkVersions = []string{v}
			u.Phase = model.UploadCreated

		case model.UploadCreated:
			if len(u.Payload) > p.firstChunk {
				v, err := p.backend.Append(ctx, u.ID, 1, u.Payload[p.firstChunk:])
				if err != nil {
					return fmt.Errorf("append: %w", err)
				}
				u.ChunkVersions = append(u.ChunkVersions[:1], v)
			}
			u.Phase = model.UploadAppended

		case model.UploadAppended:
			objectID, err := p.backend.Seal(ctx, Manifest{
				ID:       u.ID,
				Versions: u.ChunkVersions,
				Size:     int64(len(u.Payload)),
				SHA256:   digest(u.Payload),
				SealedAt: p.now().UTC(),
			})
			if err != nil {
				return fmt.Errorf("seal: %w", err)
			}
			u.ObjectID = objectID
			u.Phase = model.UploadSealed
			u.Payload = nil

		default:
			return fmt.Errorf("unknown upload phase %q", u.Phase)
		}

		u.UpdatedAt = p.now().UTC()
		if err := p.journal.SaveUpload(ctx, *u); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}
	return nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
