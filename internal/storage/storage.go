package storage

import (
	"context"
	"errors"
	"time"

	"notary/internal/model"
)

// Package storage publishes byte blobs as immutable objects. A publish runs in
// three acknowledged phases (create, append, seal); once sealed an object can
// no longer be modified or deleted by anyone, the service included.

var (
	// ErrNotFound is returned when an object id does not resolve to a sealed object.
	ErrNotFound = errors.New("object not found")
	// ErrSealed is returned when a write targets an object that is already sealed.
	ErrSealed = errors.New("object is sealed")
	// ErrCorrupt is returned when object content does not match its manifest.
	ErrCorrupt = errors.New("object content does not match manifest")
	// ErrInvalidObjectID is returned for malformed object identifiers.
	ErrInvalidObjectID = errors.New("invalid object id")
)

// Manifest describes a sealed object: the ordered chunk versions and a digest
// of their concatenation.
type Manifest struct {
	ID       string    `json:"id"`
	Versions []string  `json:"versions"`
	Size     int64     `json:"size"`
	SHA256   string    `json:"sha256"`
	SealedAt time.Time `json:"sealedAt"`
}

// Backend is an object store able to perform the three write phases.
type Backend interface {
	// Create starts object id with its first chunk and returns the chunk version.
	Create(ctx context.Context, id string, chunk []byte) (string, error)
	// Append writes chunk number index of object id and returns its version.
	Append(ctx context.Context, id string, index int, chunk []byte) (string, error)
	// Seal removes all write access to the chunks listed in m and returns the
	// final object identifier.
	Seal(ctx context.Context, m Manifest) (string, error)
	// Read returns the manifest and concatenated chunks of a sealed object.
	Read(ctx context.Context, objectID string) (Manifest, []byte, error)
}

// Journal persists the progress of uploads so an interrupted publish can resume.
type Journal interface {
	SaveUpload(ctx context.Context, u model.Upload) error
	UnsealedUploads(ctx context.Context) ([]model.Upload, error)
}

// ImmutableStore is what the rest of the service sees.
type ImmutableStore interface {
	// Publish writes data as a new sealed object and returns its identifier.
	Publish(ctx context.Context, data []byte) (string, error)
	// Fetch returns the content of a sealed object.
	Fetch(ctx context.Context, objectID string) ([]byte, error)
}
