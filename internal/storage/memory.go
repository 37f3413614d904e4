package storage

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"
)

type memoryObject struct {
	chunks   map[int][][]byte
	manifest *Manifest
}

// MemoryBackend keeps objects in process memory and enforces the same
// sealing rules as the object-lock backend: once sealed, chunks cannot be
// written. Chunk versions are their write counters.
type MemoryBackend struct {
	mu      sync.Mutex
	objects map[string]*memoryObject
	calls   []string
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string]*memoryObject)}
}

var _ Backend = (*MemoryBackend)(nil)

func (b *MemoryBackend) Create(_ context.Context, id string, chunk []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "create")
	obj, ok := b.objects[id]
	if !ok {
		obj = &memoryObject{chunks: make(map[int][][]byte)}
		b.objects[id] = obj
	}
	return b.write(obj, id, 0, chunk)
}

func (b *MemoryBackend) Append(_ context.Context, id string, index int, chunk []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "append")
	obj, ok := b.objects[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b.write(obj, id, index, chunk)
}

func (b *MemoryBackend) write(obj *memoryObject, id string, index int, chunk []byte) (string, error) {
	if obj.manifest != nil {
		return "", fmt.Errorf("%w: %s", ErrSealed, id)
	}
	obj.chunks[index] = append(obj.chunks[index], append([]byte(nil), chunk...))
	return strconv.Itoa(len(obj.chunks[index])), nil
}

func (b *MemoryBackend) Seal(_ context.Context, m Manifest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "seal")
	obj, ok := b.objects[m.ID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, m.ID)
	}
	if obj.manifest != nil {
		return m.ID, nil
	}
	m.Versions = append([]string(nil), m.Versions...)
	obj.manifest = &m
	return m.ID, nil
}

func (b *MemoryBackend) Read(_ context.Context, objectID string) (Manifest, []byte, error) {
	id, _, err := parseObjectID(objectID)
	if err != nil {
		return Manifest{}, nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[id]
	if !ok || obj.manifest == nil {
		return Manifest{}, nil, fmt.Errorf("%w: %s", ErrNotFound, objectID)
	}
	var buf bytes.Buffer
	for i, v := range obj.manifest.Versions {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > len(obj.chunks[i]) {
			return Manifest{}, nil, fmt.Errorf("%w: chunk %d version %q", ErrCorrupt, i, v)
		}
		buf.Write(obj.chunks[i][n-1])
	}
	return *obj.manifest, buf.Bytes(), nil
}

// Calls returns the sequence of write phases issued so far.
func (b *MemoryBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// Sealed reports how many objects have been sealed.
func (b *MemoryBackend) Sealed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, o := range b.objects {
		if o.manifest != nil {
			n++
		}
	}
	return n
}
