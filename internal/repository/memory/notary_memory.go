package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"notary/internal/model"
	"notary/internal/repository"
)

// NotaryMemory is an in-process implementation of repository.NotaryRepository.
// It is used by the memory backend and by tests. All state is lost on exit.
type NotaryMemory struct {
	mu           sync.Mutex
	documents    map[string]model.DocumentRecord
	payments     map[string]model.UsedPayment
	pending      map[string]time.Time
	attestations map[string][]model.Attestation
	uploads      map[string]model.Upload
}

// NewNotaryMemory returns an empty store.
func NewNotaryMemory() *NotaryMemory {
	return &NotaryMemory{
		documents:    make(map[string]model.DocumentRecord),
		payments:     make(map[string]model.UsedPayment),
		pending:      make(map[string]time.Time),
		attestations: make(map[string][]model.Attestation),
		uploads:      make(map[string]model.Upload),
	}
}

var _ repository.NotaryRepository = (*NotaryMemory)(nil)

func (m *NotaryMemory) FindDocument(_ context.Context, hash string) (*model.DocumentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (m *NotaryMemory) AcquirePending(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[hash]; ok {
		return false, nil
	}
	m.pending[hash] = time.Now().UTC()
	return true, nil
}

func (m *NotaryMemory) ReleasePending(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, hash)
	return nil
}

// IsPending reports whether hash is currently held.
func (m *NotaryMemory) IsPending(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[hash]
	return ok
}

func (m *NotaryMemory) IsPaymentUsed(_ context.Context, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.payments[ref]
	return ok, nil
}

func (m *NotaryMemory) CommitDocument(_ context.Context, doc *model.DocumentRecord, payment model.UsedPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[payment.Ref]; ok {
		return repository.ErrPaymentUsed
	}
	if _, ok := m.documents[doc.Hash]; ok {
		return repository.ErrDuplicate
	}
	m.payments[payment.Ref] = payment
	m.documents[doc.Hash] = *doc
	return nil
}

func (m *NotaryMemory) AppendAttestation(_ context.Context, att model.Attestation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attestations[att.DocumentHash] {
		if a.SourceObjectID == att.SourceObjectID && a.SignerPublicKey == att.SignerPublicKey {
			return repository.ErrDuplicate
		}
	}
	m.attestations[att.DocumentHash] = append(m.attestations[att.DocumentHash], att)
	return nil
}

func (m *NotaryMemory) ListAttestations(_ context.Context, hash string) ([]model.Attestation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Attestation, len(m.attestations[hash]))
	copy(out, m.attestations[hash])
	return out, nil
}

func (m *NotaryMemory) HasAttestation(_ context.Context, hash, sourceObjectID, signer string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attestations[hash] {
		if a.SourceObjectID == sourceObjectID && a.SignerPublicKey == signer {
			return true, nil
		}
	}
	return false, nil
}

// SaveUpload stores a copy of the journal entry. Sealed entries are dropped
// since only unsealed uploads are ever read back.
func (m *NotaryMemory) SaveUpload(_ context.Context, u model.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.Phase == model.UploadSealed {
		delete(m.uploads, u.ID)
		return nil
	}
	u.ChunkVersions = append([]string(nil), u.ChunkVersions...)
	m.uploads[u.ID] = u
	return nil
}

// UnsealedUploads returns uploads not yet sealed, oldest first.
func (m *NotaryMemory) UnsealedUploads(_ context.Context) ([]model.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Upload, 0)
	for _, u := range m.uploads {
		if u.Phase != model.UploadSealed {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}
