package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"notary/internal/model"
	"notary/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotaryMemory_AcquirePendingIsExclusive(t *testing.T) {
	repo := NewNotaryMemory()
	ctx := context.Background()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.AcquirePending(ctx, "h")
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.True(t, repo.IsPending("h"))

	require.NoError(t, repo.ReleasePending(ctx, "h"))
	assert.False(t, repo.IsPending("h"))
	require.NoError(t, repo.ReleasePending(ctx, "h"))
}

func TestNotaryMemory_CommitDocument(t *testing.T) {
	repo := NewNotaryMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	doc := &model.DocumentRecord{Hash: "h1", ObjectID: "o1", TokenID: "t1", PaymentRef: "r1", CreatedAt: now}
	require.NoError(t, repo.CommitDocument(ctx, doc, model.UsedPayment{Ref: "r1", UsedAt: now}))

	got, err := repo.FindDocument(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "o1", got.ObjectID)

	used, err := repo.IsPaymentUsed(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, used)

	other := &model.DocumentRecord{Hash: "h2", PaymentRef: "r1"}
	assert.ErrorIs(t, repo.CommitDocument(ctx, other, model.UsedPayment{Ref: "r1"}), repository.ErrPaymentUsed)
	_, err = repo.FindDocument(ctx, "h2")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	again := &model.DocumentRecord{Hash: "h1", PaymentRef: "r2"}
	assert.ErrorIs(t, repo.CommitDocument(ctx, again, model.UsedPayment{Ref: "r2"}), repository.ErrDuplicate)
	used, err = repo.IsPaymentUsed(ctx, "r2")
	require.NoError(t, err)
	assert.False(t, used)
}

func TestNotaryMemory_Attestations(t *testing.T) {
	repo := NewNotaryMemory()
	ctx := context.Background()

	a := model.Attestation{DocumentHash: "h", ObjectID: "a1", SourceObjectID: "o1", SignerPublicKey: "k1"}
	require.NoError(t, repo.AppendAttestation(ctx, a))
	assert.ErrorIs(t, repo.AppendAttestation(ctx, a), repository.ErrDuplicate)

	b := model.Attestation{DocumentHash: "h", ObjectID: "a2", SourceObjectID: "o1", SignerPublicKey: "k2"}
	require.NoError(t, repo.AppendAttestation(ctx, b))

	items, err := repo.ListAttestations(ctx, "h")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a1", items[0].ObjectID)

	ok, err := repo.HasAttestation(ctx, "h", "o1", "k2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.HasAttestation(ctx, "h", "o2", "k2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotaryMemory_Uploads(t *testing.T) {
	repo := NewNotaryMemory()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, repo.SaveUpload(ctx, model.Upload{ID: "b", Phase: model.UploadAppended, UpdatedAt: base.Add(time.Second)}))
	require.NoError(t, repo.SaveUpload(ctx, model.Upload{ID: "a", Phase: model.UploadCreated, UpdatedAt: base}))
	require.NoError(t, repo.SaveUpload(ctx, model.Upload{ID: "c", Phase: model.UploadSealed, UpdatedAt: base}))

	items, err := repo.UnsealedUploads(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)
}

func TestNotaryMemory_SealedUploadIsPruned(t *testing.T) {
	repo := NewNotaryMemory()
	ctx := context.Background()

	require.NoError(t, repo.SaveUpload(ctx, model.Upload{ID: "a", Phase: model.UploadCreated, Payload: []byte("data")}))
	require.NoError(t, repo.SaveUpload(ctx, model.Upload{ID: "a", Phase: model.UploadAppended, Payload: []byte("data")}))
	require.NoError(t, repo.SaveUpload(ctx, model.Upload{ID: "a", Phase: model.UploadSealed, ObjectID: "obj"}))

	repo.mu.Lock()
	n := len(repo.uploads)
	repo.mu.Unlock()
	assert.Zero(t, n)

	items, err := repo.UnsealedUploads(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}
