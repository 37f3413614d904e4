package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"notary/internal/model"
	"notary/internal/repository"
	"notary/internal/storage"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func newMock(t *testing.T) (*NotaryPostgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewNotaryPostgres(db), mock
}

func TestNotaryPostgres_FindDocument(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	cols := []string{"hash", "object_id", "token_id", "summary", "filename", "payment_ref", "payer", "created_at"}

	t.Run("found", func(t *testing.T) {
		now := time.Now().UTC()
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE hash = ?").
			WithArgs(testHash).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(testHash, "obj-1", "tok-1", "summary", "a.txt", "0xref", "0xpayer", now))

		doc, err := repo.FindDocument(ctx, testHash)

		require.NoError(t, err)
		assert.Equal(t, "obj-1", doc.ObjectID)
		assert.Equal(t, "tok-1", doc.TokenID)
		assert.Equal(t, now, doc.CreatedAt)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE hash = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.FindDocument(ctx, "missing")

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, doc)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotaryPostgres_Pending(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO pending_hashes").
		WithArgs(testHash, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO pending_hashes").
		WithArgs(testHash, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM pending_hashes WHERE hash = ?").
		WithArgs(testHash).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.AcquirePending(ctx, testHash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AcquirePending(ctx, testHash)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.ReleasePending(ctx, testHash))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotaryPostgres_IsPaymentUsed(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("0xref").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	used, err := repo.IsPaymentUsed(context.Background(), "0xref")

	require.NoError(t, err)
	assert.True(t, used)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotaryPostgres_CommitDocument(t *testing.T) {
	now := time.Now().UTC()
	doc := &model.DocumentRecord{
		Hash:       testHash,
		ObjectID:   "obj-1",
		TokenID:    "tok-1",
		Summary:    "s",
		Filename:   "a.txt",
		PaymentRef: "0xref",
		Payer:      "0xpayer",
		CreatedAt:  now,
	}
	payment := model.UsedPayment{Ref: "0xref", Payer: "0xpayer", UsedAt: now}

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "success",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO used_payments").
					WithArgs("0xref", "0xpayer", now).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec("INSERT INTO documents").
					WithArgs(testHash, "obj-1", "tok-1", "s", "a.txt", "0xref", "0xpayer", now).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "payment already used",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO used_payments").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			wantErr: repository.ErrPaymentUsed,
		},
		{
			name: "document already exists",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO used_payments").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec("INSERT INTO documents").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			wantErr: repository.ErrDuplicate,
		},
		{
			name: "insert error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO used_payments").
					WillReturnError(errors.New("db down"))
				mock.ExpectRollback()
			},
			wantErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMock(t)
			tt.setup(mock)

			err := repo.CommitDocument(context.Background(), doc, payment)

			switch {
			case tt.wantErr == nil:
				assert.NoError(t, err)
			case errors.Is(tt.wantErr, repository.ErrPaymentUsed), errors.Is(tt.wantErr, repository.ErrDuplicate):
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.EqualError(t, err, tt.wantErr.Error())
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestNotaryPostgres_Attestations(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	now := time.Now().UTC()
	att := model.Attestation{
		DocumentHash:    testHash,
		ObjectID:        "att-1",
		SourceObjectID:  "obj-1",
		TokenID:         "tok-1",
		SignerPublicKey: "pub",
		Signature:       "sig",
		CreatedAt:       now,
	}

	t.Run("append", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO attestations").
			WithArgs(testHash, "att-1", "obj-1", "tok-1", "pub", "sig", now).
			WillReturnResult(sqlmock.NewResult(1, 1))

		assert.NoError(t, repo.AppendAttestation(ctx, att))
	})

	t.Run("append duplicate", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO attestations").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.AppendAttestation(ctx, att), repository.ErrDuplicate)
	})

	t.Run("list", func(t *testing.T) {
		cols := []string{"document_hash", "object_id", "source_object_id", "token_id", "signer_public_key", "signature", "created_at"}
		mock.ExpectQuery("SELECT (.+) FROM attestations WHERE document_hash = ?").
			WithArgs(testHash).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(testHash, "att-1", "obj-1", "tok-1", "pub", "sig", now).
				AddRow(testHash, "att-2", "obj-1", "tok-1", "pub2", "sig2", now))

		items, err := repo.ListAttestations(ctx, testHash)

		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "att-1", items[0].ObjectID)
		assert.Equal(t, "pub2", items[1].SignerPublicKey)
	})

	t.Run("has", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(testHash, "obj-1", "pub").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		ok, err := repo.HasAttestation(ctx, testHash, "obj-1", "pub")

		require.NoError(t, err)
		assert.False(t, ok)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotaryPostgres_Uploads(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO uploads").
		WithArgs("up-1", model.UploadCreated, []byte("payload"), `["v1"]`, "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveUpload(ctx, model.Upload{
		ID:            "up-1",
		Phase:         model.UploadCreated,
		Payload:       []byte("payload"),
		ChunkVersions: []string{"v1"},
		UpdatedAt:     now,
	})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM uploads WHERE phase <> ?").
		WithArgs(model.UploadSealed).
		WillReturnRows(sqlmock.NewRows([]string{"id", "phase", "payload", "chunk_versions", "object_id", "updated_at"}).
			AddRow("up-1", model.UploadCreated, []byte("payload"), `["v1"]`, "", now))

	items, err := repo.UnsealedUploads(ctx)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"v1"}, items[0].ChunkVersions)
	assert.Equal(t, []byte("payload"), items[0].Payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// payloadArg matches a bytea argument that will not be sent as SQL NULL.
type payloadArg struct {
	want []byte
}

func (a payloadArg) Match(v driver.Value) bool {
	b, ok := v.([]byte)
	if !ok || b == nil {
		return false
	}
	return a.want == nil || string(b) == string(a.want)
}

func TestNotaryPostgres_SaveUploadSealedPayloadNotNull(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec("INSERT INTO uploads").
		WithArgs("up-2", model.UploadSealed, payloadArg{want: []byte{}}, `["v1"]`, "obj-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveUpload(context.Background(), model.Upload{
		ID:            "up-2",
		Phase:         model.UploadSealed,
		ChunkVersions: []string{"v1"},
		ObjectID:      "obj-2",
		UpdatedAt:     time.Now().UTC(),
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotaryPostgres_PublishJournalsEveryPhase(t *testing.T) {
	repo, mock := newMock(t)
	pub := storage.NewPublisher(storage.NewMemoryBackend(), repo, 0)

	mock.ExpectExec("INSERT INTO uploads").
		WithArgs(sqlmock.AnyArg(), model.UploadCreated, payloadArg{want: []byte("hello")}, sqlmock.AnyArg(), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO uploads").
		WithArgs(sqlmock.AnyArg(), model.UploadAppended, payloadArg{want: []byte("hello")}, sqlmock.AnyArg(), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO uploads").
		WithArgs(sqlmock.AnyArg(), model.UploadSealed, payloadArg{want: []byte{}}, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	objectID, err := pub.Publish(context.Background(), []byte("hello"))

	require.NoError(t, err)
	assert.NotEmpty(t, objectID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
