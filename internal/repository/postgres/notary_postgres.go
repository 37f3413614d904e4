package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"notary/internal/model"
	"notary/internal/repository"
)

// NotaryPostgres is a PostgreSQL implementation of repository.NotaryRepository.
// It uses database/sql with parameterized queries and contains no business logic.
// It also journals immutable uploads for the storage package.
type NotaryPostgres struct {
	db *sql.DB
}

// NewNotaryPostgres creates a new NotaryPostgres repository.
func NewNotaryPostgres(db *sql.DB) *NotaryPostgres {
	return &NotaryPostgres{db: db}
}

var _ repository.NotaryRepository = (*NotaryPostgres)(nil)

// FindDocument fetches a single document record by content hash.
func (r *NotaryPostgres) FindDocument(ctx context.Context, hash string) (*model.DocumentRecord, error) {
	const q = `
		SELECT hash, object_id, token_id, summary, filename, payment_ref, payer, created_at
		FROM documents
		WHERE hash = $1
	`
	var d model.DocumentRecord
	err := r.db.QueryRowContext(ctx, q, hash).Scan(
		&d.Hash,
		&d.ObjectID,
		&d.TokenID,
		&d.Summary,
		&d.Filename,
		&d.PaymentRef,
		&d.Payer,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// AcquirePending inserts hash into pending_hashes unless it is already present.
func (r *NotaryPostgres) AcquirePending(ctx context.Context, hash string) (bool, error) {
	const q = `INSERT INTO pending_hashes (hash, started_at) VALUES ($1, $2) ON CONFLICT (hash) DO NOTHING`
	res, err := r.db.ExecContext(ctx, q, hash, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleasePending deletes hash from pending_hashes.
func (r *NotaryPostgres) ReleasePending(ctx context.Context, hash string) error {
	const q = `DELETE FROM pending_hashes WHERE hash = $1`
	_, err := r.db.ExecContext(ctx, q, hash)
	return err
}

// IsPaymentUsed checks used_payments for ref.
func (r *NotaryPostgres) IsPaymentUsed(ctx context.Context, ref string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM used_payments WHERE payment_ref = $1)`
	var used bool
	if err := r.db.QueryRowContext(ctx, q, ref).Scan(&used); err != nil {
		return false, err
	}
	return used, nil
}

// CommitDocument inserts the payment and the document in one transaction.
func (r *NotaryPostgres) CommitDocument(ctx context.Context, doc *model.DocumentRecord, payment model.UsedPayment) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const qPayment = `
		INSERT INTO used_payments (payment_ref, payer, used_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (payment_ref) DO NOTHING
	`
	res, err := tx.ExecContext(ctx, qPayment, payment.Ref, payment.Payer, payment.UsedAt)
	if err != nil {
		return err
	}
	if n, rerr := res.RowsAffected(); rerr != nil {
		return rerr
	} else if n == 0 {
		return repository.ErrPaymentUsed
	}

	const qDoc = `
		INSERT INTO documents (hash, object_id, token_id, summary, filename, payment_ref, payer, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (hash) DO NOTHING
	`
	res, err = tx.ExecContext(ctx, qDoc,
		doc.Hash,
		doc.ObjectID,
		doc.TokenID,
		doc.Summary,
		doc.Filename,
		doc.PaymentRef,
		doc.Payer,
		doc.CreatedAt,
	)
	if err != nil {
		return err
	}
	if n, rerr := res.RowsAffected(); rerr != nil {
		return rerr
	} else if n == 0 {
		return repository.ErrDuplicate
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// AppendAttestation inserts an attestation row.
func (r *NotaryPostgres) AppendAttestation(ctx context.Context, att model.Attestation) error {
	const q = `
		INSERT INTO attestations (document_hash, object_id, source_object_id, token_id, signer_public_key, signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (document_hash, source_object_id, signer_public_key) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, q,
		att.DocumentHash,
		att.ObjectID,
		att.SourceObjectID,
		att.TokenID,
		att.SignerPublicKey,
		att.Signature,
		att.CreatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrDuplicate
	}
	return nil
}

// ListAttestations returns the attestations of hash ordered by insertion.
func (r *NotaryPostgres) ListAttestations(ctx context.Context, hash string) ([]model.Attestation, error) {
	const q = `
		SELECT document_hash, object_id, source_object_id, token_id, signer_public_key, signature, created_at
		FROM attestations
		WHERE document_hash = $1
		ORDER BY id ASC
	`
	rows, err := r.db.QueryContext(ctx, q, hash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Attestation, 0)
	for rows.Next() {
		var a model.Attestation
		if err := rows.Scan(
			&a.DocumentHash,
			&a.ObjectID,
			&a.SourceObjectID,
			&a.TokenID,
			&a.SignerPublicKey,
			&a.Signature,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// HasAttestation checks for an attestation by signer of sourceObjectID.
func (r *NotaryPostgres) HasAttestation(ctx context.Context, hash, sourceObjectID, signer string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM attestations
			WHERE document_hash = $1 AND source_object_id = $2 AND signer_public_key = $3
		)
	`
	var ok bool
	if err := r.db.QueryRowContext(ctx, q, hash, sourceObjectID, signer).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// SaveUpload upserts the journal entry of an immutable upload.
func (r *NotaryPostgres) SaveUpload(ctx context.Context, u model.Upload) error {
	versions, err := json.Marshal(u.ChunkVersions)
	if err != nil {
		return err
	}
	// Sealed entries drop their payload. The column is NOT NULL, so a nil
	// slice must be sent as an empty bytea.
	payload := u.Payload
	if payload == nil || u.Phase == model.UploadSealed {
		payload = []byte{}
	}
	const q = `
		INSERT INTO uploads (id, phase, payload, chunk_versions, object_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			phase = EXCLUDED.phase,
			payload = CASE WHEN EXCLUDED.phase = 'sealed' THEN ''::bytea ELSE EXCLUDED.payload END,
			chunk_versions = EXCLUDED.chunk_versions,
			object_id = EXCLUDED.object_id,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.ExecContext(ctx, q, u.ID, u.Phase, payload, string(versions), u.ObjectID, u.UpdatedAt)
	return err
}

// UnsealedUploads returns journal entries that have not reached the sealed phase.
func (r *NotaryPostgres) UnsealedUploads(ctx context.Context) ([]model.Upload, error) {
	const q = `
		SELECT id, phase, payload, chunk_versions, object_id, updated_at
		FROM uploads
		WHERE phase <> $1
		ORDER BY updated_at ASC
	`
	rows, err := r.db.QueryContext(ctx, q, model.UploadSealed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Upload, 0)
	for rows.Next() {
		var (
			u        model.Upload
			versions string
		)
		if err := rows.Scan(&u.ID, &u.Phase, &u.Payload, &versions, &u.ObjectID, &u.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(versions), &u.ChunkVersions); err != nil {
			return nil, fmt.Errorf("decode chunk versions of %s: %w", u.ID, err)
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
