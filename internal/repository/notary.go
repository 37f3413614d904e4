package repository

import (
	"context"
	"errors"

	"notary/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert would overwrite an existing record.
	ErrDuplicate = errors.New("record already exists")
	// ErrPaymentUsed is returned when a payment reference has already funded a document.
	ErrPaymentUsed = errors.New("payment reference already used")
)

// NotaryRepository defines persistence for notarization state.
// No business logic here, strictly persistence operations.
type NotaryRepository interface {
	// FindDocument returns the record for a content hash or ErrNotFound.
	FindDocument(ctx context.Context, hash string) (*model.DocumentRecord, error)

	// AcquirePending marks hash as in progress. It reports false when another
	// attempt already holds it. The check and the insert are a single step.
	AcquirePending(ctx context.Context, hash string) (bool, error)

	// ReleasePending removes hash from the pending set. Releasing a hash that is
	// not pending is not an error.
	ReleasePending(ctx context.Context, hash string) error

	// IsPaymentUsed reports whether ref already funded a notarization.
	IsPaymentUsed(ctx context.Context, ref string) (bool, error)

	// CommitDocument stores doc and marks payment as used in one transaction.
	// It returns ErrPaymentUsed or ErrDuplicate without writing anything when
	// either key already exists.
	CommitDocument(ctx context.Context, doc *model.DocumentRecord, payment model.UsedPayment) error

	// AppendAttestation adds an attestation for a document. The same signer
	// attesting the same source object twice yields ErrDuplicate.
	AppendAttestation(ctx context.Context, att model.Attestation) error

	// ListAttestations returns the attestations of a document, oldest first.
	ListAttestations(ctx context.Context, hash string) ([]model.Attestation, error)

	// HasAttestation reports whether signer already attested sourceObjectID for hash.
	HasAttestation(ctx context.Context, hash, sourceObjectID, signer string) (bool, error)
}
