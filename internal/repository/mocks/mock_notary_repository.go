package mocks

import (
	"context"

	"notary/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockNotaryRepository struct {
	mock.Mock
}

func (m *MockNotaryRepository) FindDocument(ctx context.Context, hash string) (*model.DocumentRecord, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentRecord), args.Error(1)
}

func (m *MockNotaryRepository) AcquirePending(ctx context.Context, hash string) (bool, error) {
	args := m.Called(ctx, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockNotaryRepository) ReleasePending(ctx context.Context, hash string) error {
	args := m.Called(ctx, hash)
	return args.Error(0)
}

func (m *MockNotaryRepository) IsPaymentUsed(ctx context.Context, ref string) (bool, error) {
	args := m.Called(ctx, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockNotaryRepository) CommitDocument(ctx context.Context, doc *model.DocumentRecord, payment model.UsedPayment) error {
	args := m.Called(ctx, doc, payment)
	return args.Error(0)
}

func (m *MockNotaryRepository) AppendAttestation(ctx context.Context, att model.Attestation) error {
	args := m.Called(ctx, att)
	return args.Error(0)
}

func (m *MockNotaryRepository) ListAttestations(ctx context.Context, hash string) ([]model.Attestation, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Attestation), args.Error(1)
}

func (m *MockNotaryRepository) HasAttestation(ctx context.Context, hash, sourceObjectID, signer string) (bool, error) {
	args := m.Called(ctx, hash, sourceObjectID, signer)
	return args.Bool(0), args.Error(1)
}
