package mocks

import (
	"context"

	"notary/internal/eventlog"

	"github.com/stretchr/testify/mock"
)

type MockLog struct {
	mock.Mock
}

func (m *MockLog) EnsureTopic(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockLog) TopicID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockLog) Publish(ctx context.Context, topicID string, payload []byte) (int64, error) {
	args := m.Called(ctx, topicID, payload)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLog) Subscribe(ctx context.Context, topicID string, from eventlog.StartPosition, h eventlog.Handler) error {
	args := m.Called(ctx, topicID, from, h)
	return args.Error(0)
}

func (m *MockLog) Ready(ctx context.Context, topicID string) error {
	args := m.Called(ctx, topicID)
	return args.Error(0)
}
