package services

import (
	"context"
	"io"

	"github.com/blertbank/backend/internal/events"
	"github.com/blertbank/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.TransactionPosted) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockAccountDirectory struct {
	mock.Mock
}

func (m *MockAccountDirectory) ByUserID(ctx context.Context, userID int64) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountDirectory) BySystemName(ctx context.Context, name string) (*models.Account, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountDirectory) ByAccountID(ctx context.Context, accountID int64) (*models.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func int64Ptr(v int64) *int64 {
	return &v
}
