package handlers

import (
	"context"
	"io"

	"github.com/blertbank/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) PostTransaction(ctx context.Context, serviceName string, req models.PostRequest) (*models.PostResult, error) {
	args := m.Called(ctx, serviceName, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PostResult), args.Error(1)
}

type MockAccounts struct {
	mock.Mock
}

func (m *MockAccounts) ByUserID(ctx context.Context, userID int64) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccounts) BySystemName(ctx context.Context, name string) (*models.Account, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccounts) ByAccountID(ctx context.Context, accountID int64) (*models.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccounts) GetOrCreateUserAccount(ctx context.Context, userID int64) (*models.Account, bool, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Account), args.Bool(1), args.Error(2)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
