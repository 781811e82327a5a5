package testhelpers

import (
	"context"

	"potsync/domain/entities"
	"potsync/events"

	"github.com/stretchr/testify/mock"
)

// MockPrimaryAccountClient is a mock implementation of PrimaryAccountClient
type MockPrimaryAccountClient struct {
	mock.Mock
}

func (m *MockPrimaryAccountClient) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPrimaryAccountClient) PotSelector(ctx context.Context, potID string) (entities.AccountSelector, error) {
	args := m.Called(ctx, potID)
	return args.Get(0).(entities.AccountSelector), args.Error(1)
}

func (m *MockPrimaryAccountClient) GetBalance(ctx context.Context, selector entities.AccountSelector) (int64, error) {
	args := m.Called(ctx, selector)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPrimaryAccountClient) GetPotBalance(ctx context.Context, potID string) (int64, error) {
	args := m.Called(ctx, potID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPrimaryAccountClient) Deposit(ctx context.Context, potID string, amount int64, dedupeToken string) error {
	args := m.Called(ctx, potID, amount, dedupeToken)
	return args.Error(0)
}

func (m *MockPrimaryAccountClient) Withdraw(ctx context.Context, potID string, amount int64, dedupeToken string) error {
	args := m.Called(ctx, potID, amount, dedupeToken)
	return args.Error(0)
}

// MockCreditFacilityClient is a mock implementation of CreditFacilityClient
type MockCreditFacilityClient struct {
	mock.Mock
}

func (m *MockCreditFacilityClient) RefreshToken(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCreditFacilityClient) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCreditFacilityClient) Cards(ctx context.Context) ([]entities.Card, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Card), args.Error(1)
}

func (m *MockCreditFacilityClient) CardBalance(ctx context.Context, cardID string) (int64, error) {
	args := m.Called(ctx, cardID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCreditFacilityClient) PendingTransactions(ctx context.Context, cardID string) ([]entities.PendingTransaction, error) {
	args := m.Called(ctx, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.PendingTransaction), args.Error(1)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, account, title, message string) {
	m.Called(ctx, account, title, message)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
