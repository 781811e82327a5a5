package testhelpers

import (
	"context"

	"potsync/domain/entities"

	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetBaseline(ctx context.Context, accountType string) (int64, error) {
	args := m.Called(ctx, accountType)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) SetBaseline(ctx context.Context, accountType string, baseline int64) error {
	args := m.Called(ctx, accountType, baseline)
	return args.Error(0)
}

func (m *MockAccountRepository) GetCooldown(ctx context.Context, accountType string) (*entities.Cooldown, error) {
	args := m.Called(ctx, accountType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Cooldown), args.Error(1)
}

func (m *MockAccountRepository) SetCooldown(ctx context.Context, accountType string, cooldown entities.Cooldown) error {
	args := m.Called(ctx, accountType, cooldown)
	return args.Error(0)
}

func (m *MockAccountRepository) ClearCooldown(ctx context.Context, accountType string) error {
	args := m.Called(ctx, accountType)
	return args.Error(0)
}

func (m *MockAccountRepository) GetPrimary(ctx context.Context) (*entities.PrimaryAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PrimaryAccount), args.Error(1)
}

func (m *MockAccountRepository) ListCredit(ctx context.Context) ([]*entities.CreditAccount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.CreditAccount), args.Error(1)
}

func (m *MockAccountRepository) GetCredit(ctx context.Context, accountType string) (*entities.CreditAccount, error) {
	args := m.Called(ctx, accountType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.CreditAccount), args.Error(1)
}

func (m *MockAccountRepository) UpsertPrimary(ctx context.Context, account *entities.PrimaryAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) UpsertCredit(ctx context.Context, account *entities.CreditAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) SaveCredentials(ctx context.Context, accountType string, credentials entities.Credentials) error {
	args := m.Called(ctx, accountType, credentials)
	return args.Error(0)
}

func (m *MockAccountRepository) DeleteCredit(ctx context.Context, accountType string) error {
	args := m.Called(ctx, accountType)
	return args.Error(0)
}

// MockSettingsRepository is a mock implementation of SettingsRepository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) GetAll(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockSettingsRepository) Set(ctx context.Context, key, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}
