package services

import (
	"context"
	"errors"
	"testing"

	"potsync/domain/entities"
	"potsync/domain/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBalanceAggregator_AdjustedBalance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(m *testhelpers.MockCreditFacilityClient)
		want    int64
		wantErr bool
	}{
		{
			name: "amex folds charges and refunds",
			setup: func(m *testhelpers.MockCreditFacilityClient) {
				m.On("Cards", mock.Anything).Return([]entities.Card{{ID: "c1", Provider: entities.ProviderAmex}}, nil)
				m.On("CardBalance", mock.Anything, "c1").Return(int64(10000), nil)
				m.On("PendingTransactions", mock.Anything, "c1").Return([]entities.PendingTransaction{
					{ID: "p1", Amount: "12.50"},
					{ID: "p2", Amount: "-2.25"},
				}, nil)
			},
			want: 11025,
		},
		{
			name: "barclaycard ignores pending",
			setup: func(m *testhelpers.MockCreditFacilityClient) {
				m.On("Cards", mock.Anything).Return([]entities.Card{{ID: "c1", Provider: entities.ProviderBarclaycard}}, nil)
				m.On("CardBalance", mock.Anything, "c1").Return(int64(5000), nil)
			},
			want: 5000,
		},
		{
			name: "unknown provider uses settled only",
			setup: func(m *testhelpers.MockCreditFacilityClient) {
				m.On("Cards", mock.Anything).Return([]entities.Card{{ID: "c1", Provider: entities.NormalizeProvider("some bank")}}, nil)
				m.On("CardBalance", mock.Anything, "c1").Return(int64(700), nil)
			},
			want: 700,
		},
		{
			name: "malformed pending amounts are skipped",
			setup: func(m *testhelpers.MockCreditFacilityClient) {
				m.On("Cards", mock.Anything).Return([]entities.Card{{ID: "c1", Provider: entities.ProviderAmex}}, nil)
				m.On("CardBalance", mock.Anything, "c1").Return(int64(100), nil)
				m.On("PendingTransactions", mock.Anything, "c1").Return([]entities.PendingTransaction{
					{ID: "p1", Amount: "not-a-number"},
					{ID: "p2", Amount: ""},
					{ID: "p3", Amount: "1.00"},
				}, nil)
			},
			want: 200,
		},
		{
			name: "forbidden pending falls back to settled",
			setup: func(m *testhelpers.MockCreditFacilityClient) {
				m.On("Cards", mock.Anything).Return([]entities.Card{{ID: "c1", Provider: entities.ProviderAmex}}, nil)
				m.On("CardBalance", mock.Anything, "c1").Return(int64(4200), nil)
				m.On("PendingTransactions", mock.Anything, "c1").Return(nil, entities.ErrPendingUnavailable)
			},
			want: 4200,
		},
		{
			name: "sums across cards",
			setup: func(m *testhelpers.MockCreditFacilityClient) {
				m.On("Cards", mock.Anything).Return([]entities.Card{
					{ID: "c1", Provider: entities.ProviderAmex},
					{ID: "c2", Provider: entities.ProviderBarclaycard},
				}, nil)
				m.On("CardBalance", mock.Anything, "c1").Return(int64(1000), nil)
				m.On("CardBalance", mock.Anything, "c2").Return(int64(2000), nil)
				m.On("PendingTransactions", mock.Anything, "c1").Return([]entities.PendingTransaction{{ID: "p1", Amount: "3"}}, nil)
			},
			want: 3300,
		},
		{
			name: "card balance error propagates",
			setup: func(m *testhelpers.MockCreditFacilityClient) {
				m.On("Cards", mock.Anything).Return([]entities.Card{{ID: "c1", Provider: entities.ProviderAmex}}, nil)
				m.On("CardBalance", mock.Anything, "c1").Return(int64(0), entities.ErrTransientAPI)
			},
			wantErr: true,
		},
		{
			name: "pending error other than forbidden propagates",
			setup: func(m *testhelpers.MockCreditFacilityClient) {
				m.On("Cards", mock.Anything).Return([]entities.Card{{ID: "c1", Provider: entities.ProviderAmex}}, nil)
				m.On("CardBalance", mock.Anything, "c1").Return(int64(1), nil)
				m.On("PendingTransactions", mock.Anything, "c1").Return(nil, errors.New("boom"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			facility := new(testhelpers.MockCreditFacilityClient)
			tt.setup(facility)

			aggregator := NewBalanceAggregator(nil)
			got, err := aggregator.AdjustedBalance(context.Background(), facility)

			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			facility.AssertExpectations(t)
		})
	}
}

func TestBalanceAggregator_Deterministic(t *testing.T) {
	t.Parallel()

	pending := []entities.PendingTransaction{
		{ID: "a", Amount: "0.333"},
		{ID: "b", Amount: "0.333"},
		{ID: "c", Amount: "19.99"},
		{ID: "d", Amount: "-5.005"},
	}
	reversed := []entities.PendingTransaction{pending[3], pending[2], pending[1], pending[0]}

	run := func(txs []entities.PendingTransaction) int64 {
		facility := new(testhelpers.MockCreditFacilityClient)
		facility.On("Cards", mock.Anything).Return([]entities.Card{{ID: "c1", Provider: entities.ProviderAmex}}, nil)
		facility.On("CardBalance", mock.Anything, "c1").Return(int64(100), nil)
		facility.On("PendingTransactions", mock.Anything, "c1").Return(txs, nil)

		got, err := NewBalanceAggregator(nil).AdjustedBalance(context.Background(), facility)
		require.NoError(t, err)
		return got
	}

	first := run(pending)
	assert.Equal(t, first, run(pending))
	assert.Equal(t, first, run(reversed))
	// 0.333 + 0.333 + 19.99 - 5.005 = 15.651 major, rounded up to 1566 minor
	assert.Equal(t, int64(100+1566), first)
}

func TestBalanceAggregator_CustomRules(t *testing.T) {
	t.Parallel()

	facility := new(testhelpers.MockCreditFacilityClient)
	facility.On("Cards", mock.Anything).Return([]entities.Card{{ID: "c1", Provider: "NEWBANK"}}, nil)
	facility.On("CardBalance", mock.Anything, "c1").Return(int64(0), nil)
	facility.On("PendingTransactions", mock.Anything, "c1").Return([]entities.PendingTransaction{{ID: "p", Amount: "1.5"}}, nil)

	aggregator := NewBalanceAggregator(map[entities.Provider]PendingRule{"NEWBANK": PendingIncludeAll})
	got, err := aggregator.AdjustedBalance(context.Background(), facility)

	require.NoError(t, err)
	assert.Equal(t, int64(150), got)
}

func TestToMinorUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"1", 100},
		{"12.34", 1234},
		{"0.001", 1},
		{"-0.001", 0},
		{"-1.999", -199},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ToMinorUnits(decimal.RequireFromString(tt.in)), tt.in)
	}
}
