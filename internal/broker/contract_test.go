package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contract(symbol, typ string, strike, oi float64) Contract {
	return Contract{
		Symbol:       symbol,
		Underlying:   "AAPL",
		Type:         typ,
		Strike:       strike,
		OpenInterest: oi,
		Tradable:     true,
		Status:       ContractStatusActive,
	}
}

func TestFindBestContract(t *testing.T) {
	inactive := contract("INACTIVE", ContractCall, 100, 9000)
	inactive.Status = "inactive"
	untradable := contract("UNTRADABLE", ContractCall, 100, 9000)
	untradable.Tradable = false

	chain := []Contract{
		inactive,
		untradable,
		contract("C110", ContractCall, 110, 500),
		contract("C105", ContractCall, 105, 500),
		contract("C100", ContractCall, 100, 50),
		contract("C120", ContractCall, 120, 800),
		contract("P95", ContractPut, 95, 300),
		contract("P90", ContractPut, 90, 300),
		contract("THIN", ContractCall, 101, 2),
	}

	testCases := []struct {
		desc     string
		filter   ContractFilter
		expected string
		found    bool
	}{
		{"highest open interest", ContractFilter{Type: ContractCall, MinOpenInterest: 10}, "C120", true},
		{"max strike drops the leader", ContractFilter{Type: ContractCall, MinOpenInterest: 10, MaxStrike: 115}, "C105", true},
		{"puts prefer higher strike on ties", ContractFilter{Type: ContractPut, MinOpenInterest: 10}, "P95", true},
		{"open interest floor", ContractFilter{Type: ContractCall, MinOpenInterest: 1000}, "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, ok := FindBestContract(chain, tc.filter)
			require.Equal(t, tc.found, ok)
			assert.Equal(t, tc.expected, got.Symbol)
		})
	}
}

func TestFindBestContractExpiry(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	near := contract("NEAR", ContractCall, 100, 20)
	near.Expiration = now.AddDate(0, 0, 7)
	far := contract("FAR", ContractCall, 100, 200)
	far.Expiration = now.AddDate(0, 2, 0)

	got, ok := FindBestContract([]Contract{near, far}, ContractFilter{Type: ContractCall, ExpiresBefore: now.AddDate(0, 0, 30)})
	require.True(t, ok)
	assert.Equal(t, "NEAR", got.Symbol)
}

func TestFindBestContractEmpty(t *testing.T) {
	_, ok := FindBestContract(nil, ContractFilter{Type: ContractCall})
	assert.False(t, ok)
}

func TestQuoteMid(t *testing.T) {
	assert.Equal(t, 10.5, Quote{BidPrice: 10, AskPrice: 11}.Mid())
	assert.Equal(t, 11.0, Quote{AskPrice: 11}.Mid())
	assert.Equal(t, 9.0, Quote{LastPrice: 9}.Mid())
}
