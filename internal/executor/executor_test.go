package executor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/strategy-trader/internal/broker"
	"github.com/camuig/strategy-trader/internal/broker/brokertest"
	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/logger"
	"github.com/camuig/strategy-trader/internal/strategy"
)

var now = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func newExecutor(port broker.Port) *Executor {
	return New(port, logger.Nop()).WithClock(func() time.Time { return now })
}

func live() config.BotConfig {
	cfg := config.DefaultBotConfig()
	cfg.DryRun = false
	return cfg
}

func decision(action strategy.Action, qty float64) strategy.Signal {
	return strategy.Signal{
		Action:     action,
		Confidence: 0.8,
		Reason:     "test",
		Quantity:   qty,
		Metadata:   map[string]any{strategy.MetaStrategy: "rsi"},
	}
}

func position(qty float64) *broker.Position {
	return &broker.Position{Symbol: "AAPL", Qty: qty}
}

func TestStockValidation(t *testing.T) {
	testCases := []struct {
		desc     string
		action   strategy.Action
		qty      float64
		pos      *broker.Position
		expected error
	}{
		{"zero quantity", strategy.ActionBuy, 0, nil, ErrInvalidQuantity},
		{"negative quantity", strategy.ActionSell, -1, position(5), ErrInvalidQuantity},
		{"sell without position", strategy.ActionSell, 1, nil, ErrNoPosition},
		{"sell more than held", strategy.ActionSell, 10, position(5), ErrInsufficientShares},
		{"buy with existing position", strategy.ActionBuy, 1, position(3), ErrPositionExists},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			fake := brokertest.New()
			out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(tc.action, tc.qty), tc.pos, live())

			assert.False(t, out.Success)
			assert.ErrorIs(t, out.Err, tc.expected)
			assert.NotEmpty(t, out.Error)
			assert.Empty(t, out.OrderID)
			assert.Zero(t, fake.CallCount("CreateOrder"))
		})
	}
}

func TestStockOrderSubmitted(t *testing.T) {
	testCases := []struct {
		desc   string
		action strategy.Action
		qty    float64
		pos    *broker.Position
		side   broker.Side
	}{
		{"buy without position", strategy.ActionBuy, 10, nil, broker.SideBuy},
		{"buy with zero position", strategy.ActionBuy, 10, position(0), broker.SideBuy},
		{"partial sell", strategy.ActionSell, 2, position(5), broker.SideSell},
		{"full sell", strategy.ActionSell, 5, position(5), broker.SideSell},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			fake := brokertest.New()
			out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(tc.action, tc.qty), tc.pos, live())

			require.True(t, out.Success, out.Error)
			assert.Equal(t, "order-1", out.OrderID)
			assert.True(t, out.PricePending)
			assert.Equal(t, "rsi", out.Strategy)
			assert.Equal(t, now, out.At)

			require.Len(t, fake.Orders, 1)
			assert.Equal(t, broker.OrderRequest{
				Symbol:      "AAPL",
				Side:        tc.side,
				Type:        broker.OrderTypeMarket,
				TimeInForce: broker.TimeInForceDay,
				Qty:         tc.qty,
			}, fake.Orders[0])
		})
	}
}

func TestStockOrderBrokerFailure(t *testing.T) {
	fake := brokertest.New()
	fake.OrderErr = &broker.APIError{StatusCode: 403, Message: "insufficient buying power"}

	out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(strategy.ActionBuy, 1), nil, live())

	assert.False(t, out.Success)
	var apiErr *broker.APIError
	require.True(t, errors.As(out.Err, &apiErr))
	assert.Equal(t, 403, apiErr.StatusCode)
	assert.Contains(t, out.Error, "insufficient buying power")
}

func TestDryRunNeverSubmits(t *testing.T) {
	testCases := []struct {
		desc   string
		action strategy.Action
		qty    float64
		pos    *broker.Position
	}{
		{"valid buy", strategy.ActionBuy, 1, nil},
		{"invalid quantity", strategy.ActionBuy, 0, nil},
		{"oversell", strategy.ActionSell, 10, position(5)},
		{"buy with position", strategy.ActionBuy, 1, position(5)},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			fake := brokertest.New()
			cfg := config.DefaultBotConfig()
			require.True(t, cfg.DryRun)

			out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(tc.action, tc.qty), tc.pos, cfg)

			assert.True(t, out.Success)
			assert.True(t, out.DryRun)
			assert.Zero(t, out.Price)
			assert.Zero(t, fake.CallCount("CreateOrder"))
			assert.Zero(t, fake.CallCount("CreateDerivativeOrder"))
		})
	}
}

func TestHoldIsRejected(t *testing.T) {
	fake := brokertest.New()
	out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(strategy.ActionHold, 1), nil, live())

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrUnsupportedAction)
}

func TestFailedUsesClock(t *testing.T) {
	out := newExecutor(brokertest.New()).Failed("AAPL", strategy.ActionSell, 2, "manual sell", errors.New("timeout"))

	assert.False(t, out.Success)
	assert.Equal(t, now, out.At)
	assert.Equal(t, ManualStrategy, out.Strategy)
	assert.Equal(t, "timeout", out.Error)
	assert.Equal(t, 2.0, out.Quantity)
}

func option(symbol string, strike, oi, closePrice float64, expires time.Time) broker.Contract {
	return broker.Contract{
		Symbol:       symbol,
		Underlying:   "AAPL",
		Type:         broker.ContractCall,
		Strike:       strike,
		Expiration:   expires,
		OpenInterest: oi,
		ClosePrice:   closePrice,
		Tradable:     true,
		Status:       broker.ContractStatusActive,
	}
}

func derivatives(dryRun bool) config.BotConfig {
	cfg := config.DefaultBotConfig()
	cfg.DryRun = dryRun
	cfg.Derivatives.Enabled = true
	return cfg
}

func TestDerivativeUnderlyingHeldShortCircuits(t *testing.T) {
	fake := brokertest.New()
	fake.Chains["AAPL"] = []broker.Contract{option("C1", 100, 50, 2, time.Time{})}

	out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(strategy.ActionBuy, 1), position(5), derivatives(false))

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrUnderlyingHeld)
	assert.Contains(t, out.Error, "underlying already held")
	assert.Zero(t, fake.CallCount("GetDerivativeChain"))
	assert.Zero(t, fake.CallCount("CreateDerivativeOrder"))
}

func TestDerivativeRecheckCatchesNewPosition(t *testing.T) {
	fake := brokertest.New()
	fake.Chains["AAPL"] = []broker.Contract{option("C1", 100, 50, 2, time.Time{})}
	fake.SetPosition("AAPL", 3)

	// Caller believes nothing is held.
	out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(strategy.ActionBuy, 1), nil, derivatives(false))

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrUnderlyingHeld)
	assert.Equal(t, 1, fake.CallCount("GetDerivativeChain"))
	assert.Zero(t, fake.CallCount("CreateDerivativeOrder"))
}

func TestDerivativeRecheckErrorIsBestEffort(t *testing.T) {
	fake := brokertest.New()
	fake.Chains["AAPL"] = []broker.Contract{option("C1", 100, 50, 2, time.Time{})}
	fake.PositionErr = errors.New("timeout")

	out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(strategy.ActionBuy, 1), nil, derivatives(false))

	require.True(t, out.Success, out.Error)
	assert.Equal(t, "option-1", out.OrderID)
}

func TestDerivativeChainProblems(t *testing.T) {
	testCases := []struct {
		desc     string
		chain    []broker.Contract
		chainErr error
		expected error
	}{
		{"chain error", nil, errors.New("503"), ErrChainUnavailable},
		{"empty chain", []broker.Contract{}, nil, ErrChainUnavailable},
		{"nothing liquid", []broker.Contract{option("C1", 100, 2, 1, time.Time{})}, nil, ErrNoSuitableContract},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			fake := brokertest.New()
			fake.Chains["AAPL"] = tc.chain
			fake.ChainErr = tc.chainErr

			out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(strategy.ActionBuy, 1), nil, derivatives(false))

			assert.False(t, out.Success)
			assert.ErrorIs(t, out.Err, tc.expected)
			assert.Zero(t, fake.CallCount("CreateDerivativeOrder"))
		})
	}
}

func TestDerivativeLiveOrder(t *testing.T) {
	fake := brokertest.New()
	fake.Chains["AAPL"] = []broker.Contract{
		option("C110", 110, 400, 1.2, time.Time{}),
		option("C100", 100, 900, 3.5, time.Time{}),
		option("C95", 95, 900, 6.1, time.Time{}),
	}

	out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(strategy.ActionBuy, 10), nil, derivatives(false))

	require.True(t, out.Success, out.Error)
	assert.Equal(t, "C95", out.Contract, "ties on open interest go to the lower call strike")
	assert.Equal(t, "AAPL", out.Underlying)
	assert.Equal(t, 6.1, out.Price)
	assert.Equal(t, 1.0, out.Quantity)
	require.Len(t, fake.Derivatives, 1)
	assert.Equal(t, broker.OrderRequest{Symbol: "C95", Side: broker.SideBuy, Qty: 1}, fake.Derivatives[0])
}

func TestDerivativeDryRun(t *testing.T) {
	fake := brokertest.New()
	fake.Chains["AAPL"] = []broker.Contract{option("C100", 100, 900, 3.5, time.Time{})}

	out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(strategy.ActionBuy, 1), nil, derivatives(true))

	require.True(t, out.Success, out.Error)
	assert.Equal(t, 3.5, out.Price)
	assert.Equal(t, "C100", out.Contract)
	assert.Zero(t, fake.CallCount("CreateDerivativeOrder"))
}

func TestDerivativeFilters(t *testing.T) {
	fake := brokertest.New()
	fake.Chains["AAPL"] = []broker.Contract{
		option("FAR", 100, 1000, 4, now.AddDate(0, 2, 0)),
		option("HIGH", 150, 1000, 1, now.AddDate(0, 0, 7)),
		option("OK", 105, 500, 2, now.AddDate(0, 0, 10)),
	}
	cfg := derivatives(false)
	cfg.Derivatives.MaxStrike = 120
	cfg.Derivatives.MaxExpiryDays = 30

	out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(strategy.ActionBuy, 1), nil, cfg)

	require.True(t, out.Success, out.Error)
	assert.Equal(t, "OK", out.Contract)
}

func TestSellIgnoresDerivativePath(t *testing.T) {
	fake := brokertest.New()

	out := newExecutor(fake).Execute(t.Context(), "AAPL", decision(strategy.ActionSell, 5), position(5), derivatives(false))

	require.True(t, out.Success, out.Error)
	assert.Zero(t, fake.CallCount("GetDerivativeChain"))
	require.Len(t, fake.Orders, 1)
	assert.Equal(t, broker.SideSell, fake.Orders[0].Side)
}
