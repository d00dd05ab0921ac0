// Package brokertest provides an in-memory broker.Port for tests.
package brokertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/camuig/strategy-trader/internal/broker"
)

var ErrNotConfigured = errors.New("fake broker: not configured")

// Fake is a scriptable broker.Port and broker.HistoryProvider. Zero value is
// usable: no positions, no quotes, market closed.
type Fake struct {
	mu sync.Mutex

	Account    broker.Account
	AccountErr error

	Positions    map[string]broker.Position
	PositionsErr error
	PositionErr  error

	Quotes   map[string]broker.Quote
	QuoteErr error

	Bars    map[string][]broker.Bar
	BarsErr error

	Chains   map[string][]broker.Contract
	ChainErr error

	OrderErr error
	Open     bool
	OpenErr  error

	Orders      []broker.OrderRequest
	Derivatives []broker.OrderRequest
	Calls       map[string]int
}

var (
	_ broker.Port            = (*Fake)(nil)
	_ broker.HistoryProvider = (*Fake)(nil)
)

func New() *Fake {
	return &Fake{
		Positions: map[string]broker.Position{},
		Quotes:    map[string]broker.Quote{},
		Bars:      map[string][]broker.Bar{},
		Chains:    map[string][]broker.Contract{},
	}
}

func (f *Fake) record(name string) {
	if f.Calls == nil {
		f.Calls = map[string]int{}
	}
	f.Calls[name]++
}

// CallCount returns how many times the named method ran.
func (f *Fake) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[name]
}

func (f *Fake) SetPosition(symbol string, qty float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Positions == nil {
		f.Positions = map[string]broker.Position{}
	}
	f.Positions[symbol] = broker.Position{Symbol: symbol, Qty: qty}
}

func (f *Fake) GetAccount(ctx context.Context) (broker.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetAccount")
	return f.Account, f.AccountErr
}

func (f *Fake) GetPositions(ctx context.Context) ([]broker.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetPositions")
	if f.PositionsErr != nil {
		return nil, f.PositionsErr
	}
	out := make([]broker.Position, 0, len(f.Positions))
	for _, p := range f.Positions {
		out = append(out, p)
	}
	return out, nil
}

func (f *Fake) GetPosition(ctx context.Context, symbol string) (*broker.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetPosition")
	if f.PositionErr != nil {
		return nil, f.PositionErr
	}
	p, ok := f.Positions[symbol]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *Fake) GetQuote(ctx context.Context, symbol string) (broker.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetQuote")
	if f.QuoteErr != nil {
		return broker.Quote{}, f.QuoteErr
	}
	q, ok := f.Quotes[symbol]
	if !ok {
		return broker.Quote{}, fmt.Errorf("quote %s: %w", symbol, ErrNotConfigured)
	}
	return q, nil
}

func (f *Fake) GetBars(ctx context.Context, symbol string, limit int) ([]broker.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetBars")
	if f.BarsErr != nil {
		return nil, f.BarsErr
	}
	bars := f.Bars[symbol]
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (f *Fake) CreateOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateOrder")
	if f.OrderErr != nil {
		return broker.Order{}, f.OrderErr
	}
	f.Orders = append(f.Orders, req)
	return broker.Order{
		ID:     fmt.Sprintf("order-%d", len(f.Orders)),
		Symbol: req.Symbol,
		Side:   req.Side,
		Qty:    req.Qty,
		Status: "accepted",
	}, nil
}

func (f *Fake) GetDerivativeChain(ctx context.Context, symbol string) ([]broker.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetDerivativeChain")
	if f.ChainErr != nil {
		return nil, f.ChainErr
	}
	return f.Chains[symbol], nil
}

func (f *Fake) CreateDerivativeOrder(ctx context.Context, contractSymbol string, side broker.Side, qty float64) (broker.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateDerivativeOrder")
	if f.OrderErr != nil {
		return broker.Order{}, f.OrderErr
	}
	f.Derivatives = append(f.Derivatives, broker.OrderRequest{Symbol: contractSymbol, Side: side, Qty: qty})
	return broker.Order{
		ID:     fmt.Sprintf("option-%d", len(f.Derivatives)),
		Symbol: contractSymbol,
		Side:   side,
		Qty:    qty,
		Status: "accepted",
	}, nil
}

func (f *Fake) IsMarketOpen(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("IsMarketOpen")
	return f.Open, f.OpenErr
}
