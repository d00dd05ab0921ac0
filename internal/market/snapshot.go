// Package market assembles the per-symbol, per-cycle view that every
// strategy rule evaluates.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/camuig/strategy-trader/internal/broker"
	"github.com/camuig/strategy-trader/internal/logger"
)

const defaultHistoryBars = 60

// Snapshot is built once per symbol per cycle and must be treated as read-only.
type Snapshot struct {
	Symbol   string
	Price    float64
	Quote    broker.Quote
	Position *broker.Position
	// History holds daily closes, oldest first. Nil when unavailable.
	History []float64
	Chain   []broker.Contract
	// Volume approximates activity as bid size plus ask size.
	Volume float64
	At     time.Time
}

// HasPosition reports whether a non-zero position is held.
func (s Snapshot) HasPosition() bool {
	return s.Position != nil && s.Position.Qty != 0
}

// HeldQty returns the held quantity or zero.
func (s Snapshot) HeldQty() float64 {
	if s.Position == nil {
		return 0
	}
	return s.Position.Qty
}

type Options struct {
	Derivatives bool
}

type Assembler struct {
	port        broker.Port
	logger      *logger.Logger
	historyBars int
	now         func() time.Time
}

func NewAssembler(port broker.Port, log *logger.Logger) *Assembler {
	return &Assembler{
		port:        port,
		logger:      log.Component("market"),
		historyBars: defaultHistoryBars,
		now:         time.Now,
	}
}

// Build fetches quote, position, history and, when enabled, the derivative
// chain. Only a failed quote or position lookup fails the snapshot; history
// and chain problems degrade to empty data.
func (a *Assembler) Build(ctx context.Context, symbol string, opts Options) (Snapshot, error) {
	quote, err := a.port.GetQuote(ctx, symbol)
	if err != nil {
		return Snapshot{}, fmt.Errorf("quote %s: %w", symbol, err)
	}
	price := quote.Mid()
	if price <= 0 {
		return Snapshot{}, fmt.Errorf("quote %s: no usable price", symbol)
	}

	pos, err := a.port.GetPosition(ctx, symbol)
	if err != nil {
		return Snapshot{}, fmt.Errorf("position %s: %w", symbol, err)
	}

	snap := Snapshot{
		Symbol:   symbol,
		Price:    price,
		Quote:    quote,
		Position: pos,
		Volume:   quote.BidSize + quote.AskSize,
		At:       a.now(),
	}

	if hp, ok := a.port.(broker.HistoryProvider); ok {
		bars, err := hp.GetBars(ctx, symbol, a.historyBars)
		if err != nil {
			a.logger.Warn("history unavailable", "symbol", symbol, "error", err)
		} else {
			snap.History = closes(bars)
		}
	}

	if opts.Derivatives {
		snap.Chain = a.chain(ctx, symbol)
	}

	return snap, nil
}

func (a *Assembler) chain(ctx context.Context, symbol string) (chain []broker.Contract) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("derivative chain panicked, using empty chain", "symbol", symbol, "panic", fmt.Sprint(r))
			chain = []broker.Contract{}
		}
	}()

	chain, err := a.port.GetDerivativeChain(ctx, symbol)
	if err != nil {
		a.logger.Warn("derivative chain unavailable, using empty chain", "symbol", symbol, "error", err)
		return []broker.Contract{}
	}
	if chain == nil {
		return []broker.Contract{}
	}
	return chain
}

func closes(bars []broker.Bar) []float64 {
	if len(bars) == 0 {
		return nil
	}
	out := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 {
			out = append(out, b.Close)
		}
	}
	return out
}
