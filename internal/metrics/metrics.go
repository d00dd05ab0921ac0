// Package metrics tracks cumulative trade results for status reporting and
// exports them to Prometheus.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/strategy-trader/internal/executor"
)

// Snapshot is a point-in-time copy of the run metrics.
type Snapshot struct {
	TotalTrades      int        `json:"totalTrades"`
	SuccessfulTrades int        `json:"successfulTrades"`
	FailedTrades     int        `json:"failedTrades"`
	SuccessRate      float64    `json:"successRate"`
	Symbols          []string   `json:"symbolsTraded"`
	Strategies       []string   `json:"strategiesUsed"`
	LastTradeAt      *time.Time `json:"lastTradeAt,omitempty"`
}

type Tracker struct {
	mu         sync.Mutex
	total      int
	success    int
	failed     int
	symbols    map[string]struct{}
	strategies map[string]struct{}
	lastTrade  time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		symbols:    map[string]struct{}{},
		strategies: map[string]struct{}{},
	}
}

// Record accounts one trade outcome.
func (t *Tracker) Record(o executor.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	if !o.Success {
		t.failed++
		return
	}
	t.success++
	t.symbols[o.Symbol] = struct{}{}
	// Manual trades count toward totals but are not a strategy in use.
	if o.Strategy != "" && o.Strategy != executor.ManualStrategy {
		t.strategies[o.Strategy] = struct{}{}
	}
	if o.At.IsZero() {
		t.lastTrade = time.Now()
	} else {
		t.lastTrade = o.At
	}
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total, t.success, t.failed = 0, 0, 0
	t.symbols = map[string]struct{}{}
	t.strategies = map[string]struct{}{}
	t.lastTrade = time.Time{}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		TotalTrades:      t.total,
		SuccessfulTrades: t.success,
		FailedTrades:     t.failed,
		SuccessRate:      successRate(t.success, t.total),
		Symbols:          sortedKeys(t.symbols),
		Strategies:       sortedKeys(t.strategies),
	}
	if !t.lastTrade.IsZero() {
		last := t.lastTrade
		s.LastTradeAt = &last
	}
	return s
}

// successRate is success/total in percent, rounded to two decimals.
func successRate(success, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(success)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2).
		InexactFloat64()
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
