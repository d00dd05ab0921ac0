package executor

import (
	"time"

	"github.com/camuig/strategy-trader/internal/strategy"
)

const dryRunOrderID = "dry-run"

// ManualStrategy tags outcomes of trades that no rule produced.
const ManualStrategy = "manual"

// Outcome is the result of one trade attempt. A successful stock market order
// has no fill price yet; PricePending marks that.
type Outcome struct {
	Success      bool            `json:"success"`
	OrderID      string          `json:"orderId,omitempty"`
	Symbol       string          `json:"symbol"`
	Action       strategy.Action `json:"action"`
	Quantity     float64         `json:"quantity"`
	Price        float64         `json:"price"`
	PricePending bool            `json:"pricePending,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Strategy     string          `json:"strategy,omitempty"`
	Underlying   string          `json:"underlying,omitempty"`
	Contract     string          `json:"contract,omitempty"`
	DryRun       bool            `json:"dryRun"`
	Error        string          `json:"error,omitempty"`
	At           time.Time       `json:"at"`

	// Err keeps the typed cause for errors.Is checks; it is not serialized.
	Err error `json:"-"`
}

func (o Outcome) fail(err error) Outcome {
	o.Success = false
	o.OrderID = ""
	o.Err = err
	o.Error = err.Error()
	return o
}

// Failed builds an unsuccessful manual outcome for errors raised before the
// pipeline runs, such as a failed position lookup.
func (e *Executor) Failed(symbol string, action strategy.Action, qty float64, reason string, err error) Outcome {
	return Outcome{
		Symbol:   symbol,
		Action:   action,
		Quantity: qty,
		Reason:   reason,
		Strategy: ManualStrategy,
		At:       e.now(),
	}.fail(err)
}
