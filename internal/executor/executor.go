// Package executor turns a non-hold decision into a brokerage order, or a
// simulated one in dry-run mode. It never returns errors to the caller:
// every failure becomes an unsuccessful Outcome.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camuig/strategy-trader/internal/broker"
	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/logger"
	"github.com/camuig/strategy-trader/internal/strategy"
)

var (
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrNoPosition         = errors.New("no position to sell")
	ErrPositionExists     = errors.New("position already exists")
	ErrUnderlyingHeld     = errors.New("skip, underlying already held")
	ErrChainUnavailable   = errors.New("derivative chain unavailable")
	ErrNoSuitableContract = errors.New("no suitable contract")
	ErrUnsupportedAction  = errors.New("unsupported action")
	errPanic              = errors.New("execution panicked")
)

type Executor struct {
	port   broker.Port
	logger *logger.Logger
	now    func() time.Time
}

func New(port broker.Port, log *logger.Logger) *Executor {
	return &Executor{
		port:   port,
		logger: log.Component("executor"),
		now:    time.Now,
	}
}

// WithClock replaces the time source used for outcome stamps and expiry filtering.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Execute routes the decision for symbol. pos is the position known to the
// caller, nil when nothing is held. cfg is the policy snapshot for this call.
func (e *Executor) Execute(ctx context.Context, symbol string, decision strategy.Signal, pos *broker.Position, cfg config.BotConfig) (out Outcome) {
	out = Outcome{
		Symbol:   symbol,
		Action:   decision.Action,
		Quantity: decision.Quantity,
		Reason:   decision.Reason,
		Strategy: decision.Strategy(),
		DryRun:   cfg.DryRun,
		At:       e.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in executor", "symbol", symbol, "panic", fmt.Sprint(r))
			out = out.fail(fmt.Errorf("%w: %v", errPanic, r))
		}
	}()

	if decision.Action != strategy.ActionBuy && decision.Action != strategy.ActionSell {
		return out.fail(fmt.Errorf("%w: %q", ErrUnsupportedAction, decision.Action))
	}

	if cfg.Derivatives.Enabled && decision.Action == strategy.ActionBuy {
		out = e.executeDerivative(ctx, out, pos, cfg)
	} else {
		out = e.executeStock(ctx, out, pos, cfg)
	}

	if out.Success {
		e.logger.Info("trade executed",
			"symbol", symbol, "action", out.Action, "qty", out.Quantity,
			"order_id", out.OrderID, "contract", out.Contract, "dry_run", out.DryRun, "strategy", out.Strategy)
	} else {
		e.logger.Warn("trade rejected",
			"symbol", symbol, "action", out.Action, "qty", out.Quantity, "error", out.Error)
	}
	return out
}

func (e *Executor) executeStock(ctx context.Context, out Outcome, pos *broker.Position, cfg config.BotConfig) Outcome {
	if cfg.DryRun {
		e.logger.Info("dry run: order not submitted",
			"symbol", out.Symbol, "action", out.Action, "qty", out.Quantity, "reason", out.Reason)
		out.Success = true
		out.OrderID = dryRunOrderID
		out.Price = 0
		return out
	}

	if err := validate(out.Action, out.Quantity, pos); err != nil {
		return out.fail(err)
	}

	side := broker.SideBuy
	if out.Action == strategy.ActionSell {
		side = broker.SideSell
	}
	order, err := e.port.CreateOrder(ctx, broker.OrderRequest{
		Symbol:      out.Symbol,
		Side:        side,
		Type:        broker.OrderTypeMarket,
		TimeInForce: broker.TimeInForceDay,
		Qty:         out.Quantity,
	})
	if err != nil {
		return out.fail(fmt.Errorf("submit %s order: %w", side, err))
	}

	out.Success = true
	out.OrderID = order.ID
	out.PricePending = true
	if order.FilledAvgPrice > 0 {
		out.Price = order.FilledAvgPrice
		out.PricePending = false
	}
	return out
}

// validate applies the live-order preconditions. No incremental positions:
// a buy with anything held is rejected.
func validate(action strategy.Action, qty float64, pos *broker.Position) error {
	if qty <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidQuantity, qty)
	}
	switch action {
	case strategy.ActionSell:
		if pos == nil || pos.Qty == 0 {
			return ErrNoPosition
		}
		if pos.Qty < qty {
			return fmt.Errorf("%w: hold %v, want to sell %v", ErrInsufficientShares, pos.Qty, qty)
		}
	case strategy.ActionBuy:
		if pos != nil && pos.Qty != 0 {
			return fmt.Errorf("%w: hold %v", ErrPositionExists, pos.Qty)
		}
	}
	return nil
}

func (e *Executor) executeDerivative(ctx context.Context, out Outcome, pos *broker.Position, cfg config.BotConfig) Outcome {
	out.Underlying = out.Symbol
	if pos != nil && pos.Qty != 0 {
		return out.fail(fmt.Errorf("%w: %s qty %v", ErrUnderlyingHeld, out.Symbol, pos.Qty))
	}

	chain, err := e.port.GetDerivativeChain(ctx, out.Symbol)
	if err != nil {
		return out.fail(fmt.Errorf("%w: %v", ErrChainUnavailable, err))
	}
	if len(chain) == 0 {
		return out.fail(fmt.Errorf("%w: empty chain for %s", ErrChainUnavailable, out.Symbol))
	}

	contract, ok := broker.FindBestContract(chain, e.contractFilter(cfg.Derivatives))
	if !ok {
		return out.fail(fmt.Errorf("%w: %d contracts, none pass filters", ErrNoSuitableContract, len(chain)))
	}

	// The caller's view can be stale by now, so look again right before ordering.
	latest, err := e.port.GetPosition(ctx, out.Symbol)
	if err != nil {
		e.logger.Warn("underlying position re-check failed, assuming none", "symbol", out.Symbol, "error", err)
	} else if latest != nil && latest.Qty != 0 {
		return out.fail(fmt.Errorf("%w: %s qty %v", ErrUnderlyingHeld, out.Symbol, latest.Qty))
	}

	out.Contract = contract.Symbol
	out.Quantity = 1
	out.Price = contract.ClosePrice

	if cfg.DryRun {
		e.logger.Info("dry run: derivative order not submitted",
			"symbol", out.Symbol, "contract", contract.Symbol, "strike", contract.Strike,
			"open_interest", contract.OpenInterest, "price", contract.ClosePrice)
		out.Success = true
		out.OrderID = dryRunOrderID
		return out
	}

	order, err := e.port.CreateDerivativeOrder(ctx, contract.Symbol, broker.SideBuy, 1)
	if err != nil {
		return out.fail(fmt.Errorf("submit derivative order %s: %w", contract.Symbol, err))
	}
	out.Success = true
	out.OrderID = order.ID
	return out
}

func (e *Executor) contractFilter(d config.DerivativesConfig) broker.ContractFilter {
	f := broker.ContractFilter{
		Type:            d.OptionType,
		MinOpenInterest: d.MinOpenInterest,
		MaxStrike:       d.MaxStrike,
	}
	if d.MaxExpiryDays > 0 {
		f.ExpiresBefore = e.now().AddDate(0, 0, d.MaxExpiryDays)
	}
	return f
}
