package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/executor"
	"github.com/camuig/strategy-trader/internal/market"
	"github.com/camuig/strategy-trader/internal/strategy"
)

// CycleReport summarizes one pass over the configured symbols.
type CycleReport struct {
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	Symbols    []string           `json:"symbols"`
	Outcomes   []executor.Outcome `json:"outcomes"`
	// Failed maps a symbol to the error that aborted its pass.
	Failed map[string]string `json:"failed,omitempty"`
	// Skipped maps a symbol to why no trade was attempted.
	Skipped map[string]string `json:"skipped,omitempty"`
}

func (s *Service) runCycle(ctx context.Context) (CycleReport, error) {
	if !s.cycleMu.TryLock() {
		s.logger.Warn("cycle skipped, previous cycle still running")
		return CycleReport{}, ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	symbols := s.Config().Symbols
	report := CycleReport{
		StartedAt: s.now(),
		Symbols:   symbols,
		Failed:    map[string]string{},
		Skipped:   map[string]string{},
	}
	s.logger.Info("starting trading cycle", "symbols", len(symbols))

	for _, symbol := range symbols {
		outcome, skip, err := s.processSymbol(ctx, symbol)
		switch {
		case err != nil:
			s.logger.Error("symbol pass failed", "symbol", symbol, "error", err)
			report.Failed[symbol] = err.Error()
			s.notifier.NotifyError("cycle "+symbol, err)
		case outcome != nil:
			report.Outcomes = append(report.Outcomes, *outcome)
		default:
			report.Skipped[symbol] = skip
		}
	}

	report.FinishedAt = s.now()
	s.mu.Lock()
	last := report
	s.lastCycle = &last
	s.mu.Unlock()

	s.logger.Info("trading cycle completed",
		"trades", len(report.Outcomes), "failed", len(report.Failed), "skipped", len(report.Skipped))
	return report, nil
}

// processSymbol runs one symbol through snapshot, rules, aggregation and
// execution. It returns an outcome when a trade was attempted, otherwise
// the reason nothing happened. The bot config is read fresh per symbol.
func (s *Service) processSymbol(ctx context.Context, symbol string) (outcome *executor.Outcome, skip string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	cfg := s.Config()
	snap, err := s.assembler.Build(ctx, symbol, market.Options{Derivatives: cfg.Derivatives.Enabled})
	if err != nil {
		return nil, "", err
	}

	signals := s.registry.Analyze(ctx, snap)
	decision, ok := strategy.Decide(signals, cfg.UseConsensus)
	if !ok {
		return nil, "no qualifying signals", nil
	}
	if decision.Action == strategy.ActionHold {
		s.logger.Info("hold", "symbol", symbol, "reason", decision.Reason, "strategy", decision.Strategy())
		return nil, "hold: " + decision.Reason, nil
	}

	if decision.Action == strategy.ActionBuy {
		full, err := s.positionsFull(ctx, cfg)
		if err != nil {
			return nil, "", err
		}
		if full {
			s.logger.Info("buy skipped, max positions reached", "symbol", symbol, "max_positions", cfg.MaxPositions)
			return nil, fmt.Sprintf("max positions %d reached", cfg.MaxPositions), nil
		}
	}

	out := s.executor.Execute(ctx, symbol, decision, snap.Position, cfg)
	s.record(out)
	return &out, "", nil
}

// positionsFull reports whether opening another position would exceed
// max_positions. Zero disables the limit.
func (s *Service) positionsFull(ctx context.Context, cfg config.BotConfig) (bool, error) {
	if cfg.MaxPositions <= 0 {
		return false, nil
	}
	positions, err := s.port.GetPositions(ctx)
	if err != nil {
		return false, fmt.Errorf("get positions: %w", err)
	}
	open := 0
	for _, p := range positions {
		if p.Qty != 0 {
			open++
		}
	}
	return open >= cfg.MaxPositions, nil
}
