package ai

import (
	"context"
	"fmt"
	"math"

	"github.com/camuig/strategy-trader/internal/market"
	"github.com/camuig/strategy-trader/internal/strategy"
)

const RuleName = "ai_advisor"

// Rule wraps the advisor as a strategy rule. It ships disabled since every
// evaluation is a paid remote call.
func Rule(a *Advisor) strategy.Rule {
	return strategy.Rule{
		Name:        RuleName,
		Description: "Asks a chat model for a buy, sell or hold opinion",
		Evaluate: func(ctx context.Context, snap market.Snapshot, cfg strategy.Config) (strategy.Signal, error) {
			advice, _, err := a.Advise(ctx, snap)
			if err != nil {
				return strategy.Signal{}, err
			}
			return toSignal(advice, snap, cfg), nil
		},
		Config: strategy.Config{
			Enabled:         false,
			RiskPercent:     1,
			MaxPositionSize: 1,
			MinConfidence:   0.7,
			Parameters:      map[string]any{},
		},
	}
}

func toSignal(advice Advice, snap market.Snapshot, cfg strategy.Config) strategy.Signal {
	sig := strategy.Signal{
		Confidence: float64(advice.Confidence) / 100,
		Reason:     advice.Reasoning,
		Metadata:   map[string]any{"model_confidence": advice.Confidence},
	}
	switch {
	case advice.Action == "BUY" && !snap.HasPosition():
		sig.Action = strategy.ActionBuy
		sig.Quantity = math.Floor(cfg.MaxPositionSize)
	case advice.Action == "SELL" && snap.HasPosition():
		sig.Action = strategy.ActionSell
		sig.Quantity = snap.HeldQty()
	default:
		sig.Action = strategy.ActionHold
		if advice.Action != "HOLD" {
			sig.Reason = fmt.Sprintf("%s ignored for current position: %s", advice.Action, advice.Reasoning)
		}
	}
	return sig
}
