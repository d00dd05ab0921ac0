package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/camuig/strategy-trader/internal/broker"
	"github.com/camuig/strategy-trader/internal/market"
)

func OptionsMomentumRule() Rule {
	return Rule{
		Name:        RuleOptionsMomentum,
		Description: "Buys the most actively held near-the-money call",
		Evaluate:    evaluateOptionsMomentum,
		Config: Config{
			Enabled:         true,
			RiskPercent:     1,
			MaxPositionSize: 1,
			MinConfidence:   0.6,
			Parameters: map[string]any{
				"minOpenInterest": 10,
				"lowerStrike":     0.95,
				"upperStrike":     1.10,
				"saturation":      1000,
			},
		},
	}
}

func evaluateOptionsMomentum(ctx context.Context, snap market.Snapshot, cfg Config) (Signal, error) {
	if len(snap.Chain) == 0 {
		return hold("no derivative chain"), nil
	}
	minOI := cfg.Float("minOpenInterest", 10)
	lower := snap.Price * cfg.Float("lowerStrike", 0.95)
	upper := snap.Price * cfg.Float("upperStrike", 1.10)
	saturation := cfg.Float("saturation", 1000)
	if saturation <= 0 {
		return Signal{}, fmt.Errorf("saturation must be positive, got %v", saturation)
	}

	best, ok := mostOpenCall(snap.Chain, minOI, lower, upper)
	if !ok {
		return hold("no liquid call near the money"), nil
	}

	oiScore := math.Min(best.OpenInterest/saturation, 1)
	moneyness := math.Max(0, 1-math.Abs(best.Strike-snap.Price)/snap.Price)
	confidence := math.Min(0.5*oiScore+0.5*moneyness, 0.8)

	return Signal{
		Action:     ActionBuy,
		Confidence: confidence,
		Reason:     fmt.Sprintf("call %s strike %.2f has open interest %.0f", best.Symbol, best.Strike, best.OpenInterest),
		Quantity:   1,
		Metadata:   contractMeta(best),
	}, nil
}

func OptionsVolatilityRule() Rule {
	return Rule{
		Name:        RuleOptionsVolatility,
		Description: "Buys a near-the-money call when average open interest signals elevated activity",
		Evaluate:    evaluateOptionsVolatility,
		Config: Config{
			Enabled:         true,
			RiskPercent:     1,
			MaxPositionSize: 1,
			MinConfidence:   0.5,
			Parameters: map[string]any{
				"minOpenInterest":       5,
				"openInterestThreshold": 100,
				"lowerStrike":           0.98,
				"upperStrike":           1.05,
			},
		},
	}
}

func evaluateOptionsVolatility(ctx context.Context, snap market.Snapshot, cfg Config) (Signal, error) {
	if len(snap.Chain) == 0 {
		return hold("no derivative chain"), nil
	}
	minOI := cfg.Float("minOpenInterest", 5)
	threshold := cfg.Float("openInterestThreshold", 100)
	if threshold <= 0 {
		return Signal{}, fmt.Errorf("openInterestThreshold must be positive, got %v", threshold)
	}

	var sum float64
	var n int
	for _, c := range snap.Chain {
		if c.Live() && c.OpenInterest >= minOI {
			sum += c.OpenInterest
			n++
		}
	}
	if n == 0 {
		return hold("no active contracts"), nil
	}
	mean := sum / float64(n)
	if mean <= threshold {
		return Signal{
			Action:   ActionHold,
			Reason:   fmt.Sprintf("mean open interest %.0f within threshold %.0f", mean, threshold),
			Metadata: map[string]any{"meanOpenInterest": mean},
		}, nil
	}

	lower := snap.Price * cfg.Float("lowerStrike", 0.98)
	upper := snap.Price * cfg.Float("upperStrike", 1.05)
	best, ok := mostOpenCall(snap.Chain, minOI, lower, upper)
	if !ok {
		return hold("elevated open interest but no call near the money"), nil
	}

	meta := contractMeta(best)
	meta["meanOpenInterest"] = mean
	return Signal{
		Action:     ActionBuy,
		Confidence: math.Min(0.5+(mean/threshold-1)*0.25, 0.75),
		Reason:     fmt.Sprintf("mean open interest %.0f above %.0f, buying %s", mean, threshold, best.Symbol),
		Quantity:   1,
		Metadata:   meta,
	}, nil
}

// mostOpenCall picks the live call within [lower, upper] with the highest open interest.
func mostOpenCall(chain []broker.Contract, minOI, lower, upper float64) (broker.Contract, bool) {
	var best broker.Contract
	found := false
	for _, c := range chain {
		if c.Type != broker.ContractCall || !c.Live() || c.OpenInterest < minOI {
			continue
		}
		if c.Strike < lower || c.Strike > upper {
			continue
		}
		if !found || c.OpenInterest > best.OpenInterest {
			best = c
			found = true
		}
	}
	return best, found
}

func contractMeta(c broker.Contract) map[string]any {
	return map[string]any{
		"contract":     c.Symbol,
		"strike":       c.Strike,
		"openInterest": c.OpenInterest,
	}
}
