package strategy

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/camuig/strategy-trader/internal/market"
)

const (
	RuleCrossover         = "moving_average_crossover"
	RuleRSI               = "rsi"
	RuleRandom            = "random"
	RuleOptionsMomentum   = "options_momentum"
	RuleOptionsVolatility = "options_volatility"
)

// DefaultRules returns the rules that ship pre-registered. The random rule
// exists for exercising the pipeline and starts disabled.
func DefaultRules(rng *rand.Rand) []Rule {
	return []Rule{
		CrossoverRule(),
		RSIRule(),
		RandomRule(rng),
		OptionsMomentumRule(),
		OptionsVolatilityRule(),
	}
}

// RegisterDefaults registers DefaultRules, skipping names already taken.
func (r *Registry) RegisterDefaults(rng *rand.Rand) {
	for _, rule := range DefaultRules(rng) {
		if err := r.Register(rule); err != nil {
			r.logger.Warn("default strategy not registered", "strategy", rule.Name, "error", err)
		}
	}
}

func CrossoverRule() Rule {
	return Rule{
		Name:        RuleCrossover,
		Description: "Buys when the short moving average crosses above the long one, sells on the reverse",
		Evaluate:    evaluateCrossover,
		Config: Config{
			Enabled:         true,
			RiskPercent:     2,
			MaxPositionSize: 10,
			MinConfidence:   0.6,
			Parameters:      map[string]any{"shortPeriod": 10, "longPeriod": 20},
		},
	}
}

func evaluateCrossover(ctx context.Context, snap market.Snapshot, cfg Config) (Signal, error) {
	short := cfg.Int("shortPeriod", 10)
	long := cfg.Int("longPeriod", 20)
	if short <= 0 || long <= 0 {
		return Signal{}, fmt.Errorf("crossover periods must be positive, got %d/%d", short, long)
	}
	need := max(short, long)
	if len(snap.History) < need {
		return hold(fmt.Sprintf("need %d closes, have %d", need, len(snap.History))), nil
	}

	shortMA := sma(snap.History, short)
	longMA := sma(snap.History, long)
	if longMA == 0 {
		return hold("long average is zero"), nil
	}
	confidence := math.Min(math.Abs(shortMA-longMA)/longMA*10, 0.8)
	meta := map[string]any{"shortMA": shortMA, "longMA": longMA}

	switch {
	case shortMA > longMA && snap.Price > shortMA && !snap.HasPosition():
		return Signal{
			Action:     ActionBuy,
			Confidence: confidence,
			Reason:     fmt.Sprintf("short MA %.2f above long MA %.2f", shortMA, longMA),
			Quantity:   buyQuantity(cfg),
			Metadata:   meta,
		}, nil
	case shortMA < longMA && snap.Price < shortMA && snap.HasPosition():
		return Signal{
			Action:     ActionSell,
			Confidence: confidence,
			Reason:     fmt.Sprintf("short MA %.2f below long MA %.2f", shortMA, longMA),
			Quantity:   snap.HeldQty(),
			Metadata:   meta,
		}, nil
	}
	return Signal{Action: ActionHold, Reason: "no crossover", Metadata: meta}, nil
}

func RSIRule() Rule {
	return Rule{
		Name:        RuleRSI,
		Description: "Buys oversold and sells overbought readings of the relative strength index",
		Evaluate:    evaluateRSI,
		Config: Config{
			Enabled:         true,
			RiskPercent:     2,
			MaxPositionSize: 10,
			MinConfidence:   0.6,
			Parameters:      map[string]any{"period": 14, "oversold": 30, "overbought": 70},
		},
	}
}

func evaluateRSI(ctx context.Context, snap market.Snapshot, cfg Config) (Signal, error) {
	period := cfg.Int("period", 14)
	oversold := cfg.Float("oversold", 30)
	overbought := cfg.Float("overbought", 70)
	if period <= 0 {
		return Signal{}, fmt.Errorf("rsi period must be positive, got %d", period)
	}
	if oversold <= 0 || overbought >= 100 || oversold >= overbought {
		return Signal{}, fmt.Errorf("rsi thresholds out of order: %v/%v", oversold, overbought)
	}
	if len(snap.History) < period+1 {
		return hold(fmt.Sprintf("need %d closes, have %d", period+1, len(snap.History))), nil
	}

	value := rsi(snap.History, period)
	meta := map[string]any{"rsi": value}

	switch {
	case value < oversold && !snap.HasPosition():
		return Signal{
			Action:     ActionBuy,
			Confidence: math.Min(0.5+(oversold-value)/oversold, 0.9),
			Reason:     fmt.Sprintf("RSI %.1f below %.0f", value, oversold),
			Quantity:   buyQuantity(cfg),
			Metadata:   meta,
		}, nil
	case value > overbought && snap.HasPosition():
		return Signal{
			Action:     ActionSell,
			Confidence: math.Min(0.5+(value-overbought)/(100-overbought), 0.9),
			Reason:     fmt.Sprintf("RSI %.1f above %.0f", value, overbought),
			Quantity:   snap.HeldQty(),
			Metadata:   meta,
		}, nil
	}
	return Signal{Action: ActionHold, Reason: fmt.Sprintf("RSI %.1f neutral", value), Metadata: meta}, nil
}

// RandomRule emits random actions. Nil rng seeds from the runtime.
func RandomRule(rng *rand.Rand) Rule {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	var mu sync.Mutex
	actions := []Action{ActionBuy, ActionSell, ActionHold}

	return Rule{
		Name:        RuleRandom,
		Description: "Random actions for exercising the pipeline; never enable on a live account",
		Evaluate: func(ctx context.Context, snap market.Snapshot, cfg Config) (Signal, error) {
			mu.Lock()
			action := actions[rng.IntN(len(actions))]
			confidence := rng.Float64()
			mu.Unlock()

			sig := Signal{
				Action:     action,
				Confidence: confidence,
				Reason:     "random pick",
			}
			switch action {
			case ActionBuy:
				sig.Quantity = 1
			case ActionSell:
				sig.Quantity = snap.HeldQty()
			}
			return sig, nil
		},
		Config: Config{
			Enabled:         false,
			RiskPercent:     1,
			MaxPositionSize: 1,
			MinConfidence:   0.5,
			Parameters:      map[string]any{},
		},
	}
}
