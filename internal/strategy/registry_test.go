package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/strategy-trader/internal/logger"
	"github.com/camuig/strategy-trader/internal/market"
)

func fixed(name string, s Signal, err error, minConfidence float64) Rule {
	return Rule{
		Name: name,
		Evaluate: func(ctx context.Context, snap market.Snapshot, cfg Config) (Signal, error) {
			return s, err
		},
		Config: Config{Enabled: true, MinConfidence: minConfidence},
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry(logger.Nop())

	require.NoError(t, r.Register(fixed("a", Signal{}, nil, 0)))
	err := r.Register(fixed("a", Signal{}, nil, 0))
	assert.ErrorIs(t, err, ErrDuplicateStrategy)

	assert.Error(t, r.Register(Rule{Name: "no-eval"}))
	assert.Error(t, r.Register(Rule{Evaluate: fixed("x", Signal{}, nil, 0).Evaluate}))

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
}

func TestRegistryAnalyze(t *testing.T) {
	r := NewRegistry(logger.Nop())
	require.NoError(t, r.Register(fixed("strong", Signal{Action: ActionBuy, Confidence: 0.9, Metadata: map[string]any{"k": 1}}, nil, 0.6)))
	require.NoError(t, r.Register(fixed("weak", Signal{Action: ActionSell, Confidence: 0.2}, nil, 0.6)))
	require.NoError(t, r.Register(fixed("broken", Signal{}, errors.New("boom"), 0)))
	require.NoError(t, r.Register(Rule{
		Name: "panics",
		Evaluate: func(ctx context.Context, snap market.Snapshot, cfg Config) (Signal, error) {
			panic("bad rule")
		},
		Config: Config{Enabled: true},
	}))
	disabled := fixed("disabled", Signal{Action: ActionBuy, Confidence: 1}, nil, 0)
	disabled.Config.Enabled = false
	require.NoError(t, r.Register(disabled))

	signals := r.Analyze(t.Context(), market.Snapshot{Symbol: "AAPL", Price: 100})

	require.Len(t, signals, 1)
	assert.Equal(t, ActionBuy, signals[0].Action)
	assert.Equal(t, "strong", signals[0].Strategy())
	assert.Equal(t, 1, signals[0].Metadata["k"])
}

func TestRegistryAnalyzeOrderAndBoundary(t *testing.T) {
	r := NewRegistry(logger.Nop())
	require.NoError(t, r.Register(fixed("b", Signal{Action: ActionSell, Confidence: 0.5}, nil, 0.5)))
	require.NoError(t, r.Register(fixed("a", Signal{Action: ActionBuy, Confidence: 0.7}, nil, 0.5)))

	signals := r.Analyze(t.Context(), market.Snapshot{Symbol: "AAPL"})

	require.Len(t, signals, 2)
	assert.Equal(t, "a", signals[0].Strategy())
	assert.Equal(t, "b", signals[1].Strategy(), "confidence equal to the minimum qualifies")
}

func TestRegistryAnalyzeDoesNotShareMetadata(t *testing.T) {
	shared := map[string]any{"k": "v"}
	r := NewRegistry(logger.Nop())
	require.NoError(t, r.Register(fixed("a", Signal{Action: ActionBuy, Confidence: 1, Metadata: shared}, nil, 0)))

	r.Analyze(t.Context(), market.Snapshot{})

	_, tagged := shared[MetaStrategy]
	assert.False(t, tagged)
}

func TestRegistryUpdateConfig(t *testing.T) {
	r := NewRegistry(logger.Nop())
	rule := fixed("a", Signal{}, nil, 0.6)
	rule.Config.Parameters = map[string]any{"period": 14, "oversold": 30}
	require.NoError(t, r.Register(rule))

	enabled := false
	conf := 0.75
	got, err := r.UpdateConfig("a", ConfigPatch{
		Enabled:       &enabled,
		MinConfidence: &conf,
		Parameters:    map[string]any{"period": 21},
	})
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, 0.75, got.MinConfidence)
	assert.Equal(t, map[string]any{"period": 21, "oversold": 30}, got.Parameters)

	stored, err := r.Config("a")
	require.NoError(t, err)
	assert.Equal(t, got, stored)

	_, err = r.UpdateConfig("missing", ConfigPatch{})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	_, err = r.Config("missing")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestRegistryConfigIsCopy(t *testing.T) {
	r := NewRegistry(logger.Nop())
	rule := fixed("a", Signal{}, nil, 0)
	rule.Config.Parameters = map[string]any{"x": 1}
	require.NoError(t, r.Register(rule))

	cfg, err := r.Config("a")
	require.NoError(t, err)
	cfg.Parameters["x"] = 2

	again, err := r.Config("a")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Parameters["x"])
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry(logger.Nop())
	r.RegisterDefaults(nil)

	list := r.List()
	names := make([]string, 0, len(list))
	for _, info := range list {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{
		RuleCrossover, RuleOptionsMomentum, RuleOptionsVolatility, RuleRandom, RuleRSI,
	}, names)

	for _, info := range list {
		if info.Name == RuleRandom {
			assert.False(t, info.Config.Enabled)
		}
	}
}

func TestConfigFloat(t *testing.T) {
	cfg := Config{Parameters: map[string]any{
		"f": 1.5, "i": 3, "s": "2.5", "bad": "x", "i64": int64(4),
	}}
	assert.Equal(t, 1.5, cfg.Float("f", 0))
	assert.Equal(t, 3.0, cfg.Float("i", 0))
	assert.Equal(t, 2.5, cfg.Float("s", 0))
	assert.Equal(t, 9.0, cfg.Float("bad", 9))
	assert.Equal(t, 4.0, cfg.Float("i64", 0))
	assert.Equal(t, 7, cfg.Int("missing", 7))
}
