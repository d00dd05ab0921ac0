package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/strategy-trader/internal/ai"
	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/logger"
	"github.com/camuig/strategy-trader/internal/strategy"
)

func ptr[T any](v T) *T { return &v }

func TestApplyStrategyOverrides(t *testing.T) {
	reg := strategy.NewRegistry(logger.Nop())
	reg.RegisterDefaults(nil)

	err := ApplyStrategyOverrides(reg, map[string]config.StrategyConfig{
		strategy.RuleRSI: {
			MinConfidence: ptr(0.85),
			Parameters:    map[string]any{"oversold": 25},
		},
		strategy.RuleRandom: {Enabled: ptr(true)},
	})
	require.NoError(t, err)

	rsi, err := reg.Config(strategy.RuleRSI)
	require.NoError(t, err)
	assert.Equal(t, 0.85, rsi.MinConfidence)
	assert.Equal(t, 25.0, rsi.Float("oversold", 0))
	assert.True(t, rsi.Enabled, "unset fields keep their defaults")

	random, err := reg.Config(strategy.RuleRandom)
	require.NoError(t, err)
	assert.True(t, random.Enabled)

	err = ApplyStrategyOverrides(reg, map[string]config.StrategyConfig{"macd": {Enabled: ptr(true)}})
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)
	assert.Contains(t, err.Error(), "strategies.macd")
}

func TestNewRegistry(t *testing.T) {
	cfg := config.Default()
	reg, err := NewRegistry(cfg, logger.Nop())
	require.NoError(t, err)
	assert.Len(t, reg.List(), 5)

	cfg.DeepSeek.APIKey = "sk-test"
	cfg.Strategies = map[string]config.StrategyConfig{ai.RuleName: {Enabled: ptr(true)}}
	reg, err = NewRegistry(cfg, logger.Nop())
	require.NoError(t, err)
	assert.Len(t, reg.List(), 6)
	advisor, err := reg.Config(ai.RuleName)
	require.NoError(t, err)
	assert.True(t, advisor.Enabled)
}

func TestNewRegistryRejectsAdvisorOverrideWithoutKey(t *testing.T) {
	cfg := config.Default()
	cfg.Strategies = map[string]config.StrategyConfig{ai.RuleName: {Enabled: ptr(true)}}

	_, err := NewRegistry(cfg, logger.Nop())
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)
}

func TestNewPort(t *testing.T) {
	cfg := config.Default()
	cfg.Broker.Alpaca.KeyID = "k"
	cfg.Broker.Alpaca.SecretKey = "s"

	port, stop, err := NewPort(t.Context(), cfg, logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, port)
	assert.NoError(t, stop())

	cfg.Broker.Provider = "ib"
	_, _, err = NewPort(t.Context(), cfg, logger.Nop())
	assert.ErrorContains(t, err, `unknown broker provider "ib"`)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Bot.Symbols = []string{"MSFT"}

	svc, stop, err := FromConfig(t.Context(), cfg, logger.Nop())
	require.NoError(t, err)
	defer stop()

	assert.False(t, svc.Initialized())
	assert.Equal(t, []string{"MSFT"}, svc.Config().Symbols)
	assert.Equal(t, cfg.Schedule, svc.Schedule())
}
