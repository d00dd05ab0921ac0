package bot

import (
	"context"
	"fmt"

	"github.com/camuig/strategy-trader/internal/ai"
	"github.com/camuig/strategy-trader/internal/broker"
	"github.com/camuig/strategy-trader/internal/broker/alpaca"
	"github.com/camuig/strategy-trader/internal/broker/tinkoff"
	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/logger"
	"github.com/camuig/strategy-trader/internal/strategy"
	"github.com/camuig/strategy-trader/internal/telegram"
)

// NewPort connects the configured brokerage. The returned stop func releases
// the connection and is never nil.
func NewPort(ctx context.Context, cfg *config.Config, log *logger.Logger) (broker.Port, func() error, error) {
	switch cfg.Broker.Provider {
	case config.ProviderAlpaca:
		return alpaca.NewClient(cfg.Broker.Alpaca, log), func() error { return nil }, nil
	case config.ProviderTinkoff:
		c, err := tinkoff.NewClient(ctx, cfg.Broker.Tinkoff, log)
		if err != nil {
			return nil, nil, fmt.Errorf("tinkoff client: %w", err)
		}
		return c, c.Stop, nil
	default:
		return nil, nil, fmt.Errorf("unknown broker provider %q", cfg.Broker.Provider)
	}
}

// NewRegistry registers the built-in rules, the chat model advisor when an
// API key is configured, and then applies the per-rule overrides.
func NewRegistry(cfg *config.Config, log *logger.Logger) (*strategy.Registry, error) {
	reg := strategy.NewRegistry(log)
	reg.RegisterDefaults(nil)
	if cfg.DeepSeek.APIKey != "" {
		advisor := ai.NewAdvisor(cfg.DeepSeek, cfg.DeepSeekTimeout(), log)
		if err := reg.Register(ai.Rule(advisor)); err != nil {
			return nil, err
		}
	}
	if err := ApplyStrategyOverrides(reg, cfg.Strategies); err != nil {
		return nil, err
	}
	return reg, nil
}

// ApplyStrategyOverrides merges config file settings into registered rules.
// An override naming an unregistered rule is an error.
func ApplyStrategyOverrides(reg *strategy.Registry, overrides map[string]config.StrategyConfig) error {
	for name, o := range overrides {
		patch := strategy.ConfigPatch{
			Enabled:         o.Enabled,
			RiskPercent:     o.RiskPercent,
			MaxPositionSize: o.MaxPositionSize,
			MinConfidence:   o.MinConfidence,
			Parameters:      o.Parameters,
		}
		if _, err := reg.UpdateConfig(name, patch); err != nil {
			return fmt.Errorf("strategies.%s: %w", name, err)
		}
	}
	return nil
}

// FromConfig builds a ready Service from a loaded config. The caller owns
// the returned stop func.
func FromConfig(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Service, func() error, error) {
	port, stop, err := NewPort(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	reg, err := NewRegistry(cfg, log)
	if err != nil {
		_ = stop()
		return nil, nil, err
	}

	svc := New(cfg.Bot, cfg.Schedule, Deps{
		Port:     port,
		Registry: reg,
		Notifier: telegram.NewNotifier(cfg.Telegram, log),
		Logger:   log,
	})
	return svc, stop, nil
}
