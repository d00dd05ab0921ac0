package config

import (
	"fmt"
	"strings"
)

const (
	OptionCall = "call"
	OptionPut  = "put"
)

// BotConfig is the run-time trading policy read by every cycle.
type BotConfig struct {
	Symbols         []string          `yaml:"symbols" json:"symbols"`
	MaxPositions    int               `yaml:"max_positions" json:"maxPositions"`
	RiskPercent     float64           `yaml:"risk_percent" json:"riskPercent"`
	MaxPositionSize float64           `yaml:"max_position_size" json:"maxPositionSize"`
	UseConsensus    bool              `yaml:"use_consensus" json:"useConsensus"`
	DryRun          bool              `yaml:"dry_run" json:"dryRun"`
	Derivatives     DerivativesConfig `yaml:"derivatives" json:"derivatives"`
}

type DerivativesConfig struct {
	Enabled         bool    `yaml:"enabled" json:"enabled"`
	OptionType      string  `yaml:"option_type" json:"optionType"`
	MaxStrike       float64 `yaml:"max_strike" json:"maxStrike"`
	MinOpenInterest float64 `yaml:"min_open_interest" json:"minOpenInterest"`
	MaxExpiryDays   int     `yaml:"max_expiry_days" json:"maxExpiryDays"`
}

func DefaultBotConfig() BotConfig {
	return BotConfig{
		Symbols:         []string{"AAPL"},
		MaxPositions:    5,
		RiskPercent:     2,
		MaxPositionSize: 10,
		DryRun:          true,
		Derivatives: DerivativesConfig{
			OptionType:      OptionCall,
			MinOpenInterest: 10,
		},
	}
}

// setDefaults only fills fields whose zero value is invalid. Numeric limits
// are pre-seeded from DefaultBotConfig before decoding, so an explicit 0 in
// the file survives.
func (b *BotConfig) setDefaults() {
	if b.Derivatives.OptionType == "" {
		b.Derivatives.OptionType = OptionCall
	}
	for i, s := range b.Symbols {
		b.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
}

func (b BotConfig) Validate() error {
	if len(b.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	for _, s := range b.Symbols {
		if s == "" {
			return fmt.Errorf("empty symbol in symbols")
		}
	}
	if b.MaxPositions < 0 {
		return fmt.Errorf("max_positions must not be negative")
	}
	if b.RiskPercent < 0 || b.RiskPercent > 100 {
		return fmt.Errorf("risk_percent must be within 0..100, got %v", b.RiskPercent)
	}
	if b.MaxPositionSize < 0 {
		return fmt.Errorf("max_position_size must not be negative")
	}
	switch b.Derivatives.OptionType {
	case OptionCall, OptionPut:
	default:
		return fmt.Errorf("unknown derivatives.option_type %q", b.Derivatives.OptionType)
	}
	if b.Derivatives.MinOpenInterest < 0 || b.Derivatives.MaxStrike < 0 || b.Derivatives.MaxExpiryDays < 0 {
		return fmt.Errorf("derivatives filters must not be negative")
	}
	return nil
}

// Clone returns a copy that shares no slices with b.
func (b BotConfig) Clone() BotConfig {
	b.Symbols = append([]string(nil), b.Symbols...)
	return b
}

// BotPatch carries a partial BotConfig update. Every non-nil field replaces
// the stored one as a whole; Derivatives is not merged field by field.
type BotPatch struct {
	Symbols         []string           `json:"symbols,omitempty"`
	MaxPositions    *int               `json:"maxPositions,omitempty"`
	RiskPercent     *float64           `json:"riskPercent,omitempty"`
	MaxPositionSize *float64           `json:"maxPositionSize,omitempty"`
	UseConsensus    *bool              `json:"useConsensus,omitempty"`
	DryRun          *bool              `json:"dryRun,omitempty"`
	Derivatives     *DerivativesConfig `json:"derivatives,omitempty"`
}

// Apply returns b with the patch merged in and validated.
func (p BotPatch) Apply(b BotConfig) (BotConfig, error) {
	out := b.Clone()
	if p.Symbols != nil {
		out.Symbols = make([]string, 0, len(p.Symbols))
		for _, s := range p.Symbols {
			out.Symbols = append(out.Symbols, strings.ToUpper(strings.TrimSpace(s)))
		}
	}
	if p.MaxPositions != nil {
		out.MaxPositions = *p.MaxPositions
	}
	if p.RiskPercent != nil {
		out.RiskPercent = *p.RiskPercent
	}
	if p.MaxPositionSize != nil {
		out.MaxPositionSize = *p.MaxPositionSize
	}
	if p.UseConsensus != nil {
		out.UseConsensus = *p.UseConsensus
	}
	if p.DryRun != nil {
		out.DryRun = *p.DryRun
	}
	if p.Derivatives != nil {
		out.Derivatives = *p.Derivatives
	}
	if err := out.Validate(); err != nil {
		return b, err
	}
	return out, nil
}
