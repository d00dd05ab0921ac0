// Package strategy holds the pluggable trading rules, the registry that
// evaluates them against a market snapshot, and the aggregation policies that
// reduce their signals to one decision.
package strategy

import (
	"context"
	"encoding/json"
	"maps"
	"strconv"

	"github.com/camuig/strategy-trader/internal/market"
)

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// MetaStrategy is the metadata key carrying the originating rule name.
const MetaStrategy = "strategy"

type Signal struct {
	Action     Action         `json:"action"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
	Quantity   float64        `json:"quantity,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Strategy returns the rule name the registry tagged the signal with.
func (s Signal) Strategy() string {
	name, _ := s.Metadata[MetaStrategy].(string)
	return name
}

func hold(reason string) Signal {
	return Signal{Action: ActionHold, Reason: reason}
}

// Config is the mutable per-rule configuration.
type Config struct {
	Enabled         bool           `json:"enabled"`
	RiskPercent     float64        `json:"riskPercent"`
	MaxPositionSize float64        `json:"maxPositionSize"`
	MinConfidence   float64        `json:"minConfidence"`
	Parameters      map[string]any `json:"parameters"`
}

func (c Config) Clone() Config {
	c.Parameters = maps.Clone(c.Parameters)
	return c
}

// Float reads a numeric parameter, accepting the shapes YAML and JSON decode into.
func (c Config) Float(key string, def float64) float64 {
	switch v := c.Parameters[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (c Config) Int(key string, def int) int {
	return int(c.Float(key, float64(def)))
}

// ConfigPatch is a partial Config update. Scalars overwrite; Parameters
// are merged one level deep into the existing map.
type ConfigPatch struct {
	Enabled         *bool          `json:"enabled,omitempty"`
	RiskPercent     *float64       `json:"riskPercent,omitempty"`
	MaxPositionSize *float64       `json:"maxPositionSize,omitempty"`
	MinConfidence   *float64       `json:"minConfidence,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty"`
}

func (p ConfigPatch) Apply(c Config) Config {
	out := c.Clone()
	if p.Enabled != nil {
		out.Enabled = *p.Enabled
	}
	if p.RiskPercent != nil {
		out.RiskPercent = *p.RiskPercent
	}
	if p.MaxPositionSize != nil {
		out.MaxPositionSize = *p.MaxPositionSize
	}
	if p.MinConfidence != nil {
		out.MinConfidence = *p.MinConfidence
	}
	if len(p.Parameters) > 0 {
		if out.Parameters == nil {
			out.Parameters = make(map[string]any, len(p.Parameters))
		}
		for k, v := range p.Parameters {
			out.Parameters[k] = v
		}
	}
	return out
}

// EvaluateFunc turns a snapshot and the rule's own config into a signal.
type EvaluateFunc func(ctx context.Context, snap market.Snapshot, cfg Config) (Signal, error)

type Rule struct {
	Name        string
	Description string
	Evaluate    EvaluateFunc
	Config      Config
}
