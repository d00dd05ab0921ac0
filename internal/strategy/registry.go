package strategy

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/camuig/strategy-trader/internal/logger"
	"github.com/camuig/strategy-trader/internal/market"
)

var (
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrDuplicateStrategy = errors.New("strategy already registered")
)

type entry struct {
	description string
	evaluate    EvaluateFunc
	config      Config
}

// Info describes a registered rule for listings.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Config      Config `json:"config"`
}

type Registry struct {
	mu     sync.RWMutex
	rules  map[string]*entry
	logger *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		rules:  make(map[string]*entry),
		logger: log.Component("strategy"),
	}
}

func (r *Registry) Register(rule Rule) error {
	if rule.Name == "" || rule.Evaluate == nil {
		return fmt.Errorf("register strategy: name and evaluate function are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[rule.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, rule.Name)
	}
	r.rules[rule.Name] = &entry{
		description: rule.Description,
		evaluate:    rule.Evaluate,
		config:      rule.Config.Clone(),
	}
	return nil
}

// Remove drops a rule; it reports whether the rule existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rules[name]
	delete(r.rules, name)
	return ok
}

func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.rules))
	for name, e := range r.rules {
		out = append(out, Info{Name: name, Description: e.description, Config: e.config.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Config(name string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rules[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	return e.config.Clone(), nil
}

func (r *Registry) UpdateConfig(name string, patch ConfigPatch) (Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rules[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	e.config = patch.Apply(e.config)
	r.logger.Info("strategy config updated", "strategy", name, "enabled", e.config.Enabled)
	return e.config.Clone(), nil
}

type runnable struct {
	name     string
	evaluate EvaluateFunc
	config   Config
}

// Analyze runs every enabled rule against the snapshot and returns the
// signals that reach their rule's minimum confidence, tagged with the rule
// name. A failing rule is logged and contributes nothing.
func (r *Registry) Analyze(ctx context.Context, snap market.Snapshot) []Signal {
	r.mu.RLock()
	batch := make([]runnable, 0, len(r.rules))
	for name, e := range r.rules {
		if e.config.Enabled {
			batch = append(batch, runnable{name: name, evaluate: e.evaluate, config: e.config.Clone()})
		}
	}
	r.mu.RUnlock()
	sort.Slice(batch, func(i, j int) bool { return batch[i].name < batch[j].name })

	var signals []Signal
	for _, rn := range batch {
		sig, err := run(ctx, rn, snap)
		if err != nil {
			r.logger.Error("strategy failed", "strategy", rn.name, "symbol", snap.Symbol, "error", err)
			continue
		}
		if sig.Confidence < rn.config.MinConfidence {
			r.logger.Debug("signal below min confidence",
				"strategy", rn.name, "symbol", snap.Symbol,
				"action", sig.Action, "confidence", sig.Confidence, "min", rn.config.MinConfidence)
			continue
		}

		meta := maps.Clone(sig.Metadata)
		if meta == nil {
			meta = make(map[string]any, 1)
		}
		meta[MetaStrategy] = rn.name
		sig.Metadata = meta

		r.logger.Info("signal",
			"strategy", rn.name, "symbol", snap.Symbol,
			"action", sig.Action, "confidence", sig.Confidence, "reason", sig.Reason)
		signals = append(signals, sig)
	}
	return signals
}

func run(ctx context.Context, rn runnable, snap market.Snapshot) (sig Signal, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return rn.evaluate(ctx, snap, rn.config)
}
