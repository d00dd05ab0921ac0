// Package bot wires the trading pipeline together and exposes the control
// surface used by the HTTP API and the command line tools.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/camuig/strategy-trader/internal/broker"
	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/executor"
	"github.com/camuig/strategy-trader/internal/logger"
	"github.com/camuig/strategy-trader/internal/market"
	"github.com/camuig/strategy-trader/internal/metrics"
	"github.com/camuig/strategy-trader/internal/scheduler"
	"github.com/camuig/strategy-trader/internal/strategy"
)

var (
	ErrCycleInProgress = errors.New("a trading cycle is already in progress")
	ErrNotInitialized  = errors.New("bot is not initialized")
	ErrUnknownStrategy = strategy.ErrUnknownStrategy
)

// ManualStrategy tags outcomes of trades requested through the control surface.
const ManualStrategy = executor.ManualStrategy

// Notifier receives trade and lifecycle events. Implementations must not block
// for long; they run inline with the cycle.
type Notifier interface {
	NotifyTrade(o executor.Outcome)
	NotifyError(context string, err error)
	NotifyStatus(message string)
}

type nopNotifier struct{}

func (nopNotifier) NotifyTrade(executor.Outcome) {}
func (nopNotifier) NotifyError(string, error)    {}
func (nopNotifier) NotifyStatus(string)          {}

// Deps are the collaborators of a Service. Port and Logger are required.
type Deps struct {
	Port     broker.Port
	Registry *strategy.Registry
	Clock    scheduler.Clock
	Notifier Notifier
	Logger   *logger.Logger
}

type Service struct {
	port      broker.Port
	assembler *market.Assembler
	registry  *strategy.Registry
	executor  *executor.Executor
	scheduler *scheduler.Scheduler
	tracker   *metrics.Tracker
	notifier  Notifier
	clock     scheduler.Clock
	logger    *logger.Logger

	mu          sync.RWMutex
	cfg         config.BotConfig
	initialized bool
	account     broker.Account
	lastCycle   *CycleReport

	// cycleMu admits one cycle at a time; contenders fail fast via TryLock.
	cycleMu sync.Mutex
}

func New(botCfg config.BotConfig, schedCfg config.ScheduleConfig, deps Deps) *Service {
	if deps.Clock == nil {
		deps.Clock = scheduler.SystemClock{}
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Registry == nil {
		deps.Registry = strategy.NewRegistry(deps.Logger)
		deps.Registry.RegisterDefaults(nil)
	}

	s := &Service{
		port:      deps.Port,
		assembler: market.NewAssembler(deps.Port, deps.Logger),
		registry:  deps.Registry,
		executor:  executor.New(deps.Port, deps.Logger).WithClock(deps.Clock.Now),
		tracker:   metrics.NewTracker(),
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		logger:    deps.Logger.Component("bot"),
		cfg:       botCfg.Clone(),
	}
	s.scheduler = scheduler.New(schedCfg, deps.Clock, deps.Port, s.scheduledCycle, deps.Logger)
	return s
}

// Initialize verifies broker connectivity and credentials.
func (s *Service) Initialize(ctx context.Context) error {
	account, err := s.port.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("initialize: get account: %w", err)
	}

	s.mu.Lock()
	s.account = account
	s.initialized = true
	s.mu.Unlock()

	s.logger.Info("broker account verified",
		"account", account.ID, "status", account.Status,
		"equity", account.Equity, "buying_power", account.BuyingPower)
	return nil
}

func (s *Service) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Start begins scheduled trading. The first cycle runs before Start returns.
func (s *Service) Start(ctx context.Context) error {
	if !s.Initialized() {
		return ErrNotInitialized
	}
	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}
	cfg := s.Config()
	s.notifier.NotifyStatus(fmt.Sprintf("▶️ Bot started: %s, dry run %t", strings.Join(cfg.Symbols, ", "), cfg.DryRun))
	return nil
}

// Stop halts scheduled trading. Stopping a stopped bot is a no-op.
func (s *Service) Stop() {
	if err := s.scheduler.Stop(); err != nil {
		return
	}
	s.notifier.NotifyStatus("⏹ Bot stopped")
}

// RunCycleOnce runs one cycle now, outside the schedule.
func (s *Service) RunCycleOnce(ctx context.Context) (CycleReport, error) {
	if !s.Initialized() {
		return CycleReport{}, ErrNotInitialized
	}
	return s.runCycle(ctx)
}

// scheduledCycle is the scheduler callback. Its errors, panics included, are
// reported to the notifier before the scheduler counts them.
func (s *Service) scheduledCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in cycle: %v", r)
		}
		if err != nil {
			s.notifier.NotifyError("scheduled cycle", err)
		}
	}()

	report, err := s.runCycle(ctx)
	if err != nil {
		return err
	}
	if len(report.Failed) > 0 && len(report.Failed) == len(report.Symbols) {
		return fmt.Errorf("all %d symbols failed", len(report.Failed))
	}
	return nil
}

// Buy submits a manual buy through the execution pipeline. The max
// positions gate does not apply.
func (s *Service) Buy(ctx context.Context, symbol string, qty float64, reason string) executor.Outcome {
	return s.manual(ctx, strategy.ActionBuy, symbol, qty, reason)
}

func (s *Service) Sell(ctx context.Context, symbol string, qty float64, reason string) executor.Outcome {
	return s.manual(ctx, strategy.ActionSell, symbol, qty, reason)
}

func (s *Service) manual(ctx context.Context, action strategy.Action, symbol string, qty float64, reason string) executor.Outcome {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if reason == "" {
		reason = "manual " + string(action)
	}

	pos, err := s.port.GetPosition(ctx, symbol)
	if err != nil {
		out := s.executor.Failed(symbol, action, qty, reason, fmt.Errorf("position %s: %w", symbol, err))
		s.record(out)
		return out
	}

	decision := strategy.Signal{
		Action:     action,
		Confidence: 1,
		Reason:     reason,
		Quantity:   qty,
		Metadata:   map[string]any{strategy.MetaStrategy: ManualStrategy},
	}
	out := s.executor.Execute(ctx, symbol, decision, pos, s.Config())
	s.record(out)
	return out
}

// CloseAll sells every stock position in full. Option positions are skipped.
func (s *Service) CloseAll(ctx context.Context) ([]executor.Outcome, error) {
	positions, err := s.port.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	var outcomes []executor.Outcome
	for _, p := range positions {
		if p.Qty <= 0 {
			continue
		}
		if p.IsOption() {
			s.logger.Info("close all: skipping option position", "symbol", p.Symbol, "qty", p.Qty)
			continue
		}
		decision := strategy.Signal{
			Action:   strategy.ActionSell,
			Reason:   "close all",
			Quantity: p.Qty,
			Metadata: map[string]any{strategy.MetaStrategy: ManualStrategy},
		}
		pos := p
		out := s.executor.Execute(ctx, p.Symbol, decision, &pos, s.Config())
		s.record(out)
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

func (s *Service) record(o executor.Outcome) {
	s.tracker.Record(o)
	s.notifier.NotifyTrade(o)
}

type Status struct {
	Initialized bool             `json:"initialized"`
	Account     *broker.Account  `json:"account,omitempty"`
	Scheduler   scheduler.Status `json:"scheduler"`
	Metrics     metrics.Snapshot `json:"metrics"`
	Config      config.BotConfig `json:"config"`
	LastCycle   *CycleReport     `json:"lastCycle,omitempty"`
}

func (s *Service) Status() Status {
	st := Status{
		Scheduler: s.scheduler.Status(),
		Metrics:   s.tracker.Snapshot(),
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st.Initialized = s.initialized
	st.Config = s.cfg.Clone()
	if s.initialized {
		account := s.account
		st.Account = &account
	}
	if s.lastCycle != nil {
		last := *s.lastCycle
		st.LastCycle = &last
	}
	return st
}

// UpdateConfig merges the patch into the bot config. Each set field replaces
// the stored one; the next symbol processed sees the change.
func (s *Service) UpdateConfig(patch config.BotPatch) (config.BotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := patch.Apply(s.cfg)
	if err != nil {
		return s.cfg.Clone(), fmt.Errorf("update config: %w", err)
	}
	s.cfg = next
	s.logger.Info("bot config updated",
		"symbols", next.Symbols, "dry_run", next.DryRun,
		"use_consensus", next.UseConsensus, "derivatives", next.Derivatives.Enabled)
	return next.Clone(), nil
}

func (s *Service) Config() config.BotConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

func (s *Service) UpdateSchedule(patch config.SchedulePatch) (config.ScheduleConfig, error) {
	return s.scheduler.UpdateSchedule(patch)
}

func (s *Service) Schedule() config.ScheduleConfig {
	return s.scheduler.Schedule()
}

func (s *Service) TimeUntilNextSession() (scheduler.Countdown, error) {
	return s.scheduler.TimeUntilNextSession()
}

func (s *Service) ListStrategies() []strategy.Info {
	return s.registry.List()
}

func (s *Service) UpdateStrategyConfig(name string, patch strategy.ConfigPatch) (strategy.Config, error) {
	return s.registry.UpdateConfig(name, patch)
}

// RegisterStrategy adds a rule at runtime; it is evaluated from the next cycle on.
func (s *Service) RegisterStrategy(rule strategy.Rule) error {
	return s.registry.Register(rule)
}

// RemoveStrategy unregisters a rule. A cycle already evaluating it finishes
// with its snapshot.
func (s *Service) RemoveStrategy(name string) error {
	if !s.registry.Remove(name) {
		return fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	s.logger.Info("strategy removed", "strategy", name)
	return nil
}

func (s *Service) ResetMetrics() {
	s.tracker.Reset()
	s.logger.Info("metrics reset")
}

func (s *Service) Tracker() *metrics.Tracker {
	return s.tracker
}

// Scheduler exposes scheduler counters for the metrics collector.
func (s *Service) Scheduler() *scheduler.Scheduler {
	return s.scheduler
}

func (s *Service) now() time.Time {
	return s.clock.Now()
}
