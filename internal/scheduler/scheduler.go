// Package scheduler drives the trading cycle on a fixed interval, gated by
// trading days and market hours.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/logger"
)

var (
	ErrNoCycle        = errors.New("scheduler: no cycle function")
	ErrAlreadyRunning = errors.New("scheduler: already running")
	ErrNotRunning     = errors.New("scheduler: not running")
)

// Cycle is one pass of the trading pipeline.
type Cycle func(ctx context.Context) error

// MarketChecker reports whether the venue is open right now.
type MarketChecker interface {
	IsMarketOpen(ctx context.Context) (bool, error)
}

type Status struct {
	Running    bool                  `json:"running"`
	StartedAt  *time.Time            `json:"startedAt,omitempty"`
	LastRun    *time.Time            `json:"lastRun,omitempty"`
	NextRun    *time.Time            `json:"nextRun,omitempty"`
	TotalRuns  int64                 `json:"totalRuns"`
	Errors     int64                 `json:"errors"`
	LastError  string                `json:"lastError,omitempty"`
	MarketOpen bool                  `json:"marketOpen"`
	LocalTime  string                `json:"localTime"`
	Schedule   config.ScheduleConfig `json:"schedule"`
}

type Scheduler struct {
	clock  Clock
	market MarketChecker
	cycle  Cycle
	logger *logger.Logger

	mu         sync.Mutex
	cfg        config.ScheduleConfig
	running    bool
	cancel     context.CancelFunc
	reset      chan struct{}
	startedAt  time.Time
	lastRun    time.Time
	nextRun    time.Time
	totalRuns  int64
	errors     int64
	lastError  string
	marketOpen bool
}

func New(cfg config.ScheduleConfig, clock Clock, market MarketChecker, cycle Cycle, log *logger.Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		clock:  clock,
		market: market,
		cycle:  cycle,
		cfg:    cfg.Clone(),
		logger: log.Component("scheduler"),
	}
}

// Start runs one tick synchronously, then keeps ticking until Stop or until
// ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cycle == nil {
		s.mu.Unlock()
		return ErrNoCycle
	}
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("start ignored, already running")
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.reset = make(chan struct{}, 1)
	s.startedAt = s.clock.Now()
	reset := s.reset
	interval := s.cfg.IntervalDuration()
	s.mu.Unlock()

	s.logger.Info("scheduler started", "interval", interval.String())
	s.tick(runCtx)
	go s.loop(runCtx, reset)
	return nil
}

// Stop halts future ticks. A cycle already in flight runs to completion.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.logger.Warn("stop ignored, not running")
		return ErrNotRunning
	}
	s.cancel()
	s.running = false
	s.cancel = nil
	s.logger.Info("scheduler stopped", "total_runs", s.totalRuns, "errors", s.errors)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, reset <-chan struct{}) {
	for {
		s.mu.Lock()
		interval := s.cfg.IntervalDuration()
		s.mu.Unlock()

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.markStopped(reset)
			return
		case <-reset:
			timer.Stop()
		case <-timer.C:
			s.tick(ctx)
		}
	}
}

// markStopped covers the parent context being cancelled without Stop. The
// reset channel identifies the run so a quick restart is left alone.
func (s *Scheduler) markStopped(reset <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && (<-chan struct{})(s.reset) == reset {
		s.running = false
		s.cancel = nil
		s.logger.Info("scheduler stopped by context")
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock.Now()
	s.mu.Lock()
	s.lastRun = now
	s.totalRuns++
	s.nextRun = now.Add(s.cfg.IntervalDuration())
	cfg := s.cfg.Clone()
	s.mu.Unlock()

	// Stop must not interrupt a cycle that already began.
	cycleCtx := context.WithoutCancel(ctx)

	if s.ShouldRun(cycleCtx, cfg, now) {
		if err := s.invoke(cycleCtx); err != nil {
			s.mu.Lock()
			s.errors++
			s.lastError = err.Error()
			s.mu.Unlock()
			s.logger.Error("cycle failed", "error", err)
		}
	} else {
		s.logger.Debug("outside trading hours, skipping cycle")
	}

	s.refreshMarketOpen(cycleCtx)
}

func (s *Scheduler) invoke(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in cycle: %v", r)
		}
	}()
	return s.cycle(ctx)
}

// ShouldRun gates a tick. A non-trading weekday is decided locally; otherwise
// the broker's open flag wins, with the configured hours as the fallback.
func (s *Scheduler) ShouldRun(ctx context.Context, cfg config.ScheduleConfig, now time.Time) bool {
	local := now.In(cfg.Location())
	if !cfg.IsTradingDay(local.Weekday()) {
		return false
	}
	if s.market != nil {
		open, err := s.market.IsMarketOpen(ctx)
		if err == nil {
			return open
		}
		s.logger.Warn("market status unavailable, using configured hours", "error", err)
	}
	return WithinTradingHours(cfg, now)
}

func (s *Scheduler) refreshMarketOpen(ctx context.Context) {
	if s.market == nil {
		return
	}
	open, err := s.market.IsMarketOpen(ctx)
	if err != nil {
		s.logger.Debug("market status refresh failed", "error", err)
		return
	}
	s.mu.Lock()
	s.marketOpen = open
	s.mu.Unlock()
}

// UpdateSchedule applies the patch. A running loop re-arms its timer with
// the new interval.
func (s *Scheduler) UpdateSchedule(patch config.SchedulePatch) (config.ScheduleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := patch.Apply(s.cfg)
	if err != nil {
		return s.cfg.Clone(), err
	}
	s.cfg = next
	if s.running {
		select {
		case s.reset <- struct{}{}:
		default:
		}
		s.nextRun = s.clock.Now().Add(next.IntervalDuration())
	}
	s.logger.Info("schedule updated", "interval", next.Interval, "start", next.TradingStart, "end", next.TradingEnd)
	return next.Clone(), nil
}

func (s *Scheduler) Schedule() config.ScheduleConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

func (s *Scheduler) TimeUntilNextSession() (Countdown, error) {
	return TimeUntilNextSession(s.Schedule(), s.clock.Now())
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:    s.running,
		TotalRuns:  s.totalRuns,
		Errors:     s.errors,
		LastError:  s.lastError,
		MarketOpen: s.marketOpen,
		LocalTime:  s.clock.Now().In(s.cfg.Location()).Format("15:04"),
		Schedule:   s.cfg.Clone(),
	}
	st.StartedAt = timePtr(s.startedAt)
	st.LastRun = timePtr(s.lastRun)
	if s.running {
		st.NextRun = timePtr(s.nextRun)
	}
	return st
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) Runs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalRuns
}

func (s *Scheduler) Errors() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
