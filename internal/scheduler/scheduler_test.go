package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/logger"
)

type market struct {
	mu    sync.Mutex
	open  bool
	err   error
	calls int
}

func (m *market) IsMarketOpen(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.open, m.err
}

func (m *market) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newYork(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestInWindow(t *testing.T) {
	overnight := func(hhmm string) bool {
		cur, err := config.ParseClock(hhmm)
		require.NoError(t, err)
		return InWindow(cur, 20*60, 4*60)
	}
	assert.True(t, overnight("23:00"))
	assert.True(t, overnight("02:00"))
	assert.True(t, overnight("20:00"))
	assert.True(t, overnight("04:00"))
	assert.False(t, overnight("10:00"))

	assert.True(t, InWindow(600, 570, 960))
	assert.True(t, InWindow(570, 570, 960))
	assert.True(t, InWindow(960, 570, 960))
	assert.False(t, InWindow(569, 570, 960))
	assert.False(t, InWindow(961, 570, 960))
}

func TestWithinTradingHours(t *testing.T) {
	ny := newYork(t)
	cfg := config.DefaultScheduleConfig()

	testCases := []struct {
		desc     string
		at       time.Time
		extended bool
		expected bool
	}{
		{"monday mid session", time.Date(2026, 3, 2, 11, 0, 0, 0, ny), false, true},
		{"monday before open", time.Date(2026, 3, 2, 9, 0, 0, 0, ny), false, false},
		{"monday pre-market with extended hours", time.Date(2026, 3, 2, 5, 0, 0, 0, ny), true, true},
		{"monday after hours with extended hours", time.Date(2026, 3, 2, 19, 30, 0, 0, ny), true, true},
		{"monday night with extended hours", time.Date(2026, 3, 2, 21, 0, 0, 0, ny), true, false},
		{"saturday mid day", time.Date(2026, 3, 7, 11, 0, 0, 0, ny), false, false},
		{"utc instant converted", time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC), false, true},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			c := cfg.Clone()
			c.ExtendedHours = tc.extended
			assert.Equal(t, tc.expected, WithinTradingHours(c, tc.at))
		})
	}
}

func TestShouldRun(t *testing.T) {
	ny := newYork(t)
	cfg := config.DefaultScheduleConfig()

	t.Run("saturday skips broker check", func(t *testing.T) {
		m := &market{open: true}
		s := New(cfg, nil, m, nil, logger.Nop())
		assert.False(t, s.ShouldRun(t.Context(), cfg, time.Date(2026, 3, 7, 11, 0, 0, 0, ny)))
		assert.Zero(t, m.Calls())
	})

	t.Run("broker flag is authoritative", func(t *testing.T) {
		m := &market{open: false}
		s := New(cfg, nil, m, nil, logger.Nop())
		assert.False(t, s.ShouldRun(t.Context(), cfg, time.Date(2026, 3, 2, 11, 0, 0, 0, ny)))
		m.open = true
		assert.True(t, s.ShouldRun(t.Context(), cfg, time.Date(2026, 3, 2, 3, 0, 0, 0, ny)))
	})

	t.Run("broker failure falls back to window", func(t *testing.T) {
		m := &market{err: errors.New("unauthorized")}
		s := New(cfg, nil, m, nil, logger.Nop())
		assert.True(t, s.ShouldRun(t.Context(), cfg, time.Date(2026, 3, 2, 11, 0, 0, 0, ny)))
		assert.False(t, s.ShouldRun(t.Context(), cfg, time.Date(2026, 3, 2, 17, 0, 0, 0, ny)))
	})
}

func TestTimeUntilNextSession(t *testing.T) {
	ny := newYork(t)
	cfg := config.DefaultScheduleConfig()

	testCases := []struct {
		desc     string
		at       time.Time
		expected Countdown
	}{
		{"inside session", time.Date(2026, 3, 2, 10, 0, 0, 0, ny), Countdown{}},
		{"before open", time.Date(2026, 3, 2, 8, 15, 30, 0, ny), Countdown{Hours: 1, Minutes: 14, Seconds: 30}},
		{"after close rolls to next day", time.Date(2026, 3, 3, 17, 0, 0, 0, ny), Countdown{Hours: 16, Minutes: 30}},
		{"friday evening skips weekend", time.Date(2026, 2, 6, 17, 0, 0, 0, ny), Countdown{Hours: 64, Minutes: 30}},
		{"saturday", time.Date(2026, 2, 7, 9, 30, 0, 0, ny), Countdown{Hours: 48}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := TimeUntilNextSession(cfg, tc.at)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	empty := cfg.Clone()
	empty.TradingDays = []int{}
	_, err := TimeUntilNextSession(empty, time.Now())
	assert.ErrorIs(t, err, ErrNoTradingDays)
}

func TestCountdown(t *testing.T) {
	c := countdownOf(26*time.Hour + 3*time.Minute + 4*time.Second)
	assert.Equal(t, Countdown{Hours: 26, Minutes: 3, Seconds: 4}, c)
	assert.Equal(t, "26:03:04", c.String())
	assert.Equal(t, 26*time.Hour+3*time.Minute+4*time.Second, c.Duration())
}

func TestStartRequiresCycle(t *testing.T) {
	s := New(config.DefaultScheduleConfig(), nil, &market{}, nil, logger.Nop())
	assert.ErrorIs(t, s.Start(t.Context()), ErrNoCycle)
	assert.False(t, s.Running())
}

func TestStartRunsImmediately(t *testing.T) {
	ny := newYork(t)
	clock := NewFixedClock(time.Date(2026, 3, 2, 11, 0, 0, 0, ny))
	m := &market{open: true}
	var calls atomic.Int32
	s := New(config.DefaultScheduleConfig(), clock, m, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, logger.Nop())

	require.NoError(t, s.Start(t.Context()))
	defer s.Stop()

	assert.Equal(t, int32(1), calls.Load(), "first tick is synchronous")
	st := s.Status()
	assert.True(t, st.Running)
	assert.Equal(t, int64(1), st.TotalRuns)
	assert.True(t, st.MarketOpen)
	require.NotNil(t, st.NextRun)
	assert.Equal(t, clock.Now().Add(5*time.Minute), *st.NextRun)
	assert.Equal(t, "11:00", st.LocalTime)

	assert.ErrorIs(t, s.Start(t.Context()), ErrAlreadyRunning)
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(config.DefaultScheduleConfig(), nil, &market{}, func(ctx context.Context) error { return nil }, logger.Nop())
	require.NoError(t, s.Start(t.Context()))

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)
	assert.False(t, s.Running())
	assert.Nil(t, s.Status().NextRun)
}

func TestCycleErrorsAreCounted(t *testing.T) {
	ny := newYork(t)
	clock := NewFixedClock(time.Date(2026, 3, 2, 11, 0, 0, 0, ny))
	cfg := config.DefaultScheduleConfig()
	cfg.Interval = "10ms"

	var calls atomic.Int32
	s := New(cfg, clock, &market{open: true}, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			panic("first cycle explodes")
		}
		return errors.New("broker down")
	}, logger.Nop())

	require.NoError(t, s.Start(t.Context()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return s.Runs() >= 3 }, 2*time.Second, 5*time.Millisecond)
	st := s.Status()
	assert.True(t, st.Running, "errors do not stop the scheduler")
	assert.GreaterOrEqual(t, st.Errors, int64(2))
	assert.NotEmpty(t, st.LastError)
}

func TestSkippedTickStillCounts(t *testing.T) {
	ny := newYork(t)
	clock := NewFixedClock(time.Date(2026, 3, 7, 11, 0, 0, 0, ny))
	var calls atomic.Int32
	s := New(config.DefaultScheduleConfig(), clock, &market{open: true}, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}, logger.Nop())

	require.NoError(t, s.Start(t.Context()))
	defer s.Stop()

	assert.Zero(t, calls.Load())
	assert.Equal(t, int64(1), s.Runs())
}

func TestContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	s := New(config.DefaultScheduleConfig(), nil, &market{}, func(ctx context.Context) error { return nil }, logger.Nop())
	require.NoError(t, s.Start(ctx))

	cancel()
	assert.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)
}

func TestUpdateSchedule(t *testing.T) {
	s := New(config.DefaultScheduleConfig(), nil, &market{}, func(ctx context.Context) error { return nil }, logger.Nop())

	interval := "1m"
	got, err := s.UpdateSchedule(config.SchedulePatch{Interval: &interval, TradingDays: []int{1, 3}})
	require.NoError(t, err)
	assert.Equal(t, "1m", got.Interval)
	assert.Equal(t, []int{1, 3}, s.Schedule().TradingDays)
	assert.Equal(t, "09:30", got.TradingStart)

	bad := "25:00"
	_, err = s.UpdateSchedule(config.SchedulePatch{TradingStart: &bad})
	assert.Error(t, err)
	assert.Equal(t, "09:30", s.Schedule().TradingStart)
}
