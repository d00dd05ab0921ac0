package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/camuig/strategy-trader/internal/config"
)

var ErrNoTradingDays = errors.New("no trading days configured")

// InWindow reports whether minute-of-day cur lies in [start, end]. A window
// with end before start spans midnight.
func InWindow(cur, start, end int) bool {
	if end < start {
		return cur >= start || cur <= end
	}
	return cur >= start && cur <= end
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// sessionBounds returns the start and end of the active window in minutes.
// Extended hours widen it to pre-market start and after-hours end.
func sessionBounds(cfg config.ScheduleConfig) (int, int, error) {
	startKey, endKey := cfg.TradingStart, cfg.TradingEnd
	if cfg.ExtendedHours {
		startKey, endKey = cfg.PreMarketStart, cfg.AfterHoursEnd
	}
	start, err := config.ParseClock(startKey)
	if err != nil {
		return 0, 0, err
	}
	end, err := config.ParseClock(endKey)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// WithinTradingHours is the local fallback used when the broker cannot tell
// whether the market is open.
func WithinTradingHours(cfg config.ScheduleConfig, now time.Time) bool {
	local := now.In(cfg.Location())
	if !cfg.IsTradingDay(local.Weekday()) {
		return false
	}
	start, end, err := sessionBounds(cfg)
	if err != nil {
		return false
	}
	return InWindow(minuteOfDay(local), start, end)
}

// Countdown is the time left until the next session opens.
type Countdown struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

func (c Countdown) Duration() time.Duration {
	return time.Duration(c.Hours)*time.Hour + time.Duration(c.Minutes)*time.Minute + time.Duration(c.Seconds)*time.Second
}

func (c Countdown) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hours, c.Minutes, c.Seconds)
}

func countdownOf(d time.Duration) Countdown {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	return Countdown{Hours: h, Minutes: m, Seconds: int(d / time.Second)}
}

// TimeUntilNextSession is zero inside a session on a trading day. Otherwise
// it is the distance to the next trading day's open.
func TimeUntilNextSession(cfg config.ScheduleConfig, now time.Time) (Countdown, error) {
	if len(cfg.TradingDays) == 0 {
		return Countdown{}, ErrNoTradingDays
	}
	if WithinTradingHours(cfg, now) {
		return Countdown{}, nil
	}
	open, _, err := sessionBounds(cfg)
	if err != nil {
		return Countdown{}, err
	}

	loc := cfg.Location()
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	for offset := 0; offset <= 7; offset++ {
		day := midnight.AddDate(0, 0, offset)
		if !cfg.IsTradingDay(day.Weekday()) {
			continue
		}
		at := time.Date(day.Year(), day.Month(), day.Day(), open/60, open%60, 0, 0, loc)
		if at.After(local) {
			return countdownOf(at.Sub(local)), nil
		}
	}
	return Countdown{}, ErrNoTradingDays
}
