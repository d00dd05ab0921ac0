package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduleConfig is the polling policy owned by the scheduler.
type ScheduleConfig struct {
	Interval       string `yaml:"interval" json:"interval"`
	TradingStart   string `yaml:"trading_start" json:"tradingStart"`
	TradingEnd     string `yaml:"trading_end" json:"tradingEnd"`
	Timezone       string `yaml:"timezone" json:"timezone"`
	TradingDays    []int  `yaml:"trading_days" json:"tradingDays"`
	PreMarketStart string `yaml:"pre_market_start" json:"preMarketStart"`
	AfterHoursEnd  string `yaml:"after_hours_end" json:"afterHoursEnd"`
	ExtendedHours  bool   `yaml:"extended_hours" json:"extendedHours"`
}

func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		Interval:       "5m",
		TradingStart:   "09:30",
		TradingEnd:     "16:00",
		Timezone:       "America/New_York",
		TradingDays:    []int{1, 2, 3, 4, 5},
		PreMarketStart: "04:00",
		AfterHoursEnd:  "20:00",
	}
}

func (s *ScheduleConfig) setDefaults() {
	d := DefaultScheduleConfig()
	if s.Interval == "" {
		s.Interval = d.Interval
	}
	if s.TradingStart == "" {
		s.TradingStart = d.TradingStart
	}
	if s.TradingEnd == "" {
		s.TradingEnd = d.TradingEnd
	}
	if s.Timezone == "" {
		s.Timezone = d.Timezone
	}
	if s.TradingDays == nil {
		s.TradingDays = d.TradingDays
	}
	if s.PreMarketStart == "" {
		s.PreMarketStart = d.PreMarketStart
	}
	if s.AfterHoursEnd == "" {
		s.AfterHoursEnd = d.AfterHoursEnd
	}
}

func (s ScheduleConfig) Validate() error {
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", s.Interval, err)
	}
	if d <= 0 {
		return fmt.Errorf("interval must be positive, got %s", s.Interval)
	}
	for name, v := range map[string]string{
		"trading_start":    s.TradingStart,
		"trading_end":      s.TradingEnd,
		"pre_market_start": s.PreMarketStart,
		"after_hours_end":  s.AfterHoursEnd,
	} {
		if _, err := ParseClock(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	for _, day := range s.TradingDays {
		if day < 0 || day > 6 {
			return fmt.Errorf("trading day %d out of range 0..6", day)
		}
	}
	return nil
}

func (s ScheduleConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(s.Interval)
	return d
}

func (s ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsTradingDay reports whether the weekday is in the trading-day set.
func (s ScheduleConfig) IsTradingDay(day time.Weekday) bool {
	for _, d := range s.TradingDays {
		if time.Weekday(d) == day {
			return true
		}
	}
	return false
}

func (s ScheduleConfig) Clone() ScheduleConfig {
	s.TradingDays = append([]int(nil), s.TradingDays...)
	return s
}

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(v string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", v)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", v)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", v)
	}
	return h*60 + m, nil
}

// SchedulePatch carries a partial ScheduleConfig update; set fields overwrite.
type SchedulePatch struct {
	Interval       *string `json:"interval,omitempty"`
	TradingStart   *string `json:"tradingStart,omitempty"`
	TradingEnd     *string `json:"tradingEnd,omitempty"`
	Timezone       *string `json:"timezone,omitempty"`
	TradingDays    []int   `json:"tradingDays,omitempty"`
	PreMarketStart *string `json:"preMarketStart,omitempty"`
	AfterHoursEnd  *string `json:"afterHoursEnd,omitempty"`
	ExtendedHours  *bool   `json:"extendedHours,omitempty"`
}

func (p SchedulePatch) Apply(s ScheduleConfig) (ScheduleConfig, error) {
	out := s.Clone()
	if p.Interval != nil {
		out.Interval = *p.Interval
	}
	if p.TradingStart != nil {
		out.TradingStart = *p.TradingStart
	}
	if p.TradingEnd != nil {
		out.TradingEnd = *p.TradingEnd
	}
	if p.Timezone != nil {
		out.Timezone = *p.Timezone
	}
	if p.TradingDays != nil {
		out.TradingDays = append([]int(nil), p.TradingDays...)
	}
	if p.PreMarketStart != nil {
		out.PreMarketStart = *p.PreMarketStart
	}
	if p.AfterHoursEnd != nil {
		out.AfterHoursEnd = *p.AfterHoursEnd
	}
	if p.ExtendedHours != nil {
		out.ExtendedHours = *p.ExtendedHours
	}
	if err := out.Validate(); err != nil {
		return s, err
	}
	return out, nil
}
