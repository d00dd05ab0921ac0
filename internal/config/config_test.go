package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
broker:
  alpaca:
    key_id: k
    secret_key: s
    paper: true
bot:
  symbols: [" msft ", aapl]
`))
	require.NoError(t, err)

	assert.Equal(t, ProviderAlpaca, cfg.Broker.Provider)
	assert.Equal(t, "https://paper-api.alpaca.markets", cfg.Broker.Alpaca.BaseURL)
	assert.Equal(t, []string{"MSFT", "AAPL"}, cfg.Bot.Symbols)
	assert.True(t, cfg.Bot.DryRun, "dry run stays on unless disabled explicitly")
	assert.Equal(t, OptionCall, cfg.Bot.Derivatives.OptionType)
	assert.Equal(t, "09:30", cfg.Schedule.TradingStart)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, cfg.Schedule.TradingDays)
	assert.Equal(t, 8080, cfg.Web.Port)
}

func TestParseDryRunCanBeDisabled(t *testing.T) {
	cfg, err := Parse([]byte(`
broker:
  alpaca: {key_id: k, secret_key: s}
bot:
  dry_run: false
`))
	require.NoError(t, err)
	assert.False(t, cfg.Bot.DryRun)
}

func TestParseKeepsExplicitZeroLimits(t *testing.T) {
	cfg, err := Parse([]byte(`
broker:
  alpaca: {key_id: k, secret_key: s}
bot:
  max_positions: 0
  risk_percent: 0
  max_position_size: 0
`))
	require.NoError(t, err)
	assert.Zero(t, cfg.Bot.MaxPositions, "0 disables the max positions gate")
	assert.Zero(t, cfg.Bot.RiskPercent)
	assert.Zero(t, cfg.Bot.MaxPositionSize)

	omitted, err := Parse([]byte(`
broker:
  alpaca: {key_id: k, secret_key: s}
bot:
  symbols: [MSFT]
`))
	require.NoError(t, err)
	assert.Equal(t, 5, omitted.Bot.MaxPositions)
	assert.Equal(t, 2.0, omitted.Bot.RiskPercent)
	assert.Equal(t, 10.0, omitted.Bot.MaxPositionSize)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		desc  string
		input string
		creds bool
	}{
		{"missing alpaca keys", `broker: {provider: alpaca}`, true},
		{"missing tinkoff token", `broker: {provider: tinkoff}`, true},
		{"unknown provider", `broker: {provider: ib}`, false},
		{"bad clock", "broker: {alpaca: {key_id: k, secret_key: s}}\nschedule: {trading_start: '25:00'}", false},
		{"bad timezone", "broker: {alpaca: {key_id: k, secret_key: s}}\nschedule: {timezone: Mars/Olympus}", false},
		{"bad weekday", "broker: {alpaca: {key_id: k, secret_key: s}}\nschedule: {trading_days: [7]}", false},
		{"bad interval", "broker: {alpaca: {key_id: k, secret_key: s}}\nschedule: {interval: soon}", false},
		{"bad option type", "broker: {alpaca: {key_id: k, secret_key: s}}\nbot: {derivatives: {option_type: straddle}}", false},
		{"telegram without token", "broker: {alpaca: {key_id: k, secret_key: s}}\ntelegram: {enabled: true}", false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			require.Error(t, err)
			assert.Equal(t, tc.creds, errors.Is(err, ErrMissingCredentials))
		})
	}
}

func TestParseClock(t *testing.T) {
	got, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, got)

	got, err = ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 1439, got)

	for _, bad := range []string{"", "0930", "24:00", "12:60", "ab:cd"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestBotPatchOverwritesTopLevelFields(t *testing.T) {
	base := DefaultBotConfig()
	base.Derivatives.MaxStrike = 200

	dry := false
	size := 3.0
	out, err := BotPatch{
		DryRun:          &dry,
		MaxPositionSize: &size,
		Derivatives:     &DerivativesConfig{Enabled: true, OptionType: OptionPut},
	}.Apply(base)
	require.NoError(t, err)

	assert.False(t, out.DryRun)
	assert.Equal(t, 3.0, out.MaxPositionSize)
	assert.Equal(t, base.Symbols, out.Symbols)
	assert.True(t, out.Derivatives.Enabled)
	assert.Zero(t, out.Derivatives.MaxStrike, "derivatives block is replaced, not merged")

	assert.True(t, base.DryRun, "base must not be mutated")
}

func TestBotPatchRejectsInvalid(t *testing.T) {
	base := DefaultBotConfig()
	_, err := BotPatch{Symbols: []string{}}.Apply(base)
	assert.Error(t, err)
}

func TestSchedulePatch(t *testing.T) {
	base := DefaultScheduleConfig()
	start := "20:00"
	end := "04:00"
	out, err := SchedulePatch{TradingStart: &start, TradingEnd: &end, TradingDays: []int{0, 6}}.Apply(base)
	require.NoError(t, err)
	assert.Equal(t, "20:00", out.TradingStart)
	assert.Equal(t, []int{0, 6}, out.TradingDays)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, base.TradingDays)

	bad := "later"
	_, err = SchedulePatch{Interval: &bad}.Apply(base)
	assert.Error(t, err)
}
