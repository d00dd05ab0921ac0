package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials is returned by Validate when the selected broker has no credentials.
var ErrMissingCredentials = errors.New("missing broker credentials")

const (
	ProviderAlpaca  = "alpaca"
	ProviderTinkoff = "tinkoff"
)

type Config struct {
	Broker     BrokerConfig              `yaml:"broker"`
	Bot        BotConfig                 `yaml:"bot"`
	Schedule   ScheduleConfig            `yaml:"schedule"`
	Strategies map[string]StrategyConfig `yaml:"strategies"`
	DeepSeek   DeepSeekConfig            `yaml:"deepseek"`
	Telegram   TelegramConfig            `yaml:"telegram"`
	Web        WebConfig                 `yaml:"web"`
	Logging    LoggingConfig             `yaml:"logging"`
}

type BrokerConfig struct {
	Provider string        `yaml:"provider"`
	Alpaca   AlpacaConfig  `yaml:"alpaca"`
	Tinkoff  TinkoffConfig `yaml:"tinkoff"`
}

type AlpacaConfig struct {
	KeyID             string  `yaml:"key_id"`
	SecretKey         string  `yaml:"secret_key"`
	Paper             bool    `yaml:"paper"`
	BaseURL           string  `yaml:"base_url"`
	DataURL           string  `yaml:"data_url"`
	Feed              string  `yaml:"feed"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
}

type TinkoffConfig struct {
	Token           string `yaml:"token"`
	Sandbox         bool   `yaml:"sandbox"`
	AccountID       string `yaml:"account_id"`
	ReferenceTicker string `yaml:"reference_ticker"`
}

// StrategyConfig overrides the defaults of a registered rule at startup.
type StrategyConfig struct {
	Enabled         *bool          `yaml:"enabled"`
	MinConfidence   *float64       `yaml:"min_confidence"`
	RiskPercent     *float64       `yaml:"risk_percent"`
	MaxPositionSize *float64       `yaml:"max_position_size"`
	Parameters      map[string]any `yaml:"parameters"`
}

type DeepSeekConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Bot:      DefaultBotConfig(),
		Schedule: DefaultScheduleConfig(),
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Default returns a config with every default applied and no credentials.
func Default() *Config {
	cfg := &Config{
		Bot:      DefaultBotConfig(),
		Schedule: DefaultScheduleConfig(),
	}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Broker.Provider == "" {
		cfg.Broker.Provider = ProviderAlpaca
	}
	if cfg.Broker.Alpaca.BaseURL == "" {
		if cfg.Broker.Alpaca.Paper {
			cfg.Broker.Alpaca.BaseURL = "https://paper-api.alpaca.markets"
		} else {
			cfg.Broker.Alpaca.BaseURL = "https://api.alpaca.markets"
		}
	}
	if cfg.Broker.Alpaca.DataURL == "" {
		cfg.Broker.Alpaca.DataURL = "https://data.alpaca.markets"
	}
	if cfg.Broker.Alpaca.Feed == "" {
		cfg.Broker.Alpaca.Feed = "iex"
	}
	if cfg.Broker.Alpaca.RequestsPerSecond == 0 {
		cfg.Broker.Alpaca.RequestsPerSecond = 3
	}
	if cfg.Broker.Alpaca.TimeoutSeconds == 0 {
		cfg.Broker.Alpaca.TimeoutSeconds = 15
	}
	if cfg.Broker.Tinkoff.ReferenceTicker == "" {
		cfg.Broker.Tinkoff.ReferenceTicker = "SBER"
	}
	if cfg.DeepSeek.BaseURL == "" {
		cfg.DeepSeek.BaseURL = "https://api.deepseek.com/v1"
	}
	if cfg.DeepSeek.Model == "" {
		cfg.DeepSeek.Model = "deepseek-chat"
	}
	if cfg.DeepSeek.TimeoutSeconds == 0 {
		cfg.DeepSeek.TimeoutSeconds = 60
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	cfg.Bot.setDefaults()
	cfg.Schedule.setDefaults()
}

func (c *Config) Validate() error {
	switch c.Broker.Provider {
	case ProviderAlpaca:
		if c.Broker.Alpaca.KeyID == "" || c.Broker.Alpaca.SecretKey == "" {
			return fmt.Errorf("broker.alpaca.key_id and secret_key: %w", ErrMissingCredentials)
		}
	case ProviderTinkoff:
		if c.Broker.Tinkoff.Token == "" {
			return fmt.Errorf("broker.tinkoff.token: %w", ErrMissingCredentials)
		}
	default:
		return fmt.Errorf("unknown broker.provider %q", c.Broker.Provider)
	}
	if err := c.Bot.Validate(); err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	if err := c.Schedule.Validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

func (c *Config) IsPaper() bool {
	if c.Broker.Provider == ProviderTinkoff {
		return c.Broker.Tinkoff.Sandbox
	}
	return c.Broker.Alpaca.Paper
}

func (c *Config) BrokerTimeout() time.Duration {
	return time.Duration(c.Broker.Alpaca.TimeoutSeconds) * time.Second
}

func (c *Config) DeepSeekTimeout() time.Duration {
	return time.Duration(c.DeepSeek.TimeoutSeconds) * time.Second
}
