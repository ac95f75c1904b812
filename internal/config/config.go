// Package config provides configuration management for the option engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"callput-engine/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Chart       ChartConfig   `mapstructure:"chart"`
	Pricing     PricingConfig `mapstructure:"pricing"`
	Assets      []AssetConfig `mapstructure:"assets"`
	Store       StoreConfig   `mapstructure:"store"`
	Logging     LoggingConfig `mapstructure:"logging"`
	Agent       AgentConfig   `mapstructure:"agent"`
	Credentials Credentials   `mapstructure:"-" json:"-"` // Loaded separately
}

// ChartConfig holds the payoff chart heuristics.
type ChartConfig struct {
	TickInterval   float64 `mapstructure:"tick_interval"`
	NakedMinMargin float64 `mapstructure:"naked_min_margin"`
	NakedMaxMargin float64 `mapstructure:"naked_max_margin"`
	ComboMinMargin float64 `mapstructure:"combo_min_margin"`
	ComboMaxMargin float64 `mapstructure:"combo_max_margin"`
	DaysDivisor    float64 `mapstructure:"days_divisor"`
	Width          int     `mapstructure:"width"`  // terminal columns
	Height         int     `mapstructure:"height"` // terminal rows
}

// PricingConfig holds valuation parameters.
type PricingConfig struct {
	RiskFreeRate float64            `mapstructure:"risk_free_rate"`
	DefaultVols  map[string]float64 `mapstructure:"default_vols"` // ticker -> annualized vol
}

// Vol returns the default vol for ticker. Viper lower-cases map keys, so
// the lookup ignores case.
func (p PricingConfig) Vol(ticker string) (float64, bool) {
	for k, v := range p.DefaultVols {
		if strings.EqualFold(k, ticker) {
			return v, true
		}
	}
	return 0, false
}

// AssetConfig describes one underlying.
type AssetConfig struct {
	Index    uint16 `mapstructure:"index"`
	Ticker   string `mapstructure:"ticker"`
	Decimals int32  `mapstructure:"decimals"`
}

// StoreConfig holds persistence configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    string `mapstructure:"file"` // empty disables file logging
}

// AgentConfig holds AI agent configuration.
type AgentConfig struct {
	Model         string  `mapstructure:"model"`
	MaxToolRounds int     `mapstructure:"max_tool_rounds"`
	Temperature   float32 `mapstructure:"temperature"`
	// RequestsPerMinute caps chat completion calls; 0 disables the limit.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// Credentials holds API credentials.
type Credentials struct {
	OpenAI OpenAICredentials `mapstructure:"openai"`
}

// OpenAICredentials holds OpenAI API credentials.
type OpenAICredentials struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/callput-engine"
	}
	return filepath.Join(home, ".config", "callput-engine")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. Missing files
// are created from templates and the defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(configDir, "callput.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chart.tick_interval", 1.0)
	v.SetDefault("chart.naked_min_margin", 0.1)
	v.SetDefault("chart.naked_max_margin", 0.1)
	v.SetDefault("chart.combo_min_margin", 0.2)
	v.SetDefault("chart.combo_max_margin", 0.2)
	v.SetDefault("chart.days_divisor", 60.0)
	v.SetDefault("chart.width", 72)
	v.SetDefault("chart.height", 18)

	v.SetDefault("pricing.risk_free_rate", 0.0)
	v.SetDefault("pricing.default_vols", map[string]float64{"BTC": 0.55, "ETH": 0.7})

	v.SetDefault("assets", []map[string]interface{}{
		{"index": 1, "ticker": "BTC", "decimals": 8},
		{"index": 2, "ticker": "ETH", "decimals": 18},
	})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)

	v.SetDefault("agent.model", "gpt-4o")
	v.SetDefault("agent.max_tool_rounds", 6)
	v.SetDefault("agent.temperature", 0.2)
	v.SetDefault("agent.requests_per_minute", 30)
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplate(configDir, "config.toml", configTemplate, 0644); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplate(configDir, "credentials.toml", credentialsTemplate, 0600)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.Credentials.OpenAI.BaseURL = v
	}
	if v := os.Getenv("CALLPUT_MODEL"); v != "" {
		cfg.Agent.Model = v
	}
	if v := os.Getenv("CALLPUT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CALLPUT_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	ch := c.Chart
	if ch.TickInterval <= 0 {
		return invalid("chart.tick_interval must be positive")
	}
	for name, m := range map[string]float64{
		"naked_min_margin": ch.NakedMinMargin,
		"naked_max_margin": ch.NakedMaxMargin,
		"combo_min_margin": ch.ComboMinMargin,
		"combo_max_margin": ch.ComboMaxMargin,
	} {
		if m < 0 || m >= 1 {
			return invalid(fmt.Sprintf("chart.%s must be in [0, 1)", name))
		}
	}
	if ch.DaysDivisor <= 0 {
		return invalid("chart.days_divisor must be positive")
	}

	if len(c.Assets) == 0 {
		return invalid("at least one [[assets]] entry is required")
	}
	seen := make(map[string]bool)
	for _, a := range c.Assets {
		t := strings.ToUpper(a.Ticker)
		if t == "" || seen[t] {
			return invalid(fmt.Sprintf("asset %d: empty or duplicate ticker %q", a.Index, a.Ticker))
		}
		seen[t] = true
		if a.Decimals < 0 || a.Decimals > 36 {
			return invalid(fmt.Sprintf("asset %s: decimals must be between 0 and 36", t))
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Sprintf("logging.level %q is not a level", c.Logging.Level))
	}

	if c.Agent.MaxToolRounds < 1 {
		return invalid("agent.max_tool_rounds must be at least 1")
	}
	if c.Agent.RequestsPerMinute < 0 {
		return invalid("agent.requests_per_minute must not be negative")
	}
	return nil
}

func invalid(msg string) error {
	return errors.Wrap(errors.ErrConfigInvalid, msg)
}
