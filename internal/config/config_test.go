package config

import (
	"os"
	"path/filepath"
	"testing"

	"callput-engine/internal/errors"
)

func TestLoad_CreatesTemplates(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CALLPUT_DB_PATH", "")
	t.Setenv("CALLPUT_LOG_LEVEL", "")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, name := range []string{"config.toml", "credentials.toml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}

	if cfg.Chart.DaysDivisor != 60 || cfg.Chart.ComboMinMargin != 0.2 {
		t.Errorf("chart defaults = %+v", cfg.Chart)
	}
	if len(cfg.Assets) != 2 || cfg.Assets[0].Ticker != "BTC" || cfg.Assets[1].Decimals != 18 {
		t.Errorf("assets = %+v", cfg.Assets)
	}
	if cfg.Store.Path != filepath.Join(dir, "callput.db") {
		t.Errorf("store path = %q", cfg.Store.Path)
	}

	// The written template must load back to the same values.
	again, err := Load(dir)
	if err != nil {
		t.Fatalf("Load template: %v", err)
	}
	if again.Chart != cfg.Chart {
		t.Errorf("template chart = %+v, want %+v", again.Chart, cfg.Chart)
	}
	if vol, ok := again.Pricing.Vol("ETH"); !ok || vol != 0.7 {
		t.Errorf("ETH vol = %v, %v", vol, ok)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CALLPUT_DB_PATH", "/tmp/other.db")
	t.Setenv("CALLPUT_LOG_LEVEL", "debug")
	t.Setenv("CALLPUT_MODEL", "gpt-4o-mini")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "/tmp/other.db" || cfg.Logging.Level != "debug" ||
		cfg.Agent.Model != "gpt-4o-mini" || cfg.Credentials.OpenAI.APIKey != "sk-test" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tick", func(c *Config) { c.Chart.TickInterval = 0 }},
		{"margin too wide", func(c *Config) { c.Chart.ComboMaxMargin = 1 }},
		{"zero divisor", func(c *Config) { c.Chart.DaysDivisor = 0 }},
		{"no assets", func(c *Config) { c.Assets = nil }},
		{"duplicate ticker", func(c *Config) { c.Assets = append(c.Assets, AssetConfig{Index: 9, Ticker: "btc"}) }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"no tool rounds", func(c *Config) { c.Agent.MaxToolRounds = 0 }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, errors.ErrConfigInvalid) {
				t.Errorf("err = %v, want ErrConfigInvalid", err)
			}
		})
	}
}
