// Package cli provides the command-line interface for the option engine.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"callput-engine/internal/chart"
	"callput-engine/internal/config"
	"callput-engine/internal/logging"
	"callput-engine/internal/market"
	"callput-engine/internal/store"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2025-04-23"
)

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *market.Registry

	storeOnce sync.Once
	store     store.DataStore
	storeErr  error
}

// NewApp builds the application from a loaded configuration.
func NewApp(cfg *config.Config, logger zerolog.Logger) (*App, error) {
	assets := make([]market.Asset, len(cfg.Assets))
	for i, a := range cfg.Assets {
		assets[i] = market.Asset{Index: a.Index, Ticker: a.Ticker, Decimals: a.Decimals}
	}
	reg, err := market.NewRegistry(assets)
	if err != nil {
		return nil, fmt.Errorf("asset registry: %w", err)
	}
	return &App{Config: cfg, Logger: logger, Registry: reg}, nil
}

// Store opens the SQLite store on first use.
func (a *App) Store() (store.DataStore, error) {
	a.storeOnce.Do(func() {
		if a.store != nil {
			return
		}
		if err := os.MkdirAll(filepath.Dir(a.Config.Store.Path), 0755); err != nil {
			a.storeErr = fmt.Errorf("creating store directory: %w", err)
			return
		}
		a.store, a.storeErr = store.NewSQLiteStore(a.Config.Store.Path)
		if a.storeErr == nil {
			a.Logger.Debug().Str("path", a.Config.Store.Path).Msg("SQLite store opened")
		}
	})
	return a.store, a.storeErr
}

// Close releases the store if it was opened.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// ChartConfig converts the configured chart heuristics.
func (a *App) ChartConfig() chart.Config {
	c := a.Config.Chart
	return chart.Config{
		TickInterval:   c.TickInterval,
		NakedMinMargin: c.NakedMinMargin,
		NakedMaxMargin: c.NakedMaxMargin,
		ComboMinMargin: c.ComboMinMargin,
		ComboMaxMargin: c.ComboMaxMargin,
		DaysDivisor:    c.DaysDivisor,
	}
}

func (a *App) context(cmd *cobra.Command, operation string) context.Context {
	return logging.WithLogger(cmd.Context(), logging.WithOperation(a.Logger, operation))
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "callput",
		Short: "Option token engine for Callput positions",
		Long: `callput decodes and encodes option token ids, prices options with Black-76,
values positions and portfolios, finds break-even points and draws payoff charts.

Market data comes from an imported snapshot (callput snapshot import) or, when
none is available, from forwards given with --forward and the configured vols.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			if db, _ := cmd.Flags().GetString("db"); db != "" {
				app.Config.Store.Path = db
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/callput-engine)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newTokenCmd(app))
	rootCmd.AddCommand(newPriceCmd(app))
	rootCmd.AddCommand(newHoldingsCmd(app))
	rootCmd.AddCommand(newPnLCmd(app))
	rootCmd.AddCommand(newSettleCmd(app))
	rootCmd.AddCommand(newChartCmd(app))
	rootCmd.AddCommand(newSnapshotCmd(app))
	rootCmd.AddCommand(newAgentCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("callput v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Chart")
	output.Printf("  Tick interval:   %.2f\n", cfg.Chart.TickInterval)
	output.Printf("  Naked margins:   %.2f / %.2f\n", cfg.Chart.NakedMinMargin, cfg.Chart.NakedMaxMargin)
	output.Printf("  Combo margins:   %.2f / %.2f\n", cfg.Chart.ComboMinMargin, cfg.Chart.ComboMaxMargin)
	output.Printf("  Days divisor:    %.0f\n", cfg.Chart.DaysDivisor)
	output.Println()

	output.Bold("Pricing")
	output.Printf("  Risk-free rate:  %.4f\n", cfg.Pricing.RiskFreeRate)
	for _, a := range cfg.Assets {
		vol, ok := cfg.Pricing.Vol(a.Ticker)
		volStr := "none"
		if ok {
			volStr = FormatIV(vol)
		}
		output.Printf("  %-5s index %d, %d decimals, default vol %s\n", a.Ticker, a.Index, a.Decimals, volStr)
	}
	output.Println()

	output.Bold("Storage and logging")
	output.Printf("  Database:        %s\n", cfg.Store.Path)
	output.Printf("  Log level:       %s\n", cfg.Logging.Level)
	output.Println()

	output.Bold("Agent")
	output.Printf("  Model:           %s\n", cfg.Agent.Model)
	output.Printf("  Max tool rounds: %d\n", cfg.Agent.MaxToolRounds)
	output.Printf("  API key set:     %v\n", cfg.Credentials.OpenAI.APIKey != "")
}
