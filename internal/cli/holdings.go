package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"callput-engine/internal/market"
	"callput-engine/internal/models"
	"callput-engine/internal/store"
	"callput-engine/internal/strategy"
	"callput-engine/pkg/utils"
)

func newHoldingsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "holdings",
		Aliases: []string{"h"},
		Short:   "Manage stored holdings",
		Long:    "Record, list and remove the positions held in the local store.",
	}

	cmd.AddCommand(newHoldingsAddCmd(app))
	cmd.AddCommand(newHoldingsListCmd(app))
	cmd.AddCommand(newHoldingsRemoveCmd(app))

	return cmd
}

func newHoldingsAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "add <token-id>",
		Short:   "Add or replace a holding",
		Long:    "Store a holding under its token id. An existing holding with the same id is replaced.",
		Example: "  callput holdings add 0x0001... --size 2 --price 850",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "holdings.add")

			h, err := holdingFromArgs(cmd, args[0])
			if err != nil {
				return err
			}
			if h.Size == 0 {
				return fmt.Errorf("--size must be positive")
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			if err := st.SaveHolding(ctx, &h); err != nil {
				return fmt.Errorf("saving holding: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(h)
			}
			name, _ := market.MainName(h.Position, app.Registry)
			output.Success("✓ Saved %s %s x%s @ %s", h.Position.Strategy, name,
				utils.FormatSize(h.Size), utils.FormatUSD(h.ExecutionPrice))
			return nil
		},
	}

	cmd.Flags().Float64("size", 0, "position size (absolute)")
	cmd.Flags().Float64("price", 0, "average execution price per unit")
	_ = cmd.MarkFlagRequired("size")

	return cmd
}

func newHoldingsListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "holdings.list")

			filter, err := holdingFilterFromFlags(cmd, app.Registry)
			if err != nil {
				return err
			}
			st, err := app.Store()
			if err != nil {
				return err
			}
			holdings, err := st.GetHoldings(ctx, filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(holdings)
			}
			if len(holdings) == 0 {
				output.Info("No holdings stored.")
				output.Dim("Add one with: callput holdings add <token-id> --size N --price P")
				return nil
			}
			renderHoldings(output, app.Registry, holdings)
			return nil
		},
	}

	cmd.Flags().String("asset", "", "filter by underlying ticker")
	cmd.Flags().String("strategy", "", "filter by strategy name")
	cmd.Flags().String("from", "", "earliest expiry (unix seconds or code)")
	cmd.Flags().String("to", "", "latest expiry (unix seconds or code)")
	cmd.Flags().Int("limit", 0, "maximum rows (0 for all)")

	return cmd
}

func newHoldingsRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <token-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a holding",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "holdings.rm")

			st, err := app.Store()
			if err != nil {
				return err
			}
			if err := st.DeleteHolding(ctx, args[0]); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"removed": args[0]})
			}
			output.Success("✓ Removed %s", TruncateString(args[0], 24))
			return nil
		},
	}
}

func holdingFilterFromFlags(cmd *cobra.Command, reg *market.Registry) (store.HoldingFilter, error) {
	var filter store.HoldingFilter

	if ticker, _ := cmd.Flags().GetString("asset"); ticker != "" {
		a, ok := reg.ByTicker(ticker)
		if !ok {
			return filter, fmt.Errorf("unknown asset %q", ticker)
		}
		filter.Asset = &a.Index
	}
	if name, _ := cmd.Flags().GetString("strategy"); name != "" {
		s, ok := models.ParseStrategy(name)
		if !ok {
			return filter, fmt.Errorf("unknown strategy %q", name)
		}
		filter.Strategy = s
	}
	if v, _ := cmd.Flags().GetString("from"); v != "" {
		from, err := parseExpiry(v)
		if err != nil {
			return filter, err
		}
		filter.ExpiryFrom = from
	}
	if v, _ := cmd.Flags().GetString("to"); v != "" {
		to, err := parseExpiry(v)
		if err != nil {
			return filter, err
		}
		filter.ExpiryTo = to
	}
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	return filter, nil
}

func renderHoldings(output *Output, reg *market.Registry, holdings []models.Holding) {
	table := NewTable(output, "Token", "Instrument", "Strategy", "Legs", "Size", "Price")
	for _, h := range holdings {
		name, err := market.MainName(h.Position, reg)
		if err != nil {
			name = "?"
		}
		legs, _ := strategy.ActiveLegs(h.Position)
		table.AddRow(
			TruncateString(h.TokenID, 14),
			name,
			h.Position.Strategy.String(),
			FormatLegs(legs),
			utils.FormatSize(h.Size),
			utils.FormatUSD(h.ExecutionPrice),
		)
	}
	table.Render()
}
