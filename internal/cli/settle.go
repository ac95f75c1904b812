package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"callput-engine/internal/logging"
	"callput-engine/internal/market"
	"callput-engine/internal/store"
	"callput-engine/pkg/utils"
)

func newSettleCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Manage settle prices",
		Long: `Settle prices are the underlying prices fixed at expiry. Expired positions
with a settle price are valued at settlement instead of from marks.`,
	}

	cmd.AddCommand(newSettleSetCmd(app))
	cmd.AddCommand(newSettleListCmd(app))
	cmd.AddCommand(newSettleImportCmd(app))

	return cmd
}

func newSettleSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "set <ticker> <expiry> <price>",
		Short:   "Record one settle price",
		Example: "  callput settle set BTC 8MAR24 67412.5",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "settle.set")

			a, ok := app.Registry.ByTicker(args[0])
			if !ok {
				return fmt.Errorf("unknown asset %q", args[0])
			}
			expiry, err := parseExpiry(args[1])
			if err != nil {
				return err
			}
			price, err := strconv.ParseFloat(args[2], 64)
			if err != nil || price <= 0 {
				return fmt.Errorf("invalid price %q", args[2])
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			if err := st.SaveSettlePrice(ctx, expiry, a.Index, price); err != nil {
				return err
			}
			if err := store.NewFreshnessTracker(st, nil).MarkSynced(store.SyncTypeSettle); err != nil {
				logger := logging.FromContext(ctx)
				logger.Warn().Err(err).Msg("Failed to record settle sync")
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"asset":  a.Ticker,
					"expiry": expiry,
					"price":  price,
				})
			}
			output.Success("✓ %s settled at %s on %s", a.Ticker, utils.FormatUSD(price), market.ExpiryCode(expiry))
			return nil
		},
	}
}

func newSettleListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recorded settle prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "settle.list")

			st, err := app.Store()
			if err != nil {
				return err
			}
			table, err := st.GetSettleTable(ctx)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				doc := make(map[string]map[string]float64)
				for _, e := range table.Expiries() {
					byTicker := make(map[string]float64)
					for idx, price := range table.Prices(e) {
						byTicker[app.Registry.Ticker(idx)] = price
					}
					doc[strconv.FormatInt(e, 10)] = byTicker
				}
				return output.JSON(doc)
			}

			expiries := table.Expiries()
			if len(expiries) == 0 {
				output.Info("No settle prices recorded.")
				return nil
			}

			tracker := store.NewFreshnessTracker(st, nil)
			output.Dim("%s", store.FormatFreshness(tracker.Freshness(store.SyncTypeSettle)))
			output.Println()

			t := NewTable(output, "Expiry", "Date", "Asset", "Price")
			for _, e := range expiries {
				prices := table.Prices(e)
				for _, a := range app.Registry.Assets() {
					price, ok := prices[a.Index]
					if !ok {
						continue
					}
					t.AddRow(market.ExpiryCode(e), FormatExpiry(e), a.Ticker, utils.FormatUSD(price))
				}
			}
			t.Render()
			return nil
		},
	}
}

func newSettleImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import settle prices from JSON",
		Long: `Import settle prices from a JSON document keyed by expiry and ticker:

  {"1709884800": {"BTC": 67412.5, "ETH": 3890.1}}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "settle.import")
			logger := logging.FromContext(ctx)

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			table, err := market.LoadSettleTable(f, app.Registry)
			if err != nil {
				return err
			}

			st, err := app.Store()
			if err != nil {
				return err
			}
			rows := 0
			for _, e := range table.Expiries() {
				for idx, price := range table.Prices(e) {
					if err := st.SaveSettlePrice(ctx, e, idx, price); err != nil {
						return err
					}
					rows++
				}
			}
			if err := store.NewFreshnessTracker(st, nil).MarkSynced(store.SyncTypeSettle); err != nil {
				logger.Warn().Err(err).Msg("Failed to record settle sync")
			}
			logging.LogImport(logger, "settle", rows)

			if output.IsJSON() {
				return output.JSON(map[string]int{"imported": rows})
			}
			output.Success("✓ Imported %d settle prices across %d expiries", rows, len(table.Expiries()))
			return nil
		},
	}
}
