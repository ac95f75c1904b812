package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"callput-engine/internal/agents"
	"callput-engine/internal/chart"
	"callput-engine/internal/market"
	"callput-engine/internal/models"
	"callput-engine/pkg/utils"
)

func newChartCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart <token-id>",
		Short: "Draw the payoff curve of a position",
		Long: `Draw the payoff curve of a position valued one second before expiry, with
its break-even points. Implied vols come from the market data source; the
size and execution price come from --size and --price, or from the stored
holding when --stored is set.`,
		Example: `  callput chart 0x0001... --size 1 --price 850 --forward BTC=66000
  callput chart 0x0001... --stored --snapshot feed.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "chart")

			var h models.Holding
			if stored, _ := cmd.Flags().GetBool("stored"); stored {
				st, err := app.Store()
				if err != nil {
					return err
				}
				got, err := st.GetHolding(ctx, args[0])
				if err != nil {
					return err
				}
				h = *got
			} else {
				var err error
				if h, err = holdingFromArgs(cmd, args[0]); err != nil {
					return err
				}
			}

			md, err := app.loadMarket(ctx, cmd)
			if err != nil {
				return err
			}
			data, err := chart.ForHolding(h, md.Env.Marks, md.Env.AsOf, app.ChartConfig())
			if err != nil {
				return fmt.Errorf("building chart: %w", err)
			}

			if output.IsJSON() {
				if n, _ := cmd.Flags().GetInt("points"); n > 0 {
					data.Points = agents.Downsample(data.Points, n)
				}
				return output.JSON(data)
			}

			name, err := market.MainName(h.Position, app.Registry)
			if err != nil {
				name = TruncateString(h.TokenID, 14)
			}
			output.Bold("%s  %s x%s @ %s", name, h.Position.Strategy, utils.FormatSize(h.Size), utils.FormatUSD(h.ExecutionPrice))
			output.Dim("Valued at expiry, marks from %s", md.Source)
			output.Println()

			width, height := app.Config.Chart.Width, app.Config.Chart.Height
			if v, _ := cmd.Flags().GetInt("width"); v > 0 {
				width = v
			}
			if v, _ := cmd.Flags().GetInt("height"); v > 0 {
				height = v
			}
			for _, line := range output.PayoffChart(data, width, height) {
				output.Println(line)
			}
			output.Println()
			output.Printf("Break-even: %s\n", FormatPrices(data.BreakEvenPoints))
			return nil
		},
	}

	addMarketFlags(cmd)
	cmd.Flags().Float64("size", 1, "position size")
	cmd.Flags().Float64("price", 0, "execution price per unit")
	cmd.Flags().Bool("stored", false, "take size and price from the stored holding")
	cmd.Flags().Int("width", 0, "chart width in columns (default: chart.width)")
	cmd.Flags().Int("height", 0, "chart height in rows (default: chart.height)")
	cmd.Flags().Int("points", 0, "downsample JSON output to at most N points")

	return cmd
}
