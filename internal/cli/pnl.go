package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"callput-engine/internal/logging"
	"callput-engine/internal/market"
	"callput-engine/internal/models"
	"callput-engine/internal/payoff"
	"callput-engine/pkg/utils"
)

type pnlRow struct {
	Holding models.Holding      `json:"holding"`
	Result  models.PayoffResult `json:"result"`
}

type pnlReport struct {
	Source  string                   `json:"source"`
	AsOf    int64                    `json:"as_of"`
	Rows    []pnlRow                 `json:"rows"`
	Summary *models.PortfolioSummary `json:"summary,omitempty"`
}

func newPnLCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pnl [token-id]",
		Short: "Value one position or the stored portfolio",
		Long: `Value a position and report its P&L, ROI and greeks.

With a token id the position is valued at --size and --price. Without one,
every stored holding is valued and the portfolio totals are shown. Expired
positions with a known settle price are valued at settlement.`,
		Example: `  callput pnl 0x0001... --size 2 --price 850 --forward BTC=66000
  callput pnl --snapshot feed.json
  callput pnl --asset ETH`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := app.context(cmd, "pnl")
			logger := logging.FromContext(ctx)

			md, err := app.loadMarket(ctx, cmd)
			if err != nil {
				return err
			}

			report := pnlReport{Source: md.Source, AsOf: md.Env.AsOf}

			if len(args) == 1 {
				h, err := holdingFromArgs(cmd, args[0])
				if err != nil {
					return err
				}
				r, err := payoff.Evaluate(h, md.Env)
				if err != nil {
					return fmt.Errorf("valuing position: %w", err)
				}
				logging.LogValuation(logger, h.TokenID, string(r.Mode), r.PnL, r.ROI)
				report.Rows = []pnlRow{{Holding: h, Result: r}}
			} else {
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
				summary, results, err := payoff.Aggregate(holdings, md.Env)
				if err != nil {
					return fmt.Errorf("valuing portfolio: %w", err)
				}
				for i, h := range holdings {
					logging.LogValuation(logger, h.TokenID, string(results[i].Mode), results[i].PnL, results[i].ROI)
					report.Rows = append(report.Rows, pnlRow{Holding: h, Result: results[i]})
				}
				report.Summary = &summary
			}

			if output.IsJSON() {
				return output.JSON(report)
			}
			renderPnL(output, app.Registry, report)
			return nil
		},
	}

	addMarketFlags(cmd)
	cmd.Flags().Float64("size", 1, "position size when valuing a token id")
	cmd.Flags().Float64("price", 0, "execution price when valuing a token id")
	cmd.Flags().String("asset", "", "filter stored holdings by underlying ticker")
	cmd.Flags().String("strategy", "", "filter stored holdings by strategy name")
	cmd.Flags().String("from", "", "earliest expiry (unix seconds or code)")
	cmd.Flags().String("to", "", "latest expiry (unix seconds or code)")
	cmd.Flags().Int("limit", 0, "maximum holdings (0 for all)")

	return cmd
}

func renderPnL(output *Output, reg *market.Registry, report pnlReport) {
	output.Dim("Market: %s, as of %s", report.Source, FormatExpiry(report.AsOf))
	output.Println()

	if len(report.Rows) == 0 {
		output.Info("No holdings to value.")
		return
	}

	table := NewTable(output, "Instrument", "Strategy", "Size", "Entry", "Value", "P&L", "ROI", "Mode")
	for _, row := range report.Rows {
		name, err := market.MainName(row.Holding.Position, reg)
		if err != nil {
			name = TruncateString(row.Holding.TokenID, 14)
		}
		mode := string(row.Result.Mode)
		if row.Result.Mode == models.ModeSettled {
			mode = output.Yellow(mode)
		}
		table.AddRow(
			name,
			row.Holding.Position.Strategy.String(),
			utils.FormatSize(row.Holding.Size),
			utils.FormatUSD(row.Holding.ExecutionPrice),
			utils.FormatUSD(row.Result.PayoffPerUnit),
			output.FormatPnL(row.Result.PnL),
			output.FormatPercent(row.Result.ROI),
			mode,
		)
	}
	table.Render()
	output.Println()

	if report.Summary == nil {
		r := report.Rows[0].Result
		output.Printf("Greeks  %s\n", FormatGreeks(r.Greeks))
		return
	}

	s := report.Summary
	output.Box("Portfolio", []string{
		fmt.Sprintf("Positions  %d", s.OpenPositions),
		fmt.Sprintf("Invested   %s", utils.FormatCompact(s.Invested)),
		fmt.Sprintf("Value      %s", utils.FormatCompact(s.PositionsValue)),
		fmt.Sprintf("P&L        %s (%s)", output.FormatPnL(s.TotalPnL), output.FormatPercent(s.ROI)),
		fmt.Sprintf("Greeks     %s", FormatGreeks(s.Greeks)),
	})
}
