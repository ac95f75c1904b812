package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"callput-engine/internal/market"
	"callput-engine/internal/models"
	"callput-engine/internal/strategy"
	"callput-engine/internal/tokenid"
)

// tokenView is the JSON form of a decoded token.
type tokenView struct {
	TokenID     string                `json:"token_id"`
	Hex         string                `json:"hex"`
	Asset       string                `json:"asset"`
	ExpiryCode  string                `json:"expiry_code"`
	Direction   models.Direction      `json:"direction"`
	ClosedBy    models.Strategy       `json:"closed_by"`
	Instruments []string              `json:"instruments"`
	Position    models.OptionPosition `json:"position"`
}

func (a *App) viewToken(idStr string, p models.OptionPosition) (tokenView, error) {
	id, err := tokenid.Parse(idStr)
	if err != nil {
		return tokenView{}, err
	}
	names, err := market.OptionNames(p, a.Registry)
	if err != nil {
		return tokenView{}, err
	}
	return tokenView{
		TokenID:     tokenid.Format(id),
		Hex:         tokenid.FormatHex32(id),
		Asset:       a.Registry.Ticker(p.UnderlyingAssetIndex),
		ExpiryCode:  market.ExpiryCode(p.Expiry),
		Direction:   strategy.Direction(p.Strategy),
		ClosedBy:    strategy.Opposite(p.Strategy),
		Instruments: names,
		Position:    p,
	}, nil
}

func newTokenCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Decode and encode option token ids",
		Long: `Option token ids pack an underlying asset, an expiry, a strategy, up to four
legs and a vault index into one 256-bit integer.`,
	}

	cmd.AddCommand(newTokenDecodeCmd(app))
	cmd.AddCommand(newTokenEncodeCmd(app))
	cmd.AddCommand(newTokenStrategiesCmd())

	return cmd
}

func newTokenDecodeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <token-id>",
		Short: "Decode a token id",
		Long:  "Decode a token id given in decimal or 0x-prefixed hex.",
		Example: `  callput token decode 0x0001...
  callput token decode "$(callput token encode --asset BTC --expiry 8MAR24 --leg +C65000 --json | jq -r .token_id)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			id, p, err := tokenid.ParseAndDecode(args[0])
			if err != nil {
				return fmt.Errorf("decoding token: %w", err)
			}
			view, err := app.viewToken(tokenid.Format(id), p)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(view)
			}
			printToken(output, view)
			return nil
		},
	}
}

func newTokenEncodeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a position into a token id",
		Long: `Encode a position into a token id. Legs are written as [+|-]{C|P}<strike>,
a leading + for bought legs and - for sold ones. Without --strategy the legs
are classified and placed in slot order.`,
		Example: `  callput token encode --asset BTC --expiry 8MAR24 --leg +C65000
  callput token encode --asset ETH --expiry 1709884800 --leg -P3000 --leg +P2800`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			ticker, _ := cmd.Flags().GetString("asset")
			asset, ok := app.Registry.ByTicker(ticker)
			if !ok {
				return fmt.Errorf("unknown asset %q", ticker)
			}
			expiryStr, _ := cmd.Flags().GetString("expiry")
			expiry, err := parseExpiry(expiryStr)
			if err != nil {
				return err
			}
			legSpecs, _ := cmd.Flags().GetStringArray("leg")
			if len(legSpecs) == 0 {
				return fmt.Errorf("at least one --leg is required")
			}
			strat, _ := cmd.Flags().GetString("strategy")
			vault, _ := cmd.Flags().GetUint64("vault")

			f := tokenid.Fields{
				UnderlyingAssetIndex: uint64(asset.Index),
				Expiry:               expiry,
				Strategy:             strat,
				VaultIndex:           vault,
			}
			for _, s := range legSpecs {
				leg, err := parseLeg(s)
				if err != nil {
					return err
				}
				f.Legs = append(f.Legs, leg)
			}

			id, p, err := tokenid.EncodeFields(f)
			if err != nil {
				return fmt.Errorf("encoding token: %w", err)
			}
			view, err := app.viewToken(tokenid.Format(id), p)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(view)
			}
			printToken(output, view)
			return nil
		},
	}

	cmd.Flags().String("asset", "", "underlying ticker, e.g. BTC")
	cmd.Flags().String("expiry", "", "expiry as unix seconds or a code such as 8MAR24")
	cmd.Flags().StringArray("leg", nil, "leg as [+|-]{C|P}<strike> (repeatable)")
	cmd.Flags().String("strategy", "", "strategy name (default: classify the legs)")
	cmd.Flags().Uint64("vault", 0, "vault index")
	_ = cmd.MarkFlagRequired("asset")
	_ = cmd.MarkFlagRequired("expiry")

	return cmd
}

func newTokenStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List supported strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			specs := strategy.All()

			if output.IsJSON() {
				type row struct {
					Strategy  models.Strategy  `json:"strategy"`
					Ordinal   uint8            `json:"ordinal"`
					Legs      int              `json:"legs"`
					Direction models.Direction `json:"direction"`
					Side      models.OrderSide `json:"side"`
				}
				rows := make([]row, len(specs))
				for i, s := range specs {
					rows[i] = row{s.Strategy, uint8(s.Strategy), s.LegCount, strategy.Direction(s.Strategy), strategy.Side(s.Strategy)}
				}
				return output.JSON(rows)
			}

			table := NewTable(output, "#", "Strategy", "Legs", "Side", "Direction")
			for _, s := range specs {
				table.AddRow(
					fmt.Sprintf("%d", uint8(s.Strategy)),
					s.Strategy.String(),
					fmt.Sprintf("%d", s.LegCount),
					string(strategy.Side(s.Strategy)),
					output.Direction(strategy.Direction(s.Strategy)),
				)
			}
			table.Render()
			return nil
		},
	}
}

func printToken(output *Output, v tokenView) {
	p := v.Position
	legs, err := strategy.ActiveLegs(p)
	if err != nil {
		legs = nil
	}

	output.Box(p.Strategy.String(), []string{
		fmt.Sprintf("Token     %s", v.TokenID),
		fmt.Sprintf("Hex       %s", v.Hex),
		fmt.Sprintf("Asset     %s (index %d)", v.Asset, p.UnderlyingAssetIndex),
		fmt.Sprintf("Expiry    %s  [%s]", FormatExpiry(p.Expiry), v.ExpiryCode),
		fmt.Sprintf("Legs      %s", FormatLegs(legs)),
		fmt.Sprintf("Direction %s", output.Direction(v.Direction)),
		fmt.Sprintf("Close by  %s", v.ClosedBy),
		fmt.Sprintf("Vault     %d", p.VaultIndex),
	})
	for _, name := range v.Instruments {
		output.Dim("  %s", name)
	}
}
