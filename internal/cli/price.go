package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"callput-engine/internal/logging"
	"callput-engine/internal/models"
	"callput-engine/internal/pricing"
	"callput-engine/pkg/utils"
)

type priceResult struct {
	Forward   float64             `json:"forward"`
	Strike    float64             `json:"strike"`
	IsCall    bool                `json:"is_call"`
	IV        float64             `json:"iv"`
	Years     float64             `json:"years"`
	Rate      float64             `json:"rate"`
	Value     float64             `json:"value"`
	Intrinsic float64             `json:"intrinsic"`
	TimeValue float64             `json:"time_value"`
	Size      float64             `json:"size"`
	Greeks    models.OptionGreeks `json:"greeks"`
	ExpiresIn string              `json:"expires_in"`
}

func newPriceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price one option with Black-76",
		Long: `Price one option with Black-76 from a forward, strike, implied vol and
expiry. Greeks are scaled by --size; a negative size prices a sold option.`,
		Example: `  callput price --forward 66000 --strike 65000 --iv 0.55 --expiry 8MAR24 --as-of 1709798400
  callput price --forward 3200 --strike 3000 --iv 0.6 --expiry 1709884800 --put --size -2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			logger := logging.FromContext(app.context(cmd, "price"))

			forward, _ := cmd.Flags().GetFloat64("forward")
			strike, _ := cmd.Flags().GetFloat64("strike")
			iv, _ := cmd.Flags().GetFloat64("iv")
			isPut, _ := cmd.Flags().GetBool("put")
			size, _ := cmd.Flags().GetFloat64("size")
			expiryStr, _ := cmd.Flags().GetString("expiry")

			rate := app.Config.Pricing.RiskFreeRate
			if cmd.Flags().Changed("rate") {
				rate, _ = cmd.Flags().GetFloat64("rate")
			}

			expiry, err := parseExpiry(expiryStr)
			if err != nil {
				return err
			}
			asOf, err := parseAsOf(cmd)
			if err != nil {
				return fmt.Errorf("invalid --as-of: %w", err)
			}
			if forward <= 0 || strike <= 0 {
				return fmt.Errorf("--forward and --strike must be positive")
			}
			if iv < 0 {
				return fmt.Errorf("--iv must be non-negative")
			}

			in := pricing.Input{
				Forward: forward,
				Strike:  strike,
				IV:      iv,
				Years:   pricing.YearsBetween(asOf.Unix(), expiry),
				IsCall:  !isPut,
				Rate:    rate,
			}
			value := pricing.TheoreticalValue(in)
			intrinsic := pricing.Intrinsic(forward, strike, in.IsCall)

			res := priceResult{
				Forward:   forward,
				Strike:    strike,
				IsCall:    in.IsCall,
				IV:        iv,
				Years:     in.Years,
				Rate:      rate,
				Value:     value,
				Intrinsic: intrinsic,
				TimeValue: value - intrinsic,
				Size:      size,
				Greeks:    pricing.Greeks(in, size),
				ExpiresIn: utils.FormatTimeToExpiry(asOf, expiry),
			}
			logger.Debug().
				Float64("value", value).
				Float64("years", in.Years).
				Msg("Option priced")

			if output.IsJSON() {
				return output.JSON(res)
			}

			kind := "Call"
			if isPut {
				kind = "Put"
			}
			output.Box(fmt.Sprintf("%s %s", kind, utils.FormatStrike(uint64(strike))), []string{
				fmt.Sprintf("Forward     %s", utils.FormatUSD(forward)),
				fmt.Sprintf("Implied vol %s", FormatIV(iv)),
				fmt.Sprintf("Expiry      %s (%s)", FormatExpiry(expiry), res.ExpiresIn),
				fmt.Sprintf("Value       %s", output.Cyan(utils.FormatUSD(value))),
				fmt.Sprintf("Intrinsic   %s", utils.FormatUSD(intrinsic)),
				fmt.Sprintf("Time value  %s", utils.FormatUSD(res.TimeValue)),
				fmt.Sprintf("Greeks x%s  %s", utils.FormatSize(size), FormatGreeks(res.Greeks)),
			})
			return nil
		},
	}

	cmd.Flags().Float64("forward", 0, "forward price of the underlying")
	cmd.Flags().Float64("strike", 0, "strike price")
	cmd.Flags().Float64("iv", 0, "implied vol as an annualized fraction, e.g. 0.55")
	cmd.Flags().String("expiry", "", "expiry as unix seconds or a code such as 8MAR24")
	cmd.Flags().Bool("put", false, "price a put instead of a call")
	cmd.Flags().Float64("size", 1, "signed size for the greeks")
	cmd.Flags().Float64("rate", 0, "risk-free rate (default: pricing.risk_free_rate)")
	cmd.Flags().String("as-of", "", "valuation time as unix seconds or RFC3339 (default: now)")
	_ = cmd.MarkFlagRequired("forward")
	_ = cmd.MarkFlagRequired("strike")
	_ = cmd.MarkFlagRequired("expiry")

	return cmd
}
