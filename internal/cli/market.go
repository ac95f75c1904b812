package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"callput-engine/internal/errors"
	"callput-engine/internal/logging"
	"callput-engine/internal/market"
	"callput-engine/internal/models"
	"callput-engine/internal/payoff"
	"callput-engine/internal/store"
	"callput-engine/internal/tokenid"
)

// parseExpiry accepts unix seconds or an expiry code such as 23APR25.
func parseExpiry(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("expiry is required")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	return market.ParseExpiryCode(s)
}

// parseLeg reads a leg written as [+|-]{C|P}<strike>, e.g. +C65000 or
// -P3000. A missing sign means buy.
func parseLeg(s string) (tokenid.LegFields, error) {
	var leg tokenid.LegFields
	spec := strings.ToUpper(strings.TrimSpace(s))

	leg.IsBuy = true
	switch {
	case strings.HasPrefix(spec, "+"):
		spec = spec[1:]
	case strings.HasPrefix(spec, "-"):
		leg.IsBuy = false
		spec = spec[1:]
	}

	if spec == "" {
		return leg, fmt.Errorf("invalid leg %q", s)
	}
	switch spec[0] {
	case 'C':
		leg.IsCall = true
	case 'P':
	default:
		return leg, fmt.Errorf("invalid leg %q: want C or P", s)
	}

	strike, err := strconv.ParseUint(spec[1:], 10, 64)
	if err != nil {
		return leg, fmt.Errorf("invalid strike in leg %q", s)
	}
	leg.StrikePrice = strike
	return leg, nil
}

// parseForwards reads TICKER=price pairs.
func parseForwards(reg *market.Registry, pairs map[string]string) (map[uint16]float64, error) {
	out := make(map[uint16]float64, len(pairs))
	for ticker, v := range pairs {
		a, ok := reg.ByTicker(ticker)
		if !ok {
			return nil, fmt.Errorf("unknown asset %s", ticker)
		}
		price, err := strconv.ParseFloat(v, 64)
		if err != nil || price <= 0 {
			return nil, fmt.Errorf("invalid forward %s=%s", ticker, v)
		}
		out[a.Index] = price
	}
	return out, nil
}

// holdingFromArgs builds a holding from a token id and the --size and
// --price flags.
func holdingFromArgs(cmd *cobra.Command, token string) (models.Holding, error) {
	id, p, err := tokenid.ParseAndDecode(token)
	if err != nil {
		return models.Holding{}, err
	}
	size, _ := cmd.Flags().GetFloat64("size")
	price, _ := cmd.Flags().GetFloat64("price")
	if size < 0 || price < 0 {
		return models.Holding{}, fmt.Errorf("--size and --price must be non-negative")
	}
	return models.Holding{
		TokenID:        tokenid.Format(id),
		Position:       p,
		Size:           size,
		ExecutionPrice: price,
	}, nil
}

// addMarketFlags registers the flags that choose the market data source.
func addMarketFlags(cmd *cobra.Command) {
	cmd.Flags().String("snapshot", "", "market feed JSON file (default: latest imported snapshot)")
	cmd.Flags().StringToString("forward", nil, "forward prices for model marks, e.g. BTC=66000")
	cmd.Flags().Bool("model", false, "price with Black-76 from forwards and default vols instead of a snapshot")
	cmd.Flags().String("as-of", "", "valuation time as unix seconds or RFC3339 (default: now)")
}

func parseAsOf(cmd *cobra.Command) (time.Time, error) {
	s, _ := cmd.Flags().GetString("as-of")
	if s == "" {
		return time.Now(), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0), nil
	}
	return time.Parse(time.RFC3339, s)
}

// marketData is the resolved market for one command.
type marketData struct {
	Env      payoff.Env
	Snapshot *market.Snapshot // nil when model marks are used
	Source   string
}

// loadMarket resolves marks, forwards and settle prices. Precedence: an
// explicit --snapshot file, model marks when --model is set, the latest
// stored snapshot, then model marks from --forward.
func (a *App) loadMarket(ctx context.Context, cmd *cobra.Command) (*marketData, error) {
	logger := logging.FromContext(ctx)

	asOf, err := parseAsOf(cmd)
	if err != nil {
		return nil, fmt.Errorf("invalid --as-of: %w", err)
	}
	md := &marketData{Env: payoff.Env{AsOf: asOf.Unix()}}

	st, storeErr := a.Store()
	if storeErr == nil {
		table, err := st.GetSettleTable(ctx)
		if err != nil {
			return nil, err
		}
		md.Env.Settles = table
	} else {
		logger.Warn().Err(storeErr).Msg("Store unavailable, settle prices not loaded")
	}

	useModel, _ := cmd.Flags().GetBool("model")
	path, _ := cmd.Flags().GetString("snapshot")

	switch {
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		snap, err := market.LoadSnapshot(f, a.Registry)
		if err != nil {
			return nil, err
		}
		md.Snapshot, md.Source = snap, path
	case !useModel && storeErr == nil:
		snap, err := st.LatestSnapshot(ctx, a.Registry)
		switch {
		case err == nil:
			md.Snapshot, md.Source = snap, "stored snapshot"
			tracker := store.NewFreshnessTracker(st, nil)
			if f := tracker.Freshness(store.SyncTypeSnapshot); !f.IsFresh {
				logger.Warn().Msg(store.FormatFreshness(f))
			}
		case errors.Is(err, errors.ErrDataNotFound):
			logger.Debug().Msg("No stored snapshot, falling back to model marks")
		default:
			return nil, err
		}
	}

	if md.Snapshot != nil {
		md.Env.Marks, md.Env.Forwards = md.Snapshot, md.Snapshot
		return md, nil
	}

	pairs, _ := cmd.Flags().GetStringToString("forward")
	forwards, err := parseForwards(a.Registry, pairs)
	if err != nil {
		return nil, err
	}
	vols := make(map[uint16]float64)
	for _, asset := range a.Registry.Assets() {
		if v, ok := a.Config.Pricing.Vol(asset.Ticker); ok {
			vols[asset.Index] = v
		}
	}
	model := market.ModelMarks{
		Forwards: forwards,
		Vols:     vols,
		AsOf:     md.Env.AsOf,
		Rate:     a.Config.Pricing.RiskFreeRate,
	}
	md.Env.Marks, md.Env.Forwards, md.Source = model, model, "model"
	return md, nil
}
