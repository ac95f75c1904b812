// Package payoff values holdings while open and at settlement.
//
// Market data arrives through small interfaces so the same calculator can
// run against a snapshot, a model, or a database. A missing quote is
// valued at zero and never fails the computation.
package payoff

import (
	"math"

	"callput-engine/internal/models"
	"callput-engine/internal/pricing"
	"callput-engine/internal/strategy"
)

// LegQuote identifies one option contract for a market lookup.
type LegQuote struct {
	UnderlyingAssetIndex uint16
	Expiry               int64
	Strike               uint64
	IsCall               bool
}

// Quote is the market view of one contract. Greeks are per unit long.
type Quote struct {
	Mark   float64
	IV     float64
	Greeks models.OptionGreeks
}

// MarkSource supplies live quotes.
type MarkSource interface {
	Quote(q LegQuote) (Quote, bool)
}

// SettleSource supplies settle prices keyed by expiry and asset.
type SettleSource interface {
	SettlePrice(asset uint16, expiry int64) (float64, bool)
}

// ForwardSource supplies the current forward of an underlying.
type ForwardSource interface {
	Forward(asset uint16) (float64, bool)
}

// Env bundles the inputs of one evaluation. Any source may be nil.
type Env struct {
	Marks    MarkSource
	Settles  SettleSource
	Forwards ForwardSource
	AsOf     int64
}

func quoteFor(marks MarkSource, p models.OptionPosition, leg models.Leg) Quote {
	if marks == nil {
		return Quote{}
	}
	q, ok := marks.Quote(LegQuote{
		UnderlyingAssetIndex: p.UnderlyingAssetIndex,
		Expiry:               p.Expiry,
		Strike:               leg.StrikePrice,
		IsCall:               leg.IsCall,
	})
	if !ok {
		return Quote{}
	}
	return q
}

// Open values h from live marks. forward is only used to cap the loss of
// a sold call and may be zero when unknown.
func Open(h models.Holding, marks MarkSource, forward float64) (models.PayoffResult, error) {
	p := h.Position
	if err := strategy.Validate(p); err != nil {
		return models.PayoffResult{}, err
	}
	main, paired, err := strategy.MainAndPaired(p)
	if err != nil {
		return models.PayoffResult{}, err
	}

	mq := quoteFor(marks, p, main)
	value := mq.Mark
	greeks := mq.Greeks
	if paired != nil {
		pq := quoteFor(marks, p, *paired)
		value = math.Max(mq.Mark-pq.Mark, 0)
		greeks = greeks.Add(pq.Greeks.Scale(-1))
	}

	sign := strategy.Sign(p.Strategy)
	pnlPerUnit := (value - h.ExecutionPrice) * sign
	if sign < 0 && pnlPerUnit < 0 {
		if c := collateral(p, main, paired, forward); c > 0 {
			pnlPerUnit = math.Max(pnlPerUnit, -c)
		}
	}

	return models.PayoffResult{
		Mode:          models.ModeOpen,
		PayoffPerUnit: value,
		PnLPerUnit:    pnlPerUnit,
		PnL:           pnlPerUnit * h.Size,
		ROI:           roi(pnlPerUnit, h.ExecutionPrice),
		Greeks:        greeks.Scale(sign * h.Size),
	}, nil
}

// collateral is the most a seller can lose per unit: the forward for a
// sold call, the strike for a sold put, the strike width for a spread.
func collateral(p models.OptionPosition, main models.Leg, paired *models.Leg, forward float64) float64 {
	switch {
	case paired != nil:
		return math.Abs(float64(main.StrikePrice) - float64(paired.StrikePrice))
	case strategy.IsCall(p.Strategy):
		return forward
	default:
		return float64(main.StrikePrice)
	}
}

// Settle values h at expiry against settlePrice using intrinsic values.
func Settle(h models.Holding, settlePrice float64) (models.PayoffResult, error) {
	p := h.Position
	if err := strategy.Validate(p); err != nil {
		return models.PayoffResult{}, err
	}
	main, paired, err := strategy.MainAndPaired(p)
	if err != nil {
		return models.PayoffResult{}, err
	}

	value := pricing.Intrinsic(settlePrice, float64(main.StrikePrice), main.IsCall)
	if paired != nil {
		value = math.Max(value-pricing.Intrinsic(settlePrice, float64(paired.StrikePrice), paired.IsCall), 0)
	}

	pnlPerUnit := (value - h.ExecutionPrice) * strategy.Sign(p.Strategy)
	return models.PayoffResult{
		Mode:                models.ModeSettled,
		PayoffPerUnit:       value,
		PnLPerUnit:          pnlPerUnit,
		PnL:                 pnlPerUnit * h.Size,
		SettlePayoffPerUnit: value,
		ROI:                 roi(pnlPerUnit, h.ExecutionPrice),
	}, nil
}

// Evaluate settles h when its expiry has passed and a settle price is
// known, and values it from live marks otherwise.
func Evaluate(h models.Holding, env Env) (models.PayoffResult, error) {
	p := h.Position
	if env.AsOf >= p.Expiry && env.Settles != nil {
		if price, ok := env.Settles.SettlePrice(p.UnderlyingAssetIndex, p.Expiry); ok {
			return Settle(h, price)
		}
	}

	var forward float64
	if env.Forwards != nil {
		forward, _ = env.Forwards.Forward(p.UnderlyingAssetIndex)
	}
	return Open(h, env.Marks, forward)
}

func roi(pnlPerUnit, executionPrice float64) float64 {
	if executionPrice == 0 {
		return 0
	}
	return pnlPerUnit / executionPrice * 100
}

// Aggregate evaluates every holding and sums the results. The first
// inconsistent holding aborts the aggregation.
func Aggregate(holdings []models.Holding, env Env) (models.PortfolioSummary, []models.PayoffResult, error) {
	var sum models.PortfolioSummary
	results := make([]models.PayoffResult, 0, len(holdings))

	for _, h := range holdings {
		r, err := Evaluate(h, env)
		if err != nil {
			return models.PortfolioSummary{}, nil, err
		}
		results = append(results, r)

		sign := strategy.Sign(h.Position.Strategy)
		sum.OpenPositions++
		sum.TotalPnL += r.PnL
		sum.Invested += h.ExecutionPrice * h.Size
		sum.PositionsValue += sign * r.PayoffPerUnit * h.Size
		sum.Greeks = sum.Greeks.Add(r.Greeks)
	}

	if sum.Invested != 0 {
		sum.ROI = sum.TotalPnL / sum.Invested * 100
	}
	return sum, results, nil
}
