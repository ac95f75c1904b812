// Package chart builds payoff curves around a position's break-even point.
package chart

import (
	"math"

	"callput-engine/internal/breakeven"
	"callput-engine/internal/errors"
	"callput-engine/internal/models"
	"callput-engine/internal/payoff"
	"callput-engine/internal/pricing"
	"callput-engine/internal/strategy"
)

const secondsPerDay = 24 * 60 * 60

// Config holds the display heuristics. Margins are fractions of the
// break-even price.
type Config struct {
	TickInterval   float64
	NakedMinMargin float64
	NakedMaxMargin float64
	ComboMinMargin float64
	ComboMaxMargin float64
	DaysDivisor    float64
}

// DefaultConfig returns the trading UI's defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:   1,
		NakedMinMargin: 0.1,
		NakedMaxMargin: 0.1,
		ComboMinMargin: 0.2,
		ComboMaxMargin: 0.2,
		DaysDivisor:    60,
	}
}

// SearchRange returns a coarse bracket around the strikes: a tenth of the
// lowest strike rounded down to hundreds, and ten times the highest
// rounded up to hundreds.
func SearchRange(strikes []float64) (float64, float64) {
	if len(strikes) == 0 {
		return 0, 0
	}
	lo, hi := math.Inf(1), 0.0
	for _, k := range strikes {
		lo = math.Min(lo, k)
		hi = math.Max(hi, k)
	}
	return math.Floor(lo*0.1/100) * 100, math.Ceil(hi*10/100) * 100
}

// DisplayRange widens a window around bep by the margins for the position
// shape and by the days left to expiry. Both bounds are rounded down to a
// multiple of 10 and never go below zero.
func DisplayRange(bep float64, combo bool, daysToExpiry float64, cfg Config) (float64, float64) {
	minMargin, maxMargin := cfg.NakedMinMargin, cfg.NakedMaxMargin
	if combo {
		minMargin, maxMargin = cfg.ComboMinMargin, cfg.ComboMaxMargin
	}
	divisor := cfg.DaysDivisor
	if divisor <= 0 {
		divisor = DefaultConfig().DaysDivisor
	}

	lo := bep * (1 - minMargin) * (1 - daysToExpiry/divisor)
	hi := bep * (1 + maxMargin) * (1 + daysToExpiry/divisor)
	return math.Max(math.Floor(lo/10)*10, 0), math.Max(math.Floor(hi/10)*10, 0)
}

// Generate samples f over [min, max] at tick. MinY and MaxY start at zero
// so the axis always includes the break-even line.
func Generate(f pricing.ProfitFunc, min, max, tick float64) (models.ChartData, error) {
	samples, err := breakeven.Scan(f, min, max, tick)
	if err != nil {
		return models.ChartData{}, err
	}

	data := models.ChartData{
		Points:          make([]models.ChartPoint, len(samples)),
		TickInterval:    tick,
		BreakEvenPoints: breakeven.Crossings(samples),
		MinX:            min,
		MaxX:            max,
	}
	for i, s := range samples {
		data.Points[i] = models.ChartPoint{Price: s.Price, Profit: s.Profit}
		data.MinY = math.Min(data.MinY, s.Profit)
		data.MaxY = math.Max(data.MaxY, s.Profit)
	}
	return data, nil
}

// Request describes one chart.
type Request struct {
	Legs   []pricing.LegInput
	Expiry int64
	Now    int64 // drives the days-to-expiry widening
	AsOf   int64 // valuation time; zero means one second before expiry
}

// Build finds the first break-even point over the coarse search range and
// returns the curve over the display range around it. A position with no
// break-even point yields an empty chart and no error. Ranges too wide for
// breakeven.MaxSamples points at the configured tick are walked at a
// coarser tick, reported in TickInterval.
func Build(req Request, cfg Config) (models.ChartData, error) {
	if len(req.Legs) == 0 {
		return models.ChartData{TickInterval: cfg.TickInterval}, nil
	}
	if !(cfg.TickInterval > 0) {
		return models.ChartData{}, errors.Wrapf(errors.ErrInvalidScan, "tick interval %v", cfg.TickInterval)
	}

	asOf := req.AsOf
	if asOf == 0 {
		asOf = req.Expiry - 1
	}
	f := pricing.CombinedProfit(req.Legs, asOf)

	strikes := make([]float64, len(req.Legs))
	for i, l := range req.Legs {
		strikes[i] = l.Strike
	}
	lo, hi := SearchRange(strikes)

	beps, err := breakeven.Find(f, lo, hi, breakeven.FitTick(lo, hi, cfg.TickInterval))
	if err != nil {
		return models.ChartData{}, err
	}
	if len(beps) == 0 {
		return models.ChartData{TickInterval: cfg.TickInterval, BreakEvenPoints: []float64{}}, nil
	}

	days := math.Max(float64(req.Expiry-req.Now)/secondsPerDay, 0)
	lo, hi = DisplayRange(beps[0], len(req.Legs) > 1, days, cfg)
	return Generate(f, lo, hi, breakeven.FitTick(lo, hi, cfg.TickInterval))
}

// LegsFromHolding converts a holding into chart legs. The main leg carries
// the execution price and the signed size; the paired leg of a spread is
// priced at zero with the opposite sign so the pair nets to the spread's
// premium. IVs come from marks and are zero when a quote is missing.
func LegsFromHolding(h models.Holding, marks payoff.MarkSource) ([]pricing.LegInput, error) {
	p := h.Position
	if err := strategy.Validate(p); err != nil {
		return nil, err
	}
	main, paired, err := strategy.MainAndPaired(p)
	if err != nil {
		return nil, err
	}

	size := strategy.Sign(p.Strategy) * h.Size
	legs := []pricing.LegInput{{
		Strike:     float64(main.StrikePrice),
		IsCall:     main.IsCall,
		IV:         ivOf(marks, p, main),
		OrderPrice: h.ExecutionPrice,
		Size:       size,
		Expiry:     p.Expiry,
	}}
	if paired != nil {
		legs = append(legs, pricing.LegInput{
			Strike: float64(paired.StrikePrice),
			IsCall: paired.IsCall,
			IV:     ivOf(marks, p, *paired),
			Size:   -size,
			Expiry: p.Expiry,
		})
	}
	return legs, nil
}

func ivOf(marks payoff.MarkSource, p models.OptionPosition, leg models.Leg) float64 {
	if marks == nil {
		return 0
	}
	q, ok := marks.Quote(payoff.LegQuote{
		UnderlyingAssetIndex: p.UnderlyingAssetIndex,
		Expiry:               p.Expiry,
		Strike:               leg.StrikePrice,
		IsCall:               leg.IsCall,
	})
	if !ok {
		return 0
	}
	return q.IV
}

// ForHolding is LegsFromHolding followed by Build.
func ForHolding(h models.Holding, marks payoff.MarkSource, now int64, cfg Config) (models.ChartData, error) {
	legs, err := LegsFromHolding(h, marks)
	if err != nil {
		return models.ChartData{}, err
	}
	return Build(Request{Legs: legs, Expiry: h.Position.Expiry, Now: now}, cfg)
}
