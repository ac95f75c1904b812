package pricing

import (
	"math"

	"callput-engine/internal/models"
)

// LegInput is one leg of a position priced for a profit curve. Size is
// signed: positive for bought legs, negative for sold ones.
type LegInput struct {
	Strike     float64
	IsCall     bool
	IV         float64
	OrderPrice float64
	Size       float64
	Expiry     int64
	Rate       float64
}

// ProfitFunc maps an underlying price to a position's profit.
type ProfitFunc func(price float64) float64

// ProfitAtPrice returns (value(price) - orderPrice) * size for one leg
// valued at asOf. A sold leg carries a negative size, so its profit is the
// negated bought-leg profit.
func ProfitAtPrice(leg LegInput, price float64, asOf int64) float64 {
	v := TheoreticalValue(Input{
		Forward: price,
		Strike:  leg.Strike,
		IV:      leg.IV,
		Years:   YearsBetween(asOf, leg.Expiry),
		IsCall:  leg.IsCall,
		Rate:    leg.Rate,
	})
	profit := (v - leg.OrderPrice) * leg.Size
	if math.IsNaN(profit) {
		return 0
	}
	return profit
}

// CombinedProfit returns the summed leg profit of legs valued at asOf.
// Spreads are priced leg by leg; no dedicated spread formula is needed.
func CombinedProfit(legs []LegInput, asOf int64) ProfitFunc {
	frozen := make([]LegInput, len(legs))
	copy(frozen, legs)
	return func(price float64) float64 {
		var total float64
		for _, leg := range frozen {
			total += ProfitAtPrice(leg, price, asOf)
		}
		return total
	}
}

// Greeks returns Black-76 greeks for one option scaled by a signed size.
// Vega is per vol point and theta per calendar day. All greeks are zero
// when the option has expired or any input is non-positive.
func Greeks(in Input, size float64) models.OptionGreeks {
	if size == 0 || in.Forward <= 0 || in.Strike <= 0 || in.IV <= 0 || in.Years <= 0 {
		return models.OptionGreeks{}
	}

	sqrtT := math.Sqrt(in.Years)
	d1 := (math.Log(in.Forward/in.Strike) + (in.Rate+in.IV*in.IV/2)*in.Years) / (in.IV * sqrtT)
	pdf := NormPDF(d1)

	g := models.OptionGreeks{
		Delta: size * NormCDF(d1),
		Gamma: size * pdf / (in.Forward * in.IV * sqrtT),
		Vega:  size * in.Forward * sqrtT * pdf / 100,
		Theta: -size * (in.Forward * pdf * in.IV / (2 * sqrtT)) / 365,
	}
	if !in.IsCall {
		g.Delta = size * (NormCDF(d1) - 1)
	}
	if g.Theta == 0 {
		g.Theta = 0 // drop negative zero
	}
	return g
}

// SpreadGreeks sums the greeks of a main leg and, when present, its paired
// leg held in the opposite direction. size is signed by the main leg.
func SpreadGreeks(main Input, paired *Input, size float64) models.OptionGreeks {
	g := Greeks(main, size)
	if paired != nil {
		g = g.Add(Greeks(*paired, -size))
	}
	return g
}
