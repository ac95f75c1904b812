package market

import (
	"callput-engine/internal/payoff"
	"callput-engine/internal/pricing"
)

// ModelMarks prices contracts with Black-76 from a forward and a flat vol
// per underlying. It stands in for a feed when none is available.
type ModelMarks struct {
	Forwards map[uint16]float64
	Vols     map[uint16]float64 // annualized fraction
	AsOf     int64
	Rate     float64
}

// Quote implements payoff.MarkSource. Underlyings without a forward or vol
// report no quote.
func (m ModelMarks) Quote(q payoff.LegQuote) (payoff.Quote, bool) {
	f, ok := m.Forwards[q.UnderlyingAssetIndex]
	if !ok {
		return payoff.Quote{}, false
	}
	iv, ok := m.Vols[q.UnderlyingAssetIndex]
	if !ok {
		return payoff.Quote{}, false
	}

	in := pricing.Input{
		Forward: f,
		Strike:  float64(q.Strike),
		IV:      iv,
		Years:   pricing.YearsBetween(m.AsOf, q.Expiry),
		IsCall:  q.IsCall,
		Rate:    m.Rate,
	}
	return payoff.Quote{
		Mark:   pricing.TheoreticalValue(in),
		IV:     iv,
		Greeks: pricing.Greeks(in, 1),
	}, true
}

// Forward implements payoff.ForwardSource.
func (m ModelMarks) Forward(asset uint16) (float64, bool) {
	f, ok := m.Forwards[asset]
	return f, ok
}
