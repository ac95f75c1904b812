// Package pricing values options on a forward price with the Black-76
// formulation and composes per-leg profit functions.
package pricing

import (
	"math"

	"callput-engine/internal/errors"
)

// SecondsPerYear is the day-count basis used for time to expiry.
const SecondsPerYear = 365 * 24 * 60 * 60

// Input holds the arguments of one valuation.
type Input struct {
	Forward float64
	Strike  float64
	IV      float64 // annualized fraction
	Years   float64
	IsCall  bool
	Rate    float64 // applied to the strike leg only; zero for crypto dailies
}

// TheoreticalValue returns the Black-76 value of one option. When time has
// run out, or any of forward, strike or vol is non-positive, the intrinsic
// value is returned instead of evaluating the log/sqrt terms.
func TheoreticalValue(in Input) float64 {
	if in.Years <= 0 || in.IV <= 0 || in.Forward <= 0 || in.Strike <= 0 {
		return Intrinsic(in.Forward, in.Strike, in.IsCall)
	}

	d1, d2 := d1d2(in.Forward, in.Strike, in.IV, in.Years)
	df := math.Exp(-in.Rate * in.Years)

	var v float64
	if in.IsCall {
		v = in.Forward*NormCDF(d1) - in.Strike*df*NormCDF(d2)
	} else {
		v = in.Strike*df*NormCDF(-d2) - in.Forward*NormCDF(-d1)
	}
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// Intrinsic returns max(F-K, 0) for calls and max(K-F, 0) for puts.
func Intrinsic(forward, strike float64, isCall bool) float64 {
	if isCall {
		return math.Max(forward-strike, 0)
	}
	return math.Max(strike-forward, 0)
}

func d1d2(f, k, iv, t float64) (float64, float64) {
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(f/k) + 0.5*iv*iv*t) / (iv * sqrtT)
	return d1, d1 - iv*sqrtT
}

// NormCDF is the standard normal CDF, using the Abramowitz-Stegun
// polynomial (error < 7.5e-8) so values agree with the other pricing
// clients of the protocol.
func NormCDF(x float64) float64 {
	const (
		p  = 0.2316419
		b1 = 0.31938153
		b2 = -0.356563782
		b3 = 1.781477937
		b4 = -1.821255978
		b5 = 1.330274429
	)
	k := 1 / (1 + p*math.Abs(x))
	poly := k * (b1 + k*(b2+k*(b3+k*(b4+k*b5))))
	cnd := 1 - NormPDF(x)*poly
	if x < 0 {
		return 1 - cnd
	}
	return cnd
}

// NormPDF is the standard normal density.
func NormPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// YearsBetween returns (to-from) in years. The result is negative when to
// precedes from.
func YearsBetween(from, to int64) float64 {
	return float64(to-from) / SecondsPerYear
}

// YearsToExpiry is YearsBetween for callers that require a live option.
// It fails with ErrInvalidTimeframe when asOf is after expiry.
func YearsToExpiry(asOf, expiry int64) (float64, error) {
	if asOf > expiry {
		return 0, errors.Wrapf(errors.ErrInvalidTimeframe, "as of %d is after expiry %d", asOf, expiry)
	}
	return YearsBetween(asOf, expiry), nil
}
