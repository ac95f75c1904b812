// Package breakeven locates the prices at which a position's profit
// crosses zero.
package breakeven

import (
	"math"

	"callput-engine/internal/errors"
	"callput-engine/internal/pricing"
)

// Sample is one evaluated point of a profit curve.
type Sample struct {
	Price  float64
	Profit float64
}

// MaxSamples caps the number of points one scan may evaluate. Strikes use
// a 42-bit field, so a coarse range at a fine tick can otherwise ask for
// trillions of samples.
const MaxSamples = 1_000_000

// Scan evaluates f at min, min+tick, ... up to and including max.
// Prices are computed as min + i*tick so rounding does not drift. A range
// needing more than MaxSamples points fails with ErrInvalidScan.
func Scan(f pricing.ProfitFunc, min, max, tick float64) ([]Sample, error) {
	n, err := sampleCount(min, max, tick)
	if err != nil {
		return nil, err
	}
	samples := make([]Sample, n)
	for i := range samples {
		price := min + float64(i)*tick
		samples[i] = Sample{Price: price, Profit: f(price)}
	}
	return samples, nil
}

// Find walks [min, max] at tick and returns every zero crossing in scan
// order without keeping the samples. No crossing yields an empty slice and
// a nil error. The MaxSamples cap applies as for Scan.
func Find(f pricing.ProfitFunc, min, max, tick float64) ([]float64, error) {
	n, err := sampleCount(min, max, tick)
	if err != nil {
		return nil, err
	}
	var c crossingTracker
	for i := 0; i < n; i++ {
		price := min + float64(i)*tick
		c.add(Sample{Price: price, Profit: f(price)})
	}
	return c.result(), nil
}

// FitTick returns tick, widened when needed so that [min, max] fits in
// MaxSamples points. Invalid inputs are returned unchanged for Scan or
// Find to reject.
func FitTick(min, max, tick float64) float64 {
	if checkRange(min, max, tick) != nil {
		return tick
	}
	if (max-min)/tick <= MaxSamples-2 {
		return tick
	}
	return (max - min) / (MaxSamples - 10)
}

// Crossings returns the interpolated zero crossings of an ordered curve.
// Samples that are exactly zero are bridged: a run from -a through 0 to +b
// counts as one crossing, interpolated between the last nonzero sample
// and the first nonzero sample after it.
func Crossings(samples []Sample) []float64 {
	var c crossingTracker
	for _, s := range samples {
		c.add(s)
	}
	return c.result()
}

type crossingTracker struct {
	prev    Sample
	hasPrev bool
	points  []float64
}

func (c *crossingTracker) add(s Sample) {
	if s.Profit == 0 || math.IsNaN(s.Profit) {
		return
	}
	if c.hasPrev && (c.prev.Profit < 0) != (s.Profit < 0) {
		c.points = append(c.points, interpolate(c.prev, s))
	}
	c.prev, c.hasPrev = s, true
}

func (c *crossingTracker) result() []float64 {
	if c.points == nil {
		return []float64{}
	}
	return c.points
}

func sampleCount(min, max, tick float64) (int, error) {
	if err := checkRange(min, max, tick); err != nil {
		return 0, err
	}
	steps := math.Floor((max-min)/tick + 1e-9)
	if steps+1 > MaxSamples {
		return 0, errors.Wrapf(errors.ErrInvalidScan,
			"range [%v, %v] at tick %v needs more than %d samples", min, max, tick, MaxSamples)
	}
	return int(steps) + 1, nil
}

func interpolate(a, b Sample) float64 {
	return a.Price + (0-a.Profit)*(b.Price-a.Price)/(b.Profit-a.Profit)
}

func checkRange(min, max, tick float64) error {
	switch {
	case !(tick > 0) || math.IsInf(tick, 0):
		return errors.Wrapf(errors.ErrInvalidScan, "tick interval %v", tick)
	case math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0):
		return errors.Wrapf(errors.ErrInvalidScan, "range [%v, %v]", min, max)
	case max < min:
		return errors.Wrapf(errors.ErrInvalidScan, "range [%v, %v] is inverted", min, max)
	}
	return nil
}
