package breakeven

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"callput-engine/internal/errors"
	"callput-engine/internal/pricing"
)

func TestFind_BoughtCall(t *testing.T) {
	f := pricing.CombinedProfit([]pricing.LegInput{
		{Strike: 100, IsCall: true, OrderPrice: 5, Size: 1},
	}, 0)

	points, err := Find(f, 50, 200, 1)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(points) != 1 || points[0] != 105 {
		t.Fatalf("points = %v, want [105]", points)
	}
}

func TestFind_SpreadHasOneCrossing(t *testing.T) {
	f := pricing.CombinedProfit([]pricing.LegInput{
		{Strike: 100, IsCall: false, OrderPrice: 1, Size: -1},
		{Strike: 110, IsCall: false, OrderPrice: 4, Size: 1},
	}, 0)

	// Buy put spread: net debit 3, break-even at 107.
	points, err := Find(f, 0, 300, 0.5)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(points) != 1 || math.Abs(points[0]-107) > 0.5 {
		t.Fatalf("points = %v, want [~107]", points)
	}
}

func TestFind_NoCrossing(t *testing.T) {
	points, err := Find(func(float64) float64 { return -1 }, 0, 10, 1)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if points == nil || len(points) != 0 {
		t.Fatalf("points = %#v, want empty non-nil slice", points)
	}
}

func TestFind_Straddle(t *testing.T) {
	f := func(p float64) float64 { return math.Abs(p-100) - 10 }
	points, err := Find(f, 0, 200, 3)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(points) != 2 || math.Abs(points[0]-90) > 1e-9 || math.Abs(points[1]-110) > 1e-9 {
		t.Fatalf("points = %v, want [90 110]", points)
	}
}

func TestFind_InvalidScan(t *testing.T) {
	f := func(float64) float64 { return 0 }
	tests := []struct {
		name           string
		min, max, tick float64
	}{
		{"zero tick", 0, 10, 0},
		{"negative tick", 0, 10, -1},
		{"nan tick", 0, 10, math.NaN()},
		{"inverted", 10, 0, 1},
		{"infinite", 0, math.Inf(1), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Find(f, tt.min, tt.max, tt.tick); !errors.Is(err, errors.ErrInvalidScan) {
				t.Errorf("err = %v, want ErrInvalidScan", err)
			}
		})
	}
}

func TestScan_IncludesMax(t *testing.T) {
	samples, err := Scan(func(p float64) float64 { return p }, 0, 1, 0.1)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(samples) != 11 {
		t.Fatalf("len = %d, want 11", len(samples))
	}
	if math.Abs(samples[10].Price-1) > 1e-12 {
		t.Fatalf("last price = %v", samples[10].Price)
	}
}

func TestScan_SampleCap(t *testing.T) {
	f := func(p float64) float64 { return p - 1 }

	// A 42-bit strike searched at tick 1.
	if _, err := Scan(f, 0, 4.4e13, 1); !errors.Is(err, errors.ErrInvalidScan) {
		t.Errorf("Scan err = %v, want ErrInvalidScan", err)
	}
	if _, err := Find(f, 0, 4.4e13, 1); !errors.Is(err, errors.ErrInvalidScan) {
		t.Errorf("Find err = %v, want ErrInvalidScan", err)
	}
	if _, err := Scan(f, 0, 1e300, 1e-300); !errors.Is(err, errors.ErrInvalidScan) {
		t.Errorf("Scan err = %v for an overflowing count", err)
	}

	samples, err := Scan(f, 0, MaxSamples-1, 1)
	if err != nil || len(samples) != MaxSamples {
		t.Errorf("Scan at the cap: %d samples, err %v", len(samples), err)
	}
}

func TestFitTick(t *testing.T) {
	if got := FitTick(0, 1000, 1); got != 1 {
		t.Errorf("FitTick kept range = %v, want 1", got)
	}
	if got := FitTick(0, 1000, 0); got != 0 {
		t.Errorf("FitTick invalid tick = %v, want unchanged", got)
	}

	tick := FitTick(0, 4.4e13, 1)
	if tick <= 1 {
		t.Fatalf("FitTick = %v, want wider than 1", tick)
	}
	points, err := Find(func(p float64) float64 { return p - 1e13 }, 0, 4.4e13, tick)
	if err != nil {
		t.Fatalf("Find at fitted tick: %v", err)
	}
	if len(points) != 1 || math.Abs(points[0]-1e13) > tick {
		t.Errorf("points = %v, want [~1e13]", points)
	}
}

// TestProperty_FindMatchesScan checks that walking the range without
// keeping samples finds the same crossings as scanning it.
func TestProperty_FindMatchesScan(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("Find equals Crossings of Scan", prop.ForAll(
		func(a, b, tick float64) bool {
			f := func(p float64) float64 { return (p - a) * (p - b) }
			found, err := Find(f, 0, 500, tick)
			if err != nil {
				return false
			}
			samples, err := Scan(f, 0, 500, tick)
			if err != nil {
				return false
			}
			scanned := Crossings(samples)
			if len(found) != len(scanned) {
				return false
			}
			for i := range found {
				if found[i] != scanned[i] {
					return false
				}
			}
			return true
		},
		gen.Float64Range(0, 500),
		gen.Float64Range(0, 500),
		gen.Float64Range(0.25, 10),
	))

	properties.TestingRun(t)
}

func TestProperty_BoughtCallBreakEven(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("single bought call breaks even at strike + premium", prop.ForAll(
		func(strike, premium, tick float64) bool {
			f := pricing.CombinedProfit([]pricing.LegInput{
				{Strike: strike, IsCall: true, OrderPrice: premium, Size: 1},
			}, 0)
			points, err := Find(f, strike/2, strike*2+premium, tick)
			if err != nil || len(points) != 1 {
				return false
			}
			return math.Abs(points[0]-(strike+premium)) <= tick
		},
		gen.Float64Range(100, 100000),
		gen.Float64Range(1, 50),
		gen.Float64Range(0.5, 25),
	))

	properties.TestingRun(t)
}
