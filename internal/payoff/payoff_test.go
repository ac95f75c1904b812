package payoff

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"callput-engine/internal/errors"
	"callput-engine/internal/models"
)

type staticMarks map[LegQuote]Quote

func (m staticMarks) Quote(q LegQuote) (Quote, bool) {
	v, ok := m[q]
	return v, ok
}

type staticSettles map[int64]float64

func (s staticSettles) SettlePrice(_ uint16, expiry int64) (float64, bool) {
	v, ok := s[expiry]
	return v, ok
}

type staticForward float64

func (f staticForward) Forward(uint16) (float64, bool) { return float64(f), true }

const expiry = 1735286400

func naked(s models.Strategy, strike uint64) models.OptionPosition {
	return models.OptionPosition{UnderlyingAssetIndex: 2, Expiry: expiry, Strategy: s}.WithLegs(
		models.Leg{
			StrikePrice: strike,
			IsCall:      s == models.StrategyBuyCall || s == models.StrategySellCall,
			IsBuy:       s == models.StrategyBuyCall || s == models.StrategyBuyPut,
		},
	)
}

func quoteKey(p models.OptionPosition, leg int) LegQuote {
	return LegQuote{
		UnderlyingAssetIndex: p.UnderlyingAssetIndex,
		Expiry:               p.Expiry,
		Strike:               p.Legs[leg].StrikePrice,
		IsCall:               p.Legs[leg].IsCall,
	}
}

func TestOpen_NakedBuyCall(t *testing.T) {
	p := naked(models.StrategyBuyCall, 3000)
	marks := staticMarks{quoteKey(p, 0): {Mark: 180}}

	r, err := Open(models.Holding{Position: p, Size: 2, ExecutionPrice: 150}, marks, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.PnL != 60 {
		t.Errorf("PnL = %v, want 60", r.PnL)
	}
	if r.Mode != models.ModeOpen || r.PayoffPerUnit != 180 {
		t.Errorf("result = %+v", r)
	}
	if r.ROI != 20 {
		t.Errorf("ROI = %v, want 20", r.ROI)
	}
}

func TestOpen_NakedSellPut(t *testing.T) {
	p := naked(models.StrategySellPut, 60000)
	marks := staticMarks{quoteKey(p, 0): {Mark: 95}}

	r, err := Open(models.Holding{Position: p, Size: 5, ExecutionPrice: 80}, marks, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.PnL != -75 {
		t.Errorf("PnL = %v, want -75", r.PnL)
	}
}

func TestOpen_SoldLossIsCapped(t *testing.T) {
	call := naked(models.StrategySellCall, 100)
	marks := staticMarks{quoteKey(call, 0): {Mark: 900}}

	r, err := Open(models.Holding{Position: call, Size: 1, ExecutionPrice: 10}, marks, 500)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.PnLPerUnit != -500 {
		t.Errorf("sold call pnl/unit = %v, want -500 (forward)", r.PnLPerUnit)
	}

	spread := models.OptionPosition{Expiry: expiry, Strategy: models.StrategySellCallSpread}.WithLegs(
		models.Leg{StrikePrice: 100, IsCall: true, IsBuy: false},
		models.Leg{StrikePrice: 110, IsCall: true, IsBuy: true},
	)
	marks = staticMarks{quoteKey(spread, 0): {Mark: 40}, quoteKey(spread, 1): {Mark: 15}}
	r, err = Open(models.Holding{Position: spread, Size: 1, ExecutionPrice: 5}, marks, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.PnLPerUnit != -10 {
		t.Errorf("sold spread pnl/unit = %v, want -10 (width)", r.PnLPerUnit)
	}
}

func TestOpen_MissingMarksAreZero(t *testing.T) {
	spread := models.OptionPosition{Expiry: expiry, Strategy: models.StrategyBuyPutSpread}.WithLegs(
		models.Leg{StrikePrice: 90, IsCall: false, IsBuy: false},
		models.Leg{StrikePrice: 100, IsCall: false, IsBuy: true},
	)
	// Only the main (higher strike) put is quoted.
	marks := staticMarks{quoteKey(spread, 1): {Mark: 7}}

	r, err := Open(models.Holding{Position: spread, Size: 3, ExecutionPrice: 4}, marks, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.PayoffPerUnit != 7 || r.PnL != 9 {
		t.Errorf("result = %+v, want payoff 7 pnl 9", r)
	}

	r, err = Open(models.Holding{Position: spread, Size: 3, ExecutionPrice: 4}, nil, 0)
	if err != nil || r.PayoffPerUnit != 0 {
		t.Errorf("nil marks: %+v, %v", r, err)
	}
}

func TestSettle_ITMCall(t *testing.T) {
	p := naked(models.StrategyBuyCall, 100)
	r, err := Settle(models.Holding{Position: p, Size: 1, ExecutionPrice: 8}, 120)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if r.SettlePayoffPerUnit != 20 || r.PnL != 12 || r.Mode != models.ModeSettled {
		t.Errorf("result = %+v", r)
	}
}

func TestSettle_Spread(t *testing.T) {
	p := models.OptionPosition{Expiry: expiry, Strategy: models.StrategyBuyCallSpread}.WithLegs(
		models.Leg{StrikePrice: 100, IsCall: true, IsBuy: true},
		models.Leg{StrikePrice: 110, IsCall: true, IsBuy: false},
	)
	tests := []struct{ settle, want float64 }{
		{90, 0},
		{105, 5},
		{150, 10},
	}
	for _, tt := range tests {
		r, err := Settle(models.Holding{Position: p, Size: 1, ExecutionPrice: 4}, tt.settle)
		if err != nil {
			t.Fatalf("Settle: %v", err)
		}
		if r.SettlePayoffPerUnit != tt.want {
			t.Errorf("settle %v: payoff = %v, want %v", tt.settle, r.SettlePayoffPerUnit, tt.want)
		}
	}
}

func TestEvaluate_ModeSelection(t *testing.T) {
	p := naked(models.StrategyBuyPut, 100)
	h := models.Holding{Position: p, Size: 1, ExecutionPrice: 3}
	marks := staticMarks{quoteKey(p, 0): {Mark: 5}}

	live, _ := Evaluate(h, Env{Marks: marks, Settles: staticSettles{expiry: 80}, AsOf: expiry - 1})
	if live.Mode != models.ModeOpen || live.PnL != 2 {
		t.Errorf("before expiry: %+v", live)
	}

	settled, _ := Evaluate(h, Env{Marks: marks, Settles: staticSettles{expiry: 80}, AsOf: expiry})
	if settled.Mode != models.ModeSettled || settled.PnL != 17 {
		t.Errorf("after expiry: %+v", settled)
	}

	pending, _ := Evaluate(h, Env{Marks: marks, Settles: staticSettles{}, AsOf: expiry + 60})
	if pending.Mode != models.ModeOpen || pending.PnL != 2 {
		t.Errorf("expired without settle price: %+v", pending)
	}
}

func TestEvaluate_Inconsistent(t *testing.T) {
	p := naked(models.StrategyBuyCallSpread, 100)
	p.Legs[1] = models.Leg{StrikePrice: 110, IsCall: false, IsBuy: false}

	if _, err := Evaluate(models.Holding{Position: p, Size: 1}, Env{}); !errors.Is(err, errors.ErrInconsistentPosition) {
		t.Fatalf("err = %v, want ErrInconsistentPosition", err)
	}
	if _, err := Settle(models.Holding{Position: p, Size: 1}, 100); !errors.Is(err, errors.ErrInconsistentPosition) {
		t.Fatalf("err = %v, want ErrInconsistentPosition", err)
	}
}

func TestAggregate(t *testing.T) {
	call := naked(models.StrategyBuyCall, 3000)
	put := naked(models.StrategySellPut, 2500)
	marks := staticMarks{
		quoteKey(call, 0): {Mark: 180, Greeks: models.OptionGreeks{Delta: 0.5}},
		quoteKey(put, 0):  {Mark: 95, Greeks: models.OptionGreeks{Delta: -0.3}},
	}
	holdings := []models.Holding{
		{Position: call, Size: 2, ExecutionPrice: 150},
		{Position: put, Size: 5, ExecutionPrice: 80},
	}

	sum, results, err := Aggregate(holdings, Env{Marks: marks, Forwards: staticForward(2800), AsOf: expiry - 100})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(results) != 2 || sum.OpenPositions != 2 {
		t.Fatalf("results = %d, open = %d", len(results), sum.OpenPositions)
	}
	if sum.TotalPnL != -15 {
		t.Errorf("TotalPnL = %v, want -15", sum.TotalPnL)
	}
	if sum.Invested != 700 {
		t.Errorf("Invested = %v, want 700", sum.Invested)
	}
	if sum.PositionsValue != 360-475 {
		t.Errorf("PositionsValue = %v", sum.PositionsValue)
	}
	if math.Abs(sum.Greeks.Delta-(1+1.5)) > 1e-12 {
		t.Errorf("Delta = %v, want 2.5", sum.Greeks.Delta)
	}
	if math.Abs(sum.ROI-(-15.0/700*100)) > 1e-12 {
		t.Errorf("ROI = %v", sum.ROI)
	}
}

func TestAggregate_ZeroInvested(t *testing.T) {
	p := naked(models.StrategyBuyCall, 100)
	marks := staticMarks{quoteKey(p, 0): {Mark: 10}}

	sum, _, err := Aggregate([]models.Holding{{Position: p, Size: 1, ExecutionPrice: 0}}, Env{Marks: marks})
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if sum.ROI != 0 || math.IsNaN(sum.ROI) || math.IsInf(sum.ROI, 0) {
		t.Errorf("ROI = %v, want 0", sum.ROI)
	}

	empty, _, _ := Aggregate(nil, Env{})
	if empty.ROI != 0 {
		t.Errorf("empty ROI = %v", empty.ROI)
	}
}

func TestProperty_SpreadPayoffNonNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	spreads := []models.Strategy{
		models.StrategyBuyCallSpread, models.StrategySellCallSpread,
		models.StrategyBuyPutSpread, models.StrategySellPutSpread,
	}

	properties.Property("spread payoff per unit is never negative", prop.ForAll(
		func(idx int, lo, width uint64, markA, markB, settle float64) bool {
			s := spreads[idx]
			isCall := s == models.StrategyBuyCallSpread || s == models.StrategySellCallSpread
			lowBuy := s == models.StrategyBuyCallSpread || s == models.StrategySellPutSpread
			p := models.OptionPosition{Expiry: expiry, Strategy: s}.WithLegs(
				models.Leg{StrikePrice: lo, IsCall: isCall, IsBuy: lowBuy},
				models.Leg{StrikePrice: lo + width, IsCall: isCall, IsBuy: !lowBuy},
			)
			h := models.Holding{Position: p, Size: 1, ExecutionPrice: 1}

			open, err := Open(h, staticMarks{quoteKey(p, 0): {Mark: markA}, quoteKey(p, 1): {Mark: markB}}, 0)
			if err != nil || open.PayoffPerUnit < 0 {
				return false
			}
			settled, err := Settle(h, settle)
			return err == nil && settled.SettlePayoffPerUnit >= 0
		},
		gen.IntRange(0, 3),
		gen.UInt64Range(1, 100000),
		gen.UInt64Range(1, 10000),
		gen.Float64Range(0, 5000),
		gen.Float64Range(0, 5000),
		gen.Float64Range(0, 200000),
	))

	properties.TestingRun(t)
}
