// Package strategy maps strategy codes to their leg layout.
//
// Active legs occupy the leading slots of a position in ascending strike
// order. For spreads the main leg (the one that carries the position's
// side and names the instrument) is the lower strike for calls and the
// higher strike for puts.
package strategy

import (
	"fmt"
	"sort"

	"callput-engine/internal/errors"
	"callput-engine/internal/models"
)

// LegPattern is the expected type and side of one leg slot.
type LegPattern struct {
	IsCall bool
	IsBuy  bool
}

// Spec describes one strategy.
type Spec struct {
	Strategy  models.Strategy
	LegCount  int
	Pattern   []LegPattern
	MainLeg   int
	PairedLeg int // -1 for naked strategies
}

var (
	callBuy  = LegPattern{IsCall: true, IsBuy: true}
	callSell = LegPattern{IsCall: true, IsBuy: false}
	putBuy   = LegPattern{IsCall: false, IsBuy: true}
	putSell  = LegPattern{IsCall: false, IsBuy: false}
)

var table = [...]Spec{
	models.StrategyBuyCall:        {models.StrategyBuyCall, 1, []LegPattern{callBuy}, 0, -1},
	models.StrategySellCall:       {models.StrategySellCall, 1, []LegPattern{callSell}, 0, -1},
	models.StrategyBuyPut:         {models.StrategyBuyPut, 1, []LegPattern{putBuy}, 0, -1},
	models.StrategySellPut:        {models.StrategySellPut, 1, []LegPattern{putSell}, 0, -1},
	models.StrategyBuyCallSpread:  {models.StrategyBuyCallSpread, 2, []LegPattern{callBuy, callSell}, 0, 1},
	models.StrategySellCallSpread: {models.StrategySellCallSpread, 2, []LegPattern{callSell, callBuy}, 0, 1},
	models.StrategyBuyPutSpread:   {models.StrategyBuyPutSpread, 2, []LegPattern{putSell, putBuy}, 1, 0},
	models.StrategySellPutSpread:  {models.StrategySellPutSpread, 2, []LegPattern{putBuy, putSell}, 1, 0},
}

// Lookup returns the spec for s. NotSupported and out-of-range ordinals
// fail with ErrUnknownStrategy.
func Lookup(s models.Strategy) (Spec, error) {
	if s == models.StrategyNotSupported || int(s) >= len(table) {
		return Spec{}, errors.Wrapf(errors.ErrUnknownStrategy, "ordinal %d", uint8(s))
	}
	return table[s], nil
}

// All returns every supported strategy in ordinal order.
func All() []Spec {
	out := make([]Spec, 0, len(table)-1)
	for _, spec := range table[1:] {
		out = append(out, spec)
	}
	return out
}

// ActiveLegs returns the legs that belong to p's strategy.
func ActiveLegs(p models.OptionPosition) ([]models.Leg, error) {
	spec, err := Lookup(p.Strategy)
	if err != nil {
		return nil, err
	}
	legs := make([]models.Leg, spec.LegCount)
	copy(legs, p.Legs[:spec.LegCount])
	return legs, nil
}

// Validate checks that p's active legs match its strategy pattern and,
// for spreads, that strikes strictly ascend. Inactive slots are ignored.
func Validate(p models.OptionPosition) error {
	spec, err := Lookup(p.Strategy)
	if err != nil {
		return err
	}
	for i, want := range spec.Pattern {
		got := p.Legs[i]
		if got.IsCall != want.IsCall {
			return errors.NewPositionError(p.Strategy.String(), i,
				fmt.Sprintf("expected %s, decoded %s", optionType(want.IsCall), optionType(got.IsCall)))
		}
		if got.IsBuy != want.IsBuy {
			return errors.NewPositionError(p.Strategy.String(), i,
				fmt.Sprintf("expected %s leg, decoded %s leg", side(want.IsBuy), side(got.IsBuy)))
		}
	}
	if spec.LegCount == 2 && p.Legs[0].StrikePrice >= p.Legs[1].StrikePrice {
		return errors.NewPositionError(p.Strategy.String(), -1,
			fmt.Sprintf("spread strikes must ascend, got %d then %d", p.Legs[0].StrikePrice, p.Legs[1].StrikePrice))
	}
	return nil
}

// Classify sorts legs by ascending strike and returns the strategy they
// form together with the sorted legs.
func Classify(legs []models.Leg) (models.Strategy, []models.Leg, error) {
	if len(legs) == 0 || len(legs) > 2 {
		return models.StrategyNotSupported, nil, errors.Wrapf(errors.ErrUnknownStrategy, "%d legs", len(legs))
	}

	sorted := make([]models.Leg, len(legs))
	copy(sorted, legs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StrikePrice < sorted[j].StrikePrice
	})

	for _, spec := range table[1:] {
		if spec.LegCount != len(sorted) {
			continue
		}
		if matches(spec.Pattern, sorted) {
			return spec.Strategy, sorted, nil
		}
	}
	return models.StrategyNotSupported, nil, errors.Wrap(errors.ErrUnknownStrategy, "leg pattern matches no strategy")
}

func matches(pattern []LegPattern, legs []models.Leg) bool {
	for i, p := range pattern {
		if legs[i].IsCall != p.IsCall || legs[i].IsBuy != p.IsBuy {
			return false
		}
	}
	return true
}

// IsBuy reports whether s is held long.
func IsBuy(s models.Strategy) bool {
	switch s {
	case models.StrategyBuyCall, models.StrategyBuyPut, models.StrategyBuyCallSpread, models.StrategyBuyPutSpread:
		return true
	}
	return false
}

// IsCall reports whether s is built from calls.
func IsCall(s models.Strategy) bool {
	switch s {
	case models.StrategyBuyCall, models.StrategySellCall, models.StrategyBuyCallSpread, models.StrategySellCallSpread:
		return true
	}
	return false
}

// IsSpread reports whether s has two legs.
func IsSpread(s models.Strategy) bool {
	switch s {
	case models.StrategyBuyCallSpread, models.StrategySellCallSpread, models.StrategyBuyPutSpread, models.StrategySellPutSpread:
		return true
	}
	return false
}

// Side returns BUY or SELL for s.
func Side(s models.Strategy) models.OrderSide {
	if IsBuy(s) {
		return models.OrderSideBuy
	}
	return models.OrderSideSell
}

// Sign is +1 for bought strategies and -1 for sold ones.
func Sign(s models.Strategy) float64 {
	if IsBuy(s) {
		return 1
	}
	return -1
}

// Direction classifies s as bullish or bearish.
func Direction(s models.Strategy) models.Direction {
	if IsCall(s) == IsBuy(s) {
		return models.DirectionBullish
	}
	return models.DirectionBearish
}

// Opposite returns the strategy that closes s.
func Opposite(s models.Strategy) models.Strategy {
	switch s {
	case models.StrategyBuyCall:
		return models.StrategySellCall
	case models.StrategySellCall:
		return models.StrategyBuyCall
	case models.StrategyBuyPut:
		return models.StrategySellPut
	case models.StrategySellPut:
		return models.StrategyBuyPut
	case models.StrategyBuyCallSpread:
		return models.StrategySellCallSpread
	case models.StrategySellCallSpread:
		return models.StrategyBuyCallSpread
	case models.StrategyBuyPutSpread:
		return models.StrategySellPutSpread
	case models.StrategySellPutSpread:
		return models.StrategyBuyPutSpread
	default:
		return models.StrategyNotSupported
	}
}

// MainAndPaired returns the main leg of p and, for spreads, the paired leg.
func MainAndPaired(p models.OptionPosition) (main models.Leg, paired *models.Leg, err error) {
	spec, err := Lookup(p.Strategy)
	if err != nil {
		return models.Leg{}, nil, err
	}
	main = p.Legs[spec.MainLeg]
	if spec.PairedLeg >= 0 {
		leg := p.Legs[spec.PairedLeg]
		paired = &leg
	}
	return main, paired, nil
}

func optionType(isCall bool) string {
	if isCall {
		return "call"
	}
	return "put"
}

func side(isBuy bool) string {
	if isBuy {
		return "buy"
	}
	return "sell"
}
