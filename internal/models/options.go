package models

import (
	"fmt"
	"strings"
)

// MaxLegs is the number of leg slots in an option token id.
const MaxLegs = 4

// Strategy identifies the shape of a position. The ordinal is the value
// stored in bits 196-199 of the token id.
type Strategy uint8

const (
	StrategyNotSupported Strategy = iota
	StrategyBuyCall
	StrategySellCall
	StrategyBuyPut
	StrategySellPut
	StrategyBuyCallSpread
	StrategySellCallSpread
	StrategyBuyPutSpread
	StrategySellPutSpread
)

var strategyNames = [...]string{
	"NotSupported",
	"BuyCall",
	"SellCall",
	"BuyPut",
	"SellPut",
	"BuyCallSpread",
	"SellCallSpread",
	"BuyPutSpread",
	"SellPutSpread",
}

// String returns the strategy name.
func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

// ParseStrategy parses a strategy name, case-insensitively.
func ParseStrategy(name string) (Strategy, bool) {
	for i, n := range strategyNames {
		if strings.EqualFold(n, name) {
			return Strategy(i), true
		}
	}
	return StrategyNotSupported, false
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	parsed, ok := ParseStrategy(string(b))
	if !ok {
		return fmt.Errorf("unknown strategy %q", string(b))
	}
	*s = parsed
	return nil
}

// Leg represents one option contract of a position.
type Leg struct {
	StrikePrice uint64 `json:"strike_price"`
	IsCall      bool   `json:"is_call"`
	IsBuy       bool   `json:"is_buy"`
}

// OptionPosition is the decoded form of an option token id.
// Only the first N legs are meaningful, where N comes from the strategy.
type OptionPosition struct {
	UnderlyingAssetIndex uint16       `json:"underlying_asset_index"`
	Expiry               int64        `json:"expiry"`
	Strategy             Strategy     `json:"strategy"`
	Legs                 [MaxLegs]Leg `json:"legs"`
	VaultIndex           uint8        `json:"vault_index"`
}

// WithLegs returns a copy of p with the given legs in the leading slots
// and the remaining slots zeroed.
func (p OptionPosition) WithLegs(legs ...Leg) OptionPosition {
	out := p
	out.Legs = [MaxLegs]Leg{}
	copy(out.Legs[:], legs)
	return out
}

// OptionGreeks represents option Greeks.
type OptionGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
}

// Add returns the component-wise sum.
func (g OptionGreeks) Add(o OptionGreeks) OptionGreeks {
	return OptionGreeks{
		Delta: g.Delta + o.Delta,
		Gamma: g.Gamma + o.Gamma,
		Vega:  g.Vega + o.Vega,
		Theta: g.Theta + o.Theta,
	}
}

// Scale multiplies every component by k.
func (g OptionGreeks) Scale(k float64) OptionGreeks {
	return OptionGreeks{Delta: g.Delta * k, Gamma: g.Gamma * k, Vega: g.Vega * k, Theta: g.Theta * k}
}

// MarketInputs are the live inputs for one evaluation call.
type MarketInputs struct {
	SpotOrForward float64 `json:"spot_or_forward"`
	ImpliedVol    float64 `json:"implied_vol"` // annualized fraction
	AsOf          int64   `json:"as_of"`
	Expiry        int64   `json:"expiry"`
}

// OptionMarketData is one entry of a market-data snapshot.
type OptionMarketData struct {
	Instrument        string  `json:"instrument"`
	StrikePrice       float64 `json:"strikePrice"`
	MarkPrice         float64 `json:"markPrice"`
	MarkIV            float64 `json:"markIv"`
	Delta             float64 `json:"delta"`
	Gamma             float64 `json:"gamma"`
	Vega              float64 `json:"vega"`
	Theta             float64 `json:"theta"`
	IsOptionAvailable bool    `json:"isOptionAvailable"`
	Expiry            int64   `json:"expiry,omitempty"`
}

// Holding is a position held in some size at an average execution price.
type Holding struct {
	TokenID        string         `json:"token_id"`
	Position       OptionPosition `json:"position"`
	Size           float64        `json:"size"` // absolute
	ExecutionPrice float64        `json:"execution_price"`
}
