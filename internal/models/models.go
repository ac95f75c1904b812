// Package models provides domain models for the option token engine.
package models

// OrderSide represents the side of a position.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Direction is the economic direction of a strategy.
type Direction string

const (
	DirectionBullish Direction = "BULLISH"
	DirectionBearish Direction = "BEARISH"
)

// ValuationMode tells how a payoff was computed.
type ValuationMode string

const (
	ModeOpen    ValuationMode = "OPEN"
	ModeSettled ValuationMode = "SETTLED"
)

// PayoffResult is the valuation of one holding.
type PayoffResult struct {
	Mode                ValuationMode `json:"mode"`
	PayoffPerUnit       float64       `json:"payoff_per_unit"`
	PnLPerUnit          float64       `json:"pnl_per_unit"`
	PnL                 float64       `json:"pnl"`
	SettlePayoffPerUnit float64       `json:"settle_payoff_per_unit"` // settlement only
	ROI                 float64       `json:"roi"`
	Greeks              OptionGreeks  `json:"greeks"` // zero once settled
}

// PortfolioSummary aggregates many payoff results.
type PortfolioSummary struct {
	OpenPositions  int          `json:"open_positions"`
	TotalPnL       float64      `json:"total_pnl"`
	Invested       float64      `json:"invested"`
	PositionsValue float64      `json:"positions_value"`
	ROI            float64      `json:"roi"`
	Greeks         OptionGreeks `json:"greeks"`
}

// ChartPoint is one sample of a payoff curve.
type ChartPoint struct {
	Price  float64 `json:"price"`
	Profit float64 `json:"profit"`
}

// ChartData is a payoff curve ready for display.
type ChartData struct {
	Points          []ChartPoint `json:"points"`
	TickInterval    float64      `json:"tick_interval"`
	BreakEvenPoints []float64    `json:"break_even_points"`
	MinX            float64      `json:"min_x"`
	MaxX            float64      `json:"max_x"`
	MinY            float64      `json:"min_y"`
	MaxY            float64      `json:"max_y"`
}

// Empty reports whether the chart has no data to show.
func (c ChartData) Empty() bool {
	return len(c.Points) == 0
}
