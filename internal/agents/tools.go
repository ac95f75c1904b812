package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"callput-engine/internal/chart"
	"callput-engine/internal/errors"
	"callput-engine/internal/market"
	"callput-engine/internal/models"
	"callput-engine/internal/payoff"
	"callput-engine/internal/pricing"
	"callput-engine/internal/store"
	"callput-engine/internal/strategy"
	"callput-engine/internal/tokenid"
)

// Tool names.
const (
	ToolDecodeToken      = "decode_option_token"
	ToolEncodeToken      = "encode_option_token"
	ToolValidatePosition = "validate_position"
	ToolOptionChains     = "get_option_chains"
	ToolPositionPnL      = "calculate_position_pnl"
	ToolBreakEven        = "find_break_even"
	ToolSimulatePayoff   = "simulate_payoff"
	ToolPortfolio        = "get_portfolio_summary"
)

// HoldingLister lists stored holdings.
type HoldingLister interface {
	GetHoldings(ctx context.Context, filter store.HoldingFilter) ([]models.Holding, error)
}

// ExecutorConfig wires the executor to its data. Every source is optional;
// tools that need a missing source report ErrDataNotFound.
type ExecutorConfig struct {
	Registry *market.Registry
	Snapshot *market.Snapshot
	Marks    payoff.MarkSource
	Forwards payoff.ForwardSource
	Settles  payoff.SettleSource
	Holdings HoldingLister
	Chart    chart.Config
	Now      func() time.Time
}

// ToolExecutor executes model tool calls against the engine.
type ToolExecutor struct {
	cfg ExecutorConfig
}

// NewToolExecutor creates a new tool executor. A snapshot, when given,
// also serves as mark and forward source unless those are set.
func NewToolExecutor(cfg ExecutorConfig) *ToolExecutor {
	if cfg.Registry == nil {
		cfg.Registry = market.DefaultRegistry()
	}
	if cfg.Snapshot != nil {
		if cfg.Marks == nil {
			cfg.Marks = cfg.Snapshot
		}
		if cfg.Forwards == nil {
			cfg.Forwards = cfg.Snapshot
		}
	}
	if cfg.Chart.TickInterval <= 0 {
		cfg.Chart = chart.DefaultConfig()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ToolExecutor{cfg: cfg}
}

// GetToolDefinitions returns all available tool definitions for OpenAI function calling.
func GetToolDefinitions() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolDecodeToken,
				Description: "Decode a 256-bit option token id into underlying, expiry, strategy, legs, vault and instrument names.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"token_id": {
							"type": "string",
							"description": "Token id in decimal or 0x-prefixed hex"
						}
					},
					"required": ["token_id"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolEncodeToken,
				Description: "Encode a position into its option token id. Legs may be given in any order; the strategy is derived from them when omitted.",
				Parameters:  json.RawMessage(positionSchema),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolValidatePosition,
				Description: "Check whether legs form a supported strategy (single option or two-leg vertical spread) and explain why not.",
				Parameters:  json.RawMessage(positionSchema),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolOptionChains,
				Description: "List option mark prices, implied vols and greeks from the current market snapshot.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"ticker": {
							"type": "string",
							"description": "Underlying ticker (e.g., BTC, ETH)"
						},
						"expiry": {
							"type": "integer",
							"description": "Expiry as unix seconds; omit for all expiries"
						},
						"available_only": {
							"type": "boolean",
							"description": "Only list tradable options",
							"default": true
						}
					},
					"required": ["ticker"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolPositionPnL,
				Description: "Value a holding: open P&L from marks before expiry, settlement payoff after. Returns P&L, ROI and greeks.",
				Parameters:  json.RawMessage(holdingSchema),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolBreakEven,
				Description: "Find the break-even underlying prices of a holding at expiry and the suggested chart range.",
				Parameters:  json.RawMessage(holdingSchema),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolSimulatePayoff,
				Description: "Simulate the profit curve of arbitrary legs just before expiry. Returns break-even points and a sampled curve.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"expiry": {
							"type": "integer",
							"description": "Expiry as unix seconds"
						},
						"legs": {
							"type": "array",
							"items": {
								"type": "object",
								"properties": {
									"strike": {"type": "number"},
									"is_call": {"type": "boolean"},
									"iv": {"type": "number", "description": "Annualized implied vol as a fraction"},
									"order_price": {"type": "number", "description": "Premium paid or received per unit"},
									"size": {"type": "number", "description": "Positive for long, negative for short"}
								},
								"required": ["strike", "is_call", "size"]
							}
						},
						"points": {
							"type": "integer",
							"description": "Number of curve samples to return (default 25)",
							"default": 25
						}
					},
					"required": ["expiry", "legs"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ToolPortfolio,
				Description: "Aggregate P&L, invested notional, ROI and greeks over stored holdings.",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"ticker": {
							"type": "string",
							"description": "Restrict to one underlying"
						}
					}
				}`),
			},
		},
	}
}

const positionSchema = `{
	"type": "object",
	"properties": {
		"underlying_asset_index": {"type": "integer", "description": "Asset index (1 = BTC, 2 = ETH)"},
		"expiry": {"type": "integer", "description": "Expiry as unix seconds"},
		"strategy": {"type": "string", "description": "Optional strategy name such as BuyCallSpread"},
		"legs": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"strike_price": {"type": "integer"},
					"is_call": {"type": "boolean"},
					"is_buy": {"type": "boolean"}
				},
				"required": ["strike_price", "is_call", "is_buy"]
			}
		},
		"vault_index": {"type": "integer", "default": 0}
	},
	"required": ["underlying_asset_index", "expiry", "legs"]
}`

const holdingSchema = `{
	"type": "object",
	"properties": {
		"token_id": {"type": "string", "description": "Token id in decimal or 0x-prefixed hex"},
		"size": {"type": "number", "description": "Contracts held"},
		"execution_price": {"type": "number", "description": "Average premium per contract"}
	},
	"required": ["token_id", "size", "execution_price"]
}`

// ExecuteTool executes a tool call and returns the result as a JSON string.
func (te *ToolExecutor) ExecuteTool(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	var (
		result interface{}
		err    error
	)
	switch toolName {
	case ToolDecodeToken:
		result, err = te.decodeToken(args)
	case ToolEncodeToken:
		result, err = te.encodeToken(args)
	case ToolValidatePosition:
		result, err = te.validatePosition(args)
	case ToolOptionChains:
		result, err = te.optionChains(args)
	case ToolPositionPnL:
		result, err = te.positionPnL(args)
	case ToolBreakEven:
		result, err = te.breakEven(args)
	case ToolSimulatePayoff:
		result, err = te.simulatePayoff(args)
	case ToolPortfolio:
		result, err = te.portfolio(ctx, args)
	default:
		return "", errors.NewAgentError(toolName, "execute", errors.ErrUnknownTool)
	}
	if err != nil {
		return "", errors.NewAgentError(toolName, "execute", err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", errors.NewAgentError(toolName, "marshal result", err)
	}
	return string(out), nil
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	return nil
}

// PositionView is the description of a position returned to the model.
type PositionView struct {
	TokenID        string           `json:"token_id"`
	TokenHex       string           `json:"token_hex"`
	Fields         tokenid.Fields   `json:"fields"`
	Ticker         string           `json:"ticker"`
	Direction      models.Direction `json:"direction"`
	Side           models.OrderSide `json:"side"`
	Instruments    []string         `json:"instruments"`
	MainInstrument string           `json:"main_instrument"`
	ExpiryUTC      string           `json:"expiry_utc"`
}

func (te *ToolExecutor) view(p models.OptionPosition) (*PositionView, error) {
	id, err := tokenid.Encode(p)
	if err != nil {
		return nil, err
	}
	names, err := market.OptionNames(p, te.cfg.Registry)
	if err != nil {
		return nil, err
	}
	mainName, err := market.MainName(p, te.cfg.Registry)
	if err != nil {
		return nil, err
	}
	return &PositionView{
		TokenID:        tokenid.Format(id),
		TokenHex:       tokenid.FormatHex(id),
		Fields:         tokenid.FieldsOf(p),
		Ticker:         te.cfg.Registry.Ticker(p.UnderlyingAssetIndex),
		Direction:      strategy.Direction(p.Strategy),
		Side:           strategy.Side(p.Strategy),
		Instruments:    names,
		MainInstrument: mainName,
		ExpiryUTC:      time.Unix(p.Expiry, 0).UTC().Format(time.RFC3339),
	}, nil
}

func (te *ToolExecutor) decodeToken(args json.RawMessage) (interface{}, error) {
	var params struct {
		TokenID string `json:"token_id"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	_, p, err := tokenid.ParseAndDecode(params.TokenID)
	if err != nil {
		return nil, err
	}
	return te.view(p)
}

func (te *ToolExecutor) encodeToken(args json.RawMessage) (interface{}, error) {
	var f tokenid.Fields
	if err := decodeArgs(args, &f); err != nil {
		return nil, err
	}
	_, p, err := tokenid.EncodeFields(f)
	if err != nil {
		return nil, err
	}
	return te.view(p)
}

func (te *ToolExecutor) validatePosition(args json.RawMessage) (interface{}, error) {
	var f tokenid.Fields
	if err := decodeArgs(args, &f); err != nil {
		return nil, err
	}
	result := struct {
		Valid    bool   `json:"valid"`
		Strategy string `json:"strategy,omitempty"`
		Reason   string `json:"reason,omitempty"`
	}{}

	p, err := f.Position()
	if err == nil {
		err = strategy.Validate(p)
	}
	if err != nil {
		result.Reason = err.Error()
		return result, nil
	}
	result.Valid = true
	result.Strategy = p.Strategy.String()
	return result, nil
}

func (te *ToolExecutor) optionChains(args json.RawMessage) (interface{}, error) {
	params := struct {
		Ticker        string `json:"ticker"`
		Expiry        int64  `json:"expiry"`
		AvailableOnly *bool  `json:"available_only"`
	}{}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	snap := te.cfg.Snapshot
	if snap == nil {
		return nil, errors.NewDataError("snapshot", "current", "no market snapshot loaded", errors.ErrDataNotFound)
	}
	asset, ok := te.cfg.Registry.ByTicker(params.Ticker)
	if !ok {
		return nil, errors.NewDataError("asset", params.Ticker, "unknown ticker", errors.ErrDataNotFound)
	}
	availableOnly := params.AvailableOnly == nil || *params.AvailableOnly

	options := make([]models.OptionMarketData, 0)
	for _, d := range snap.Entries() {
		in, err := market.ParseInstrument(d.Instrument)
		if err != nil || in.Ticker != asset.Ticker {
			continue
		}
		if params.Expiry > 0 && in.Expiry != params.Expiry {
			continue
		}
		if availableOnly && !d.IsOptionAvailable {
			continue
		}
		if d.Expiry == 0 {
			d.Expiry = in.Expiry
		}
		options = append(options, d)
	}
	sort.SliceStable(options, func(i, j int) bool {
		if options[i].Expiry != options[j].Expiry {
			return options[i].Expiry < options[j].Expiry
		}
		return options[i].StrikePrice < options[j].StrikePrice
	})

	forward, _ := snap.Forward(asset.Index)
	return struct {
		Ticker  string                    `json:"ticker"`
		AsOf    int64                     `json:"as_of"`
		Forward float64                   `json:"forward"`
		Options []models.OptionMarketData `json:"options"`
	}{asset.Ticker, snap.AsOf, forward, options}, nil
}

type holdingArgs struct {
	TokenID        string  `json:"token_id"`
	Size           float64 `json:"size"`
	ExecutionPrice float64 `json:"execution_price"`
}

func (a holdingArgs) holding() (models.Holding, error) {
	id, p, err := tokenid.ParseAndDecode(a.TokenID)
	if err != nil {
		return models.Holding{}, err
	}
	if a.Size < 0 || a.ExecutionPrice < 0 {
		return models.Holding{}, fmt.Errorf("size and execution_price must be non-negative")
	}
	return models.Holding{
		TokenID:        tokenid.Format(id),
		Position:       p,
		Size:           a.Size,
		ExecutionPrice: a.ExecutionPrice,
	}, nil
}

func (te *ToolExecutor) env() payoff.Env {
	return payoff.Env{
		Marks:    te.cfg.Marks,
		Settles:  te.cfg.Settles,
		Forwards: te.cfg.Forwards,
		AsOf:     te.cfg.Now().Unix(),
	}
}

func (te *ToolExecutor) positionPnL(args json.RawMessage) (interface{}, error) {
	var params holdingArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	h, err := params.holding()
	if err != nil {
		return nil, err
	}
	res, err := payoff.Evaluate(h, te.env())
	if err != nil {
		return nil, err
	}
	mainName, _ := market.MainName(h.Position, te.cfg.Registry)
	return struct {
		Instrument string `json:"instrument"`
		Strategy   string `json:"strategy"`
		models.PayoffResult
	}{mainName, h.Position.Strategy.String(), res}, nil
}

func (te *ToolExecutor) breakEven(args json.RawMessage) (interface{}, error) {
	var params holdingArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	h, err := params.holding()
	if err != nil {
		return nil, err
	}
	data, err := chart.ForHolding(h, te.cfg.Marks, te.cfg.Now().Unix(), te.cfg.Chart)
	if err != nil {
		return nil, err
	}
	return struct {
		BreakEvenPoints []float64 `json:"break_even_points"`
		ChartMin        float64   `json:"chart_min"`
		ChartMax        float64   `json:"chart_max"`
		MaxProfit       float64   `json:"max_profit_in_range"`
		MaxLoss         float64   `json:"max_loss_in_range"`
	}{data.BreakEvenPoints, data.MinX, data.MaxX, data.MaxY, data.MinY}, nil
}

func (te *ToolExecutor) simulatePayoff(args json.RawMessage) (interface{}, error) {
	var params struct {
		Expiry int64 `json:"expiry"`
		Legs   []struct {
			Strike     float64 `json:"strike"`
			IsCall     bool    `json:"is_call"`
			IV         float64 `json:"iv"`
			OrderPrice float64 `json:"order_price"`
			Size       float64 `json:"size"`
		} `json:"legs"`
		Points int `json:"points"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if len(params.Legs) == 0 || len(params.Legs) > models.MaxLegs {
		return nil, fmt.Errorf("between 1 and %d legs are required", models.MaxLegs)
	}

	legs := make([]pricing.LegInput, len(params.Legs))
	for i, l := range params.Legs {
		legs[i] = pricing.LegInput{
			Strike:     l.Strike,
			IsCall:     l.IsCall,
			IV:         l.IV,
			OrderPrice: l.OrderPrice,
			Size:       l.Size,
			Expiry:     params.Expiry,
		}
	}
	data, err := chart.Build(chart.Request{Legs: legs, Expiry: params.Expiry, Now: te.cfg.Now().Unix()}, te.cfg.Chart)
	if err != nil {
		return nil, err
	}
	if params.Points <= 0 {
		params.Points = 25
	}
	data.Points = Downsample(data.Points, params.Points)
	return data, nil
}

// Downsample keeps at most n evenly spaced points, always including the
// last one.
func Downsample(points []models.ChartPoint, n int) []models.ChartPoint {
	if n <= 0 || len(points) <= n {
		return points
	}
	step := int(math.Ceil(float64(len(points)) / float64(n)))
	out := make([]models.ChartPoint, 0, n+1)
	for i := 0; i < len(points); i += step {
		out = append(out, points[i])
	}
	if last := points[len(points)-1]; out[len(out)-1] != last {
		out = append(out, last)
	}
	return out
}

func (te *ToolExecutor) portfolio(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var params struct {
		Ticker string `json:"ticker"`
	}
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}
	if te.cfg.Holdings == nil {
		return nil, errors.NewDataError("holdings", "store", "no holdings store configured", errors.ErrDataNotFound)
	}

	var filter store.HoldingFilter
	if params.Ticker != "" {
		asset, ok := te.cfg.Registry.ByTicker(strings.TrimSpace(params.Ticker))
		if !ok {
			return nil, errors.NewDataError("asset", params.Ticker, "unknown ticker", errors.ErrDataNotFound)
		}
		filter.Asset = &asset.Index
	}
	holdings, err := te.cfg.Holdings.GetHoldings(ctx, filter)
	if err != nil {
		return nil, err
	}
	summary, results, err := payoff.Aggregate(holdings, te.env())
	if err != nil {
		return nil, err
	}

	type row struct {
		TokenID  string  `json:"token_id"`
		Strategy string  `json:"strategy"`
		Size     float64 `json:"size"`
		models.PayoffResult
	}
	rows := make([]row, len(holdings))
	for i, h := range holdings {
		rows[i] = row{h.TokenID, h.Position.Strategy.String(), h.Size, results[i]}
	}
	return struct {
		Summary   models.PortfolioSummary `json:"summary"`
		Positions []row                   `json:"positions"`
	}{summary, rows}, nil
}
