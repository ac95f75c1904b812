package market

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"callput-engine/internal/models"
	"callput-engine/internal/payoff"
)

// ExpiryOptions lists the calls and puts of one expiry.
type ExpiryOptions struct {
	Call []models.OptionMarketData `json:"call"`
	Put  []models.OptionMarketData `json:"put"`
}

// AssetMarket is the per-underlying section of the market feed. Options
// are keyed by the expiry timestamp in decimal.
type AssetMarket struct {
	Expiries []int64                  `json:"expiries"`
	Options  map[string]ExpiryOptions `json:"options"`
}

// Feed is the market-data document published by the pricing service.
type Feed struct {
	AsOf    int64                  `json:"asOf"`
	Futures map[string]float64     `json:"futures"`
	Market  map[string]AssetMarket `json:"market"`
}

// Snapshot is a flattened, read-only view of a feed keyed by instrument
// name. Build it with NewSnapshot, Add and SetForward, then share it
// freely; it is never modified while being read.
type Snapshot struct {
	AsOf     int64
	reg      *Registry
	options  map[string]models.OptionMarketData
	forwards map[uint16]float64
}

// NewSnapshot returns an empty snapshot resolving tickers through reg.
func NewSnapshot(reg *Registry, asOf int64) *Snapshot {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Snapshot{
		AsOf:     asOf,
		reg:      reg,
		options:  make(map[string]models.OptionMarketData),
		forwards: make(map[uint16]float64),
	}
}

// Add stores one entry under its instrument name.
func (s *Snapshot) Add(d models.OptionMarketData) {
	s.options[d.Instrument] = d
}

// SetForward records the futures price of an underlying.
func (s *Snapshot) SetForward(asset uint16, price float64) {
	s.forwards[asset] = price
}

// FromFeed flattens a feed. Unknown tickers in the futures map are an
// error; unknown tickers in the options are kept under their names.
func FromFeed(feed Feed, reg *Registry) (*Snapshot, error) {
	s := NewSnapshot(reg, feed.AsOf)

	for ticker, price := range feed.Futures {
		a, ok := s.reg.ByTicker(ticker)
		if !ok {
			return nil, fmt.Errorf("futures price for unknown asset %s", ticker)
		}
		s.SetForward(a.Index, price)
	}

	for _, am := range feed.Market {
		for key, opts := range am.Options {
			expiry, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid expiry key %q: %w", key, err)
			}
			for _, list := range [][]models.OptionMarketData{opts.Call, opts.Put} {
				for _, d := range list {
					if d.Expiry == 0 {
						d.Expiry = expiry
					}
					s.Add(d)
				}
			}
		}
	}
	return s, nil
}

// LoadSnapshot decodes a JSON feed from r.
func LoadSnapshot(r io.Reader, reg *Registry) (*Snapshot, error) {
	var feed Feed
	if err := json.NewDecoder(r).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode market feed: %w", err)
	}
	return FromFeed(feed, reg)
}

// Lookup returns the entry for an instrument name.
func (s *Snapshot) Lookup(instrument string) (models.OptionMarketData, bool) {
	d, ok := s.options[instrument]
	return d, ok
}

// Quote implements payoff.MarkSource.
func (s *Snapshot) Quote(q payoff.LegQuote) (payoff.Quote, bool) {
	name := InstrumentName(s.reg.Ticker(q.UnderlyingAssetIndex), q.Expiry, q.Strike, q.IsCall)
	d, ok := s.options[name]
	if !ok {
		return payoff.Quote{}, false
	}
	return payoff.Quote{
		Mark: d.MarkPrice,
		IV:   d.MarkIV,
		Greeks: models.OptionGreeks{
			Delta: d.Delta,
			Gamma: d.Gamma,
			Vega:  d.Vega,
			Theta: d.Theta,
		},
	}, true
}

// Forward implements payoff.ForwardSource.
func (s *Snapshot) Forward(asset uint16) (float64, bool) {
	f, ok := s.forwards[asset]
	return f, ok
}

// Entries returns every entry ordered by instrument name.
func (s *Snapshot) Entries() []models.OptionMarketData {
	out := make([]models.OptionMarketData, 0, len(s.options))
	for _, d := range s.options {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// Len returns the number of instruments.
func (s *Snapshot) Len() int {
	return len(s.options)
}

// Registry returns the asset registry the snapshot resolves names with.
func (s *Snapshot) Registry() *Registry {
	return s.reg
}

// Forwards returns a copy of the futures prices by asset index.
func (s *Snapshot) Forwards() map[uint16]float64 {
	out := make(map[uint16]float64, len(s.forwards))
	for k, v := range s.forwards {
		out[k] = v
	}
	return out
}
