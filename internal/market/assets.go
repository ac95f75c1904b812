// Package market adapts market data feeds to the payoff engine: instrument
// names, quote snapshots, settle-price tables and fixed-point amounts.
package market

import (
	"fmt"
	"sort"
	"strings"
)

// Asset is an underlying the protocol lists options on.
type Asset struct {
	Index    uint16 `json:"index" mapstructure:"index"`
	Ticker   string `json:"ticker" mapstructure:"ticker"`
	Decimals int32  `json:"decimals" mapstructure:"decimals"`
}

// DefaultAssets are the underlyings deployed on every supported chain.
var DefaultAssets = []Asset{
	{Index: 1, Ticker: "BTC", Decimals: 8},
	{Index: 2, Ticker: "ETH", Decimals: 18},
}

// Registry resolves assets by index or ticker.
type Registry struct {
	byIndex  map[uint16]Asset
	byTicker map[string]Asset
}

// NewRegistry builds a registry. Duplicate indexes or tickers are an error.
func NewRegistry(assets []Asset) (*Registry, error) {
	r := &Registry{
		byIndex:  make(map[uint16]Asset, len(assets)),
		byTicker: make(map[string]Asset, len(assets)),
	}
	for _, a := range assets {
		ticker := strings.ToUpper(a.Ticker)
		if ticker == "" {
			return nil, fmt.Errorf("asset %d has no ticker", a.Index)
		}
		if _, dup := r.byIndex[a.Index]; dup {
			return nil, fmt.Errorf("duplicate asset index %d", a.Index)
		}
		if _, dup := r.byTicker[ticker]; dup {
			return nil, fmt.Errorf("duplicate asset ticker %s", ticker)
		}
		a.Ticker = ticker
		r.byIndex[a.Index] = a
		r.byTicker[ticker] = a
	}
	return r, nil
}

// DefaultRegistry returns a registry over DefaultAssets.
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(DefaultAssets)
	return r
}

// ByIndex looks up an asset by its token-id index.
func (r *Registry) ByIndex(index uint16) (Asset, bool) {
	a, ok := r.byIndex[index]
	return a, ok
}

// ByTicker looks up an asset by ticker, case-insensitively.
func (r *Registry) ByTicker(ticker string) (Asset, bool) {
	a, ok := r.byTicker[strings.ToUpper(ticker)]
	return a, ok
}

// Ticker returns the ticker for index, or "ASSET<n>" when unknown.
func (r *Registry) Ticker(index uint16) string {
	if a, ok := r.byIndex[index]; ok {
		return a.Ticker
	}
	return fmt.Sprintf("ASSET%d", index)
}

// Assets returns every asset ordered by index.
func (r *Registry) Assets() []Asset {
	out := make([]Asset, 0, len(r.byIndex))
	for _, a := range r.byIndex {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
