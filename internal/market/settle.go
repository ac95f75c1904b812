package market

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// SettleTable holds settle prices keyed by expiry, one per underlying.
type SettleTable struct {
	prices map[int64]map[uint16]float64
}

// NewSettleTable returns an empty table.
func NewSettleTable() *SettleTable {
	return &SettleTable{prices: make(map[int64]map[uint16]float64)}
}

// Set records the settle price of asset at expiry.
func (t *SettleTable) Set(expiry int64, asset uint16, price float64) {
	m, ok := t.prices[expiry]
	if !ok {
		m = make(map[uint16]float64)
		t.prices[expiry] = m
	}
	m[asset] = price
}

// SettlePrice implements payoff.SettleSource.
func (t *SettleTable) SettlePrice(asset uint16, expiry int64) (float64, bool) {
	p, ok := t.prices[expiry][asset]
	return p, ok
}

// Expiries returns the settled expiries in ascending order.
func (t *SettleTable) Expiries() []int64 {
	out := make([]int64, 0, len(t.prices))
	for e := range t.prices {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Prices returns the settle prices recorded for expiry.
func (t *SettleTable) Prices(expiry int64) map[uint16]float64 {
	out := make(map[uint16]float64, len(t.prices[expiry]))
	for k, v := range t.prices[expiry] {
		out[k] = v
	}
	return out
}

// LoadSettleTable decodes {"<expiry>": {"<TICKER>": price}} from r.
func LoadSettleTable(r io.Reader, reg *Registry) (*SettleTable, error) {
	var raw map[string]map[string]float64
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode settle prices: %w", err)
	}
	if reg == nil {
		reg = DefaultRegistry()
	}

	t := NewSettleTable()
	for key, byTicker := range raw {
		expiry, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid expiry key %q: %w", key, err)
		}
		for ticker, price := range byTicker {
			a, ok := reg.ByTicker(ticker)
			if !ok {
				return nil, fmt.Errorf("settle price for unknown asset %s", ticker)
			}
			t.Set(expiry, a.Index, price)
		}
	}
	return t, nil
}
