package market

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceDecimals is the fixed-point scale of on-chain prices.
const PriceDecimals = 30

// FromFixed30 converts an on-chain 1e30-scaled price.
func FromFixed30(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -PriceDecimals)
}

// ParseFixed30 parses a decimal integer string holding a 1e30-scaled price.
func ParseFixed30(raw string) (decimal.Decimal, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("invalid fixed-point amount %q", raw)
	}
	return FromFixed30(v), nil
}

// ToFixed30 scales a price to the on-chain representation, truncating
// digits beyond the 30th decimal place.
func ToFixed30(d decimal.Decimal) *big.Int {
	return d.Shift(PriceDecimals).Truncate(0).BigInt()
}

// SizeFromRaw converts a raw token amount with the given decimals.
func SizeFromRaw(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// Size converts a raw option size using the asset's decimals.
func (r *Registry) Size(index uint16, raw *big.Int) (decimal.Decimal, error) {
	a, ok := r.byIndex[index]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown asset index %d", index)
	}
	return SizeFromRaw(raw, a.Decimals), nil
}
