// Package tokenid packs option positions into 256-bit token ids and back.
//
// Layout, bit 0 least significant:
//
//	240-255  underlying asset index (16)
//	200-239  expiry, unix seconds (40)
//	196-199  strategy ordinal (4)
//	194-195  leg count - 1 (2)
//	leg i, 48 bits from bit 193-48i down to 146-48i:
//	  isBuy (1) | reserved (4) | strike (42) | isCall (1)
//	0-1      vault index (2)
//
// The isCall bit is 1 for a call and 0 for a put, matching the encoder
// used by the deployment scripts. Reserved bits are always written as
// zero; a decoded id with any of them set is rejected.
package tokenid

import (
	"math/big"

	"callput-engine/internal/errors"
	"callput-engine/internal/models"
	"callput-engine/internal/strategy"
)

const (
	assetShift    = 240
	assetBits     = 16
	expiryShift   = 200
	expiryBits    = 40
	strategyShift = 196
	strategyBits  = 4
	lengthShift   = 194
	lengthBits    = 2
	legTopBit     = 193
	legBlockBits  = 48
	reservedBits  = 4
	strikeBits    = 42
	vaultBits     = 2
)

// MaxStrike is the largest strike a leg slot can hold.
const MaxStrike = 1<<strikeBits - 1

// MaxExpiry is the largest expiry the id can hold.
const MaxExpiry = 1<<expiryBits - 1

func isBuyShift(i int) uint  { return uint(legTopBit - legBlockBits*i) }
func strikeShift(i int) uint { return uint(legTopBit - legBlockBits*i - reservedBits - strikeBits) }
func isCallShift(i int) uint { return uint(legTopBit - legBlockBits*i - legBlockBits + 1) }
func reservedShift(i int) uint {
	return uint(legTopBit - legBlockBits*i - reservedBits)
}

// Encode packs p into a token id. Fields wider than their slot fail with
// ErrFieldOverflow; a leg pattern that contradicts the strategy fails with
// ErrInconsistentPosition. Inactive leg slots are written as zero.
func Encode(p models.OptionPosition) (*big.Int, error) {
	spec, err := strategy.Lookup(p.Strategy)
	if err != nil {
		return nil, err
	}
	if err := checkWidths(p, spec.LegCount); err != nil {
		return nil, err
	}
	if err := strategy.Validate(p); err != nil {
		return nil, err
	}

	id := new(big.Int)
	orField(id, uint64(p.UnderlyingAssetIndex), assetShift)
	orField(id, uint64(p.Expiry), expiryShift)
	orField(id, uint64(p.Strategy), strategyShift)
	orField(id, uint64(spec.LegCount-1), lengthShift)

	for i := 0; i < spec.LegCount; i++ {
		leg := p.Legs[i]
		orField(id, boolBit(leg.IsBuy), isBuyShift(i))
		orField(id, leg.StrikePrice, strikeShift(i))
		orField(id, boolBit(leg.IsCall), isCallShift(i))
	}

	orField(id, uint64(p.VaultIndex), 0)
	return id, nil
}

// MustEncode is like Encode but panics on error. Intended for tests and
// package-level fixtures.
func MustEncode(p models.OptionPosition) *big.Int {
	id, err := Encode(p)
	if err != nil {
		panic(err)
	}
	return id
}

func checkWidths(p models.OptionPosition, legCount int) error {
	if p.Expiry < 0 || p.Expiry > MaxExpiry {
		return errors.NewFieldError("expiry", p.Expiry, expiryBits)
	}
	if uint64(p.Strategy) >= 1<<strategyBits {
		return errors.NewFieldError("strategy", uint8(p.Strategy), strategyBits)
	}
	for i := 0; i < legCount; i++ {
		if p.Legs[i].StrikePrice > MaxStrike {
			return errors.NewFieldError(legField(i, "strike_price"), p.Legs[i].StrikePrice, strikeBits)
		}
	}
	if p.VaultIndex >= 1<<vaultBits {
		return errors.NewFieldError("vault_index", p.VaultIndex, vaultBits)
	}
	return nil
}

// Decode unpacks id. It checks field ranges, the strategy ordinal and the
// leg count, but not the leg pattern; use DecodeStrict for that.
// Legs beyond the strategy's count are returned as read and must be
// ignored by callers.
func Decode(id *big.Int) (models.OptionPosition, error) {
	var p models.OptionPosition
	if id == nil || id.Sign() < 0 || id.BitLen() > 256 {
		return p, errors.Wrap(errors.ErrOutOfRange, "decode token id")
	}

	p.UnderlyingAssetIndex = uint16(field(id, assetShift, assetBits))
	p.Expiry = int64(field(id, expiryShift, expiryBits))
	p.Strategy = models.Strategy(field(id, strategyShift, strategyBits))

	spec, err := strategy.Lookup(p.Strategy)
	if err != nil {
		return p, err
	}
	if n := int(field(id, lengthShift, lengthBits)) + 1; n != spec.LegCount {
		return p, errors.NewPositionError(p.Strategy.String(), -1,
			"leg count field disagrees with strategy")
	}

	for i := 0; i < models.MaxLegs; i++ {
		if r := field(id, reservedShift(i), reservedBits); r != 0 {
			wide := field(id, strikeShift(i), strikeBits+reservedBits)
			return p, errors.NewFieldError(legField(i, "strike_price"), wide, strikeBits)
		}
		p.Legs[i] = models.Leg{
			IsBuy:       field(id, isBuyShift(i), 1) == 1,
			StrikePrice: field(id, strikeShift(i), strikeBits),
			IsCall:      field(id, isCallShift(i), 1) == 1,
		}
	}

	p.VaultIndex = uint8(field(id, 0, vaultBits))
	return p, nil
}

// DecodeStrict decodes id and validates the leg pattern against the
// strategy.
func DecodeStrict(id *big.Int) (models.OptionPosition, error) {
	p, err := Decode(id)
	if err != nil {
		return p, err
	}
	if err := strategy.Validate(p); err != nil {
		return p, err
	}
	return p, nil
}

func orField(id *big.Int, v uint64, shift uint) {
	if v == 0 {
		return
	}
	f := new(big.Int).SetUint64(v)
	id.Or(id, f.Lsh(f, shift))
}

func field(id *big.Int, shift, width uint) uint64 {
	f := new(big.Int).Rsh(id, shift)
	mask := new(big.Int).Lsh(big.NewInt(1), width)
	mask.Sub(mask, big.NewInt(1))
	return f.And(f, mask).Uint64()
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func legField(i int, name string) string {
	return "legs[" + string(rune('0'+i)) + "]." + name
}
