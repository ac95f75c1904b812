package tokenid

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"callput-engine/internal/errors"
	"callput-engine/internal/models"
	"callput-engine/internal/strategy"
)

// positionFor builds a pattern-consistent position from raw generated values.
func positionFor(asset uint16, expiry int64, ordinal uint8, s1, s2 uint64, vault uint8) models.OptionPosition {
	spec, _ := strategy.Lookup(models.Strategy(ordinal))
	if s1 > s2 {
		s1, s2 = s2, s1
	}
	if s1 == s2 {
		s2 = s1 + 1
	}
	strikes := []uint64{s1, s2}
	if spec.LegCount == 1 {
		strikes = []uint64{s1}
	}

	p := models.OptionPosition{
		UnderlyingAssetIndex: asset,
		Expiry:               expiry,
		Strategy:             spec.Strategy,
		VaultIndex:           vault,
	}
	for i, pat := range spec.Pattern {
		p.Legs[i] = models.Leg{StrikePrice: strikes[i], IsCall: pat.IsCall, IsBuy: pat.IsBuy}
	}
	return p
}

func TestProperty_EncodeDecodeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(p)) == p for every valid position", prop.ForAll(
		func(asset uint16, expiry int64, ordinal uint8, s1, s2 uint64, vault uint8) bool {
			p := positionFor(asset, expiry, ordinal, s1, s2, vault)

			id, err := Encode(p)
			if err != nil {
				t.Logf("encode %+v: %v", p, err)
				return false
			}
			if id.BitLen() > 256 {
				return false
			}

			got, err := DecodeStrict(id)
			if err != nil {
				t.Logf("decode %s: %v", id, err)
				return false
			}
			return got == p
		},
		gen.UInt16(),
		gen.Int64Range(0, MaxExpiry),
		gen.UInt8Range(1, 8),
		gen.UInt64Range(0, MaxStrike-1),
		gen.UInt64Range(0, MaxStrike-1),
		gen.UInt8Range(0, 3),
	))

	properties.Property("wire forms parse back to the same id", prop.ForAll(
		func(asset uint16, expiry int64, ordinal uint8, s1, s2 uint64) bool {
			id := MustEncode(positionFor(asset, expiry, ordinal, s1, s2, 1))

			dec, err := Parse(Format(id))
			if err != nil || dec.Cmp(id) != 0 {
				return false
			}
			hex, err := Parse(FormatHex(id))
			if err != nil || hex.Cmp(id) != 0 {
				return false
			}
			padded, err := Parse(FormatHex32(id))
			return err == nil && padded.Cmp(id) == 0
		},
		gen.UInt16(),
		gen.Int64Range(0, MaxExpiry),
		gen.UInt8Range(1, 8),
		gen.UInt64Range(1, 1_000_000),
		gen.UInt64Range(1, 1_000_000),
	))

	properties.TestingRun(t)
}

func TestProperty_OverflowRejected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("strikes wider than 42 bits fail with ErrFieldOverflow", prop.ForAll(
		func(strike uint64) bool {
			p := positionFor(1, 1700000000, uint8(models.StrategyBuyCall), 0, 0, 0)
			p.Legs[0].StrikePrice = strike
			_, err := Encode(p)
			return errors.Is(err, errors.ErrFieldOverflow)
		},
		gen.UInt64Range(MaxStrike+1, 1<<63),
	))

	properties.Property("expiries wider than 40 bits fail with ErrFieldOverflow", prop.ForAll(
		func(expiry int64) bool {
			p := positionFor(1, 0, uint8(models.StrategySellPut), 100, 0, 0)
			p.Expiry = expiry
			_, err := Encode(p)
			return errors.Is(err, errors.ErrFieldOverflow)
		},
		gen.Int64Range(MaxExpiry+1, 1<<62),
	))

	properties.Property("asset index above 0xFFFF fails with ErrFieldOverflow", prop.ForAll(
		func(asset uint64) bool {
			f := Fields{UnderlyingAssetIndex: asset, Expiry: 1700000000, Strategy: "BuyCall", Legs: []LegFields{{StrikePrice: 100, IsCall: true, IsBuy: true}}}
			_, err := f.Position()
			return errors.Is(err, errors.ErrFieldOverflow)
		},
		gen.UInt64Range(0x10000, 1<<40),
	))

	properties.TestingRun(t)
}

func TestEncode_KnownLayout(t *testing.T) {
	p := models.OptionPosition{
		UnderlyingAssetIndex: 1,
		Expiry:               1735286400,
		Strategy:             models.StrategyBuyCallSpread,
		VaultIndex:           2,
	}.WithLegs(
		models.Leg{StrikePrice: 95000, IsCall: true, IsBuy: true},
		models.Leg{StrikePrice: 100000, IsCall: true, IsBuy: false},
	)

	id, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := new(big.Int)
	add := func(v uint64, shift uint) {
		want.Add(want, new(big.Int).Lsh(new(big.Int).SetUint64(v), shift))
	}
	add(1, 240)
	add(1735286400, 200)
	add(5, 196)
	add(1, 194)
	add(1, 193)
	add(95000, 147)
	add(1, 146)
	add(100000, 99)
	add(1, 98)
	add(2, 0)

	if id.Cmp(want) != 0 {
		t.Fatalf("Encode = %s, want %s", FormatHex(id), FormatHex(want))
	}
}

func TestDecode_CallBitPolarity(t *testing.T) {
	call := MustEncode(positionFor(2, 1700000000, uint8(models.StrategyBuyCall), 3000, 0, 0))
	if call.Bit(146) != 1 {
		t.Fatalf("call leg must set bit 146")
	}
	put := MustEncode(positionFor(2, 1700000000, uint8(models.StrategyBuyPut), 3000, 0, 0))
	if put.Bit(146) != 0 {
		t.Fatalf("put leg must clear bit 146")
	}

	// Flipping only the call bit must surface as an inconsistent position,
	// never as a silently different option.
	flipped := new(big.Int).SetBit(new(big.Int).Set(call), 146, 0)
	p, err := Decode(flipped)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.Legs[0].IsCall {
		t.Fatalf("flipped id still decodes as call")
	}
	if _, err := DecodeStrict(flipped); !errors.Is(err, errors.ErrInconsistentPosition) {
		t.Fatalf("DecodeStrict err = %v, want ErrInconsistentPosition", err)
	}
}

func TestDecode_Errors(t *testing.T) {
	valid := MustEncode(positionFor(1, 1700000000, uint8(models.StrategySellCallSpread), 100, 200, 0))

	tests := []struct {
		name string
		id   *big.Int
		want error
	}{
		{"nil", nil, errors.ErrOutOfRange},
		{"negative", big.NewInt(-1), errors.ErrOutOfRange},
		{"too wide", new(big.Int).Lsh(big.NewInt(1), 256), errors.ErrOutOfRange},
		{"not supported", new(big.Int).Lsh(big.NewInt(1), 240), errors.ErrUnknownStrategy},
		{"ordinal out of range", new(big.Int).Lsh(big.NewInt(12), 196), errors.ErrUnknownStrategy},
		{"leg count mismatch", new(big.Int).SetBit(new(big.Int).Set(valid), 195, 1), errors.ErrInconsistentPosition},
		{"reserved bit set", new(big.Int).SetBit(new(big.Int).Set(valid), 190, 1), errors.ErrFieldOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.id); !errors.Is(err, tt.want) {
				t.Errorf("Decode() err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecode_IgnoresInactiveSlots(t *testing.T) {
	p := positionFor(1, 1700000000, uint8(models.StrategyBuyPut), 50000, 0, 1)
	id := MustEncode(p)

	// Garbage in slot 2 is read but not part of the active position.
	noisy := new(big.Int).Or(id, new(big.Int).Lsh(big.NewInt(777), 51))
	got, err := DecodeStrict(noisy)
	if err != nil {
		t.Fatalf("DecodeStrict: %v", err)
	}
	if got.Legs[2].StrikePrice != 777 {
		t.Fatalf("slot 2 strike = %d, want 777", got.Legs[2].StrikePrice)
	}
	legs, _ := strategy.ActiveLegs(got)
	if len(legs) != 1 || legs[0] != p.Legs[0] {
		t.Fatalf("active legs = %+v", legs)
	}
	if MustEncode(got).Cmp(id) != 0 {
		t.Fatalf("re-encode should zero inactive slots")
	}
}

func TestEncode_RejectsInconsistentPattern(t *testing.T) {
	p := positionFor(1, 1700000000, uint8(models.StrategyBuyPutSpread), 100, 200, 0)
	p.Legs[0], p.Legs[1] = p.Legs[1], p.Legs[0]
	if _, err := Encode(p); !errors.Is(err, errors.ErrInconsistentPosition) {
		t.Fatalf("Encode err = %v, want ErrInconsistentPosition", err)
	}
}

func TestParse(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	tests := []struct {
		in      string
		want    *big.Int
		wantErr error
	}{
		{"12345", big.NewInt(12345), nil},
		{" 0x3039 ", big.NewInt(12345), nil},
		{max.String(), max, nil},
		{"0x" + strings.Repeat("f", 64), max, nil},
		{new(big.Int).Lsh(big.NewInt(1), 256).String(), nil, errors.ErrOutOfRange},
		{"0x1" + strings.Repeat("0", 64), nil, errors.ErrOutOfRange},
		{"-1", nil, errors.ErrOutOfRange},
		{"0x-1", nil, errors.ErrOutOfRange},
		{"0X-3039", nil, errors.ErrOutOfRange},
		{"0x-1" + strings.Repeat("0", 64), nil, errors.ErrOutOfRange},
		{"0" + new(big.Int).Lsh(big.NewInt(1), 256).String(), nil, errors.ErrOutOfRange},
		{"0X3039", big.NewInt(12345), nil},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse(%q) err = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got.Cmp(tt.want) != 0 {
			t.Errorf("Parse(%q) = %v, %v", tt.in, got, err)
		}
	}

	if _, err := Parse("not-a-number"); err == nil {
		t.Errorf("Parse accepted garbage")
	}
}
