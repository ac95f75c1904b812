package tokenid

import (
	"fmt"
	"math/big"

	"callput-engine/internal/errors"
	"callput-engine/internal/models"
	"callput-engine/internal/strategy"
)

// LegFields is one leg as supplied by a caller outside the codec.
type LegFields struct {
	StrikePrice uint64 `json:"strike_price" mapstructure:"strike_price"`
	IsCall      bool   `json:"is_call" mapstructure:"is_call"`
	IsBuy       bool   `json:"is_buy" mapstructure:"is_buy"`
}

// Fields is the loosely typed form of a position used by the CLI and the
// agent tools. Integer fields are wide so that out-of-range input is
// reported as a field overflow rather than silently truncated.
type Fields struct {
	UnderlyingAssetIndex uint64      `json:"underlying_asset_index" mapstructure:"underlying_asset_index"`
	Expiry               int64       `json:"expiry" mapstructure:"expiry"`
	Strategy             string      `json:"strategy,omitempty" mapstructure:"strategy"`
	Legs                 []LegFields `json:"legs" mapstructure:"legs"`
	VaultIndex           uint64      `json:"vault_index" mapstructure:"vault_index"`
}

// Position converts f into a position. When Strategy is empty the legs are
// classified; otherwise they must already be in slot order for the named
// strategy.
func (f Fields) Position() (models.OptionPosition, error) {
	var p models.OptionPosition

	if f.UnderlyingAssetIndex > 1<<assetBits-1 {
		return p, errors.NewFieldError("underlying_asset_index", f.UnderlyingAssetIndex, assetBits)
	}
	if f.VaultIndex > 1<<vaultBits-1 {
		return p, errors.NewFieldError("vault_index", f.VaultIndex, vaultBits)
	}
	if len(f.Legs) == 0 || len(f.Legs) > models.MaxLegs {
		return p, errors.NewPositionError(f.Strategy, -1, fmt.Sprintf("%d legs given", len(f.Legs)))
	}

	legs := make([]models.Leg, len(f.Legs))
	for i, l := range f.Legs {
		legs[i] = models.Leg{StrikePrice: l.StrikePrice, IsCall: l.IsCall, IsBuy: l.IsBuy}
	}

	p.UnderlyingAssetIndex = uint16(f.UnderlyingAssetIndex)
	p.Expiry = f.Expiry
	p.VaultIndex = uint8(f.VaultIndex)

	if f.Strategy == "" {
		s, sorted, err := strategy.Classify(legs)
		if err != nil {
			return p, err
		}
		p.Strategy = s
		return p.WithLegs(sorted...), nil
	}

	s, ok := models.ParseStrategy(f.Strategy)
	if !ok {
		return p, errors.Wrapf(errors.ErrUnknownStrategy, "%q", f.Strategy)
	}
	p.Strategy = s
	return p.WithLegs(legs...), nil
}

// FieldsOf is the inverse of Fields.Position for the active legs of p.
func FieldsOf(p models.OptionPosition) Fields {
	f := Fields{
		UnderlyingAssetIndex: uint64(p.UnderlyingAssetIndex),
		Expiry:               p.Expiry,
		Strategy:             p.Strategy.String(),
		VaultIndex:           uint64(p.VaultIndex),
	}
	legs, err := strategy.ActiveLegs(p)
	if err != nil {
		return f
	}
	for _, l := range legs {
		f.Legs = append(f.Legs, LegFields(l))
	}
	return f
}

// EncodeFields converts f to a position and encodes it.
func EncodeFields(f Fields) (*big.Int, models.OptionPosition, error) {
	p, err := f.Position()
	if err != nil {
		return nil, p, err
	}
	id, err := Encode(p)
	if err != nil {
		return nil, p, err
	}
	return id, p, nil
}
