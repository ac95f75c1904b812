package tokenid

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethmath "github.com/ethereum/go-ethereum/common/math"

	"callput-engine/internal/errors"
	"callput-engine/internal/models"
)

// Parse reads a token id from its wire form: a decimal string or a
// 0x-prefixed hex string. Negative values and values of 2^256 or more fail
// with ErrOutOfRange.
func Parse(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty token id")
	}
	if strings.HasPrefix(s, "-") {
		return nil, errors.Wrapf(errors.ErrOutOfRange, "token id %s", s)
	}

	id, ok := gethmath.ParseBig256(s)
	if ok {
		// The hex branch of ParseBig256 accepts a sign after the prefix.
		if id.Sign() < 0 {
			return nil, errors.Wrapf(errors.ErrOutOfRange, "token id %s", s)
		}
		return id, nil
	}

	// ParseBig256 folds overflow and bad syntax together; tell them apart
	// with the same bases it uses.
	digits, base := s, 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits, base = s[2:], 16
	}
	if wide, ok := new(big.Int).SetString(digits, base); ok && (wide.Sign() < 0 || wide.BitLen() > 256) {
		return nil, errors.Wrapf(errors.ErrOutOfRange, "token id %s has %d bits", shortID(s), wide.BitLen())
	}
	return nil, fmt.Errorf("invalid token id %q", s)
}

// shortID shortens a long id for error messages.
func shortID(s string) string {
	if len(s) <= 24 {
		return s
	}
	return s[:10] + "..." + s[len(s)-10:]
}

// ParseAndDecode parses s and decodes it with DecodeStrict.
func ParseAndDecode(s string) (*big.Int, models.OptionPosition, error) {
	id, err := Parse(s)
	if err != nil {
		return nil, models.OptionPosition{}, err
	}
	p, err := DecodeStrict(id)
	return id, p, err
}

// Format returns the decimal wire form of id.
func Format(id *big.Int) string {
	return id.String()
}

// FormatHex returns the 0x-prefixed hex form of id without leading zeros.
func FormatHex(id *big.Int) string {
	return hexutil.EncodeBig(id)
}

// FormatHex32 returns id as a 0x-prefixed, 32-byte zero-padded hex string.
func FormatHex32(id *big.Int) string {
	return hexutil.Encode(gethmath.U256Bytes(new(big.Int).Set(id)))
}
