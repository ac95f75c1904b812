package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"callput-engine/internal/models"
	"callput-engine/internal/strategy"
)

// ExpiryHourUTC is the hour of day at which options expire.
const ExpiryHourUTC = 8

var months = [...]string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

// Instrument is the parsed form of an instrument name.
type Instrument struct {
	Ticker string
	Expiry int64
	Strike uint64
	IsCall bool
}

// String formats i as an instrument name.
func (i Instrument) String() string {
	return InstrumentName(i.Ticker, i.Expiry, i.Strike, i.IsCall)
}

// InstrumentName formats {TICKER}-{D}{MON}{YY}-{strike}-{C|P}, for example
// BTC-8MAR24-65000-C. The day is not zero padded.
func InstrumentName(ticker string, expiry int64, strike uint64, isCall bool) string {
	return fmt.Sprintf("%s-%s-%d-%s", strings.ToUpper(ticker), ExpiryCode(expiry), strike, callPut(isCall))
}

// ExpiryCode formats the date part of an instrument name.
func ExpiryCode(expiry int64) string {
	d := time.Unix(expiry, 0).UTC()
	return fmt.Sprintf("%d%s%02d", d.Day(), months[d.Month()-1], d.Year()%100)
}

// ParseExpiryCode turns a code such as 8MAR24 into the expiry timestamp at
// 08:00 UTC on that day.
func ParseExpiryCode(code string) (int64, error) {
	code = strings.ToUpper(code)
	if len(code) < 6 || len(code) > 7 {
		return 0, fmt.Errorf("invalid expiry code %q", code)
	}
	dayPart, mon, yy := code[:len(code)-5], code[len(code)-5:len(code)-2], code[len(code)-2:]

	day, err := strconv.Atoi(dayPart)
	if err != nil || day < 1 || day > 31 {
		return 0, fmt.Errorf("invalid day in expiry code %q", code)
	}
	year, err := strconv.Atoi(yy)
	if err != nil {
		return 0, fmt.Errorf("invalid year in expiry code %q", code)
	}
	month := 0
	for i, m := range months {
		if m == mon {
			month = i + 1
			break
		}
	}
	if month == 0 {
		return 0, fmt.Errorf("invalid month in expiry code %q", code)
	}

	t := time.Date(2000+year, time.Month(month), day, ExpiryHourUTC, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return 0, fmt.Errorf("no such date %q", code)
	}
	return t.Unix(), nil
}

// ParseInstrument parses an instrument name.
func ParseInstrument(name string) (Instrument, error) {
	parts := strings.Split(strings.TrimSpace(name), "-")
	if len(parts) != 4 {
		return Instrument{}, fmt.Errorf("invalid instrument %q", name)
	}

	expiry, err := ParseExpiryCode(parts[1])
	if err != nil {
		return Instrument{}, err
	}
	strike, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Instrument{}, fmt.Errorf("invalid strike in %q: %w", name, err)
	}

	var isCall bool
	switch strings.ToUpper(parts[3]) {
	case "C":
		isCall = true
	case "P":
	default:
		return Instrument{}, fmt.Errorf("invalid option type in %q", name)
	}

	return Instrument{Ticker: strings.ToUpper(parts[0]), Expiry: expiry, Strike: strike, IsCall: isCall}, nil
}

// OptionNames returns the instrument names of p's active legs in slot
// order.
func OptionNames(p models.OptionPosition, reg *Registry) ([]string, error) {
	legs, err := strategy.ActiveLegs(p)
	if err != nil {
		return nil, err
	}
	ticker := reg.Ticker(p.UnderlyingAssetIndex)
	names := make([]string, len(legs))
	for i, l := range legs {
		names[i] = InstrumentName(ticker, p.Expiry, l.StrikePrice, l.IsCall)
	}
	return names, nil
}

// MainName returns the instrument name that identifies p in listings.
func MainName(p models.OptionPosition, reg *Registry) (string, error) {
	main, _, err := strategy.MainAndPaired(p)
	if err != nil {
		return "", err
	}
	return InstrumentName(reg.Ticker(p.UnderlyingAssetIndex), p.Expiry, main.StrikePrice, main.IsCall), nil
}

func callPut(isCall bool) string {
	if isCall {
		return "C"
	}
	return "P"
}
