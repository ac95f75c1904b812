package cli

import (
	"fmt"
	"strings"
	"time"

	"callput-engine/internal/models"
	"callput-engine/pkg/utils"
)

// FormatGreeks formats option Greeks.
func FormatGreeks(g models.OptionGreeks) string {
	return fmt.Sprintf("Δ %.4f  Γ %.6f  ν %.4f  Θ %.4f", g.Delta, g.Gamma, g.Vega, g.Theta)
}

// FormatIV formats an implied vol fraction as a percentage.
func FormatIV(iv float64) string {
	return fmt.Sprintf("%.2f%%", iv*100)
}

// FormatExpiry formats a unix expiry in UTC.
func FormatExpiry(expiry int64) string {
	return time.Unix(expiry, 0).UTC().Format("02-Jan-2006 15:04 MST")
}

// FormatLegs describes the active legs, e.g. "+C 65,000 / -C 70,000".
func FormatLegs(legs []models.Leg) string {
	parts := make([]string, len(legs))
	for i, l := range legs {
		side, kind := "-", "P"
		if l.IsBuy {
			side = "+"
		}
		if l.IsCall {
			kind = "C"
		}
		parts[i] = fmt.Sprintf("%s%s %s", side, kind, utils.FormatStrike(l.StrikePrice))
	}
	return strings.Join(parts, " / ")
}

// FormatPrices formats a list of prices such as break-even points.
func FormatPrices(prices []float64) string {
	if len(prices) == 0 {
		return "none"
	}
	parts := make([]string, len(prices))
	for i, p := range prices {
		parts[i] = fmt.Sprintf("%.2f", p)
	}
	return strings.Join(parts, ", ")
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// PadLeft pads a string to the left.
func PadLeft(s string, length int) string {
	if n := visibleLen(s); n < length {
		return strings.Repeat(" ", length-n) + s
	}
	return s
}
