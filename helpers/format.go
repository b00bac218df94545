package helpers

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatPrice renders a price with precision adapted to its magnitude:
// large caps get 2 decimals, micro caps keep enough digits to stay
// meaningful.
func FormatPrice(price float64) string {
	abs := price
	if abs < 0 {
		abs = -abs
	}
	var prec int
	switch {
	case abs >= 100:
		prec = 2
	case abs >= 1:
		prec = 4
	case abs >= 0.01:
		prec = 6
	default:
		prec = 8
	}
	return trimZeros(strconv.FormatFloat(price, 'f', prec, 64))
}

// FormatFloat renders v with the given precision, trailing zeros trimmed.
func FormatFloat(v float64, prec int) string {
	return trimZeros(strconv.FormatFloat(v, 'f', prec, 64))
}

// FormatPct renders a percentage with a sign and two decimals, e.g. "+5.32%".
func FormatPct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

// FormatCompact renders a large quantity using K/M/B suffixes.
func FormatCompact(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e9:
		return trimZeros(strconv.FormatFloat(v/1e9, 'f', 2, 64)) + "B"
	case abs >= 1e6:
		return trimZeros(strconv.FormatFloat(v/1e6, 'f', 2, 64)) + "M"
	case abs >= 1e3:
		return trimZeros(strconv.FormatFloat(v/1e3, 'f', 2, 64)) + "K"
	default:
		return trimZeros(strconv.FormatFloat(v, 'f', 2, 64))
	}
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
