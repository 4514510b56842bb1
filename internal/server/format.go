package server

import (
	"strconv"
	"strings"
)

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

// formatMoney renders 12345.6 as 12,345.60.
func formatMoney(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, d := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
