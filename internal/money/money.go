// Package money converts between display fees such as "£120.50" and integer
// pence. All arithmetic on fees happens in pence.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const symbol = "£"

// ParseFee parses a display fee. The currency symbol and thousands
// separators are optional; at most two decimal places are accepted.
func ParseFee(s string) (int64, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, symbol)
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty fee %q", s)
	}

	whole, frac, hasFrac := strings.Cut(raw, ".")
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, fmt.Errorf("invalid fee %q", s)
	}
	if !digits(whole) || !digits(frac) {
		return 0, fmt.Errorf("invalid fee %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	pounds, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fee %q", s)
	}
	pence, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fee %q", s)
	}
	if pounds > math.MaxInt64/100-1 {
		return 0, fmt.Errorf("fee %q out of range", s)
	}
	return pounds*100 + pence, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Format renders pence as a display fee, dropping ".00" for whole pounds.
func Format(pence int64) string {
	sign := ""
	if pence < 0 {
		sign = "-"
		pence = -pence
	}
	if pence%100 == 0 {
		return fmt.Sprintf("%s%s%d", sign, symbol, pence/100)
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, pence/100, pence%100)
}

// Percent returns round(total*percent/100) in pence, rounding half away
// from zero.
func Percent(total int64, percent float64) int64 {
	return int64(math.Round(float64(total) * percent / 100))
}
