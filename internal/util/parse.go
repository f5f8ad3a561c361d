package util

import (
	"strconv"
	"strings"
)

// ParsePrice converts a raw price string into a listing price. Absent,
// non-numeric, and zero-or-negative values all mean "price not listed"
// and come back as nil; an unpriced listing is still a valid listing.
func ParsePrice(raw string) *int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	// dba.dk sometimes renders prices as "1.250" or "1.250,00"
	s = strings.ReplaceAll(s, ".", "")
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	price, err := strconv.Atoi(s)
	if err != nil || price <= 0 {
		return nil
	}
	return &price
}

// FormatPrice renders an integer price with Danish thousand separators,
// e.g. 12500 -> "12.500".
func FormatPrice(price int) string {
	s := strconv.Itoa(price)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, digit := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(digit)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
