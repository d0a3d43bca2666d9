package entity

import (
	"strconv"
	"strings"
)

// NumberFormat renders monetary values for display. It never feeds back into
// stored values; all arithmetic stays on the raw floats.
type NumberFormat struct {
	Decimals     int
	DecimalPoint string
	ThousandsSep string
}

// DefaultNumberFormat matches the usual two-decimal dot notation.
var DefaultNumberFormat = NumberFormat{Decimals: 2, DecimalPoint: "."}

// Format renders value with the configured decimal count and separators.
func (f NumberFormat) Format(value float64) string {
	s := strconv.FormatFloat(value, 'f', f.Decimals, 64)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if f.ThousandsSep != "" {
		intPart = groupThousands(intPart, f.ThousandsSep)
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(intPart)
	if fracPart != "" {
		sep := f.DecimalPoint
		if sep == "" {
			sep = "."
		}
		b.WriteString(sep)
		b.WriteString(fracPart)
	}
	return b.String()
}

func groupThousands(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}

	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	return strings.Join(groups, sep)
}
