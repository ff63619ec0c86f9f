// Package format renders sizes and counts for terminal output.
package format

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	Byte     = 1
	KiloByte = Byte * 1000
	MegaByte = KiloByte * 1000
	GigaByte = MegaByte * 1000
	TeraByte = GigaByte * 1000
)

func HumanBytes(b int64) string {
	switch {
	case b >= TeraByte:
		return decimalPlace(float64(b)/TeraByte) + " TB"
	case b >= GigaByte:
		return decimalPlace(float64(b)/GigaByte) + " GB"
	case b >= MegaByte:
		return decimalPlace(float64(b)/MegaByte) + " MB"
	case b >= KiloByte:
		return decimalPlace(float64(b)/KiloByte) + " KB"
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func HumanNumber(n uint64) string {
	const (
		Thousand = 1000
		Million  = Thousand * 1000
		Billion  = Million * 1000
	)

	switch {
	case n >= Billion:
		return decimalPlace(float64(n)/Billion) + "B"
	case n >= Million:
		return decimalPlace(float64(n)/Million) + "M"
	case n >= Thousand:
		return decimalPlace(float64(n)/Thousand) + "K"
	default:
		return strconv.FormatUint(n, 10)
	}
}

// Shape renders a tensor shape as [d0, d1, ...].
func Shape(shape []int64) string {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = strconv.FormatInt(d, 10)
	}

	return "[" + strings.Join(dims, ", ") + "]"
}

// decimalPlace keeps three significant digits and drops trailing zeros.
func decimalPlace(number float64) string {
	var s string
	switch {
	case number >= 100:
		s = fmt.Sprintf("%.0f", number)
	case number >= 10:
		s = fmt.Sprintf("%.1f", number)
	default:
		s = fmt.Sprintf("%.2f", number)
	}

	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}

	return s
}
