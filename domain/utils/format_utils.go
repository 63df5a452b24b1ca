package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatAmount renders a minor-unit amount as a grouped decimal string,
// e.g. 1234567 -> "12,345.67"
func FormatAmount(minorUnits int64) string {
	negative := minorUnits < 0
	if negative {
		minorUnits = -minorUnits
	}

	units := minorUnits / 100
	cents := minorUnits % 100

	digits := strconv.FormatInt(units, 10)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups[0:]...)

	formatted := fmt.Sprintf("%s.%02d", strings.Join(groups, ","), cents)
	if negative {
		return "-" + formatted
	}
	return formatted
}
