package npu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wmc1992/npustat/internal/npu/base"
)

// NormalizePercent turns "37 %" into Known(37); anything that is not all
// digits after the unit is stripped comes back as Unknown with the trimmed text.
func NormalizePercent(raw string) base.Reading {
	return normalizeInt(raw, "%")
}

// NormalizeTemperature turns "49C" into Known(49).
func NormalizeTemperature(raw string) base.Reading {
	return normalizeInt(raw, "C")
}

func normalizeInt(raw, unit string) base.Reading {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, unit))
	if !isDigits(s) {
		return base.Unknown(s)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return base.Unknown(s)
	}
	return base.Known(v)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizePower formats a power fragment as "X.XX W". Unparseable values are
// passed through with the unit re-attached.
func NormalizePower(raw string) string {
	s := stripWatts(raw)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return FormatWatts(v)
	}
	return s + " W"
}

// ParseWatts returns the numeric part of a power fragment such as "12.8 W".
func ParseWatts(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(stripWatts(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func FormatWatts(v float64) string {
	return fmt.Sprintf("%.2f W", v)
}

func stripWatts(raw string) string {
	s := strings.TrimSpace(raw)
	return strings.TrimSpace(strings.TrimSuffix(s, "W"))
}
