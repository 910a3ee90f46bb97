package models

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

var unitNames = []string{"", "K", "million", "billion", "trillion", "quadrillion"}

// FormatPrice renders v with two decimals, digit grouping and the currency code
func FormatPrice(v float64, currency string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unavailable
	}
	return fmt.Sprintf("%s %s", currency, humanize.FormatFloat("#,###.##", v))
}

// FormatWithUnits scales v into thousands, millions, ... with one decimal
func FormatWithUnits(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unavailable
	}

	scaled := math.Abs(v)
	unit := 0
	for scaled >= 1000 && unit < len(unitNames)-1 {
		scaled /= 1000
		unit++
	}

	sign := ""
	if v < 0 {
		sign = "-"
	}
	if unitNames[unit] == "" {
		return fmt.Sprintf("%s%.1f", sign, scaled)
	}
	return fmt.Sprintf("%s%.1f %s", sign, scaled, unitNames[unit])
}

// FormatStat renders an optional stat with units
func FormatStat(s Stat) string {
	if !s.Valid {
		return Unavailable
	}
	return FormatWithUnits(s.Value)
}
