package core

import "github.com/shopspring/decimal"

// Round2 rounds half away from zero to two decimal places.
//
// The value goes through a decimal so that inputs like 1.005 round the way
// they read instead of the way their binary approximation does.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// FormatAmount renders v with exactly two decimals.
func FormatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
