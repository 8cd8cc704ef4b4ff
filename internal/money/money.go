// Package money holds the 2-decimal rounding every stored amount goes through.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round2 rounds half away from zero at two decimals. The float is converted
// through its shortest decimal representation first, so 1.005 rounds to 1.01.
func Round2(x float64) float64 {
	if !Finite(x) {
		return x
	}
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

// Sum adds values in decimal and rounds the result.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.Round(2).InexactFloat64()
}

// Mul returns Round2(a*b) computed in decimal.
func Mul(a float64, b float64) float64 {
	return decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}

// Div returns Round2(a/b). b must be non-zero.
func Div(a float64, b float64) float64 {
	return decimal.NewFromFloat(a).DivRound(decimal.NewFromFloat(b), 8).Round(2).InexactFloat64()
}

func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
