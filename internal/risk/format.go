package risk

import (
	"math"
	"math/big"
	"strconv"
)

var half = big.NewFloat(0.5)

// FormatFixed renders v with the given number of decimals, rounding exact
// halves away from zero. strconv rounds exact halves to even, which would turn
// 0.125 into "0.12" instead of "0.13".
func FormatFixed(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) || decimals < 0 {
		return strconv.FormatFloat(v, 'f', decimals, 64)
	}

	scale := new(big.Float).SetPrec(128).SetFloat64(math.Pow10(decimals))
	scaled := new(big.Float).SetPrec(128).SetFloat64(math.Abs(v))
	scaled.Mul(scaled, scale)

	whole, _ := scaled.Int(nil)
	frac := new(big.Float).SetPrec(128).Sub(scaled, new(big.Float).SetPrec(128).SetInt(whole))
	if frac.Cmp(half) != 0 {
		return strconv.FormatFloat(v, 'f', decimals, 64)
	}

	whole.Add(whole, big.NewInt(1))
	digits := whole.String()
	if decimals > 0 {
		for len(digits) <= decimals {
			digits = "0" + digits
		}
		digits = digits[:len(digits)-decimals] + "." + digits[len(digits)-decimals:]
	}
	if v < 0 {
		digits = "-" + digits
	}
	return digits
}
