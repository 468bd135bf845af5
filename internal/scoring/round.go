package scoring

import "github.com/shopspring/decimal"

// RoundScore rounds v half away from zero to two decimal places. The value is
// converted through its shortest decimal representation, so 2.345 becomes
// 2.35 even though the nearest float64 sits just below it.
func RoundScore(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
