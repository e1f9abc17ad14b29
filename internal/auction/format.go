package auction

import "github.com/shopspring/decimal"

// HumanPrice renders a fixed-point chain price as a decimal string for log
// lines only; no crossing decision may use this value.
func HumanPrice(price int64) string {
	return decimal.NewFromInt(price).DivRound(decimal.NewFromInt(1_000_000), 6).String()
}
