package discount

import (
	"math"

	"github.com/shopspring/decimal"
)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// toCents rounds v to whole cents, half away from zero, and clamps the
// result to [0, math.MaxInt64].
func toCents(v decimal.Decimal) int64 {
	if v.IsNegative() {
		return 0
	}
	r := v.Round(0)
	if r.GreaterThan(maxCents) {
		return math.MaxInt64
	}
	return r.IntPart()
}

func clampCents(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

// lineTotal is price * quantity, zero for malformed lines, saturating at
// math.MaxInt64.
func lineTotal(it CartItem) int64 {
	if it.PriceInCents <= 0 || it.Quantity <= 0 {
		return 0
	}
	q := int64(it.Quantity)
	if it.PriceInCents > math.MaxInt64/q {
		return math.MaxInt64
	}
	return it.PriceInCents * q
}

// addCents adds two non-negative amounts, saturating at math.MaxInt64.
func addCents(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}
