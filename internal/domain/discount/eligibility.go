package discount

import (
	"math"
	"time"

	"github.com/samber/lo"
)

// IsActive reports whether d is switched on and now falls within its
// [StartsAt, EndsAt] window. Both bounds are inclusive.
func IsActive(d Discount, now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if now.Before(d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return false
	}
	return true
}

// IsValidForCustomer reports whether customerID may use d. Anonymous carts
// and discounts without an allow-list always pass.
func IsValidForCustomer(d Discount, customerID string) bool {
	if len(d.Customers) == 0 || customerID == "" {
		return true
	}
	return lo.Contains(d.Customers, customerID)
}

// IsWithinUsageLimits reports whether d has redemptions left.
func IsWithinUsageLimits(d Discount) bool {
	return d.MaximumUses == nil || d.Uses < *d.MaximumUses
}

// MeetsMinimums reports whether the whole cart satisfies d's quantity and
// purchase minimums. Scope is not taken into account.
func MeetsMinimums(d Discount, items []CartItem) bool {
	if d.MinimumQuantity > 0 && TotalQuantity(items) < d.MinimumQuantity {
		return false
	}
	if d.MinimumPurchaseInCents != nil && Subtotal(items) < *d.MinimumPurchaseInCents {
		return false
	}
	return true
}

// IsEligible combines the four eligibility predicates.
func IsEligible(d Discount, items []CartItem, customerID string, now time.Time) bool {
	return IsActive(d, now) &&
		IsValidForCustomer(d, customerID) &&
		IsWithinUsageLimits(d) &&
		MeetsMinimums(d, items)
}

// Subtotal returns the sum of price * quantity across items. Negative prices
// and quantities count as zero and the sum saturates at math.MaxInt64.
func Subtotal(items []CartItem) int64 {
	return lo.Reduce(items, func(sum int64, it CartItem, _ int) int64 {
		return addCents(sum, lineTotal(it))
	}, 0)
}

// TotalQuantity returns the sum of quantities across items. Negative
// quantities count as zero and the sum saturates at math.MaxInt.
func TotalQuantity(items []CartItem) int {
	return lo.Reduce(items, func(sum int, it CartItem, _ int) int {
		if it.Quantity <= 0 {
			return sum
		}
		if it.Quantity > math.MaxInt-sum {
			return math.MaxInt
		}
		return sum + it.Quantity
	}, 0)
}
