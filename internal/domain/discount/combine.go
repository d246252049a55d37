package discount

import "time"

// IsCombinable reports whether d may join the already accepted discounts.
// The first eligible discount is always admitted.
func IsCombinable(d Discount, accepted []Discount) bool {
	return d.CanCombineWithOtherDiscounts || len(accepted) == 0
}

// ApplicableDiscounts walks discounts in the given order and returns those
// that are eligible and combinable with the ones accepted before them.
//
// The pass is greedy: an earlier discount always wins an exclusivity
// conflict, even when a later one would have been worth more. Callers
// control precedence by ordering the catalog.
func ApplicableDiscounts(discounts []Discount, items []CartItem, customerID string, now time.Time) []Discount {
	var accepted []Discount
	for _, d := range discounts {
		if !IsEligible(d, items, customerID, now) {
			continue
		}
		if !IsCombinable(d, accepted) {
			continue
		}
		accepted = append(accepted, d)
	}
	return accepted
}
