package discount

import (
	"time"

	"github.com/samber/lo"
)

// Input is everything needed to price one cart.
type Input struct {
	CartItems           []CartItem
	Discounts           []Discount
	Collections         []Collection
	ShippingCostInCents int64
	// CustomerID is empty for anonymous carts.
	CustomerID string
	// Now is the evaluation time. The zero value means time.Now().
	Now time.Time
}

// Result is a fully priced cart. All amounts are non-negative cents.
type Result struct {
	UpdatedCartItems           []CartItem
	SubtotalInCents            int64
	OrderDiscountInCents       int64
	DiscountedShippingInCents  int64
	TotalAfterDiscountsInCents int64
	// AcceptedDiscountIDs lists every discount that passed eligibility and
	// combinability, in catalog order.
	AcceptedDiscountIDs []string
	// AppliedDiscountIDs lists the accepted discounts that changed a price,
	// in catalog order. These are the discounts to redeem at checkout.
	AppliedDiscountIDs []string
}

// Calculate prices the cart: it resolves the accepted discounts, applies the
// best product discount per item, the best order discount and free shipping,
// and totals the result.
func Calculate(in Input) Result {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	accepted := ApplicableDiscounts(in.Discounts, in.CartItems, in.CustomerID, now)

	updated, itemWinners := applyProductDiscounts(in.CartItems, accepted, in.Collections)
	subtotal := Subtotal(updated)
	orderDiscount, orderWinner := bestOrderDiscount(subtotal, accepted)
	shipping, shippingWinner := applyShippingDiscount(in.ShippingCostInCents, accepted)

	total := addCents(clampCents(subtotal-orderDiscount), shipping)

	winners := make(map[string]struct{}, len(itemWinners)+2)
	for _, id := range itemWinners {
		winners[id] = struct{}{}
	}
	winners[orderWinner] = struct{}{}
	winners[shippingWinner] = struct{}{}
	delete(winners, "")

	acceptedIDs := lo.Map(accepted, func(d Discount, _ int) string { return d.ID })
	applied := lo.Filter(acceptedIDs, func(id string, _ int) bool {
		_, ok := winners[id]
		return ok
	})

	return Result{
		UpdatedCartItems:           updated,
		SubtotalInCents:            subtotal,
		OrderDiscountInCents:       orderDiscount,
		DiscountedShippingInCents:  shipping,
		TotalAfterDiscountsInCents: total,
		AcceptedDiscountIDs:        acceptedIDs,
		AppliedDiscountIDs:         applied,
	}
}
