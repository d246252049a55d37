package discount

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// reduction returns how much v takes off base. Unknown amount types take
// nothing off.
func (v Value) reduction(base decimal.Decimal) decimal.Decimal {
	switch v.Type {
	case AmountPercentage:
		return base.Mul(v.Amount).Div(hundred)
	case AmountFixed:
		return v.Amount
	default:
		return zero
	}
}

// ApplyBestProductDiscounts returns a copy of items where each unit price is
// lowered by the single product discount that yields the lowest price for
// that item. Product discounts never stack on the same item.
func ApplyBestProductDiscounts(items []CartItem, accepted []Discount, collections []Collection) []CartItem {
	updated, _ := applyProductDiscounts(items, accepted, collections)
	return updated
}

// applyProductDiscounts also reports, per item, the id of the winning
// discount, or "" when the price was left unchanged.
func applyProductDiscounts(items []CartItem, accepted []Discount, collections []Collection) ([]CartItem, []string) {
	type candidate struct {
		id     string
		effect ProductEffect
	}
	var products []candidate
	for _, d := range accepted {
		if p, ok := d.Effect.(ProductEffect); ok {
			products = append(products, candidate{id: d.ID, effect: p})
		}
	}

	updated := make([]CartItem, len(items))
	winners := make([]string, len(items))
	for i, item := range items {
		updated[i] = item
		updated[i].PriceInCents = clampCents(item.PriceInCents)

		price := decimal.NewFromInt(item.PriceInCents)
		var (
			best     decimal.Decimal
			bestID   string
			resolved bool
		)
		for _, c := range products {
			if !c.effect.Scope.Covers(item.VariantID, collections) {
				continue
			}
			candidatePrice := price.Sub(c.effect.Value.reduction(price))
			if !resolved || candidatePrice.LessThan(best) {
				best, bestID, resolved = candidatePrice, c.id, true
			}
		}
		if !resolved {
			continue
		}

		cents := toCents(best)
		updated[i].PriceInCents = cents
		if cents < item.PriceInCents {
			winners[i] = bestID
		}
	}
	return updated, winners
}

// OrderDiscount returns the largest order-level reduction of subtotal offered
// by the accepted ORDER discounts that apply to the order. Only one order
// discount counts.
func OrderDiscount(subtotal int64, accepted []Discount) int64 {
	amount, _ := bestOrderDiscount(subtotal, accepted)
	return amount
}

func bestOrderDiscount(subtotal int64, accepted []Discount) (int64, string) {
	base := decimal.NewFromInt(subtotal)
	var (
		best   int64
		bestID string
	)
	for _, d := range accepted {
		o, ok := d.Effect.(OrderEffect)
		if !ok || !o.ApplyToOrder {
			continue
		}
		if amount := toCents(o.Value.reduction(base)); amount > best {
			best, bestID = amount, d.ID
		}
	}
	return best, bestID
}

// ShippingDiscount returns the shipping cost after discounts: zero when any
// accepted SHIPPING discount applies to shipping, shippingCost otherwise.
func ShippingDiscount(shippingCost int64, accepted []Discount) int64 {
	cost, _ := applyShippingDiscount(shippingCost, accepted)
	return cost
}

func applyShippingDiscount(shippingCost int64, accepted []Discount) (int64, string) {
	for _, d := range accepted {
		if s, ok := d.Effect.(ShippingEffect); ok && s.ApplyToShipping {
			if shippingCost <= 0 {
				return 0, ""
			}
			return 0, d.ID
		}
	}
	return clampCents(shippingCost), ""
}
