package discount

import "github.com/samber/lo"

// AppliesToVariant reports whether d is a product discount whose scope covers
// variantID. Order and shipping discounts never apply to a variant.
func AppliesToVariant(d Discount, variantID string, collections []Collection) bool {
	p, ok := d.Effect.(ProductEffect)
	if !ok {
		return false
	}
	return p.Scope.Covers(variantID, collections)
}

// Covers reports whether the scope reaches variantID, either directly, via a
// collection containing the variant's product, or through AllProducts.
func (s Scope) Covers(variantID string, collections []Collection) bool {
	if lo.Contains(s.Variants, variantID) {
		return true
	}
	if len(s.Collections) > 0 && inCollections(s.Collections, variantID, collections) {
		return true
	}
	return s.AllProducts
}

func inCollections(ids []string, variantID string, collections []Collection) bool {
	for _, c := range collections {
		if !lo.Contains(ids, c.ID) {
			continue
		}
		for _, p := range c.Products {
			if lo.Contains(p.VariantIDs, variantID) {
				return true
			}
		}
	}
	return false
}
