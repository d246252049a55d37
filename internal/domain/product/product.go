// Package product holds the priced variants a store sells.
package product

import "context"

// Variant is a purchasable variant of a product at its current list price.
type Variant struct {
	ID           string
	ProductID    string
	PriceInCents int64
}

// Repository defines read operations for the store's price list.
type Repository interface {
	// GetByIDs returns the variants of storeID matching any of ids. Unknown
	// ids are skipped.
	GetByIDs(ctx context.Context, storeID string, ids []string) ([]Variant, error)
}
