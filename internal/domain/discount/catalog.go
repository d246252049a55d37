package discount

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"
)

var _ Loader = (*CatalogLoader)(nil)

// CatalogLoader assembles a Catalog from the discount and collection
// repositories.
type CatalogLoader struct {
	discounts   DiscountRepository
	collections CollectionRepository
}

// NewCatalogLoader creates a CatalogLoader backed by the given repositories.
func NewCatalogLoader(discounts DiscountRepository, collections CollectionRepository) *CatalogLoader {
	return &CatalogLoader{
		discounts:   discounts,
		collections: collections,
	}
}

// Load fetches discounts and collections of the store concurrently.
func (l *CatalogLoader) Load(ctx context.Context, storeID string) (*Catalog, error) {
	var cat Catalog

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		discounts, err := l.discounts.ListByStore(ctx, storeID)
		if err != nil {
			return errors.Wrap(err, "list discounts")
		}
		cat.Discounts = discounts
		return nil
	})
	g.Go(func() error {
		collections, err := l.collections.ListByStore(ctx, storeID)
		if err != nil {
			return errors.Wrap(err, "list collections")
		}
		cat.Collections = collections
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &cat, nil
}
