package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
)

// One row per (collection, product). Empty collections yield a single row
// with a NULL product.
const listCollectionsSQL = `SELECT c.id, c.title, cp.product_id,
		COALESCE(array_agg(pv.variant_id ORDER BY pv.variant_id)
			FILTER (WHERE pv.variant_id IS NOT NULL), '{}')
		FROM collections c
		LEFT JOIN collection_products cp ON cp.collection_id = c.id
		LEFT JOIN product_variants pv ON pv.store_id = c.store_id AND pv.product_id = cp.product_id
		WHERE c.store_id = $1
		GROUP BY c.id, c.title, cp.product_id
		ORDER BY c.id, cp.product_id`

var _ discount.CollectionRepository = (*CollectionRepository)(nil)

// CollectionRepository implements discount.CollectionRepository backed by
// PostgreSQL.
type CollectionRepository struct {
	pool *pgxpool.Pool
}

// NewCollectionRepository returns a CollectionRepository that uses the given pool.
func NewCollectionRepository(pool *pgxpool.Pool) *CollectionRepository {
	return &CollectionRepository{pool: pool}
}

type collectionRow struct {
	collectionID string
	title        string
	productID    *string
	variantIDs   []string
}

// ListByStore returns the store's collections with their products and variants.
func (r *CollectionRepository) ListByStore(ctx context.Context, storeID string) ([]discount.Collection, error) {
	rows, err := r.pool.Query(ctx, listCollectionsSQL, storeID)
	if err != nil {
		return nil, errors.Wrapf(err, "list collections of store %q", storeID)
	}

	flat, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (collectionRow, error) {
		var cr collectionRow
		err := row.Scan(&cr.collectionID, &cr.title, &cr.productID, &cr.variantIDs)
		return cr, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list collections of store %q", storeID)
	}

	return foldCollections(flat), nil
}

// foldCollections groups rows sorted by collection id into collections.
func foldCollections(rows []collectionRow) []discount.Collection {
	var out []discount.Collection
	for _, row := range rows {
		if len(out) == 0 || out[len(out)-1].ID != row.collectionID {
			out = append(out, discount.Collection{ID: row.collectionID, Title: row.title})
		}
		if row.productID == nil {
			continue
		}
		last := &out[len(out)-1]
		last.Products = append(last.Products, discount.Product{
			ID:         *row.productID,
			VariantIDs: row.variantIDs,
		})
	}
	return out
}
