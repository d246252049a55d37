package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-pricing/internal/domain/product"
)

const getVariantsByIDsSQL = `SELECT variant_id, product_id, price_in_cents
	FROM product_variants WHERE store_id = $1 AND variant_id = ANY($2)`

var _ product.Repository = (*VariantRepository)(nil)

// VariantRepository implements product.Repository backed by PostgreSQL.
type VariantRepository struct {
	pool *pgxpool.Pool
}

// NewVariantRepository returns a VariantRepository that uses the given pool.
func NewVariantRepository(pool *pgxpool.Pool) *VariantRepository {
	return &VariantRepository{pool: pool}
}

// GetByIDs returns the store's variants matching any of the given ids.
func (r *VariantRepository) GetByIDs(ctx context.Context, storeID string, ids []string) ([]product.Variant, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, getVariantsByIDsSQL, storeID, ids)
	if err != nil {
		return nil, errors.Wrapf(err, "get variants of store %q", storeID)
	}

	variants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Variant, error) {
		var v product.Variant
		err := row.Scan(&v.ID, &v.ProductID, &v.PriceInCents)
		return v, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get variants of store %q", storeID)
	}
	return variants, nil
}
