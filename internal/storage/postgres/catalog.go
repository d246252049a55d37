package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/product"
)

const (
	upsertDiscountSQL = `INSERT INTO discounts (id, store_id, title, type, value_type, value,
		is_active, starts_at, ends_at, customer_ids, maximum_uses, uses,
		minimum_quantity, minimum_purchase_in_cents, can_combine_with_other_discounts,
		priority, requires_code, variant_ids, collection_ids, all_products,
		apply_to_order, apply_to_shipping)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, type = EXCLUDED.type,
			value_type = EXCLUDED.value_type, value = EXCLUDED.value,
			is_active = EXCLUDED.is_active, starts_at = EXCLUDED.starts_at,
			ends_at = EXCLUDED.ends_at, customer_ids = EXCLUDED.customer_ids,
			maximum_uses = EXCLUDED.maximum_uses,
			minimum_quantity = EXCLUDED.minimum_quantity,
			minimum_purchase_in_cents = EXCLUDED.minimum_purchase_in_cents,
			can_combine_with_other_discounts = EXCLUDED.can_combine_with_other_discounts,
			priority = EXCLUDED.priority, requires_code = EXCLUDED.requires_code,
			variant_ids = EXCLUDED.variant_ids, collection_ids = EXCLUDED.collection_ids,
			all_products = EXCLUDED.all_products, apply_to_order = EXCLUDED.apply_to_order,
			apply_to_shipping = EXCLUDED.apply_to_shipping`

	upsertCollectionSQL = `INSERT INTO collections (id, store_id, title) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title`

	addCollectionProductSQL = `INSERT INTO collection_products (collection_id, product_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`

	upsertVariantSQL = `INSERT INTO product_variants (store_id, product_id, variant_id, price_in_cents)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (store_id, variant_id) DO UPDATE SET
			product_id = EXCLUDED.product_id, price_in_cents = EXCLUDED.price_in_cents`

	upsertCodeSQL = `INSERT INTO discount_codes (store_id, code, discount_id) VALUES ($1, $2, $3)
		ON CONFLICT (store_id, code) DO UPDATE SET discount_id = EXCLUDED.discount_id`
)

// CatalogWriter upserts store catalogs. It backs seeding and fixtures.
type CatalogWriter struct {
	pool *pgxpool.Pool
}

// NewCatalogWriter returns a CatalogWriter that uses the given pool.
func NewCatalogWriter(pool *pgxpool.Pool) *CatalogWriter {
	return &CatalogWriter{pool: pool}
}

// CodeAssignment maps a discount code to the discount it unlocks.
type CodeAssignment struct {
	Code       string
	DiscountID string
}

// WriteCatalog upserts the priced variants, collections, discounts and codes
// of a store in a single transaction. A collection holds every variant of
// its products, so the VariantIDs of collection products are not written.
// Uses counters of existing discounts are left untouched.
func (w *CatalogWriter) WriteCatalog(
	ctx context.Context,
	storeID string,
	variants []product.Variant,
	cat *discount.Catalog,
	codes []CodeAssignment,
) error {
	return pgx.BeginTxFunc(ctx, w.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, v := range variants {
			if _, err := tx.Exec(ctx, upsertVariantSQL, storeID, v.ProductID, v.ID, v.PriceInCents); err != nil {
				return errors.Wrapf(err, "upsert variant %q", v.ID)
			}
		}

		for _, c := range cat.Collections {
			if _, err := tx.Exec(ctx, upsertCollectionSQL, c.ID, storeID, c.Title); err != nil {
				return errors.Wrapf(err, "upsert collection %q", c.ID)
			}
			for _, p := range c.Products {
				if _, err := tx.Exec(ctx, addCollectionProductSQL, c.ID, p.ID); err != nil {
					return errors.Wrapf(err, "add product %q to collection %q", p.ID, c.ID)
				}
			}
		}

		for _, d := range cat.Discounts {
			if _, err := tx.Exec(ctx, upsertDiscountSQL, discountArgs(storeID, d)...); err != nil {
				return errors.Wrapf(err, "upsert discount %q", d.ID)
			}
		}

		for _, c := range codes {
			code := discount.NormalizeCode(c.Code)
			if _, err := tx.Exec(ctx, upsertCodeSQL, storeID, code, c.DiscountID); err != nil {
				return errors.Wrapf(err, "upsert code %q", code)
			}
		}
		return nil
	})
}

func discountArgs(storeID string, d discount.Discount) []any {
	var (
		valueType       *string
		value           decimal.NullDecimal
		scope           discount.Scope
		applyToOrder    bool
		applyToShipping bool
	)
	setValue := func(v discount.Value) {
		if v.Type == "" {
			return
		}
		t := string(v.Type)
		valueType = &t
		value = decimal.NewNullDecimal(v.Amount)
	}

	switch e := d.Effect.(type) {
	case discount.ProductEffect:
		setValue(e.Value)
		scope = e.Scope
	case discount.OrderEffect:
		setValue(e.Value)
		applyToOrder = e.ApplyToOrder
	case discount.ShippingEffect:
		applyToShipping = e.ApplyToShipping
	}

	customers := d.Customers
	if customers == nil {
		customers = []string{}
	}
	variants := scope.Variants
	if variants == nil {
		variants = []string{}
	}
	collections := scope.Collections
	if collections == nil {
		collections = []string{}
	}

	var maximumUses *int32
	if d.MaximumUses != nil {
		m := int32(*d.MaximumUses)
		maximumUses = &m
	}

	return []any{
		d.ID, storeID, d.Title, string(d.Type()), valueType, value,
		d.IsActive, d.StartsAt, d.EndsAt, customers, maximumUses, int32(d.Uses),
		int32(d.MinimumQuantity), d.MinimumPurchaseInCents, d.CanCombineWithOtherDiscounts,
		int32(d.Priority), d.RequiresCode, variants, collections, scope.AllProducts,
		applyToOrder, applyToShipping,
	}
}
