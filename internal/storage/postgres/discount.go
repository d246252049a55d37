package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
)

const (
	listDiscountsSQL = `SELECT id, title, type, value_type, value,
		is_active, starts_at, ends_at, customer_ids,
		maximum_uses, uses, minimum_quantity, minimum_purchase_in_cents,
		can_combine_with_other_discounts, priority, requires_code,
		variant_ids, collection_ids, all_products, apply_to_order, apply_to_shipping
		FROM discounts WHERE store_id = $1
		ORDER BY priority, created_at, id`

	resolveCodesSQL = `SELECT code, discount_id FROM discount_codes
		WHERE store_id = $1 AND code = ANY($2)`
)

var _ discount.DiscountRepository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.DiscountRepository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// ListByStore returns the store's discounts in evaluation order.
func (r *DiscountRepository) ListByStore(ctx context.Context, storeID string) ([]discount.Discount, error) {
	rows, err := r.pool.Query(ctx, listDiscountsSQL, storeID)
	if err != nil {
		return nil, errors.Wrapf(err, "list discounts of store %q", storeID)
	}

	discounts, err := pgx.CollectRows(rows, scanDiscount)
	if err != nil {
		return nil, errors.Wrapf(err, "list discounts of store %q", storeID)
	}
	return discounts, nil
}

// ResolveCodes maps the given normalized codes to discount ids.
func (r *DiscountRepository) ResolveCodes(ctx context.Context, storeID string, codes []string) (map[string]string, error) {
	resolved := make(map[string]string, len(codes))
	if len(codes) == 0 {
		return resolved, nil
	}

	rows, err := r.pool.Query(ctx, resolveCodesSQL, storeID, codes)
	if err != nil {
		return nil, errors.Wrap(err, "resolve codes")
	}

	var code, discountID string
	if _, err := pgx.ForEachRow(rows, []any{&code, &discountID}, func() error {
		resolved[code] = discountID
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "resolve codes")
	}
	return resolved, nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Discount, error) {
	var (
		d               discount.Discount
		typ             string
		valueType       *string
		value           decimal.NullDecimal
		endsAt          *time.Time
		maximumUses     *int32
		uses            int32
		minimumQuantity int32
		minimumPurchase *int64
		scope           discount.Scope
		applyToOrder    bool
		applyToShipping bool
		priority        int32
	)
	if err := row.Scan(
		&d.ID, &d.Title, &typ, &valueType, &value,
		&d.IsActive, &d.StartsAt, &endsAt, &d.Customers,
		&maximumUses, &uses, &minimumQuantity, &minimumPurchase,
		&d.CanCombineWithOtherDiscounts, &priority, &d.RequiresCode,
		&scope.Variants, &scope.Collections, &scope.AllProducts, &applyToOrder, &applyToShipping,
	); err != nil {
		return discount.Discount{}, err
	}

	d.EndsAt = endsAt
	if maximumUses != nil {
		m := int(*maximumUses)
		d.MaximumUses = &m
	}
	d.Uses = int(uses)
	d.MinimumQuantity = int(minimumQuantity)
	d.MinimumPurchaseInCents = minimumPurchase
	d.Priority = int(priority)

	var v discount.Value
	if valueType != nil && value.Valid {
		v = discount.Value{Type: discount.AmountType(*valueType), Amount: value.Decimal}
	}

	effect, err := discount.NewEffect(discount.Type(typ), v, scope, applyToOrder, applyToShipping)
	if err != nil {
		return discount.Discount{}, errors.Wrapf(err, "discount %q", d.ID)
	}
	d.Effect = effect

	return d, nil
}
