package postgres

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/order"
)

const (
	// Rows are locked in id order so concurrent checkouts sharing discounts
	// cannot deadlock each other.
	lockDiscountsSQL = `SELECT id FROM discounts
		WHERE store_id = $1 AND id = ANY($2)
		ORDER BY id FOR UPDATE`

	redeemDiscountsSQL = `UPDATE discounts SET uses = uses + 1
		WHERE store_id = $1 AND id = ANY($2)
		AND (maximum_uses IS NULL OR uses < maximum_uses)`

	insertOrderSQL = `INSERT INTO orders (id, store_id, customer_id, items,
		subtotal_in_cents, order_discount_in_cents, shipping_in_cents, total_in_cents,
		discount_ids, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)`
)

// SQLSTATE codes worth retrying the whole transaction for.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool       *pgxpool.Pool
	maxRetries uint64
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
// Transactions aborted by serialization failures or deadlocks are retried
// up to maxRetries times.
func NewOrderRepository(pool *pgxpool.Pool, maxRetries int) *OrderRepository {
	return &OrderRepository{pool: pool, maxRetries: uint64(max(maxRetries, 0))}
}

// Create persists the order and redeems its discounts in one transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	applied := o.DiscountIDs
	if applied == nil {
		applied = []string{}
	}
	ids := slices.Clone(applied)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	op := func() error {
		err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
			if err := redeem(ctx, tx, o.StoreID, ids); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, insertOrderSQL,
				o.ID, o.StoreID, o.CustomerID, itemsJSON,
				o.SubtotalInCents, o.OrderDiscountInCents, o.ShippingInCents, o.TotalInCents,
				applied, o.CreatedAt,
			); err != nil {
				return errors.Wrapf(err, "insert order %q", o.ID)
			}
			return nil
		})
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return err
	}
	return nil
}

func redeem(ctx context.Context, tx pgx.Tx, storeID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := tx.Query(ctx, lockDiscountsSQL, storeID, ids)
	if err != nil {
		return errors.Wrap(err, "lock discounts")
	}
	locked, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return errors.Wrap(err, "lock discounts")
	}
	if len(locked) != len(ids) {
		return errors.Wrapf(discount.ErrNotFound, "%d of %d discounts", len(ids)-len(locked), len(ids))
	}

	tag, err := tx.Exec(ctx, redeemDiscountsSQL, storeID, ids)
	if err != nil {
		return errors.Wrap(err, "redeem discounts")
	}
	if tag.RowsAffected() != int64(len(ids)) {
		return discount.ErrUsageLimitReached
	}
	return nil
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}
