package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
)

const (
	discountExistsSQL = `SELECT EXISTS (SELECT 1 FROM discounts WHERE store_id = $1 AND id = $2)`

	listCodesSQL = `SELECT code FROM discount_codes WHERE store_id = $1`

	existingCodesSQL = `SELECT code FROM discount_codes WHERE store_id = $1 AND code = ANY($2)`
)

// CodeRepository manages discount codes in bulk.
type CodeRepository struct {
	pool *pgxpool.Pool
}

// NewCodeRepository returns a CodeRepository that uses the given pool.
func NewCodeRepository(pool *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{pool: pool}
}

// EnsureDiscount returns discount.ErrNotFound unless the store has a discount
// with the given id.
func (r *CodeRepository) EnsureDiscount(ctx context.Context, storeID, discountID string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, discountExistsSQL, storeID, discountID).Scan(&exists); err != nil {
		return errors.Wrapf(err, "check discount %q", discountID)
	}
	if !exists {
		return errors.Wrapf(discount.ErrNotFound, "discount %q", discountID)
	}
	return nil
}

// ForEachCode streams every code of the store to fn.
func (r *CodeRepository) ForEachCode(ctx context.Context, storeID string, fn func(code string)) error {
	rows, err := r.pool.Query(ctx, listCodesSQL, storeID)
	if err != nil {
		return errors.Wrap(err, "list codes")
	}

	var code string
	if _, err := pgx.ForEachRow(rows, []any{&code}, func() error {
		fn(code)
		return nil
	}); err != nil {
		return errors.Wrap(err, "list codes")
	}
	return nil
}

// ExistingCodes returns the subset of codes already stored for the store.
func (r *CodeRepository) ExistingCodes(ctx context.Context, storeID string, codes []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(codes) == 0 {
		return existing, nil
	}

	rows, err := r.pool.Query(ctx, existingCodesSQL, storeID, codes)
	if err != nil {
		return nil, errors.Wrap(err, "query existing codes")
	}

	var code string
	if _, err := pgx.ForEachRow(rows, []any{&code}, func() error {
		existing[code] = struct{}{}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "query existing codes")
	}
	return existing, nil
}

// InsertCodes bulk-loads codes for a discount with COPY. The codes must not
// exist yet.
func (r *CodeRepository) InsertCodes(ctx context.Context, storeID, discountID string, codes []string) (int64, error) {
	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"discount_codes"},
		[]string{"store_id", "code", "discount_id"},
		pgx.CopyFromSlice(len(codes), func(i int) ([]any, error) {
			return []any{storeID, codes[i], discountID}, nil
		}),
	)
	if err != nil {
		return 0, errors.Wrap(err, "copy codes")
	}
	return n, nil
}
