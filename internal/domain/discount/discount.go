// Package discount implements cart discount resolution: eligibility checks,
// scope resolution, combinability filtering and the pricing strategies for
// product, order and shipping discounts.
//
// Everything in this package except the catalog loader is pure. Callers hand
// in an immutable snapshot of the store's discounts and collections and get
// back a freshly allocated result; inputs are never mutated.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type is the effect domain of a discount.
type Type string

const (
	// TypeProduct reduces the unit price of matching cart items.
	TypeProduct Type = "PRODUCT"
	// TypeOrder reduces the order subtotal.
	TypeOrder Type = "ORDER"
	// TypeShipping makes shipping free.
	TypeShipping Type = "SHIPPING"
)

// AmountType governs how a Value's Amount is interpreted.
type AmountType string

const (
	// AmountPercentage treats Amount as percentage points (0-100).
	AmountPercentage AmountType = "PERCENTAGE"
	// AmountFixed treats Amount as currency subunits.
	AmountFixed AmountType = "FIXED"
)

var (
	// ErrNotFound is returned when a store has no discount with the given id.
	ErrNotFound = errors.New("discount not found")
	// ErrUnknownCode is returned when a discount code does not resolve to a
	// discount of the store.
	ErrUnknownCode = errors.New("unknown discount code")
	// ErrUsageLimitReached is returned by checkout when a discount was
	// exhausted between pricing and redemption.
	ErrUsageLimitReached = errors.New("discount usage limit reached")
	// ErrUnknownType is returned when a stored discount has an unsupported type.
	ErrUnknownType = errors.New("unknown discount type")
)

// Value is the magnitude of a product or order discount.
type Value struct {
	Type   AmountType
	Amount decimal.Decimal
}

// Percent returns a percentage Value.
func Percent(points int64) Value {
	return Value{Type: AmountPercentage, Amount: decimal.NewFromInt(points)}
}

// Fixed returns a fixed Value in cents.
func Fixed(cents int64) Value {
	return Value{Type: AmountFixed, Amount: decimal.NewFromInt(cents)}
}

// Scope selects the variants a product discount reaches.
type Scope struct {
	Variants    []string
	Collections []string
	AllProducts bool
}

// Effect is what a discount does once accepted. The concrete type is one of
// ProductEffect, OrderEffect or ShippingEffect.
type Effect interface {
	Type() Type
	effect()
}

// ProductEffect lowers the unit price of every cart item in Scope.
type ProductEffect struct {
	Value Value
	Scope Scope
}

// OrderEffect lowers the subtotal. It is inert unless ApplyToOrder is set.
type OrderEffect struct {
	Value        Value
	ApplyToOrder bool
}

// ShippingEffect makes shipping free. It is inert unless ApplyToShipping is set.
type ShippingEffect struct {
	ApplyToShipping bool
}

func (ProductEffect) Type() Type  { return TypeProduct }
func (OrderEffect) Type() Type    { return TypeOrder }
func (ShippingEffect) Type() Type { return TypeShipping }

func (ProductEffect) effect()  {}
func (OrderEffect) effect()    {}
func (ShippingEffect) effect() {}

// NewEffect builds the effect for a flat persisted record. Fields that do not
// belong to t are ignored.
func NewEffect(t Type, v Value, s Scope, applyToOrder, applyToShipping bool) (Effect, error) {
	switch t {
	case TypeProduct:
		return ProductEffect{Value: v, Scope: s}, nil
	case TypeOrder:
		return OrderEffect{Value: v, ApplyToOrder: applyToOrder}, nil
	case TypeShipping:
		return ShippingEffect{ApplyToShipping: applyToShipping}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownType, "%q", t)
	}
}

// Discount is a store discount rule.
type Discount struct {
	ID    string
	Title string

	IsActive bool
	StartsAt time.Time
	EndsAt   *time.Time

	// Customers is an allow-list of customer ids. Empty means everyone.
	Customers []string

	// MaximumUses is nil for unlimited discounts.
	MaximumUses *int
	Uses        int

	// MinimumQuantity of zero means no quantity minimum.
	MinimumQuantity        int
	MinimumPurchaseInCents *int64

	CanCombineWithOtherDiscounts bool

	// Priority and RequiresCode are catalog metadata. Priority determines
	// the evaluation order the repository returns; RequiresCode keeps the
	// discount out of the catalog unless a matching code is presented.
	Priority     int
	RequiresCode bool

	Effect Effect
}

// Type returns the effect domain of d, or an empty Type when d has no effect.
func (d Discount) Type() Type {
	if d.Effect == nil {
		return ""
	}
	return d.Effect.Type()
}

// CartItem is a line of the cart being priced.
type CartItem struct {
	VariantID    string
	Quantity     int
	PriceInCents int64
}

// Product groups variants.
type Product struct {
	ID         string
	VariantIDs []string
}

// Collection groups products.
type Collection struct {
	ID       string
	Title    string
	Products []Product
}

// Catalog is the read-only snapshot of a store's discounts (in evaluation
// order) and collections.
type Catalog struct {
	Discounts   []Discount
	Collections []Collection
}

// Loader provides catalog snapshots by store.
type Loader interface {
	Load(ctx context.Context, storeID string) (*Catalog, error)
}

// CodeResolver maps discount codes to the discounts they unlock.
type CodeResolver interface {
	// ResolveCodes maps each known code to its discount id. Unknown codes
	// are absent from the result.
	ResolveCodes(ctx context.Context, storeID string, codes []string) (map[string]string, error)
}

// DiscountRepository provides the discounts of a store.
type DiscountRepository interface {
	CodeResolver
	// ListByStore returns discounts ordered by priority, then creation time.
	ListByStore(ctx context.Context, storeID string) ([]Discount, error)
}

// CollectionRepository provides the collection membership graph of a store.
type CollectionRepository interface {
	ListByStore(ctx context.Context, storeID string) ([]Collection, error)
}
