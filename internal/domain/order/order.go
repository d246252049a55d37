package order

import (
	"context"
	"time"
)

// Order is a placed order with the prices it was charged at.
type Order struct {
	ID                   string
	StoreID              string
	CustomerID           string
	Items                []OrderItem
	SubtotalInCents      int64
	OrderDiscountInCents int64
	ShippingInCents      int64
	TotalInCents         int64
	// DiscountIDs are the discounts redeemed by this order.
	DiscountIDs []string
	CreatedAt   time.Time
}

// OrderItem is a single line of an order.
type OrderItem struct {
	VariantID              string `json:"variant_id"`
	Quantity               int    `json:"quantity"`
	UnitPriceInCents       int64  `json:"unit_price_in_cents"`
	DiscountedPriceInCents int64  `json:"discounted_price_in_cents"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists o and increments the usage counter of every discount
	// in o.DiscountIDs in the same transaction. It returns
	// discount.ErrUsageLimitReached when any of them has no uses left.
	Create(ctx context.Context, o *Order) error
}
