package discount

import (
	"math"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestIsActive(t *testing.T) {
	tests := []struct {
		name     string
		discount Discount
		want     bool
	}{
		{
			name:     "switched off",
			discount: Discount{IsActive: false, StartsAt: fixedNow.Add(-time.Hour)},
			want:     false,
		},
		{
			name:     "starts now is active",
			discount: Discount{IsActive: true, StartsAt: fixedNow},
			want:     true,
		},
		{
			name:     "starts in the future",
			discount: Discount{IsActive: true, StartsAt: fixedNow.Add(time.Millisecond)},
			want:     false,
		},
		{
			name:     "ends now is active",
			discount: Discount{IsActive: true, StartsAt: fixedNow.Add(-time.Hour), EndsAt: lo.ToPtr(fixedNow)},
			want:     true,
		},
		{
			name:     "ended a millisecond ago",
			discount: Discount{IsActive: true, StartsAt: fixedNow.Add(-time.Hour), EndsAt: lo.ToPtr(fixedNow.Add(-time.Millisecond))},
			want:     false,
		},
		{
			name:     "open ended",
			discount: Discount{IsActive: true, StartsAt: fixedNow.Add(-24 * time.Hour)},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsActive(tt.discount, fixedNow))
			// Predicates hold no state.
			assert.Equal(t, tt.want, IsActive(tt.discount, fixedNow))
		})
	}
}

func TestIsValidForCustomer(t *testing.T) {
	restricted := Discount{Customers: []string{"c1", "c2"}}

	assert.True(t, IsValidForCustomer(Discount{}, "c9"), "no allow-list")
	assert.True(t, IsValidForCustomer(restricted, ""), "anonymous cart")
	assert.True(t, IsValidForCustomer(restricted, "c2"))
	assert.False(t, IsValidForCustomer(restricted, "c3"))
}

func TestIsWithinUsageLimits(t *testing.T) {
	assert.True(t, IsWithinUsageLimits(Discount{Uses: 1000}), "unlimited")
	assert.True(t, IsWithinUsageLimits(Discount{MaximumUses: lo.ToPtr(5), Uses: 4}))
	assert.False(t, IsWithinUsageLimits(Discount{MaximumUses: lo.ToPtr(5), Uses: 5}))
	assert.False(t, IsWithinUsageLimits(Discount{MaximumUses: lo.ToPtr(0)}))
}

func TestMeetsMinimums(t *testing.T) {
	items := []CartItem{
		{VariantID: "v1", Quantity: 2, PriceInCents: 500},
		{VariantID: "v2", Quantity: 1, PriceInCents: 1000},
	}

	tests := []struct {
		name     string
		discount Discount
		want     bool
	}{
		{name: "no minimums", discount: Discount{}, want: true},
		{name: "quantity met", discount: Discount{MinimumQuantity: 3}, want: true},
		{name: "quantity not met", discount: Discount{MinimumQuantity: 4}, want: false},
		{name: "purchase met exactly", discount: Discount{MinimumPurchaseInCents: lo.ToPtr[int64](2000)}, want: true},
		{name: "purchase not met", discount: Discount{MinimumPurchaseInCents: lo.ToPtr[int64](2001)}, want: false},
		{
			name:     "both must hold",
			discount: Discount{MinimumQuantity: 3, MinimumPurchaseInCents: lo.ToPtr[int64](5000)},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MeetsMinimums(tt.discount, items))
		})
	}
}

func TestSubtotal(t *testing.T) {
	tests := []struct {
		name  string
		items []CartItem
		want  int64
	}{
		{name: "empty", want: 0},
		{
			name:  "sums lines",
			items: []CartItem{{Quantity: 2, PriceInCents: 500}, {Quantity: 1, PriceInCents: 1000}},
			want:  2000,
		},
		{
			name:  "negative price counts as zero",
			items: []CartItem{{Quantity: 2, PriceInCents: -500}, {Quantity: 1, PriceInCents: 1000}},
			want:  1000,
		},
		{
			name:  "negative quantity counts as zero",
			items: []CartItem{{Quantity: -3, PriceInCents: 500}, {Quantity: 1, PriceInCents: 1000}},
			want:  1000,
		},
		{
			name:  "line saturates",
			items: []CartItem{{Quantity: 2, PriceInCents: math.MaxInt64/2 + 1}},
			want:  math.MaxInt64,
		},
		{
			name:  "sum saturates",
			items: []CartItem{{Quantity: 1, PriceInCents: math.MaxInt64 - 1}, {Quantity: 1, PriceInCents: 10}},
			want:  math.MaxInt64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subtotal(tt.items))
		})
	}
}

func TestTotalQuantity(t *testing.T) {
	assert.Equal(t, 3, TotalQuantity([]CartItem{{Quantity: 1}, {Quantity: -4}, {Quantity: 2}}))
	assert.Equal(t, math.MaxInt, TotalQuantity([]CartItem{{Quantity: math.MaxInt}, {Quantity: 1}}))
}

func TestMeetsMinimums_LargeCart(t *testing.T) {
	items := []CartItem{{VariantID: "v1", Quantity: 2, PriceInCents: math.MaxInt64/2 + 1}}

	assert.True(t, MeetsMinimums(Discount{MinimumPurchaseInCents: lo.ToPtr[int64](1_000_000)}, items))
}

func TestMeetsMinimums_EmptyCart(t *testing.T) {
	assert.True(t, MeetsMinimums(Discount{}, nil))
	assert.False(t, MeetsMinimums(Discount{MinimumQuantity: 1}, nil))
}

func TestAppliesToVariant(t *testing.T) {
	collections := []Collection{
		{ID: "summer", Products: []Product{{ID: "p1", VariantIDs: []string{"v1", "v2"}}}},
		{ID: "winter", Products: []Product{{ID: "p2", VariantIDs: []string{"v3"}}}},
	}

	direct := Discount{Effect: ProductEffect{Value: Percent(10), Scope: Scope{Variants: []string{"v9"}}}}
	byCollection := Discount{Effect: ProductEffect{Value: Percent(10), Scope: Scope{Collections: []string{"summer"}}}}
	everything := Discount{Effect: ProductEffect{Value: Percent(10), Scope: Scope{AllProducts: true}}}
	order := Discount{Effect: OrderEffect{Value: Percent(10), ApplyToOrder: true}}

	assert.True(t, AppliesToVariant(direct, "v9", collections))
	assert.False(t, AppliesToVariant(direct, "v1", collections))

	assert.True(t, AppliesToVariant(byCollection, "v2", collections))
	assert.False(t, AppliesToVariant(byCollection, "v3", collections))
	assert.False(t, AppliesToVariant(byCollection, "v2", nil), "membership comes from the collections context")

	assert.True(t, AppliesToVariant(everything, "anything", nil))
	assert.False(t, AppliesToVariant(order, "v1", collections))
}
