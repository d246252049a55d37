package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/product"
)

// Cart limits. Within them no amount a cart produces can overflow int64.
const (
	MaxItems        = 1000
	MaxQuantity     = 10_000
	MaxPriceInCents = 10_000_000_000
)

// Sentinel errors for request validation.
var (
	ErrStoreRequired       = errors.New("store id required")
	ErrEmptyItems          = errors.New("items required")
	ErrTooManyItems        = errors.Errorf("at most %d items allowed", MaxItems)
	ErrInvalidShippingCost = errors.Errorf("shipping cost must be between 0 and %d", int64(MaxPriceInCents))
)

// InvalidQuantityError indicates a line item quantity is outside
// [1, MaxQuantity].
type InvalidQuantityError struct {
	VariantID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be between 1 and %d for variant %s", MaxQuantity, e.VariantID)
}

// InvalidPriceError indicates a client supplied unit price is outside
// [0, MaxPriceInCents].
type InvalidPriceError struct {
	VariantID string
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("price must be between 0 and %d for variant %s", int64(MaxPriceInCents), e.VariantID)
}

// VariantNotFoundError indicates a line item names a variant the store does
// not sell.
type VariantNotFoundError struct {
	VariantID string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s not found", e.VariantID)
}

// PriceChangedError indicates the client priced a line item differently
// from the store's price list.
type PriceChangedError struct {
	VariantID       string
	ExpectedInCents int64
	ActualInCents   int64
}

func (e *PriceChangedError) Error() string {
	return fmt.Sprintf("price of variant %s is %d, not %d", e.VariantID, e.ActualInCents, e.ExpectedInCents)
}

// UnknownCodeError indicates a presented discount code matches nothing in
// the store.
type UnknownCodeError struct {
	Code string
}

func (e *UnknownCodeError) Error() string {
	return fmt.Sprintf("discount code %s not found", e.Code)
}

func (e *UnknownCodeError) Unwrap() error {
	return discount.ErrUnknownCode
}

// Item is a cart line. Unit prices come from the store's price list.
type Item struct {
	VariantID string
	Quantity  int
	// PriceInCents is the unit price the client expects, nil when unknown.
	// A mismatch with the price list fails the request.
	PriceInCents *int64
}

// QuoteRequest is a cart to price.
type QuoteRequest struct {
	StoreID             string
	CustomerID          string
	Items               []Item
	ShippingCostInCents int64
	// Codes unlock discounts that require a code.
	Codes []string
}

// AppliedDiscount describes a discount that changed the price of a quote.
type AppliedDiscount struct {
	ID    string
	Title string
	Type  discount.Type
}

// Quote is a priced cart.
type Quote struct {
	discount.Result
	Applied []AppliedDiscount
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order *Order
	Quote *Quote
}

// invalidator is implemented by catalog loaders that cache snapshots.
type invalidator interface {
	Invalidate(storeID string)
}

// Service prices carts and places orders.
type Service struct {
	catalog  discount.Loader
	codes    discount.CodeResolver
	products product.Repository
	orders   Repository
	now     func() time.Time

	tracer  trace.Tracer
	quotes  metric.Int64Counter
	savings metric.Int64Counter
	placed  metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	catalog discount.Loader,
	codes discount.CodeResolver,
	products product.Repository,
	orders Repository,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter("storefront-pricing/order")

	quotes, err := meter.Int64Counter("pricing.quotes",
		metric.WithDescription("Number of priced carts"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "quotes counter")
	}
	savings, err := meter.Int64Counter("pricing.savings",
		metric.WithDescription("Total discount granted"),
		metric.WithUnit("{cent}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "savings counter")
	}
	placed, err := meter.Int64Counter("pricing.orders",
		metric.WithDescription("Number of placed orders"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders counter")
	}

	return &Service{
		catalog:  catalog,
		codes:    codes,
		products: products,
		orders:   orders,
		now:      time.Now,
		tracer:   tp.Tracer("storefront-pricing/order"),
		quotes:   quotes,
		savings:  savings,
		placed:   placed,
	}, nil
}

// Discounts returns the store's catalog discounts in evaluation order.
func (s *Service) Discounts(ctx context.Context, storeID string) ([]discount.Discount, error) {
	if storeID == "" {
		return nil, ErrStoreRequired
	}
	cat, err := s.catalog.Load(ctx, storeID)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog")
	}
	return cat.Discounts, nil
}

// Quote prices the cart against the store's automatic discounts and the
// discounts unlocked by the request codes.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "order.Quote",
		trace.WithAttributes(attribute.String("store.id", req.StoreID)),
	)
	defer span.End()

	q, _, err := s.quote(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return q, nil
}

// PlaceOrder re-prices the cart, then persists the order and redeems the
// applied discounts atomically.
func (s *Service) PlaceOrder(ctx context.Context, req QuoteRequest) (*PlaceOrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(attribute.String("store.id", req.StoreID)),
	)
	defer span.End()

	q, cart, err := s.quote(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	items := make([]OrderItem, len(cart))
	for i, item := range cart {
		items[i] = OrderItem{
			VariantID:              item.VariantID,
			Quantity:               item.Quantity,
			UnitPriceInCents:       item.PriceInCents,
			DiscountedPriceInCents: q.UpdatedCartItems[i].PriceInCents,
		}
	}

	o := &Order{
		ID:                   uuid.New().String(),
		StoreID:              req.StoreID,
		CustomerID:           req.CustomerID,
		Items:                items,
		SubtotalInCents:      q.SubtotalInCents,
		OrderDiscountInCents: q.OrderDiscountInCents,
		ShippingInCents:      q.DiscountedShippingInCents,
		TotalInCents:         q.TotalAfterDiscountsInCents,
		DiscountIDs:          q.AppliedDiscountIDs,
		CreatedAt:            s.now(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		span.RecordError(err)
		if errors.Is(err, discount.ErrUsageLimitReached) {
			// The cached snapshot still counts the discount as available.
			s.invalidate(req.StoreID)
		}
		return nil, errors.Wrap(err, "create order")
	}
	s.invalidate(req.StoreID)

	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("store.id", req.StoreID)))
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("store_id", o.StoreID),
		zap.Int64("total", o.TotalInCents),
		zap.Strings("discounts", o.DiscountIDs),
	)

	return &PlaceOrderResult{Order: o, Quote: q}, nil
}

// quote prices the cart and also returns it at list prices.
func (s *Service) quote(ctx context.Context, req QuoteRequest) (*Quote, []discount.CartItem, error) {
	if err := validateRequest(req); err != nil {
		return nil, nil, err
	}

	cart, err := s.priceItems(ctx, req.StoreID, req.Items)
	if err != nil {
		return nil, nil, err
	}

	cat, err := s.catalog.Load(ctx, req.StoreID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load catalog")
	}

	unlocked, err := s.unlock(ctx, req.StoreID, req.Codes)
	if err != nil {
		return nil, nil, err
	}

	// Filtering keeps catalog order, which decides combinability conflicts.
	discounts := lo.Filter(cat.Discounts, func(d discount.Discount, _ int) bool {
		return !d.RequiresCode || unlocked[d.ID]
	})

	res := discount.Calculate(discount.Input{
		CartItems:           cart,
		Discounts:           discounts,
		Collections:         cat.Collections,
		ShippingCostInCents: req.ShippingCostInCents,
		CustomerID:          req.CustomerID,
		Now:                 s.now(),
	})

	byID := lo.KeyBy(discounts, func(d discount.Discount) string { return d.ID })
	applied := lo.Map(res.AppliedDiscountIDs, func(id string, _ int) AppliedDiscount {
		d := byID[id]
		return AppliedDiscount{ID: d.ID, Title: d.Title, Type: d.Type()}
	})

	attrs := metric.WithAttributes(attribute.String("store.id", req.StoreID))
	s.quotes.Add(ctx, 1, attrs)
	saved := discount.Subtotal(cart) + req.ShippingCostInCents - res.TotalAfterDiscountsInCents
	if saved > 0 {
		s.savings.Add(ctx, saved, attrs)
	}

	zctx.From(ctx).Debug("Cart priced",
		zap.String("store_id", req.StoreID),
		zap.Int("items", len(req.Items)),
		zap.Int64("total", res.TotalAfterDiscountsInCents),
		zap.Strings("applied", res.AppliedDiscountIDs),
	)

	return &Quote{Result: res, Applied: applied}, cart, nil
}

// priceItems replaces the request lines with cart items at list price.
func (s *Service) priceItems(ctx context.Context, storeID string, items []Item) ([]discount.CartItem, error) {
	ids := lo.Uniq(lo.Map(items, func(it Item, _ int) string { return it.VariantID }))
	variants, err := s.products.GetByIDs(ctx, storeID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get variants")
	}
	prices := lo.KeyBy(variants, func(v product.Variant) string { return v.ID })

	cart := make([]discount.CartItem, len(items))
	for i, it := range items {
		v, ok := prices[it.VariantID]
		if !ok {
			return nil, &VariantNotFoundError{VariantID: it.VariantID}
		}
		if it.PriceInCents != nil && *it.PriceInCents != v.PriceInCents {
			return nil, &PriceChangedError{
				VariantID:       it.VariantID,
				ExpectedInCents: *it.PriceInCents,
				ActualInCents:   v.PriceInCents,
			}
		}
		cart[i] = discount.CartItem{
			VariantID:    it.VariantID,
			Quantity:     it.Quantity,
			PriceInCents: v.PriceInCents,
		}
	}
	return cart, nil
}

// unlock resolves the request codes to the ids of the discounts they unlock.
func (s *Service) unlock(ctx context.Context, storeID string, codes []string) (map[string]bool, error) {
	normalized := lo.Uniq(lo.FilterMap(codes, func(code string, _ int) (string, bool) {
		code = discount.NormalizeCode(code)
		return code, code != ""
	}))
	if len(normalized) == 0 {
		return nil, nil
	}

	resolved, err := s.codes.ResolveCodes(ctx, storeID, normalized)
	if err != nil {
		return nil, errors.Wrap(err, "resolve codes")
	}

	unlocked := make(map[string]bool, len(resolved))
	for _, code := range normalized {
		id, ok := resolved[code]
		if !ok {
			return nil, &UnknownCodeError{Code: code}
		}
		unlocked[id] = true
	}
	return unlocked, nil
}

func (s *Service) invalidate(storeID string) {
	if inv, ok := s.catalog.(invalidator); ok {
		inv.Invalidate(storeID)
	}
}

func validateRequest(req QuoteRequest) error {
	if req.StoreID == "" {
		return ErrStoreRequired
	}
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	if len(req.Items) > MaxItems {
		return ErrTooManyItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.Quantity > MaxQuantity {
			return &InvalidQuantityError{VariantID: item.VariantID}
		}
		if p := item.PriceInCents; p != nil && (*p < 0 || *p > MaxPriceInCents) {
			return &InvalidPriceError{VariantID: item.VariantID}
		}
	}
	if req.ShippingCostInCents < 0 || req.ShippingCostInCents > MaxPriceInCents {
		return ErrInvalidShippingCost
	}
	return nil
}
