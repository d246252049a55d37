package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/order"
)

// cartRequest is the body of quote and order requests.
type cartRequest struct {
	CustomerID          string     `validate:"max=128"`
	Items               []cartItem `validate:"max=1000,dive"`
	ShippingCostInCents int64      `validate:"max=10000000000"`
	Codes               []string   `validate:"max=20,dive,max=64"`
}

// Lower bounds are checked by the order service.
type cartItem struct {
	VariantID    string `validate:"required,max=128"`
	Quantity     int    `validate:"max=10000"`
	PriceInCents *int64 `validate:"omitempty,max=10000000000"`
}

func (c cartRequest) toDomain(storeID string) order.QuoteRequest {
	items := make([]order.Item, len(c.Items))
	for i, it := range c.Items {
		items[i] = order.Item{
			VariantID:    it.VariantID,
			Quantity:     it.Quantity,
			PriceInCents: it.PriceInCents,
		}
	}
	return order.QuoteRequest{
		StoreID:             storeID,
		CustomerID:          c.CustomerID,
		Items:               items,
		ShippingCostInCents: c.ShippingCostInCents,
		Codes:               c.Codes,
	}
}

func decodeCartRequest(r io.Reader) (cartRequest, error) {
	var req cartRequest
	d := jx.Decode(r, 4096)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "customerId":
			v, err := optStr(d)
			req.CustomerID = v
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeCartItem(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		case "shippingCostInCents":
			v, err := d.Int64()
			req.ShippingCostInCents = v
			return err
		case "codes":
			return d.Arr(func(d *jx.Decoder) error {
				v, err := d.Str()
				if err != nil {
					return err
				}
				req.Codes = append(req.Codes, v)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return cartRequest{}, errors.Wrap(err, "decode request")
	}
	return req, nil
}

func decodeCartItem(d *jx.Decoder) (cartItem, error) {
	var item cartItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "variantId":
			v, err := d.Str()
			item.VariantID = v
			return err
		case "quantity":
			v, err := d.Int()
			item.Quantity = v
			return err
		case "priceInCents":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Int64()
			item.PriceInCents = &v
			return err
		default:
			return d.Skip()
		}
	})
	return item, err
}

// optStr reads a string that may be null.
func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func writeJSON(w http.ResponseWriter, code int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.Arr(func(e *jx.Encoder) {
		for _, v := range values {
			e.Str(v)
		}
	})
}

func encodeQuote(e *jx.Encoder, q *order.Quote) {
	e.FieldStart("updatedCartItems")
	e.Arr(func(e *jx.Encoder) {
		for _, it := range q.UpdatedCartItems {
			e.Obj(func(e *jx.Encoder) {
				e.Field("variantId", func(e *jx.Encoder) { e.Str(it.VariantID) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
				e.Field("priceInCents", func(e *jx.Encoder) { e.Int64(it.PriceInCents) })
			})
		}
	})
	e.Field("subtotalInCents", func(e *jx.Encoder) { e.Int64(q.SubtotalInCents) })
	e.Field("orderDiscountInCents", func(e *jx.Encoder) { e.Int64(q.OrderDiscountInCents) })
	e.Field("discountedShippingInCents", func(e *jx.Encoder) { e.Int64(q.DiscountedShippingInCents) })
	e.Field("totalAfterDiscountsInCents", func(e *jx.Encoder) { e.Int64(q.TotalAfterDiscountsInCents) })
	e.Field("acceptedDiscountIds", func(e *jx.Encoder) { encodeStrings(e, q.AcceptedDiscountIDs) })
	e.FieldStart("appliedDiscounts")
	e.Arr(func(e *jx.Encoder) {
		for _, a := range q.Applied {
			e.Obj(func(e *jx.Encoder) {
				e.Field("id", func(e *jx.Encoder) { e.Str(a.ID) })
				e.Field("title", func(e *jx.Encoder) { e.Str(a.Title) })
				e.Field("type", func(e *jx.Encoder) { e.Str(string(a.Type)) })
			})
		}
	})
}

func encodeOrder(e *jx.Encoder, res *order.PlaceOrderResult) {
	o := res.Order
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("storeId", func(e *jx.Encoder) { e.Str(o.StoreID) })
		if o.CustomerID != "" {
			e.Field("customerId", func(e *jx.Encoder) { e.Str(o.CustomerID) })
		}
		e.Field("createdAt", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
		e.FieldStart("items")
		e.Arr(func(e *jx.Encoder) {
			for _, it := range o.Items {
				e.Obj(func(e *jx.Encoder) {
					e.Field("variantId", func(e *jx.Encoder) { e.Str(it.VariantID) })
					e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
					e.Field("unitPriceInCents", func(e *jx.Encoder) { e.Int64(it.UnitPriceInCents) })
					e.Field("discountedPriceInCents", func(e *jx.Encoder) { e.Int64(it.DiscountedPriceInCents) })
				})
			}
		})
		e.Field("quote", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) { encodeQuote(e, res.Quote) })
		})
	})
}

func encodeValue(e *jx.Encoder, v discount.Value) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("type", func(e *jx.Encoder) { e.Str(string(v.Type)) })
		e.Field("amount", func(e *jx.Encoder) { e.Str(v.Amount.String()) })
	})
}

func encodeDiscount(e *jx.Encoder, d discount.Discount) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(d.ID) })
		e.Field("title", func(e *jx.Encoder) { e.Str(d.Title) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(d.Type())) })
		e.Field("isActive", func(e *jx.Encoder) { e.Bool(d.IsActive) })
		e.Field("startsAt", func(e *jx.Encoder) { e.Str(d.StartsAt.UTC().Format(time.RFC3339)) })
		if d.EndsAt != nil {
			e.Field("endsAt", func(e *jx.Encoder) { e.Str(d.EndsAt.UTC().Format(time.RFC3339)) })
		}
		if d.MaximumUses != nil {
			e.Field("maximumUses", func(e *jx.Encoder) { e.Int(*d.MaximumUses) })
		}
		e.Field("uses", func(e *jx.Encoder) { e.Int(d.Uses) })
		e.Field("minimumQuantity", func(e *jx.Encoder) { e.Int(d.MinimumQuantity) })
		if d.MinimumPurchaseInCents != nil {
			e.Field("minimumPurchaseInCents", func(e *jx.Encoder) { e.Int64(*d.MinimumPurchaseInCents) })
		}
		e.Field("customerRestricted", func(e *jx.Encoder) { e.Bool(len(d.Customers) > 0) })
		e.Field("canCombineWithOtherDiscounts", func(e *jx.Encoder) { e.Bool(d.CanCombineWithOtherDiscounts) })
		e.Field("priority", func(e *jx.Encoder) { e.Int(d.Priority) })
		e.Field("requiresCode", func(e *jx.Encoder) { e.Bool(d.RequiresCode) })

		switch eff := d.Effect.(type) {
		case discount.ProductEffect:
			e.Field("value", func(e *jx.Encoder) { encodeValue(e, eff.Value) })
			e.Field("scope", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("variantIds", func(e *jx.Encoder) { encodeStrings(e, eff.Scope.Variants) })
					e.Field("collectionIds", func(e *jx.Encoder) { encodeStrings(e, eff.Scope.Collections) })
					e.Field("allProducts", func(e *jx.Encoder) { e.Bool(eff.Scope.AllProducts) })
				})
			})
		case discount.OrderEffect:
			e.Field("value", func(e *jx.Encoder) { encodeValue(e, eff.Value) })
			e.Field("applyToOrder", func(e *jx.Encoder) { e.Bool(eff.ApplyToOrder) })
		case discount.ShippingEffect:
			e.Field("applyToShipping", func(e *jx.Encoder) { e.Bool(eff.ApplyToShipping) })
		}
	})
}
