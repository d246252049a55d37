package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/product"
	"github.com/xenking/storefront-pricing/internal/storage/postgres"
)

type seedFile struct {
	Stores []storeJSON `json:"stores"`
}

type storeJSON struct {
	ID          string           `json:"id"`
	Products    []productJSON    `json:"products"`
	Collections []collectionJSON `json:"collections"`
	Discounts   []discountJSON   `json:"discounts"`
	Codes       []codeJSON       `json:"codes"`
}

type productJSON struct {
	ID       string `json:"id"`
	Variants []struct {
		ID           string `json:"id"`
		PriceInCents int64  `json:"priceInCents"`
	} `json:"variants"`
}

type collectionJSON struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	ProductIDs []string `json:"productIds"`
}

type valueJSON struct {
	Type   discount.AmountType `json:"type"`
	Amount decimal.Decimal     `json:"amount"`
}

type discountJSON struct {
	ID                           string        `json:"id"`
	Title                        string        `json:"title"`
	Type                         discount.Type `json:"type"`
	IsActive                     bool          `json:"isActive"`
	StartsAt                     time.Time     `json:"startsAt"`
	EndsAt                       *time.Time    `json:"endsAt"`
	Customers                    []string      `json:"customerIds"`
	MaximumUses                  *int          `json:"maximumUses"`
	MinimumQuantity              int           `json:"minimumQuantity"`
	MinimumPurchaseInCents       *int64        `json:"minimumPurchaseInCents"`
	CanCombineWithOtherDiscounts bool          `json:"canCombineWithOtherDiscounts"`
	Priority                     int           `json:"priority"`
	RequiresCode                 bool          `json:"requiresCode"`
	Value                        *valueJSON    `json:"value"`
	VariantIDs                   []string      `json:"variantIds"`
	CollectionIDs                []string      `json:"collectionIds"`
	AllProducts                  bool          `json:"allProducts"`
	ApplyToOrder                 bool          `json:"applyToOrder"`
	ApplyToShipping              bool          `json:"applyToShipping"`
}

type codeJSON struct {
	Code       string `json:"code"`
	DiscountID string `json:"discountId"`
}

// storeCatalog is a parsed store ready to be written.
type storeCatalog struct {
	ID       string
	Variants []product.Variant
	Catalog  *discount.Catalog
	Codes    []postgres.CodeAssignment
}

func parseSeed(r io.Reader) ([]storeCatalog, error) {
	var f seedFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode seed file")
	}

	stores := make([]storeCatalog, 0, len(f.Stores))
	for _, s := range f.Stores {
		if s.ID == "" {
			return nil, errors.New("store without id")
		}
		sc, err := s.toDomain()
		if err != nil {
			return nil, errors.Wrapf(err, "store %q", s.ID)
		}
		stores = append(stores, sc)
	}
	return stores, nil
}

func (s storeJSON) toDomain() (storeCatalog, error) {
	var variants []product.Variant
	variantsOf := make(map[string][]string, len(s.Products))
	seen := make(map[string]struct{})
	for _, p := range s.Products {
		for _, v := range p.Variants {
			if _, dup := seen[v.ID]; dup {
				return storeCatalog{}, errors.Errorf("duplicate variant %q", v.ID)
			}
			if v.PriceInCents < 0 {
				return storeCatalog{}, errors.Errorf("variant %q has negative price", v.ID)
			}
			seen[v.ID] = struct{}{}
			variants = append(variants, product.Variant{ID: v.ID, ProductID: p.ID, PriceInCents: v.PriceInCents})
			variantsOf[p.ID] = append(variantsOf[p.ID], v.ID)
		}
	}

	cat := &discount.Catalog{}
	for _, c := range s.Collections {
		col := discount.Collection{ID: c.ID, Title: c.Title}
		for _, id := range c.ProductIDs {
			vs, ok := variantsOf[id]
			if !ok {
				return storeCatalog{}, errors.Errorf("collection %q references unknown product %q", c.ID, id)
			}
			col.Products = append(col.Products, discount.Product{ID: id, VariantIDs: vs})
		}
		cat.Collections = append(cat.Collections, col)
	}

	known := make(map[string]struct{}, len(s.Discounts))
	for _, d := range s.Discounts {
		dd, err := d.toDomain()
		if err != nil {
			return storeCatalog{}, errors.Wrapf(err, "discount %q", d.ID)
		}
		known[d.ID] = struct{}{}
		cat.Discounts = append(cat.Discounts, dd)
	}

	codes := make([]postgres.CodeAssignment, 0, len(s.Codes))
	for _, c := range s.Codes {
		if _, ok := known[c.DiscountID]; !ok {
			return storeCatalog{}, errors.Errorf("code %q references unknown discount %q", c.Code, c.DiscountID)
		}
		codes = append(codes, postgres.CodeAssignment{Code: c.Code, DiscountID: c.DiscountID})
	}

	return storeCatalog{ID: s.ID, Variants: variants, Catalog: cat, Codes: codes}, nil
}

func (d discountJSON) toDomain() (discount.Discount, error) {
	var v discount.Value
	if d.Value != nil {
		switch d.Value.Type {
		case discount.AmountPercentage, discount.AmountFixed:
		default:
			return discount.Discount{}, errors.Errorf("unknown amount type %q", d.Value.Type)
		}
		v = discount.Value{Type: d.Value.Type, Amount: d.Value.Amount}
	} else if d.Type == discount.TypeProduct || d.Type == discount.TypeOrder {
		return discount.Discount{}, errors.Errorf("%s discount requires a value", d.Type)
	}

	effect, err := discount.NewEffect(d.Type, v,
		discount.Scope{
			Variants:    d.VariantIDs,
			Collections: d.CollectionIDs,
			AllProducts: d.AllProducts,
		},
		d.ApplyToOrder,
		d.ApplyToShipping,
	)
	if err != nil {
		return discount.Discount{}, err
	}

	return discount.Discount{
		ID:                           d.ID,
		Title:                        d.Title,
		IsActive:                     d.IsActive,
		StartsAt:                     d.StartsAt,
		EndsAt:                       d.EndsAt,
		Customers:                    d.Customers,
		MaximumUses:                  d.MaximumUses,
		MinimumQuantity:              d.MinimumQuantity,
		MinimumPurchaseInCents:       d.MinimumPurchaseInCents,
		CanCombineWithOtherDiscounts: d.CanCombineWithOtherDiscounts,
		Priority:                     d.Priority,
		RequiresCode:                 d.RequiresCode,
		Effect:                       effect,
	}, nil
}
