package discount

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockDiscountRepo struct {
	discounts []Discount
	err       error
}

func (m *mockDiscountRepo) ListByStore(_ context.Context, _ string) ([]Discount, error) {
	return m.discounts, m.err
}

func (m *mockDiscountRepo) ResolveCodes(_ context.Context, _ string, _ []string) (map[string]string, error) {
	return nil, nil
}

type mockCollectionRepo struct {
	collections []Collection
	err         error
}

func (m *mockCollectionRepo) ListByStore(_ context.Context, _ string) ([]Collection, error) {
	return m.collections, m.err
}

func TestCatalogLoader_Load(t *testing.T) {
	discounts := []Discount{
		active("a", allProducts(Percent(10))),
		active("b", ShippingEffect{ApplyToShipping: true}),
	}
	collections := []Collection{{ID: "c1", Title: "Coffee"}}

	l := NewCatalogLoader(&mockDiscountRepo{discounts: discounts}, &mockCollectionRepo{collections: collections})

	cat, err := l.Load(context.Background(), "store-1")
	require.NoError(t, err)
	assert.Equal(t, discounts, cat.Discounts)
	assert.Equal(t, collections, cat.Collections)
}

func TestCatalogLoader_LoadErrors(t *testing.T) {
	tests := []struct {
		name        string
		discounts   *mockDiscountRepo
		collections *mockCollectionRepo
		wantText    string
	}{
		{
			name:        "discounts fail",
			discounts:   &mockDiscountRepo{err: errors.New("db down")},
			collections: &mockCollectionRepo{},
			wantText:    "list discounts",
		},
		{
			name:        "collections fail",
			discounts:   &mockDiscountRepo{},
			collections: &mockCollectionRepo{err: errors.New("db down")},
			wantText:    "list collections",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewCatalogLoader(tt.discounts, tt.collections)

			cat, err := l.Load(context.Background(), "store-1")
			require.Error(t, err)
			assert.Nil(t, cat)
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}
