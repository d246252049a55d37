// Package handler exposes the pricing service over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/order"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Service is the domain API the handlers delegate to.
type Service interface {
	Quote(ctx context.Context, req order.QuoteRequest) (*order.Quote, error)
	PlaceOrder(ctx context.Context, req order.QuoteRequest) (*order.PlaceOrderResult, error)
	Discounts(ctx context.Context, storeID string) ([]discount.Discount, error)
}

var _ Service = (*order.Service)(nil)

// Handler serves the pricing API.
type Handler struct {
	svc      Service
	validate *validator.Validate
}

// NewHandler constructs a Handler backed by svc.
func NewHandler(svc Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/stores/{storeID}/quote", h.Quote)
	mux.HandleFunc("POST /api/stores/{storeID}/orders", h.PlaceOrder)
	mux.HandleFunc("GET /api/stores/{storeID}/discounts", h.ListDiscounts)
}
