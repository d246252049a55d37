package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/storefront-pricing/internal/domain/discount"
	"github.com/xenking/storefront-pricing/internal/domain/order"
	"github.com/xenking/storefront-pricing/pkg/httpmiddleware"
)

// Quote prices a cart without side effects.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCart(w, r)
	if !ok {
		return
	}

	q, err := h.svc.Quote(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) { encodeQuote(e, q) })
	})
}

// PlaceOrder prices the cart, redeems the applied discounts and stores the
// order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readCart(w, r)
	if !ok {
		return
	}

	res, err := h.svc.PlaceOrder(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", r.URL.Path+"/"+res.Order.ID)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, res) })
}

// ListDiscounts returns the store's discounts in evaluation order.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	storeID, ok := h.storeID(w, r)
	if !ok {
		return
	}

	discounts, err := h.svc.Discounts(r.Context(), storeID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("discounts")
			e.Arr(func(e *jx.Encoder) {
				for _, d := range discounts {
					encodeDiscount(e, d)
				}
			})
		})
	})
}

func (h *Handler) storeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	storeID := r.PathValue("storeID")
	if err := h.validate.Var(storeID, "required,max=64,printascii"); err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "invalid store id")
		return "", false
	}
	return storeID, true
}

// readCart decodes and validates the request body. On failure it writes
// the error response and returns false.
func (h *Handler) readCart(w http.ResponseWriter, r *http.Request) (order.QuoteRequest, bool) {
	storeID, ok := h.storeID(w, r)
	if !ok {
		return order.QuoteRequest{}, false
	}

	body, err := decodeCartRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpmiddleware.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return order.QuoteRequest{}, false
		}
		httpmiddleware.WriteError(w, http.StatusBadRequest, "malformed request body")
		return order.QuoteRequest{}, false
	}

	if err := h.validate.Struct(body); err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, validationMessage(err))
		return order.QuoteRequest{}, false
	}

	return body.toDomain(storeID), true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "invalid " + fe.Namespace() + ": failed " + fe.Tag() + " check"
	}
	return "invalid request"
}

// writeDomainError maps domain errors to HTTP responses. Unknown errors
// are logged and reported as 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		iqErr  *order.InvalidQuantityError
		ipErr  *order.InvalidPriceError
		vnfErr *order.VariantNotFoundError
		pcErr  *order.PriceChangedError
		ucErr  *order.UnknownCodeError
	)
	switch {
	case errors.Is(err, order.ErrStoreRequired),
		errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrTooManyItems):
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &iqErr):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, iqErr.Error())
	case errors.As(err, &ipErr):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, ipErr.Error())
	case errors.Is(err, order.ErrInvalidShippingCost):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &vnfErr):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, vnfErr.Error())
	case errors.As(err, &pcErr):
		httpmiddleware.WriteError(w, http.StatusConflict, pcErr.Error())
	case errors.As(err, &ucErr):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, ucErr.Error())
	case errors.Is(err, discount.ErrUsageLimitReached):
		httpmiddleware.WriteError(w, http.StatusConflict, "a discount reached its usage limit, quote the cart again")
	case errors.Is(err, discount.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusConflict, "a discount is no longer available, quote the cart again")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
