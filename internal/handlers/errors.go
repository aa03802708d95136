package handlers

import (
	"context"
	"errors"
	"net/http"

	domain "github.com/ambershop/api/internal/domain"
	"github.com/ambershop/api/internal/platform/httpx"
	"github.com/ambershop/api/internal/repositories"
	"github.com/ambershop/api/internal/services"
)

// writePromoError translates promo evaluation failures into the JSON error
// envelope. The mapping mirrors the short-circuit evaluation order so clients
// always see the highest-priority failure.
func writePromoError(ctx context.Context, w http.ResponseWriter, err error) bool {
	var belowMin *services.BelowMinimumError
	switch {
	case errors.As(err, &belowMin):
		httpx.WriteError(ctx, w, httpx.NewError("promo_below_minimum", "cart total is below the promo minimum", http.StatusUnprocessableEntity).
			WithDetails(map[string]any{
				"minimumCents":     belowMin.Minimum,
				"minimumFormatted": domain.FormatEUR(belowMin.Minimum),
			}))
	case errors.Is(err, services.ErrPromoNotFound), errors.Is(err, services.ErrPromoInvalidCode):
		httpx.WriteError(ctx, w, httpx.NewError("promo_not_found", "promo code not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPromoExpired):
		httpx.WriteError(ctx, w, httpx.NewError("promo_expired", "promo code has expired", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPromoNotYetActive):
		httpx.WriteError(ctx, w, httpx.NewError("promo_not_yet_active", "promo code is not active yet", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPromoUsageLimitReached):
		httpx.WriteError(ctx, w, httpx.NewError("promo_usage_limit_reached", "promo code usage limit reached", http.StatusConflict))
	case errors.Is(err, services.ErrPromoAlreadyUsed):
		httpx.WriteError(ctx, w, httpx.NewError("promo_already_used", "promo code already used by this customer", http.StatusConflict))
	default:
		return false
	}
	return true
}

// writeCheckoutError translates checkout failures shared by preview and
// placement. Returns false when the error is not a known checkout failure.
func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid checkout input", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutCartEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no lines", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrShippingUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("shipping_unavailable", "no shipping methods serve this destination", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrShippingMethodUnknown):
		httpx.WriteError(ctx, w, httpx.NewError("shipping_method_unknown", "unknown shipping method for destination", http.StatusBadRequest))
	case repositories.IsNotFound(err):
		httpx.WriteError(ctx, w, httpx.NewError("cart_not_found", "cart not found", http.StatusNotFound))
	default:
		return false
	}
	return true
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
}
