package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ambershop/api/internal/platform/httpx"
	"github.com/ambershop/api/internal/services"
)

const maxCheckoutRequestBody = 8 * 1024

// CheckoutHandlers exposes the side-effect-free checkout endpoints.
type CheckoutHandlers struct {
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs the checkout handlers.
func NewCheckoutHandlers(checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/preview", h.preview)
	r.Get("/shipping-methods", h.shippingMethods)
	r.Post("/promo-code", h.checkPromo)
}

type previewRequest struct {
	CartID           string `json:"cartId"`
	CountryCode      string `json:"countryCode"`
	ShippingMethodID string `json:"shippingMethodId"`
	PromoCode        string `json:"promoCode"`
	UserID           string `json:"userId"`
	Email            string `json:"email"`
}

type promoCheckRequest struct {
	CartID string `json:"cartId"`
	Code   string `json:"code"`
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func (h *CheckoutHandlers) preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req previewRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	result, err := h.checkout.PreviewSummary(ctx, services.PreviewCommand{
		CartID:           strings.TrimSpace(req.CartID),
		CountryCode:      req.CountryCode,
		ShippingMethodID: strings.TrimSpace(req.ShippingMethodID),
		PromoCode:        req.PromoCode,
		UserID:           strings.TrimSpace(req.UserID),
		Email:            strings.TrimSpace(req.Email),
	})
	if err != nil {
		if writeCheckoutError(ctx, w, err) || writePromoError(ctx, w, err) {
			return
		}
		writeInternalError(ctx, w)
		return
	}

	writeJSONResponse(w, http.StatusOK, encodePreview(result))
}

func (h *CheckoutHandlers) shippingMethods(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	cartID := strings.TrimSpace(r.URL.Query().Get("cartId"))
	country := strings.TrimSpace(r.URL.Query().Get("country"))
	if country == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "country query parameter is required", http.StatusBadRequest))
		return
	}

	methods, err := h.checkout.ShippingOptions(ctx, cartID, country)
	if err != nil {
		if writeCheckoutError(ctx, w, err) {
			return
		}
		writeInternalError(ctx, w)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"methods": encodeShippingMethods(methods),
	})
}

func (h *CheckoutHandlers) checkPromo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req promoCheckRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "code is required", http.StatusBadRequest))
		return
	}

	outcome, err := h.checkout.CheckPromo(ctx, strings.TrimSpace(req.CartID), services.EvaluatePromoCommand{
		Code:   req.Code,
		UserID: strings.TrimSpace(req.UserID),
		Email:  strings.TrimSpace(req.Email),
	})
	if err != nil {
		if writePromoError(ctx, w, err) || writeCheckoutError(ctx, w, err) {
			return
		}
		writeInternalError(ctx, w)
		return
	}

	writeJSONResponse(w, http.StatusOK, encodePromo(outcome))
}

func decodeRequest(w http.ResponseWriter, r *http.Request, target any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}
