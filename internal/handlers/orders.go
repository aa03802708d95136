package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ambershop/api/internal/platform/httpx"
	"github.com/ambershop/api/internal/services"
)

const defaultIdempotencyHeader = "Idempotency-Key"

// OrderHandlers exposes order placement and retrieval endpoints.
type OrderHandlers struct {
	orders    services.OrderService
	keyHeader string
}

// OrderHandlersOption customises the order handlers.
type OrderHandlersOption func(*OrderHandlers)

// WithIdempotencyHeader overrides the header carrying the idempotency key.
func WithIdempotencyHeader(name string) OrderHandlersOption {
	return func(h *OrderHandlers) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			h.keyHeader = trimmed
		}
	}
}

// NewOrderHandlers constructs the order handlers.
func NewOrderHandlers(orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		orders:    orders,
		keyHeader: defaultIdempotencyHeader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers order endpoints under the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.placeOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderId}", h.getOrder)
}

type placeOrderRequest struct {
	CartID             string `json:"cartId"`
	CountryCode        string `json:"countryCode"`
	ShippingMethodID   string `json:"shippingMethodId"`
	PromoCode          string `json:"promoCode"`
	UserID             string `json:"userId"`
	Email              string `json:"email"`
	ExpectedTotalCents *int64 `json:"expectedTotalCents"`
	Note               string `json:"note"`
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	key := strings.TrimSpace(r.Header.Get(h.keyHeader))
	if key == "" {
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", "missing idempotency key header", http.StatusBadRequest))
		return
	}

	var req placeOrderRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	snapshot, err := h.orders.PlaceOrder(ctx, services.PlaceOrderCommand{
		CartID:           strings.TrimSpace(req.CartID),
		CountryCode:      req.CountryCode,
		ShippingMethodID: strings.TrimSpace(req.ShippingMethodID),
		PromoCode:        req.PromoCode,
		UserID:           strings.TrimSpace(req.UserID),
		Email:            strings.TrimSpace(req.Email),
		ExpectedTotal:    req.ExpectedTotalCents,
		Note:             req.Note,
		IdempotencyKey:   key,
	})
	if err != nil {
		h.writePlacementError(w, r, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, encodeOrder(snapshot))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	snapshot, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
			return
		}
		if errors.Is(err, services.ErrOrderInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
			return
		}
		writeInternalError(ctx, w)
		return
	}

	writeJSONResponse(w, http.StatusOK, encodeOrder(snapshot))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	identity := services.PromoIdentity(query.Get("userId"), query.Get("email"))
	if identity == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "userId or email query parameter is required", http.StatusBadRequest))
		return
	}

	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	snapshots, err := h.orders.ListOrders(ctx, identity, limit)
	if err != nil {
		writeInternalError(ctx, w)
		return
	}

	items := make([]orderResponse, 0, len(snapshots))
	for _, snapshot := range snapshots {
		items = append(items, encodeOrder(snapshot))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"orders": items})
}

func (h *OrderHandlers) writePlacementError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid order input", http.StatusBadRequest))
	case errors.Is(err, services.ErrPriceMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("price_mismatch", "cart pricing changed, refresh the checkout summary", http.StatusConflict))
	case errors.Is(err, services.ErrPromoInvalidated):
		httpx.WriteError(ctx, w, httpx.NewError("promo_invalidated", "promo code no longer applies to this cart", http.StatusConflict))
	case errors.Is(err, services.ErrOrderPlacementFailed):
		httpx.WriteError(ctx, w, httpx.NewError("order_placement_failed", "order could not be stored", http.StatusServiceUnavailable))
	default:
		if writePromoError(ctx, w, err) || writeCheckoutError(ctx, w, err) {
			return
		}
		writeInternalError(ctx, w)
	}
}
