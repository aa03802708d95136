package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ambershop/api/internal/platform/httpx"
)

const (
	apiPrefix      = "/api/v1"
	requestTimeout = 60 * time.Second
)

// RouteRegistrar mounts a group of endpoints on the given router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	middlewares      []func(http.Handler) http.Handler
	orderMiddlewares []func(http.Handler) http.Handler
	health           *HealthHandlers
	checkout         RouteRegistrar
	orders           RouteRegistrar
}

// Option customises router construction.
type Option func(*routerConfig)

// WithMiddlewares appends global middleware.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.middlewares = append(cfg.middlewares, mw...) }
}

// WithOrderMiddlewares appends middleware scoped to the /orders group.
// The idempotency guard mounts here so checkout previews stay key-free.
func WithOrderMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.orderMiddlewares = append(cfg.orderMiddlewares, mw...) }
}

// WithHealthHandlers overrides the /healthz and /readyz handlers.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithCheckoutRoutes mounts the checkout endpoints.
func WithCheckoutRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.checkout = reg }
}

// WithOrderRoutes mounts the order endpoints.
func WithOrderRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.orders = reg }
}

// NewRouter assembles the API router: base middleware, JSON 404/405,
// health probes, and the checkout and orders groups under /api/v1.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(requestTimeout),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w,
			httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w,
			httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(apiPrefix, func(api chi.Router) {
		mountGroup(api, "/checkout", cfg.checkout, nil)
		mountGroup(api, "/orders", cfg.orders, cfg.orderMiddlewares)
	})
	return r
}

func mountGroup(api chi.Router, path string, registrar RouteRegistrar, groupMW []func(http.Handler) http.Handler) {
	api.Route(path, func(group chi.Router) {
		for _, mw := range groupMW {
			if mw != nil {
				group.Use(mw)
			}
		}
		if registrar != nil {
			registrar(group)
			return
		}
		group.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
			httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", "endpoint not implemented", http.StatusNotImplemented))
		})
	})
}
