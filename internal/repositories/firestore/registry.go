package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/ambershop/api/internal/platform/firestore"
	"github.com/ambershop/api/internal/repositories"
)

// Registry wires the Firestore-backed repositories behind the
// repositories.Registry interface.
type Registry struct {
	provider   *pfirestore.Provider
	carts      *CartRepository
	catalog    *CatalogRepository
	promotions *PromotionRepository
	orders     *OrderRepository
}

// NewRegistry constructs the repository registry on top of a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("cart repository: %w", err)
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("catalog repository: %w", err)
	}
	promotions, err := NewPromotionRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("promotion repository: %w", err)
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("order repository: %w", err)
	}

	return &Registry{
		provider:   provider,
		carts:      carts,
		catalog:    catalog,
		promotions: promotions,
		orders:     orders,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Carts returns the cart repository.
func (r *Registry) Carts() repositories.CartRepository { return r.carts }

// Catalog returns the catalog repository.
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// Promotions returns the promotion repository.
func (r *Registry) Promotions() repositories.PromotionRepository { return r.promotions }

// Orders returns the order repository.
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

var _ repositories.Registry = (*Registry)(nil)
