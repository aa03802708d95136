package repositories

import (
	"context"

	domain "github.com/ambershop/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Catalog() CatalogRepository
	Promotions() PromotionRepository
	Orders() OrderRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CartRepository reads cart contents owned by the external cart store.
type CartRepository interface {
	GetLines(ctx context.Context, cartID string) ([]domain.CartLine, error)
}

// CatalogRepository exposes the read-only product display snapshot used at
// order freeze time.
type CatalogRepository interface {
	DisplayData(ctx context.Context, lines []domain.CartLine) (map[string]domain.ProductDisplay, error)
}

// PromotionRepository reads promo code definitions and per-identity usage.
// Usage counters are never incremented here; that happens inside the order
// placement transaction so a preview can never consume a use.
type PromotionRepository interface {
	FindByCode(ctx context.Context, code string) (domain.PromoCode, error)
	UsageByIdentity(ctx context.Context, code string, identity string) (int, error)
}

// PromoUsageClaim asks the order repository to consume one promo use inside
// the same transaction that commits the order. The promo's limits are re-read
// and re-checked under the transaction so two concurrent placements cannot
// both pass a maxUses cap.
type PromoUsageClaim struct {
	Code     string
	Identity string
}

// OrderRepository persists immutable order snapshots keyed by idempotency
// token. Save commits the snapshot and the optional promo usage claim
// atomically; replaying the same idempotency key returns the originally
// stored snapshot without side effects.
type OrderRepository interface {
	Save(ctx context.Context, snapshot domain.OrderSnapshot, claim *PromoUsageClaim) (domain.OrderSnapshot, error)
	FindByIdempotencyKey(ctx context.Context, key string) (domain.OrderSnapshot, error)
	FindByID(ctx context.Context, orderID string) (domain.OrderSnapshot, error)
	ListByIdentity(ctx context.Context, identity string, limit int) ([]domain.OrderSnapshot, error)
}
