package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/ambershop/api/internal/domain"
	pfirestore "github.com/ambershop/api/internal/platform/firestore"
)

const cartCollection = "carts"

type cartDocument struct {
	Lines     []cartLineDocument `firestore:"lines"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartLineDocument struct {
	ProductID              string `firestore:"productId"`
	VariantID              string `firestore:"variantId,omitempty"`
	Quantity               int    `firestore:"quantity"`
	UnitPriceCents         int64  `firestore:"unitPriceCents"`
	OriginalUnitPriceCents int64  `firestore:"originalUnitPriceCents,omitempty"`
}

// CartRepository reads cart contents from Firestore. The cart store is owned
// by the storefront; this repository never writes to it.
type CartRepository struct {
	base *pfirestore.Collection[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewCollection[cartDocument](provider, cartCollection),
	}, nil
}

// GetLines returns the cart's lines. A cart document without lines yields an
// empty slice; a missing cart yields a not-found repository error.
func (r *CartRepository) GetLines(ctx context.Context, cartID string) ([]domain.CartLine, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("cart repository not initialised")
	}

	doc, err := r.base.Get(ctx, strings.TrimSpace(cartID))
	if err != nil {
		return nil, err
	}

	lines := make([]domain.CartLine, 0, len(doc.Data.Lines))
	for _, line := range doc.Data.Lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" || line.Quantity <= 0 {
			continue
		}
		original := line.OriginalUnitPriceCents
		if original < line.UnitPriceCents {
			original = line.UnitPriceCents
		}
		var variantID *string
		if trimmed := strings.TrimSpace(line.VariantID); trimmed != "" {
			variantID = &trimmed
		}
		lines = append(lines, domain.CartLine{
			ProductID:         productID,
			VariantID:         variantID,
			Quantity:          line.Quantity,
			UnitPrice:         line.UnitPriceCents,
			OriginalUnitPrice: original,
		})
	}
	return lines, nil
}
