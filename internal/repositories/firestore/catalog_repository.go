package firestore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/ambershop/api/internal/domain"
	pfirestore "github.com/ambershop/api/internal/platform/firestore"
	"github.com/ambershop/api/internal/repositories"
)

const productCollection = "products"

type productDocument struct {
	Name     string                   `firestore:"name"`
	SKU      string                   `firestore:"sku,omitempty"`
	ImageURL string                   `firestore:"imageUrl,omitempty"`
	Variants []productVariantDocument `firestore:"variants,omitempty"`
}

type productVariantDocument struct {
	ID       string `firestore:"id"`
	Name     string `firestore:"name,omitempty"`
	SKU      string `firestore:"sku,omitempty"`
	ImageURL string `firestore:"imageUrl,omitempty"`
}

// CatalogRepository reads product display data from Firestore. It is read
// only; the catalog is maintained by the admin surface.
type CatalogRepository struct {
	base *pfirestore.Collection[productDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		base: pfirestore.NewCollection[productDocument](provider, productCollection),
	}, nil
}

// DisplayData resolves the current catalog display snapshot for the given cart
// lines, keyed by domain.DisplayKey. Products missing from the catalog are
// omitted; the snapshot builder degrades those lines rather than failing the
// order.
func (r *CatalogRepository) DisplayData(ctx context.Context, lines []domain.CartLine) (map[string]domain.ProductDisplay, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("catalog repository not initialised")
	}

	display := make(map[string]domain.ProductDisplay, len(lines))
	fetched := make(map[string]*productDocument, len(lines))

	for _, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			continue
		}

		doc, ok := fetched[productID]
		if !ok {
			loaded, err := r.base.Get(ctx, productID)
			if err != nil {
				if repositories.IsNotFound(err) {
					fetched[productID] = nil
					continue
				}
				return nil, err
			}
			doc = &loaded.Data
			fetched[productID] = doc
		}
		if doc == nil {
			continue
		}

		key := domain.DisplayKey(productID, line.VariantID)
		if _, done := display[key]; done {
			continue
		}
		display[key] = buildDisplay(productID, line.VariantID, doc)
	}
	return display, nil
}

func buildDisplay(productID string, variantID *string, doc *productDocument) domain.ProductDisplay {
	entry := domain.ProductDisplay{
		ProductID: productID,
		Name:      strings.TrimSpace(doc.Name),
		SKU:       strings.TrimSpace(doc.SKU),
		ImageURL:  strings.TrimSpace(doc.ImageURL),
	}
	if variantID == nil {
		return entry
	}

	wanted := strings.TrimSpace(*variantID)
	if wanted == "" {
		return entry
	}
	cloned := wanted
	entry.VariantID = &cloned

	for _, variant := range doc.Variants {
		if strings.TrimSpace(variant.ID) != wanted {
			continue
		}
		if name := strings.TrimSpace(variant.Name); name != "" {
			entry.Name = name
		}
		if sku := strings.TrimSpace(variant.SKU); sku != "" {
			entry.SKU = sku
		}
		if image := strings.TrimSpace(variant.ImageURL); image != "" {
			entry.ImageURL = image
		}
		break
	}
	return entry
}
