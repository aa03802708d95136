package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/ambershop/api/internal/domain"
)

var (
	// ErrSnapshotInvalidInput signals missing or inconsistent freeze inputs.
	ErrSnapshotInvalidInput = errors.New("snapshot: invalid input")
)

// SnapshotBuilder freezes a computed summary plus the customer's choices into
// an immutable OrderSnapshot. Catalog display data is copied verbatim at
// freeze time so later product edits never alter a placed order. User-entered
// text is stripped of markup before it reaches persistence.
type SnapshotBuilder struct {
	sanitizer *bluemonday.Policy
}

// NewSnapshotBuilder constructs a builder with a strict sanitisation policy.
func NewSnapshotBuilder() *SnapshotBuilder {
	return &SnapshotBuilder{sanitizer: bluemonday.StrictPolicy()}
}

// FreezeCommand carries everything required to build one snapshot.
type FreezeCommand struct {
	OrderID        string
	IdempotencyKey string
	UserID         string
	Email          string
	CountryCode    string
	Zone           domain.ShippingZone
	Lines          []domain.CartLine
	Display        map[string]domain.ProductDisplay
	ShippingMethod domain.ShippingMethod
	Promo          *domain.DiscountOutcome
	Summary        domain.PriceSummary
	Note           string
	PlacedAt       time.Time
}

// Freeze builds the snapshot. Missing catalog display data degrades to the
// product ID so a historical order always records its lines.
func (b *SnapshotBuilder) Freeze(cmd FreezeCommand) (domain.OrderSnapshot, error) {
	if b == nil {
		return domain.OrderSnapshot{}, ErrSnapshotInvalidInput
	}
	if strings.TrimSpace(cmd.OrderID) == "" {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: order id is required", ErrSnapshotInvalidInput)
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: idempotency key is required", ErrSnapshotInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return domain.OrderSnapshot{}, fmt.Errorf("%w: order has no lines", ErrSnapshotInvalidInput)
	}

	lines := make([]domain.OrderLine, 0, len(cmd.Lines))
	for _, line := range cmd.Lines {
		if line.Quantity <= 0 {
			return domain.OrderSnapshot{}, fmt.Errorf("%w: product %s quantity must be positive", ErrSnapshotInvalidInput, line.ProductID)
		}

		display, ok := cmd.Display[domain.DisplayKey(line.ProductID, line.VariantID)]
		if !ok {
			display = domain.ProductDisplay{ProductID: line.ProductID, Name: line.ProductID}
		}

		lines = append(lines, domain.OrderLine{
			ProductID:         line.ProductID,
			VariantID:         cloneStringPtr(line.VariantID),
			Name:              b.sanitize(display.Name),
			SKU:               b.sanitize(display.SKU),
			ImageURL:          strings.TrimSpace(display.ImageURL),
			Quantity:          line.Quantity,
			UnitPrice:         line.UnitPrice,
			OriginalUnitPrice: line.OriginalUnitPrice,
			LineTotal:         line.UnitPrice * int64(line.Quantity),
		})
	}

	promoCode := ""
	if cmd.Promo != nil {
		promoCode = cmd.Promo.Code
	}

	return domain.OrderSnapshot{
		ID:             strings.TrimSpace(cmd.OrderID),
		IdempotencyKey: strings.TrimSpace(cmd.IdempotencyKey),
		UserID:         strings.TrimSpace(cmd.UserID),
		Email:          strings.ToLower(strings.TrimSpace(cmd.Email)),
		CountryCode:    strings.ToUpper(strings.TrimSpace(cmd.CountryCode)),
		Zone:           cmd.Zone,
		Lines:          lines,
		ShippingMethod: cmd.ShippingMethod,
		PromoCode:      promoCode,
		Summary:        cmd.Summary,
		Note:           b.sanitize(cmd.Note),
		PlacedAt:       cmd.PlacedAt.UTC(),
	}, nil
}

func (b *SnapshotBuilder) sanitize(value string) string {
	return strings.TrimSpace(b.sanitizer.Sanitize(value))
}

func cloneStringPtr(in *string) *string {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}
