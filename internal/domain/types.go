package domain

import (
	"strings"
	"time"
)

// ShippingZone groups destination countries that share shipping price and method rules.
type ShippingZone string

const (
	// ZoneBaltic covers the home market and its immediate neighbours served by Venipak.
	ZoneBaltic ShippingZone = "baltic"
	// ZoneInternational covers nearby countries served by the domestic carrier at the flat rate.
	ZoneInternational ShippingZone = "international"
	// ZoneEU covers the remaining European destinations served by the international carrier.
	ZoneEU ShippingZone = "eu"
	// ZoneNorthAmerica covers US and Canada.
	ZoneNorthAmerica ShippingZone = "north_america"
	// ZoneUnsupported marks destinations the store does not ship to.
	ZoneUnsupported ShippingZone = "unsupported"
)

// CartLine is a read-only view of one cart entry as owned by the cart store.
// Prices are EUR minor units; OriginalUnitPrice carries the pre-discount
// "compare at" price and is never below UnitPrice.
type CartLine struct {
	ProductID         string
	VariantID         *string
	Quantity          int
	UnitPrice         int64
	OriginalUnitPrice int64
}

// ShippingMethod is one deliverable option for a priced cart. Instances are
// constructed fresh per pricing request and never mutated afterwards.
type ShippingMethod struct {
	ID            string
	Name          string
	Description   string
	Price         int64
	EstimatedDays string
}

// DiscountType distinguishes percentage promos from fixed-amount promos.
type DiscountType string

const (
	// DiscountPercentage discounts a percentage of the cart total.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed discounts a fixed EUR amount, capped at the cart total.
	DiscountFixed DiscountType = "fixed"
)

// PromoCode is the admin-owned discount token definition. The evaluator reads
// it; usage counters are incremented only by the order placement transaction.
type PromoCode struct {
	Code         string
	Type         DiscountType
	Percentage   float64
	Amount       int64
	MinCartTotal int64
	MaxUses      *int
	PerUserLimit *int
	ActiveFrom   time.Time
	ExpiresAt    time.Time
	UsageCount   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DiscountOutcome is the result of successfully evaluating a promo code against
// a cart total. It carries enough of the promo definition for the pricing
// composer to re-validate and recompute the discount against the authoritative
// subtotal without a second repository read.
type DiscountOutcome struct {
	Code           string
	Type           DiscountType
	Percentage     float64
	Amount         int64
	MinCartTotal   int64
	DiscountAmount int64
	Display        string
}

// PriceSummary is the immutable monetary breakdown of a priced cart.
// Invariants: Subtotal = OriginalSubtotal - ProductDiscount,
// Subtotal = SubtotalExclTax + TaxAmount (VAT reverse-derived from
// tax-inclusive prices), Total = max(Subtotal + ShippingCost - PromoDiscount, 0).
type PriceSummary struct {
	OriginalSubtotal int64
	ProductDiscount  int64
	Subtotal         int64
	SubtotalExclTax  int64
	TaxAmount        int64
	ShippingCost     int64
	PromoDiscount    int64
	Total            int64
}

// OrderLine is a cart line frozen at order time together with the catalog
// display data current at that moment. Later catalog edits never alter it.
type OrderLine struct {
	ProductID         string
	VariantID         *string
	Name              string
	SKU               string
	ImageURL          string
	Quantity          int
	UnitPrice         int64
	OriginalUnitPrice int64
	LineTotal         int64
}

// OrderSnapshot is the persisted, immutable record of a placed order. The
// promo code is referenced by its code string only so that later edits or
// deletion of the promo leave historical orders untouched.
type OrderSnapshot struct {
	ID             string
	IdempotencyKey string
	UserID         string
	Email          string
	CountryCode    string
	Zone           ShippingZone
	Lines          []OrderLine
	ShippingMethod ShippingMethod
	PromoCode      string
	Summary        PriceSummary
	Note           string
	PlacedAt       time.Time
}

// ProductDisplay is the read-only catalog data copied onto order lines at
// freeze time.
type ProductDisplay struct {
	ProductID string
	VariantID *string
	Name      string
	SKU       string
	ImageURL  string
}

// DisplayKey derives the catalog lookup key for a product/variant pair.
func DisplayKey(productID string, variantID *string) string {
	if variantID == nil || strings.TrimSpace(*variantID) == "" {
		return productID
	}
	return productID + ":" + strings.TrimSpace(*variantID)
}
