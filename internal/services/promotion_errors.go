package services

import (
	"errors"
	"fmt"

	domain "github.com/ambershop/api/internal/domain"
)

var (
	// ErrPromoRepositoryMissing indicates the promotion repository dependency is absent.
	ErrPromoRepositoryMissing = errors.New("promotion: repository is not configured")
	// ErrPromoInvalidCode signals the supplied promo code is missing or malformed.
	ErrPromoInvalidCode = errors.New("promotion: invalid promo code")
	// ErrPromoNotFound indicates no promo exists for the provided code.
	ErrPromoNotFound = errors.New("promotion: code not found")
	// ErrPromoExpired indicates the promo's active window has closed.
	ErrPromoExpired = errors.New("promotion: code expired")
	// ErrPromoNotYetActive indicates the promo's active window has not opened.
	ErrPromoNotYetActive = errors.New("promotion: code not yet active")
	// ErrPromoBelowMinimum indicates the cart total is below the promo's minimum.
	// Returned wrapped in a BelowMinimumError carrying the minimum itself.
	ErrPromoBelowMinimum = errors.New("promotion: cart total below minimum")
	// ErrPromoUsageLimitReached indicates the promo's global usage cap is exhausted.
	ErrPromoUsageLimitReached = errors.New("promotion: usage limit reached")
	// ErrPromoAlreadyUsed indicates the customer has exhausted their personal allowance.
	ErrPromoAlreadyUsed = errors.New("promotion: already used by customer")
)

// BelowMinimumError wraps ErrPromoBelowMinimum with the minimum cart total so
// callers can render it to the customer.
type BelowMinimumError struct {
	Minimum int64
}

// Error implements the error interface.
func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("promotion: cart total below minimum of %s", domain.FormatEUR(e.Minimum))
}

// Unwrap ties the error into the ErrPromoBelowMinimum sentinel chain.
func (e *BelowMinimumError) Unwrap() error {
	return ErrPromoBelowMinimum
}
