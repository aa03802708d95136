package repositories

import "errors"

var (
	// ErrUsageLimitReached signals that committing a promo usage claim would exceed the
	// promo's global usage cap.
	ErrUsageLimitReached = errors.New("repositories: promo usage limit reached")
	// ErrPerUserLimitReached signals that the claiming identity has exhausted its allowance.
	ErrPerUserLimitReached = errors.New("repositories: promo per-user limit reached")
)

// IsNotFound reports whether err carries not-found repository semantics.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err carries conflict repository semantics.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
