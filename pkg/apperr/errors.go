// Package apperr defines the error kinds surfaced by the shop services and
// their HTTP status mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation              = errors.New("validation error")
	ErrNotFound                = errors.New("not found")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrEmptyCart               = errors.New("cart is empty")
	ErrDuplicateReview         = errors.New("product already reviewed by this user")
	ErrDuplicateEmail          = errors.New("email already registered")
	ErrReferencedByOrder       = errors.New("product is referenced by existing orders")
	ErrConcurrentStockConflict = errors.New("stock changed concurrently")
	ErrInvalidStatus           = errors.New("invalid order status")
	ErrInvalidRating           = errors.New("rating must be between 1 and 5")
)

// StockError reports a quantity request that exceeds the available stock.
type StockError struct {
	ProductID uint
	Product   string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.Product, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

// Validation wraps ErrValidation with a formatted message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound for the named entity.
func NotFound(entity string) error {
	return fmt.Errorf("%s %w", entity, ErrNotFound)
}

var statusByKind = []struct {
	err    error
	status int
}{
	{ErrValidation, http.StatusBadRequest},
	{ErrNotFound, http.StatusNotFound},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrForbidden, http.StatusForbidden},
	{ErrInsufficientStock, http.StatusBadRequest},
	{ErrEmptyCart, http.StatusBadRequest},
	{ErrDuplicateReview, http.StatusBadRequest},
	{ErrDuplicateEmail, http.StatusBadRequest},
	{ErrReferencedByOrder, http.StatusBadRequest},
	{ErrConcurrentStockConflict, http.StatusConflict},
	{ErrInvalidStatus, http.StatusBadRequest},
	{ErrInvalidRating, http.StatusBadRequest},
}

// HTTPStatus maps an error to the response status. Unknown errors are 500.
func HTTPStatus(err error) int {
	for _, k := range statusByKind {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// IsInternal reports whether err is outside the known taxonomy.
func IsInternal(err error) bool {
	return HTTPStatus(err) == http.StatusInternalServerError
}
