package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is the category sentinel every field-level validation error
// wraps, so callers can branch with a single errors.Is check.
var ErrValidation = errors.New("invalid input")

var (
	ErrAddressRequired     = fmt.Errorf("%w: address is required", ErrValidation)
	ErrUserIDRequired      = fmt.Errorf("%w: user_id is required", ErrValidation)
	ErrCostNegative        = fmt.Errorf("%w: cost_amount must be non-negative", ErrValidation)
	ErrItemTitleRequired   = fmt.Errorf("%w: item title is required", ErrValidation)
	ErrItemProductRequired = fmt.Errorf("%w: item product_id is required", ErrValidation)
	ErrItemPriceInvalid    = fmt.Errorf("%w: item price must be non-negative", ErrValidation)
	ErrItemAmountInvalid   = fmt.Errorf("%w: item amount must be non-negative", ErrValidation)
)

var (
	// ErrOrderNotFound is returned when the referenced order id does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrItemNotFound is returned when the item does not exist or is not part
	// of the referenced order.
	ErrItemNotFound = errors.New("item not found")
	// ErrItemNotInOrder is returned when the item exists but is owned by a
	// different order than the one addressed.
	ErrItemNotInOrder = errors.New("item belongs to a different order")
	// ErrEditWindowExpired rejects order updates past the 24 hour window.
	ErrEditWindowExpired = errors.New("order can no longer be edited")
)

// IsValidation reports whether err is a field validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err refers to an absent order or item.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrItemNotFound)
}
