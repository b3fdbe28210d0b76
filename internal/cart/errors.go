package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrLineNotFound     = errors.New("cart line not found")
	ErrNegativeDiscount = errors.New("discount amount must not be negative")
)

// OutOfStockError reports a touched product whose available stock is exactly
// zero. It is distinct from InsufficientStockError so callers can
// special-case messaging without treating zero as a boundary of the generic
// rule.
type OutOfStockError struct {
	ProductID string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %s is out of stock", e.ProductID)
}

// InsufficientStockError reports that the cart-wide demand for a product
// exceeds its available stock. Requested is the aggregate demand across all
// direct and combo-embedded occurrences, not the delta of one mutation.
type InsufficientStockError struct {
	ProductID string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %s, available %s",
		e.ProductID, e.Requested, e.Available)
}

// UnknownItemError reports an add/set against a product or combo id that is
// not present in the catalog snapshot.
type UnknownItemError struct {
	Kind LineKind
	ID   string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.ID)
}
