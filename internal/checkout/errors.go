package checkout

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNoOpenSession       = errors.New("no open cash session")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrNegativeExtraCharge = errors.New("extra charge must not be negative")
)

// PaymentMismatchError reports that the tendered payments do not reconcile
// to the final total. Amounts are exact decimals; being off by the smallest
// currency unit is a mismatch.
type PaymentMismatchError struct {
	Expected decimal.Decimal
	Provided decimal.Decimal
}

func (e *PaymentMismatchError) Error() string {
	return fmt.Sprintf("payments total %s does not match order total %s", e.Provided, e.Expected)
}
