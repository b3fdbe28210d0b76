package session

import "github.com/shopspring/decimal"

// Reconcile is the shift-close math: the drawer is expected to hold the
// opening float plus every cash payment taken during the session, and the
// variance is whatever the count differs by (negative means short).
func Reconcile(openingFloat, cashTaken, counted decimal.Decimal) (expected, variance decimal.Decimal) {
	expected = openingFloat.Add(cashTaken)
	variance = counted.Sub(expected)
	return expected, variance
}
