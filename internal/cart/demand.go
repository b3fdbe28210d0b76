package cart

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/feliperosa/pos-cart-engine/internal/domain"
)

// Demand computes the total required quantity of every stock-tracked product
// across all lines: direct product lines contribute their quantity, combo
// lines contribute perUnitQuantity x comboQuantity for each component. The
// same product can be consumed by a direct line and any number of combos at
// once, so admission must always be checked against this cart-wide total,
// never against a single line's delta.
//
// The function is pure: it only reads the lines and the snapshot. Products
// with TracksStock false, unknown ids and empty combo component lists
// contribute nothing.
func Demand(lines []Line, snap domain.Snapshot) map[string]decimal.Decimal {
	demand := make(map[string]decimal.Decimal)

	for _, line := range lines {
		switch line.Kind {
		case LineKindProduct:
			p, ok := snap.Product(line.ProductID)
			if !ok || !p.TracksStock {
				continue
			}
			demand[line.ProductID] = demand[line.ProductID].Add(line.Quantity)

		case LineKindCombo:
			combo, ok := snap.Combo(line.ComboID)
			if !ok {
				continue
			}
			for _, comp := range combo.Components {
				p, ok := snap.Product(comp.ProductID)
				if !ok || !p.TracksStock {
					continue
				}
				demand[comp.ProductID] = demand[comp.ProductID].Add(comp.Quantity.Mul(line.Quantity))
			}
		}
	}

	return demand
}

// Validate checks the cart-wide demand of every stock-tracked product in
// lines against the snapshot. It is the checkout-time revalidation: the
// snapshot passed here must be freshly fetched, since another terminal may
// have consumed stock after the lines were admitted.
func Validate(lines []Line, snap domain.Snapshot) error {
	demand := Demand(lines, snap)

	ids := make([]string, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := checkProduct(id, demand[id], snap); err != nil {
			return err
		}
	}
	return nil
}

func checkProduct(productID string, requested decimal.Decimal, snap domain.Snapshot) error {
	p, ok := snap.Product(productID)
	if !ok || !p.TracksStock {
		return nil
	}
	if requested.GreaterThan(p.AvailableStock) {
		if p.AvailableStock.IsZero() {
			return &OutOfStockError{ProductID: productID}
		}
		return &InsufficientStockError{
			ProductID: productID,
			Available: p.AvailableStock,
			Requested: requested,
		}
	}
	return nil
}
