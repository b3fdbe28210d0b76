package cart

import "github.com/shopspring/decimal"

type LineKind string

const (
	LineKindProduct LineKind = "product"
	LineKindCombo   LineKind = "combo"
)

// LineKey identifies a cart line by its kind and the id of the product or
// combo it references. A cart holds at most one line per key.
type LineKey struct {
	Kind LineKind `json:"kind"`
	ID   string   `json:"id"`
}

// Line is one cart entry: either a direct product sale or a combo bundle.
// Exactly one of ProductID/ComboID is set, matching Kind. UnitPrice is the
// catalog price snapshotted when the line was first created; later catalog
// price changes do not affect lines already in the cart.
type Line struct {
	Kind      LineKind        `json:"kind"`
	ProductID string          `json:"product_id,omitempty"`
	ComboID   string          `json:"combo_id,omitempty"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (l Line) Key() LineKey {
	if l.Kind == LineKindCombo {
		return LineKey{Kind: LineKindCombo, ID: l.ComboID}
	}
	return LineKey{Kind: LineKindProduct, ID: l.ProductID}
}

func (l Line) Total() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}
