package domain

import "github.com/shopspring/decimal"

// Product is a read-only catalog row. AvailableStock and MinStockThreshold
// are only meaningful when TracksStock is true; prepared-to-order items carry
// TracksStock false and are never stock-checked.
type Product struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	TracksStock       bool            `json:"tracks_stock"`
	AvailableStock    decimal.Decimal `json:"available_stock"`
	MinStockThreshold decimal.Decimal `json:"min_stock_threshold"`
}

// ComboComponent is one product consumed by a combo, with the quantity
// required per combo unit.
type ComboComponent struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// ComboDefinition is a fixed bundle of products sold at one price. Selling
// one combo unit consumes each component's stock. Components are ordered as
// authored; an empty component list is tolerated and contributes no demand.
type ComboDefinition struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TimeLimited bool             `json:"time_limited"`
	Components  []ComboComponent `json:"components"`
}

// Snapshot is a point-in-time view of the catalog, passed by value into the
// cart and checkout logic. It is refreshed before every cart mutation and
// again immediately before checkout submission.
type Snapshot struct {
	products map[string]Product
	combos   map[string]ComboDefinition
}

func NewSnapshot(products []Product, combos []ComboDefinition) Snapshot {
	s := Snapshot{
		products: make(map[string]Product, len(products)),
		combos:   make(map[string]ComboDefinition, len(combos)),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	for _, c := range combos {
		s.combos[c.ID] = c
	}
	return s
}

func (s Snapshot) Product(id string) (Product, bool) {
	p, ok := s.products[id]
	return p, ok
}

func (s Snapshot) Combo(id string) (ComboDefinition, bool) {
	c, ok := s.combos[id]
	return c, ok
}

func (s Snapshot) Products() []Product {
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out
}
