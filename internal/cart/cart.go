package cart

import (
	"github.com/shopspring/decimal"

	"github.com/feliperosa/pos-cart-engine/internal/domain"
)

// Cart accumulates the line items of a single sale in progress. It is owned
// by exactly one checkout session and is not safe for concurrent use; the
// caller serializes mutations per terminal.
//
// Every stock-relevant mutation is admission-checked: the change is applied
// to a speculative copy of the lines, the cart-wide demand of that copy is
// aggregated, and only if every touched product fits its available stock is
// the copy committed. On rejection the cart is left structurally unchanged.
type Cart struct {
	lines    []Line
	discount decimal.Decimal
}

func New() *Cart {
	return &Cart{}
}

// AddProduct admits one unit of the given product, incrementing the existing
// line if one is present.
func (c *Cart) AddProduct(snap domain.Snapshot, productID string) error {
	p, ok := snap.Product(productID)
	if !ok {
		return &UnknownItemError{Kind: LineKindProduct, ID: productID}
	}

	key := LineKey{Kind: LineKindProduct, ID: productID}
	spec := c.speculateAdd(key, func() Line {
		return Line{
			Kind:      LineKindProduct,
			ProductID: productID,
			Name:      p.Name,
			Quantity:  decimal.NewFromInt(1),
			UnitPrice: p.UnitPrice,
		}
	})

	if err := c.admit(spec, []string{productID}, snap); err != nil {
		return err
	}
	c.lines = spec
	return nil
}

// AddCombo admits one unit of the given combo. Every stock-tracked component
// of the combo is checked against the aggregate demand of the speculative
// cart, including demand from direct lines and other combos already present.
func (c *Cart) AddCombo(snap domain.Snapshot, comboID string) error {
	combo, ok := snap.Combo(comboID)
	if !ok {
		return &UnknownItemError{Kind: LineKindCombo, ID: comboID}
	}

	key := LineKey{Kind: LineKindCombo, ID: comboID}
	spec := c.speculateAdd(key, func() Line {
		return Line{
			Kind:      LineKindCombo,
			ComboID:   comboID,
			Name:      combo.Name,
			Quantity:  decimal.NewFromInt(1),
			UnitPrice: combo.UnitPrice,
		}
	})

	if err := c.admit(spec, componentIDs(combo), snap); err != nil {
		return err
	}
	c.lines = spec
	return nil
}

// SetLineQuantity sets an existing line to an absolute quantity. A quantity
// of zero or less removes the line. Decreasing a quantity never fails
// admission, even against a snapshot where stock has since dropped: removal
// strictly reduces aggregate demand.
func (c *Cart) SetLineQuantity(snap domain.Snapshot, key LineKey, quantity decimal.Decimal) error {
	idx := c.index(key)
	if idx < 0 {
		return ErrLineNotFound
	}

	if quantity.Sign() <= 0 {
		c.RemoveLine(key)
		return nil
	}

	current := c.lines[idx].Quantity
	if quantity.LessThanOrEqual(current) {
		c.lines[idx].Quantity = quantity
		return nil
	}

	spec := c.copyLines()
	spec[idx].Quantity = quantity

	var touched []string
	switch key.Kind {
	case LineKindProduct:
		touched = []string{key.ID}
	case LineKindCombo:
		if combo, ok := snap.Combo(key.ID); ok {
			touched = componentIDs(combo)
		}
	}

	if err := c.admit(spec, touched, snap); err != nil {
		return err
	}
	c.lines = spec
	return nil
}

// RemoveLine deletes the line with the given key. Removing a line that does
// not exist is a no-op.
func (c *Cart) RemoveLine(key LineKey) {
	idx := c.index(key)
	if idx < 0 {
		return
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
}

// ApplyDiscount sets the single flat discount of the cart. Negative amounts
// are rejected; no upper bound is enforced here, the total is clamped at
// zero instead.
func (c *Cart) ApplyDiscount(amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return ErrNegativeDiscount
	}
	c.discount = amount
	return nil
}

func (c *Cart) Clear() {
	c.lines = nil
	c.discount = decimal.Decimal{}
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	return c.copyLines()
}

func (c *Cart) Discount() decimal.Decimal {
	return c.discount
}

func (c *Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Decimal{}
	for _, line := range c.lines {
		subtotal = subtotal.Add(line.Total())
	}
	return subtotal
}

// Total is subtotal minus discount, clamped at zero.
func (c *Cart) Total() decimal.Decimal {
	total := c.Subtotal().Sub(c.discount)
	if total.Sign() < 0 {
		return decimal.Decimal{}
	}
	return total
}

// speculateAdd returns a copy of the lines with one unit added to the line
// with the given key, creating it via build if absent.
func (c *Cart) speculateAdd(key LineKey, build func() Line) []Line {
	spec := c.copyLines()
	if idx := c.index(key); idx >= 0 {
		spec[idx].Quantity = spec[idx].Quantity.Add(decimal.NewFromInt(1))
		return spec
	}
	return append(spec, build())
}

// admit validates the speculative lines for every touched product. The
// speculative slice is discarded by the caller on error, so a rejection
// never partially applies.
func (c *Cart) admit(spec []Line, touched []string, snap domain.Snapshot) error {
	demand := Demand(spec, snap)
	for _, productID := range touched {
		if err := checkProduct(productID, demand[productID], snap); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cart) index(key LineKey) int {
	for i, line := range c.lines {
		if line.Key() == key {
			return i
		}
	}
	return -1
}

func (c *Cart) copyLines() []Line {
	if len(c.lines) == 0 {
		return nil
	}
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

func componentIDs(combo domain.ComboDefinition) []string {
	ids := make([]string, 0, len(combo.Components))
	for _, comp := range combo.Components {
		ids = append(ids, comp.ProductID)
	}
	return ids
}
