package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
)

// Payment methods are an open enumeration: the engine never branches on the
// method except to label amounts and to sum cash for session reconciliation.
const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodWallet   = "wallet"
	PaymentMethodTransfer = "transfer"
)

type Payment struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

type DraftLineKind string

const (
	DraftLineProduct DraftLineKind = "product"
	DraftLineCombo   DraftLineKind = "combo"
	DraftLineExtra   DraftLineKind = "extra_charge"
)

// DraftLine is one order item: a cart line carried over, or the synthetic
// extra-charge line appended when a surcharge applies.
type DraftLine struct {
	Kind      DraftLineKind   `json:"kind"`
	ProductID string          `json:"product_id,omitempty"`
	ComboID   string          `json:"combo_id,omitempty"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderDraft is produced by the checkout assembler and never mutated after
// creation. It is handed exactly once to the order store.
type OrderDraft struct {
	Lines       []DraftLine     `json:"lines"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	ExtraCharge decimal.Decimal `json:"extra_charge"`
	Total       decimal.Decimal `json:"total"`
	Type        OrderType       `json:"type"`
}

// Receipt identifies a committed sale.
type Receipt struct {
	OrderID      string `json:"order_id"`
	TicketNumber int    `json:"ticket_number"`
}

// CashSession is one work shift on a terminal. ExpectedCash, CountedCash and
// Variance are populated on close: expected = opening float + cash payments
// taken during the session, variance = counted - expected.
type CashSession struct {
	ID           string          `json:"id"`
	Terminal     string          `json:"terminal"`
	OpeningFloat decimal.Decimal `json:"opening_float"`
	OpenedAt     time.Time       `json:"opened_at"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	ExpectedCash decimal.Decimal `json:"expected_cash"`
	CountedCash  decimal.Decimal `json:"counted_cash"`
	Variance     decimal.Decimal `json:"variance"`
}
