package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SoldItem is the per-product stock consumption of a sale, with combo
// components already expanded.
type SoldItem struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type SaleCompletedEvent struct {
	OrderID      string          `json:"order_id"`
	TicketNumber int             `json:"ticket_number"`
	SessionID    string          `json:"session_id"`
	Terminal     string          `json:"terminal"`
	Total        decimal.Decimal `json:"total"`
	Items        []SoldItem      `json:"items"`
	Timestamp    time.Time       `json:"timestamp"`
}
