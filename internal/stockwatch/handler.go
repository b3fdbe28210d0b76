package stockwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/feliperosa/pos-cart-engine/internal/domain"
)

// ProductReader re-reads current stock levels for the products touched by a
// sale. Satisfied by catalog.Store.
type ProductReader interface {
	ProductsByID(ctx context.Context, ids []string) ([]domain.Product, error)
}

type Handler struct {
	products   ProductReader
	alertsURL  string
	alertTo    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHandler(products ProductReader, alertsURL, alertTo string, client *http.Client, logger *slog.Logger) *Handler {
	return &Handler{
		products:   products,
		alertsURL:  alertsURL,
		alertTo:    alertTo,
		httpClient: client,
		logger:     logger,
	}
}

// Handle processes a sale.completed event: it re-reads the stock level of
// every product the sale consumed and emails an alert for each tracked
// product that has fallen below its minimum threshold.
func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	var event domain.SaleCompletedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal sale completed event: %w", err)
	}

	h.logger.Info("processing sale completed event",
		"order_id", event.OrderID, "terminal", event.Terminal, "items", len(event.Items))

	ids := soldProductIDs(event.Items)
	if len(ids) == 0 {
		return nil
	}

	products, err := h.products.ProductsByID(ctx, ids)
	if err != nil {
		return fmt.Errorf("read stock levels: %w", err)
	}

	for _, p := range products {
		if !p.TracksStock {
			continue
		}
		if p.AvailableStock.GreaterThanOrEqual(p.MinStockThreshold) {
			continue
		}

		h.logger.Warn("product below minimum stock",
			"product_id", p.ID, "available", p.AvailableStock, "threshold", p.MinStockThreshold)

		if err := h.sendLowStockAlert(ctx, p); err != nil {
			h.logger.Error("failed to send low stock alert", "error", err, "product_id", p.ID)
			return fmt.Errorf("send low stock alert for product %s: %w", p.ID, err)
		}
	}

	return nil
}

func soldProductIDs(items []domain.SoldItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func (h *Handler) sendLowStockAlert(ctx context.Context, p domain.Product) error {
	body := map[string]string{
		"to":      h.alertTo,
		"subject": "Low stock: " + p.Name,
		"body": fmt.Sprintf("Product %s (%s) is down to %s units, below the minimum of %s. Restock soon.",
			p.Name, p.ID, p.AvailableStock, p.MinStockThreshold),
	}

	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.alertsURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alerts service returned status %d", resp.StatusCode)
	}

	return nil
}
