package pos

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/feliperosa/pos-cart-engine/internal/cart"
	"github.com/feliperosa/pos-cart-engine/internal/checkout"
	"github.com/feliperosa/pos-cart-engine/internal/domain"
	"github.com/feliperosa/pos-cart-engine/internal/orders"
)

type CatalogSource interface {
	FetchSnapshot(ctx context.Context) (domain.Snapshot, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, c *cart.Cart, req checkout.Request) (domain.Receipt, error)
}

type SessionStore interface {
	Open(ctx context.Context, terminal string, openingFloat decimal.Decimal) (*domain.CashSession, error)
	Close(ctx context.Context, terminal string, counted decimal.Decimal) (*domain.CashSession, error)
	Current(ctx context.Context, terminal string) (*domain.CashSession, error)
}

type OrderReader interface {
	GetByID(ctx context.Context, id string) (*orders.Sale, error)
}

type Handler struct {
	registry  *Registry
	catalog   CatalogSource
	checkout  CheckoutService
	sessions  SessionStore
	orders    OrderReader
	logger    *slog.Logger
	checkouts metric.Int64Counter
}

func NewHandler(registry *Registry, catalog CatalogSource, checkoutSvc CheckoutService, sessions SessionStore, orderReader OrderReader, logger *slog.Logger) (*Handler, error) {
	meter := otel.Meter("pos")
	checkouts, err := meter.Int64Counter("pos.checkout.attempts",
		metric.WithDescription("Checkout attempts by result"))
	if err != nil {
		return nil, err
	}

	return &Handler{
		registry:  registry,
		catalog:   catalog,
		checkout:  checkoutSvc,
		sessions:  sessions,
		orders:    orderReader,
		logger:    logger,
		checkouts: checkouts,
	}, nil
}

type cartView struct {
	Lines    []cart.Line     `json:"lines"`
	Discount decimal.Decimal `json:"discount"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Total    decimal.Decimal `json:"total"`
}

func newCartView(c *cart.Cart) cartView {
	lines := c.Lines()
	if lines == nil {
		lines = []cart.Line{}
	}
	return cartView{
		Lines:    lines,
		Discount: c.Discount(),
		Subtotal: c.Subtotal(),
		Total:    c.Total(),
	}
}

func (h *Handler) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")

	var view cartView
	_ = h.registry.With(terminal, func(c *cart.Cart) error {
		view = newCartView(c)
		return nil
	})

	h.writeJSON(w, http.StatusOK, view)
}

// HandleClearCart cancels the sale in progress.
func (h *Handler) HandleClearCart(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")

	var view cartView
	_ = h.registry.With(terminal, func(c *cart.Cart) error {
		c.Clear()
		view = newCartView(c)
		return nil
	})

	h.logger.Info("cart cleared", "terminal", terminal)
	h.writeJSON(w, http.StatusOK, view)
}

// HandleAddProduct admits one unit of a product against a fresh catalog
// snapshot.
func (h *Handler) HandleAddProduct(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")
	productID := r.PathValue("productId")

	snap, err := h.catalog.FetchSnapshot(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch catalog snapshot", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var view cartView
	err = h.registry.With(terminal, func(c *cart.Cart) error {
		if err := c.AddProduct(snap, productID); err != nil {
			return err
		}
		view = newCartView(c)
		return nil
	})
	if err != nil {
		h.writeCartError(w, err)
		return
	}

	h.logger.Info("product added", "terminal", terminal, "product_id", productID)
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleAddCombo(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")
	comboID := r.PathValue("comboId")

	snap, err := h.catalog.FetchSnapshot(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch catalog snapshot", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var view cartView
	err = h.registry.With(terminal, func(c *cart.Cart) error {
		if err := c.AddCombo(snap, comboID); err != nil {
			return err
		}
		view = newCartView(c)
		return nil
	})
	if err != nil {
		h.writeCartError(w, err)
		return
	}

	h.logger.Info("combo added", "terminal", terminal, "combo_id", comboID)
	h.writeJSON(w, http.StatusOK, view)
}

type setQuantityRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

func (h *Handler) HandleSetLineQuantity(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")
	key, ok := lineKeyFromPath(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid line kind")
		return
	}

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snap, err := h.catalog.FetchSnapshot(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch catalog snapshot", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var view cartView
	err = h.registry.With(terminal, func(c *cart.Cart) error {
		if err := c.SetLineQuantity(snap, key, req.Quantity); err != nil {
			return err
		}
		view = newCartView(c)
		return nil
	})
	if err != nil {
		h.writeCartError(w, err)
		return
	}

	h.logger.Info("line quantity set", "terminal", terminal, "kind", key.Kind, "id", key.ID, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) HandleRemoveLine(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")
	key, ok := lineKeyFromPath(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid line kind")
		return
	}

	var view cartView
	_ = h.registry.With(terminal, func(c *cart.Cart) error {
		c.RemoveLine(key)
		view = newCartView(c)
		return nil
	})

	h.logger.Info("line removed", "terminal", terminal, "kind", key.Kind, "id", key.ID)
	h.writeJSON(w, http.StatusOK, view)
}

type discountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) HandleApplyDiscount(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")

	var req discountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var view cartView
	err := h.registry.With(terminal, func(c *cart.Cart) error {
		if err := c.ApplyDiscount(req.Amount); err != nil {
			return err
		}
		view = newCartView(c)
		return nil
	})
	if err != nil {
		h.writeCartError(w, err)
		return
	}

	h.logger.Info("discount applied", "terminal", terminal, "amount", req.Amount)
	h.writeJSON(w, http.StatusOK, view)
}

type checkoutRequest struct {
	OrderType   domain.OrderType `json:"order_type"`
	ExtraCharge decimal.Decimal  `json:"extra_charge"`
	Payments    []domain.Payment `json:"payments"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderType == "" {
		req.OrderType = domain.OrderTypeDineIn
	}

	var receipt domain.Receipt
	err := h.registry.With(terminal, func(c *cart.Cart) error {
		var err error
		receipt, err = h.checkout.Checkout(r.Context(), c, checkout.Request{
			Terminal:    terminal,
			OrderType:   req.OrderType,
			ExtraCharge: req.ExtraCharge,
			Payments:    req.Payments,
		})
		return err
	})

	h.checkouts.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("result", checkoutResult(err)),
	))

	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	h.logger.Info("sale committed", "terminal", terminal, "order_id", receipt.OrderID, "ticket_number", receipt.TicketNumber)
	h.writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	sale, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if sale == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, sale)
}

func lineKeyFromPath(r *http.Request) (cart.LineKey, bool) {
	kind := cart.LineKind(r.PathValue("kind"))
	if kind != cart.LineKindProduct && kind != cart.LineKindCombo {
		return cart.LineKey{}, false
	}
	return cart.LineKey{Kind: kind, ID: r.PathValue("id")}, true
}

func checkoutResult(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, orders.ErrPartialCommit):
		return "partial_commit"
	default:
		return "rejected"
	}
}

// writeCartError maps admission failures to structured responses carrying
// enough data for the UI to render an actionable message.
func (h *Handler) writeCartError(w http.ResponseWriter, err error) {
	var outOfStock *cart.OutOfStockError
	if errors.As(err, &outOfStock) {
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "out_of_stock",
			"product_id": outOfStock.ProductID,
		})
		return
	}

	var insufficient *cart.InsufficientStockError
	if errors.As(err, &insufficient) {
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient_stock",
			"product_id": insufficient.ProductID,
			"available":  insufficient.Available,
			"requested":  insufficient.Requested,
		})
		return
	}

	var unknown *cart.UnknownItemError
	if errors.As(err, &unknown) {
		h.writeError(w, http.StatusNotFound, unknown.Error())
		return
	}

	switch {
	case errors.Is(err, cart.ErrLineNotFound):
		h.writeError(w, http.StatusNotFound, "cart line not found")
	case errors.Is(err, cart.ErrNegativeDiscount):
		h.writeError(w, http.StatusBadRequest, "discount amount must not be negative")
	default:
		h.logger.Error("cart mutation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	var mismatch *checkout.PaymentMismatchError
	if errors.As(err, &mismatch) {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "payment_mismatch",
			"expected": mismatch.Expected,
			"provided": mismatch.Provided,
		})
		return
	}

	switch {
	case errors.Is(err, checkout.ErrNoOpenSession):
		h.writeError(w, http.StatusConflict, "no open cash session")
	case errors.Is(err, checkout.ErrEmptyCart):
		h.writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, checkout.ErrNegativeExtraCharge):
		h.writeError(w, http.StatusBadRequest, "extra charge must not be negative")
	case errors.Is(err, orders.ErrPartialCommit):
		// ambiguous outcome: the caller must check before retrying
		h.logger.Error("checkout outcome unknown", "error", err)
		h.writeError(w, http.StatusInternalServerError, "partial_commit")
	default:
		var outOfStock *cart.OutOfStockError
		var insufficient *cart.InsufficientStockError
		if errors.As(err, &outOfStock) || errors.As(err, &insufficient) {
			h.writeCartError(w, err)
			return
		}
		h.logger.Error("checkout failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
