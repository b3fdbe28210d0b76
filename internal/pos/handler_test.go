package pos

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/feliperosa/pos-cart-engine/internal/cart"
	"github.com/feliperosa/pos-cart-engine/internal/checkout"
	"github.com/feliperosa/pos-cart-engine/internal/domain"
	"github.com/feliperosa/pos-cart-engine/internal/orders"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type stubCatalog struct {
	snap domain.Snapshot
	err  error
}

func (s *stubCatalog) FetchSnapshot(_ context.Context) (domain.Snapshot, error) {
	return s.snap, s.err
}

type stubCheckout struct {
	receipt domain.Receipt
	err     error
	called  bool
}

func (s *stubCheckout) Checkout(_ context.Context, c *cart.Cart, _ checkout.Request) (domain.Receipt, error) {
	s.called = true
	if s.err == nil {
		c.Clear()
	}
	return s.receipt, s.err
}

type stubSessions struct {
	session *domain.CashSession
	err     error
}

func (s *stubSessions) Open(_ context.Context, _ string, _ decimal.Decimal) (*domain.CashSession, error) {
	return s.session, s.err
}

func (s *stubSessions) Close(_ context.Context, _ string, _ decimal.Decimal) (*domain.CashSession, error) {
	return s.session, s.err
}

func (s *stubSessions) Current(_ context.Context, _ string) (*domain.CashSession, error) {
	return s.session, s.err
}

type stubOrders struct {
	sale *orders.Sale
	err  error
}

func (s *stubOrders) GetByID(_ context.Context, _ string) (*orders.Sale, error) {
	return s.sale, s.err
}

func testSnapshot() domain.Snapshot {
	return domain.NewSnapshot(
		[]domain.Product{{
			ID: "A", Name: "product A", UnitPrice: dec("10"),
			TracksStock: true, AvailableStock: dec("2"),
		}},
		[]domain.ComboDefinition{{
			ID: "B", Name: "combo B", UnitPrice: dec("15"),
			Components: []domain.ComboComponent{{ProductID: "A", Quantity: dec("1")}},
		}},
	)
}

func newTestHandler(t *testing.T, catalog CatalogSource, checkoutSvc CheckoutService, sessions SessionStore, orderReader OrderReader) *Handler {
	t.Helper()
	h, err := NewHandler(NewRegistry(), catalog, checkoutSvc, sessions, orderReader,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}
	return h
}

func pathRequest(method, target, body string, values map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range values {
		req.SetPathValue(k, v)
	}
	return req
}

func TestHandler_HandleAddProduct(t *testing.T) {
	t.Run("adds within stock and returns the cart view", func(t *testing.T) {
		h := newTestHandler(t, &stubCatalog{snap: testSnapshot()}, &stubCheckout{}, &stubSessions{}, &stubOrders{})

		req := pathRequest(http.MethodPost, "/carts/t1/products/A", "", map[string]string{
			"terminal": "t1", "productId": "A",
		})
		rec := httptest.NewRecorder()

		h.HandleAddProduct(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var view cartView
		if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(view.Lines) != 1 {
			t.Fatalf("expected 1 line, got %d", len(view.Lines))
		}
		if !view.Subtotal.Equal(dec("10")) {
			t.Errorf("expected subtotal 10, got %s", view.Subtotal)
		}
	})

	t.Run("insufficient stock returns 409 with structured data", func(t *testing.T) {
		h := newTestHandler(t, &stubCatalog{snap: testSnapshot()}, &stubCheckout{}, &stubSessions{}, &stubOrders{})

		add := func() *httptest.ResponseRecorder {
			req := pathRequest(http.MethodPost, "/carts/t1/products/A", "", map[string]string{
				"terminal": "t1", "productId": "A",
			})
			rec := httptest.NewRecorder()
			h.HandleAddProduct(rec, req)
			return rec
		}

		add()
		add()
		rec := add() // stock is 2

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected status 409, got %d", rec.Code)
		}

		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "insufficient_stock" {
			t.Errorf("expected insufficient_stock, got %v", resp["error"])
		}
		if resp["product_id"] != "A" {
			t.Errorf("expected product_id A, got %v", resp["product_id"])
		}
		if resp["available"] != "2" || resp["requested"] != "3" {
			t.Errorf("expected available 2 / requested 3, got %v / %v", resp["available"], resp["requested"])
		}
	})

	t.Run("unknown product returns 404", func(t *testing.T) {
		h := newTestHandler(t, &stubCatalog{snap: testSnapshot()}, &stubCheckout{}, &stubSessions{}, &stubOrders{})

		req := pathRequest(http.MethodPost, "/carts/t1/products/nope", "", map[string]string{
			"terminal": "t1", "productId": "nope",
		})
		rec := httptest.NewRecorder()

		h.HandleAddProduct(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleApplyDiscount(t *testing.T) {
	t.Run("negative discount returns 400", func(t *testing.T) {
		h := newTestHandler(t, &stubCatalog{snap: testSnapshot()}, &stubCheckout{}, &stubSessions{}, &stubOrders{})

		req := pathRequest(http.MethodPut, "/carts/t1/discount", `{"amount":"-3"}`, map[string]string{
			"terminal": "t1",
		})
		rec := httptest.NewRecorder()

		h.HandleApplyDiscount(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("discount lowers the total", func(t *testing.T) {
		h := newTestHandler(t, &stubCatalog{snap: testSnapshot()}, &stubCheckout{}, &stubSessions{}, &stubOrders{})

		addReq := pathRequest(http.MethodPost, "/carts/t1/products/A", "", map[string]string{
			"terminal": "t1", "productId": "A",
		})
		h.HandleAddProduct(httptest.NewRecorder(), addReq)

		req := pathRequest(http.MethodPut, "/carts/t1/discount", `{"amount":"4"}`, map[string]string{
			"terminal": "t1",
		})
		rec := httptest.NewRecorder()
		h.HandleApplyDiscount(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}

		var view cartView
		if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !view.Total.Equal(dec("6")) {
			t.Errorf("expected total 6, got %s", view.Total)
		}
	})
}

func TestHandler_HandleCheckout(t *testing.T) {
	checkoutBody := `{"order_type":"takeaway","payments":[{"method":"cash","amount":"10"}]}`

	t.Run("committed sale returns the receipt and clears the cart", func(t *testing.T) {
		svc := &stubCheckout{receipt: domain.Receipt{OrderID: "o1", TicketNumber: 3}}
		h := newTestHandler(t, &stubCatalog{snap: testSnapshot()}, svc, &stubSessions{}, &stubOrders{})

		addReq := pathRequest(http.MethodPost, "/carts/t1/products/A", "", map[string]string{
			"terminal": "t1", "productId": "A",
		})
		h.HandleAddProduct(httptest.NewRecorder(), addReq)

		req := pathRequest(http.MethodPost, "/carts/t1/checkout", checkoutBody, map[string]string{
			"terminal": "t1",
		})
		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var receipt domain.Receipt
		if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if receipt.OrderID != "o1" || receipt.TicketNumber != 3 {
			t.Errorf("unexpected receipt: %+v", receipt)
		}

		getReq := pathRequest(http.MethodGet, "/carts/t1", "", map[string]string{"terminal": "t1"})
		getRec := httptest.NewRecorder()
		h.HandleGetCart(getRec, getReq)

		var view cartView
		if err := json.NewDecoder(getRec.Body).Decode(&view); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(view.Lines) != 0 {
			t.Errorf("expected empty cart after checkout, got %d lines", len(view.Lines))
		}
	})

	t.Run("no open session returns 409", func(t *testing.T) {
		svc := &stubCheckout{err: checkout.ErrNoOpenSession}
		h := newTestHandler(t, &stubCatalog{snap: testSnapshot()}, svc, &stubSessions{}, &stubOrders{})

		req := pathRequest(http.MethodPost, "/carts/t1/checkout", checkoutBody, map[string]string{
			"terminal": "t1",
		})
		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})

	t.Run("payment mismatch returns 422 with both totals", func(t *testing.T) {
		svc := &stubCheckout{err: &checkout.PaymentMismatchError{
			Expected: dec("20"),
			Provided: dec("19.99"),
		}}
		h := newTestHandler(t, &stubCatalog{snap: testSnapshot()}, svc, &stubSessions{}, &stubOrders{})

		req := pathRequest(http.MethodPost, "/carts/t1/checkout", checkoutBody, map[string]string{
			"terminal": "t1",
		})
		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, req)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status 422, got %d", rec.Code)
		}

		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["expected"] != "20" || resp["provided"] != "19.99" {
			t.Errorf("expected 20 / 19.99, got %v / %v", resp["expected"], resp["provided"])
		}
	})

	t.Run("partial commit is distinguishable from a plain failure", func(t *testing.T) {
		svc := &stubCheckout{err: orders.ErrPartialCommit}
		h := newTestHandler(t, &stubCatalog{snap: testSnapshot()}, svc, &stubSessions{}, &stubOrders{})

		req := pathRequest(http.MethodPost, "/carts/t1/checkout", checkoutBody, map[string]string{
			"terminal": "t1",
		})
		rec := httptest.NewRecorder()
		h.HandleCheckout(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "partial_commit" {
			t.Errorf("expected partial_commit, got %s", resp["error"])
		}
	})
}

func TestHandler_Sessions(t *testing.T) {
	t.Run("current session 404 when none open", func(t *testing.T) {
		h := newTestHandler(t, &stubCatalog{snap: testSnapshot()}, &stubCheckout{}, &stubSessions{session: nil}, &stubOrders{})

		req := pathRequest(http.MethodGet, "/sessions/t1", "", map[string]string{"terminal": "t1"})
		rec := httptest.NewRecorder()
		h.HandleCurrentSession(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("negative opening float returns 400", func(t *testing.T) {
		h := newTestHandler(t, &stubCatalog{snap: testSnapshot()}, &stubCheckout{}, &stubSessions{}, &stubOrders{})

		req := pathRequest(http.MethodPost, "/sessions/t1/open", `{"opening_float":"-10"}`, map[string]string{
			"terminal": "t1",
		})
		rec := httptest.NewRecorder()
		h.HandleOpenSession(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}
