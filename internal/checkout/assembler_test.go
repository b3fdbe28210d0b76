package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feliperosa/pos-cart-engine/internal/cart"
	"github.com/feliperosa/pos-cart-engine/internal/domain"
	"github.com/feliperosa/pos-cart-engine/internal/orders"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeGate struct {
	session *domain.CashSession
	err     error
}

func (f *fakeGate) Current(_ context.Context, _ string) (*domain.CashSession, error) {
	return f.session, f.err
}

type fakeCatalog struct {
	snap domain.Snapshot
	err  error
}

func (f *fakeCatalog) FetchSnapshot(_ context.Context) (domain.Snapshot, error) {
	return f.snap, f.err
}

type fakeStore struct {
	receipt      domain.Receipt
	err          error
	calls        int
	lastDraft    domain.OrderDraft
	lastPayments []domain.Payment
	lastSession  string
}

func (f *fakeStore) Submit(_ context.Context, draft domain.OrderDraft, payments []domain.Payment, sessionID string) (domain.Receipt, error) {
	f.calls++
	f.lastDraft = draft
	f.lastPayments = payments
	f.lastSession = sessionID
	return f.receipt, f.err
}

type fakePublisher struct {
	events []any
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event any) error {
	f.events = append(f.events, event)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openSession() *domain.CashSession {
	return &domain.CashSession{
		ID:           "sess-1",
		Terminal:     "t1",
		OpeningFloat: dec("100"),
		OpenedAt:     time.Now().UTC(),
	}
}

// Product A: price 10, stock 5. Combo B: price 15, requires 2xA.
func testSnapshot() domain.Snapshot {
	return domain.NewSnapshot(
		[]domain.Product{{
			ID: "A", Name: "product A", UnitPrice: dec("10"),
			TracksStock: true, AvailableStock: dec("5"),
		}},
		[]domain.ComboDefinition{{
			ID: "B", Name: "combo B", UnitPrice: dec("15"),
			Components: []domain.ComboComponent{{ProductID: "A", Quantity: dec("2")}},
		}},
	)
}

func cartWith(t *testing.T, snap domain.Snapshot, build func(c *cart.Cart) error) *cart.Cart {
	t.Helper()
	c := cart.New()
	require.NoError(t, build(c))
	return c
}

func TestAssembler_Checkout(t *testing.T) {
	t.Run("full sale: product, combo, discount, cash payment", func(t *testing.T) {
		snap := testSnapshot()
		c := cartWith(t, snap, func(c *cart.Cart) error {
			if err := c.AddProduct(snap, "A"); err != nil {
				return err
			}
			if err := c.AddCombo(snap, "B"); err != nil {
				return err
			}
			return c.ApplyDiscount(dec("5"))
		})
		require.True(t, c.Total().Equal(dec("20")))

		store := &fakeStore{receipt: domain.Receipt{OrderID: "o1", TicketNumber: 42}}
		pub := &fakePublisher{}
		a := NewAssembler(&fakeGate{session: openSession()}, &fakeCatalog{snap: snap}, store, pub, testLogger())

		receipt, err := a.Checkout(context.Background(), c, Request{
			Terminal:  "t1",
			OrderType: domain.OrderTypeTakeaway,
			Payments:  []domain.Payment{{Method: domain.PaymentMethodCash, Amount: dec("20")}},
		})

		require.NoError(t, err)
		assert.Equal(t, "o1", receipt.OrderID)
		assert.Equal(t, 42, receipt.TicketNumber)
		assert.True(t, c.IsEmpty(), "cart is cleared after a committed sale")

		require.Equal(t, 1, store.calls)
		assert.Equal(t, "sess-1", store.lastSession)
		assert.True(t, store.lastDraft.Subtotal.Equal(dec("25")))
		assert.True(t, store.lastDraft.Discount.Equal(dec("5")))
		assert.True(t, store.lastDraft.Total.Equal(dec("20")))
		require.Len(t, store.lastDraft.Lines, 2)
		assert.Equal(t, domain.DraftLineProduct, store.lastDraft.Lines[0].Kind)
		assert.Equal(t, domain.DraftLineCombo, store.lastDraft.Lines[1].Kind)

		require.Len(t, pub.events, 1)
		event, ok := pub.events[0].(domain.SaleCompletedEvent)
		require.True(t, ok)
		assert.Equal(t, "o1", event.OrderID)
		require.Len(t, event.Items, 1)
		assert.Equal(t, "A", event.Items[0].ProductID)
		assert.True(t, event.Items[0].Quantity.Equal(dec("3")), "1 direct + 2 combo-embedded")
	})

	t.Run("no open session rejects before anything reaches the store", func(t *testing.T) {
		snap := testSnapshot()
		c := cartWith(t, snap, func(c *cart.Cart) error { return c.AddProduct(snap, "A") })

		store := &fakeStore{}
		a := NewAssembler(&fakeGate{session: nil}, &fakeCatalog{snap: snap}, store, nil, testLogger())

		_, err := a.Checkout(context.Background(), c, Request{
			Terminal: "t1",
			Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: dec("10")}},
		})

		assert.ErrorIs(t, err, ErrNoOpenSession)
		assert.Equal(t, 0, store.calls)
		assert.Len(t, c.Lines(), 1)
	})

	t.Run("empty cart", func(t *testing.T) {
		a := NewAssembler(&fakeGate{session: openSession()}, &fakeCatalog{snap: testSnapshot()}, &fakeStore{}, nil, testLogger())

		_, err := a.Checkout(context.Background(), cart.New(), Request{Terminal: "t1"})
		assert.ErrorIs(t, err, ErrEmptyCart)
	})

	t.Run("stale stock is caught by checkout revalidation", func(t *testing.T) {
		snap := testSnapshot()
		c := cartWith(t, snap, func(c *cart.Cart) error {
			for i := 0; i < 3; i++ {
				if err := c.AddProduct(snap, "A"); err != nil {
					return err
				}
			}
			return nil
		})

		// another terminal sold three units: only 2 left now
		fresh := domain.NewSnapshot([]domain.Product{{
			ID: "A", Name: "product A", UnitPrice: dec("10"),
			TracksStock: true, AvailableStock: dec("2"),
		}}, nil)

		store := &fakeStore{}
		a := NewAssembler(&fakeGate{session: openSession()}, &fakeCatalog{snap: fresh}, store, nil, testLogger())

		_, err := a.Checkout(context.Background(), c, Request{
			Terminal: "t1",
			Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: dec("30")}},
		})

		var insufficient *cart.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		assert.True(t, insufficient.Available.Equal(dec("2")))
		assert.True(t, insufficient.Requested.Equal(dec("3")))
		assert.Equal(t, 0, store.calls)
		assert.Len(t, c.Lines(), 1, "cart left intact for the user to adjust")
	})

	t.Run("payment off by the smallest unit fails", func(t *testing.T) {
		snap := testSnapshot()
		c := cartWith(t, snap, func(c *cart.Cart) error { return c.AddProduct(snap, "A") })

		store := &fakeStore{}
		a := NewAssembler(&fakeGate{session: openSession()}, &fakeCatalog{snap: snap}, store, nil, testLogger())

		_, err := a.Checkout(context.Background(), c, Request{
			Terminal: "t1",
			Payments: []domain.Payment{{Method: domain.PaymentMethodCard, Amount: dec("9.99")}},
		})

		var mismatch *PaymentMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.True(t, mismatch.Expected.Equal(dec("10")))
		assert.True(t, mismatch.Provided.Equal(dec("9.99")))
		assert.Equal(t, 0, store.calls)
	})

	t.Run("split payments reconcile exactly", func(t *testing.T) {
		snap := testSnapshot()
		c := cartWith(t, snap, func(c *cart.Cart) error {
			if err := c.AddProduct(snap, "A"); err != nil {
				return err
			}
			return c.AddProduct(snap, "A")
		})

		store := &fakeStore{receipt: domain.Receipt{OrderID: "o2", TicketNumber: 7}}
		a := NewAssembler(&fakeGate{session: openSession()}, &fakeCatalog{snap: snap}, store, nil, testLogger())

		_, err := a.Checkout(context.Background(), c, Request{
			Terminal: "t1",
			Payments: []domain.Payment{
				{Method: domain.PaymentMethodCash, Amount: dec("12.50")},
				{Method: domain.PaymentMethodCard, Amount: dec("7.50"), Reference: "POS-123"},
			},
		})

		require.NoError(t, err)
		assert.Len(t, store.lastPayments, 2)
	})

	t.Run("extra charge adds a synthetic line and raises the total", func(t *testing.T) {
		snap := testSnapshot()
		c := cartWith(t, snap, func(c *cart.Cart) error { return c.AddProduct(snap, "A") })

		store := &fakeStore{receipt: domain.Receipt{OrderID: "o3", TicketNumber: 8}}
		a := NewAssembler(&fakeGate{session: openSession()}, &fakeCatalog{snap: snap}, store, nil, testLogger())

		_, err := a.Checkout(context.Background(), c, Request{
			Terminal:    "t1",
			OrderType:   domain.OrderTypeDelivery,
			ExtraCharge: dec("2"),
			Payments:    []domain.Payment{{Method: domain.PaymentMethodCash, Amount: dec("12")}},
		})

		require.NoError(t, err)
		require.Len(t, store.lastDraft.Lines, 2)
		extra := store.lastDraft.Lines[1]
		assert.Equal(t, domain.DraftLineExtra, extra.Kind)
		assert.True(t, extra.LineTotal.Equal(dec("2")))
		assert.True(t, store.lastDraft.Total.Equal(dec("12")))
	})

	t.Run("negative extra charge is rejected", func(t *testing.T) {
		snap := testSnapshot()
		c := cartWith(t, snap, func(c *cart.Cart) error { return c.AddProduct(snap, "A") })
		a := NewAssembler(&fakeGate{session: openSession()}, &fakeCatalog{snap: snap}, &fakeStore{}, nil, testLogger())

		_, err := a.Checkout(context.Background(), c, Request{
			Terminal:    "t1",
			ExtraCharge: dec("-1"),
			Payments:    []domain.Payment{{Method: domain.PaymentMethodCash, Amount: dec("9")}},
		})
		assert.ErrorIs(t, err, ErrNegativeExtraCharge)
	})

	t.Run("store failure leaves the cart intact", func(t *testing.T) {
		snap := testSnapshot()
		c := cartWith(t, snap, func(c *cart.Cart) error { return c.AddProduct(snap, "A") })

		storeErr := errors.New("connection reset")
		a := NewAssembler(&fakeGate{session: openSession()}, &fakeCatalog{snap: snap}, &fakeStore{err: storeErr}, nil, testLogger())

		_, err := a.Checkout(context.Background(), c, Request{
			Terminal: "t1",
			Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: dec("10")}},
		})

		assert.ErrorIs(t, err, storeErr)
		assert.Len(t, c.Lines(), 1, "sale can be retried without re-entering items")
	})

	t.Run("partial commit is surfaced distinguishably", func(t *testing.T) {
		snap := testSnapshot()
		c := cartWith(t, snap, func(c *cart.Cart) error { return c.AddProduct(snap, "A") })

		a := NewAssembler(&fakeGate{session: openSession()}, &fakeCatalog{snap: snap},
			&fakeStore{err: orders.ErrPartialCommit}, nil, testLogger())

		_, err := a.Checkout(context.Background(), c, Request{
			Terminal: "t1",
			Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: dec("10")}},
		})

		assert.ErrorIs(t, err, orders.ErrPartialCommit)
		assert.Len(t, c.Lines(), 1)
	})

	t.Run("cancellation before submission is honored", func(t *testing.T) {
		snap := testSnapshot()
		c := cartWith(t, snap, func(c *cart.Cart) error { return c.AddProduct(snap, "A") })

		store := &fakeStore{}
		a := NewAssembler(&fakeGate{session: openSession()}, &fakeCatalog{snap: snap}, store, nil, testLogger())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := a.Checkout(ctx, c, Request{
			Terminal: "t1",
			Payments: []domain.Payment{{Method: domain.PaymentMethodCash, Amount: dec("10")}},
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, store.calls)
		assert.Len(t, c.Lines(), 1)
	})
}
