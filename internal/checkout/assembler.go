package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/feliperosa/pos-cart-engine/internal/cart"
	"github.com/feliperosa/pos-cart-engine/internal/domain"
)

// SessionGate reports the currently open cash session of a terminal, or nil
// when none is open. Checkout is only permitted while a session is open.
type SessionGate interface {
	Current(ctx context.Context, terminal string) (*domain.CashSession, error)
}

// CatalogSource provides a fresh catalog snapshot. The assembler always
// re-fetches at checkout time instead of trusting the snapshot the cart
// lines were admitted against.
type CatalogSource interface {
	FetchSnapshot(ctx context.Context) (domain.Snapshot, error)
}

// OrderStore persists an order draft and its payments as one atomic
// creation. Implementations must either fully apply or fully roll back; an
// ambiguous outcome is reported via orders.ErrPartialCommit.
type OrderStore interface {
	Submit(ctx context.Context, draft domain.OrderDraft, payments []domain.Payment, sessionID string) (domain.Receipt, error)
}

// Publisher emits the sale.completed event after a successful commit.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Request struct {
	Terminal    string
	OrderType   domain.OrderType
	ExtraCharge decimal.Decimal
	Payments    []domain.Payment
}

// Assembler converts a validated cart into a persisted order plus payments.
// Every failure path leaves the cart intact so the sale can be adjusted and
// retried without re-entering items.
type Assembler struct {
	gate     SessionGate
	catalog  CatalogSource
	store    OrderStore
	producer Publisher
	logger   *slog.Logger
}

func NewAssembler(gate SessionGate, catalog CatalogSource, store OrderStore, producer Publisher, logger *slog.Logger) *Assembler {
	return &Assembler{
		gate:     gate,
		catalog:  catalog,
		store:    store,
		producer: producer,
		logger:   logger,
	}
}

// Checkout runs a single checkout attempt:
//
//	Validating -> Assembled -> Submitting -> Committed
//
// Cancellation via ctx is honored up to the point the submit is issued; once
// the store call is in flight the attempt runs to its outcome. On success
// the cart is cleared and the receipt returned; on any failure the cart is
// untouched and the typed reason is returned to the caller. Nothing is
// retried here.
func (a *Assembler) Checkout(ctx context.Context, c *cart.Cart, req Request) (domain.Receipt, error) {
	session, err := a.gate.Current(ctx, req.Terminal)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("check cash session: %w", err)
	}
	if session == nil {
		return domain.Receipt{}, ErrNoOpenSession
	}

	if c.IsEmpty() {
		return domain.Receipt{}, ErrEmptyCart
	}
	if req.ExtraCharge.Sign() < 0 {
		return domain.Receipt{}, ErrNegativeExtraCharge
	}

	// Revalidate stock against a fresh snapshot: catalog state may have
	// changed since the lines were admitted (another terminal sold the
	// last unit). A shortfall here is an ordinary rejection.
	snap, err := a.catalog.FetchSnapshot(ctx)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("fetch catalog snapshot: %w", err)
	}
	lines := c.Lines()
	if err := cart.Validate(lines, snap); err != nil {
		return domain.Receipt{}, err
	}

	finalTotal := c.Total().Add(req.ExtraCharge)

	provided := decimal.Decimal{}
	for _, p := range req.Payments {
		provided = provided.Add(p.Amount)
	}
	if !provided.Equal(finalTotal) {
		return domain.Receipt{}, &PaymentMismatchError{Expected: finalTotal, Provided: provided}
	}

	draft := buildDraft(c, req, finalTotal)

	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, err
	}

	receipt, err := a.store.Submit(ctx, draft, req.Payments, session.ID)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("submit order: %w", err)
	}

	a.publishCompleted(ctx, receipt, session, req.Terminal, finalTotal, lines, snap)

	c.Clear()
	return receipt, nil
}

// buildDraft produces the immutable order draft: one item per cart line plus
// a synthetic extra-charge item when a surcharge applies.
func buildDraft(c *cart.Cart, req Request, finalTotal decimal.Decimal) domain.OrderDraft {
	lines := c.Lines()
	draftLines := make([]domain.DraftLine, 0, len(lines)+1)
	for _, line := range lines {
		kind := domain.DraftLineProduct
		if line.Kind == cart.LineKindCombo {
			kind = domain.DraftLineCombo
		}
		draftLines = append(draftLines, domain.DraftLine{
			Kind:      kind,
			ProductID: line.ProductID,
			ComboID:   line.ComboID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.Total(),
		})
	}

	if req.ExtraCharge.Sign() > 0 {
		draftLines = append(draftLines, domain.DraftLine{
			Kind:      domain.DraftLineExtra,
			Name:      "extra charge",
			Quantity:  decimal.NewFromInt(1),
			UnitPrice: req.ExtraCharge,
			LineTotal: req.ExtraCharge,
		})
	}

	return domain.OrderDraft{
		Lines:       draftLines,
		Subtotal:    c.Subtotal(),
		Discount:    c.Discount(),
		ExtraCharge: req.ExtraCharge,
		Total:       finalTotal,
		Type:        req.OrderType,
	}
}

// publishCompleted emits sale.completed with combo components expanded into
// per-product sold quantities. Publish failures are logged, never surfaced:
// the sale is already committed.
func (a *Assembler) publishCompleted(ctx context.Context, receipt domain.Receipt, session *domain.CashSession, terminal string, total decimal.Decimal, lines []cart.Line, snap domain.Snapshot) {
	if a.producer == nil {
		return
	}

	demand := cart.Demand(lines, snap)
	items := make([]domain.SoldItem, 0, len(demand))
	for productID, qty := range demand {
		items = append(items, domain.SoldItem{ProductID: productID, Quantity: qty})
	}

	event := domain.SaleCompletedEvent{
		OrderID:      receipt.OrderID,
		TicketNumber: receipt.TicketNumber,
		SessionID:    session.ID,
		Terminal:     terminal,
		Total:        total,
		Items:        items,
		Timestamp:    time.Now().UTC(),
	}
	if err := a.producer.Publish(ctx, terminal, event); err != nil {
		a.logger.Error("failed to publish sale completed event", "error", err, "order_id", receipt.OrderID)
	}
}
