package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/feliperosa/pos-cart-engine/internal/domain"
)

// ErrPartialCommit marks an ambiguous submit outcome: the transaction was
// sent but its result was lost, so the order may or may not exist. It is
// surfaced as-is to the caller and never silently retried here.
var ErrPartialCommit = errors.New("order commit outcome unknown")

// Sale is a committed order read back from the store.
type Sale struct {
	ID           string             `json:"id"`
	TicketNumber int                `json:"ticket_number"`
	SessionID    string             `json:"session_id"`
	Type         domain.OrderType   `json:"type"`
	Subtotal     decimal.Decimal    `json:"subtotal"`
	Discount     decimal.Decimal    `json:"discount"`
	ExtraCharge  decimal.Decimal    `json:"extra_charge"`
	Total        decimal.Decimal    `json:"total"`
	Lines        []domain.DraftLine `json:"lines"`
	Payments     []domain.Payment   `json:"payments"`
	CreatedAt    time.Time          `json:"created_at"`
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Submit persists the draft, its lines and its payments in one transaction
// and assigns the next per-day ticket number inside that transaction. The
// store never mutates catalog stock; stock accounting stays with the
// catalog owner.
func (s *Store) Submit(ctx context.Context, draft domain.OrderDraft, payments []domain.Payment, sessionID string) (domain.Receipt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Receipt{}, err
	}
	defer func() { _ = tx.Rollback() }()

	orderID := uuid.New().String()

	var ticket int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (id, session_id, order_type, subtotal, discount, extra_charge, total, sale_date, ticket_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_DATE,
			(SELECT COALESCE(MAX(ticket_number), 0) + 1 FROM orders WHERE sale_date = CURRENT_DATE),
			NOW())
		RETURNING ticket_number
	`, orderID, sessionID, draft.Type, draft.Subtotal, draft.Discount, draft.ExtraCharge, draft.Total).Scan(&ticket)
	if err != nil {
		return domain.Receipt{}, err
	}

	for i, line := range draft.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (id, order_id, position, kind, product_id, combo_id, name, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, uuid.New().String(), orderID, i, line.Kind,
			nullIfEmpty(line.ProductID), nullIfEmpty(line.ComboID),
			line.Name, line.Quantity, line.UnitPrice, line.LineTotal)
		if err != nil {
			return domain.Receipt{}, err
		}
	}

	for _, p := range payments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payments (id, order_id, method, amount, reference)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New().String(), orderID, p.Method, p.Amount, nullIfEmpty(p.Reference))
		if err != nil {
			return domain.Receipt{}, err
		}
	}

	// Errors before this point rolled the transaction back cleanly. A
	// failed commit is different: the server may have applied it before
	// the result was lost, so report the ambiguity instead of a plain
	// failure.
	if err := tx.Commit(); err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: %v", ErrPartialCommit, err)
	}

	return domain.Receipt{OrderID: orderID, TicketNumber: ticket}, nil
}

// GetByID returns the committed sale, or nil when no such order exists.
func (s *Store) GetByID(ctx context.Context, id string) (*Sale, error) {
	sale := &Sale{ID: id}

	err := s.db.QueryRowContext(ctx, `
		SELECT ticket_number, session_id, order_type, subtotal, discount, extra_charge, total, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&sale.TicketNumber, &sale.SessionID, &sale.Type,
		&sale.Subtotal, &sale.Discount, &sale.ExtraCharge, &sale.Total, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COALESCE(product_id, ''), COALESCE(combo_id, ''), name, quantity, unit_price, line_total
		FROM order_lines
		WHERE order_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var line domain.DraftLine
		if err := rows.Scan(&line.Kind, &line.ProductID, &line.ComboID,
			&line.Name, &line.Quantity, &line.UnitPrice, &line.LineTotal); err != nil {
			return nil, err
		}
		sale.Lines = append(sale.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	payRows, err := s.db.QueryContext(ctx, `
		SELECT method, amount, COALESCE(reference, '')
		FROM payments
		WHERE order_id = $1
		ORDER BY method
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = payRows.Close() }()

	for payRows.Next() {
		var p domain.Payment
		if err := payRows.Scan(&p.Method, &p.Amount, &p.Reference); err != nil {
			return nil, err
		}
		sale.Payments = append(sale.Payments, p)
	}
	if err := payRows.Err(); err != nil {
		return nil, err
	}

	return sale, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
