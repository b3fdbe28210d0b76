package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/feliperosa/pos-cart-engine/internal/domain"
)

var (
	ErrAlreadyOpen = errors.New("cash session already open for terminal")
	ErrNotOpen     = errors.New("no open cash session for terminal")
)

// Store manages cash register sessions. A terminal has at most one open
// session; checkout consults Current as its gate.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Open(ctx context.Context, terminal string, openingFloat decimal.Decimal) (*domain.CashSession, error) {
	current, err := s.Current(ctx, terminal)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, ErrAlreadyOpen
	}

	sess := &domain.CashSession{
		ID:           uuid.New().String(),
		Terminal:     terminal,
		OpeningFloat: openingFloat,
		OpenedAt:     time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cash_sessions (id, terminal, opening_float, opened_at)
		VALUES ($1, $2, $3, $4)
	`, sess.ID, sess.Terminal, sess.OpeningFloat, sess.OpenedAt)
	if err != nil {
		return nil, err
	}

	return sess, nil
}

// Current returns the open session of the terminal, or nil when none is
// open.
func (s *Store) Current(ctx context.Context, terminal string) (*domain.CashSession, error) {
	sess := &domain.CashSession{}

	err := s.db.QueryRowContext(ctx, `
		SELECT id, terminal, opening_float, opened_at
		FROM cash_sessions
		WHERE terminal = $1 AND closed_at IS NULL
	`, terminal).Scan(&sess.ID, &sess.Terminal, &sess.OpeningFloat, &sess.OpenedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return sess, nil
}

// IsOpen reports whether the terminal has an open session.
func (s *Store) IsOpen(ctx context.Context, terminal string) (bool, error) {
	sess, err := s.Current(ctx, terminal)
	if err != nil {
		return false, err
	}
	return sess != nil, nil
}

// Close ends the terminal's open session, computing expected cash from the
// opening float plus the cash payments recorded against the session, and
// the variance against the counted drawer.
func (s *Store) Close(ctx context.Context, terminal string, counted decimal.Decimal) (*domain.CashSession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	sess := &domain.CashSession{CountedCash: counted}

	err = tx.QueryRowContext(ctx, `
		SELECT id, terminal, opening_float, opened_at
		FROM cash_sessions
		WHERE terminal = $1 AND closed_at IS NULL
		FOR UPDATE
	`, terminal).Scan(&sess.ID, &sess.Terminal, &sess.OpeningFloat, &sess.OpenedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotOpen
		}
		return nil, err
	}

	var cashTaken decimal.Decimal
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE o.session_id = $1 AND p.method = $2
	`, sess.ID, domain.PaymentMethodCash).Scan(&cashTaken)
	if err != nil {
		return nil, err
	}

	sess.ExpectedCash, sess.Variance = Reconcile(sess.OpeningFloat, cashTaken, counted)

	closedAt := time.Now().UTC()
	sess.ClosedAt = &closedAt

	_, err = tx.ExecContext(ctx, `
		UPDATE cash_sessions
		SET closed_at = $2, counted_cash = $3, expected_cash = $4, variance = $5
		WHERE id = $1
	`, sess.ID, closedAt, counted, sess.ExpectedCash, sess.Variance)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return sess, nil
}
