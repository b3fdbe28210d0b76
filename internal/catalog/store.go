package catalog

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/feliperosa/pos-cart-engine/internal/domain"
)

// Store reads the catalog from Postgres. The engine treats the catalog as
// read-only: stock accounting happens outside this service, so a snapshot is
// fetched before every cart mutation and again right before checkout.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FetchSnapshot(ctx context.Context) (domain.Snapshot, error) {
	products, err := s.fetchProducts(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}

	combos, err := s.fetchCombos(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}

	return domain.NewSnapshot(products, combos), nil
}

// ProductsByID loads the current state of the given products. Used by the
// stock watcher to re-read levels after a sale.
func (s *Store) ProductsByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit_price, tracks_stock, available_stock, min_stock_threshold
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanProducts(rows)
}

func (s *Store) fetchProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit_price, tracks_stock, available_stock, min_stock_threshold
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanProducts(rows)
}

func (s *Store) fetchCombos(ctx context.Context) ([]domain.ComboDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, unit_price, time_limited
		FROM combos
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	comboMap := make(map[string]*domain.ComboDefinition)
	var comboIDs []string

	for rows.Next() {
		var combo domain.ComboDefinition
		if err := rows.Scan(&combo.ID, &combo.Name, &combo.UnitPrice, &combo.TimeLimited); err != nil {
			return nil, err
		}
		comboMap[combo.ID] = &combo
		comboIDs = append(comboIDs, combo.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(comboIDs) == 0 {
		return nil, nil
	}

	compRows, err := s.db.QueryContext(ctx, `
		SELECT combo_id, product_id, quantity
		FROM combo_components
		WHERE combo_id = ANY($1)
		ORDER BY combo_id, position
	`, pq.Array(comboIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = compRows.Close() }()

	for compRows.Next() {
		var comboID string
		var comp domain.ComboComponent
		if err := compRows.Scan(&comboID, &comp.ProductID, &comp.Quantity); err != nil {
			return nil, err
		}
		combo := comboMap[comboID]
		combo.Components = append(combo.Components, comp)
	}
	if err := compRows.Err(); err != nil {
		return nil, err
	}

	combos := make([]domain.ComboDefinition, 0, len(comboIDs))
	for _, id := range comboIDs {
		combos = append(combos, *comboMap[id])
	}

	return combos, nil
}

func scanProducts(rows *sql.Rows) ([]domain.Product, error) {
	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.TracksStock,
			&p.AvailableStock, &p.MinStockThreshold); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}
