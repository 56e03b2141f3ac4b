package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the aggregation queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Counts(ctx context.Context) (Counts, error) {
	var counts Counts
	err := r.pool.QueryRow(ctx, `SELECT
(SELECT COUNT(*) FROM products WHERE is_active),
(SELECT COUNT(*) FROM warehouses),
(SELECT COUNT(*) FROM locations)`).
		Scan(&counts.Products, &counts.Warehouses, &counts.Locations)
	return counts, err
}

func (r *Repository) DocumentCounts(ctx context.Context) ([]DocumentCount, error) {
	rows, err := r.pool.Query(ctx, `SELECT 'receipt', status, COUNT(*) FROM receipts GROUP BY status
UNION ALL SELECT 'delivery', status, COUNT(*) FROM deliveries GROUP BY status
UNION ALL SELECT 'transfer', status, COUNT(*) FROM transfers GROUP BY status
UNION ALL SELECT 'adjustment', status, COUNT(*) FROM adjustments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []DocumentCount{}
	for rows.Next() {
		var c DocumentCount
		if err := rows.Scan(&c.Kind, &c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *Repository) LowStock(ctx context.Context, limit int) ([]LowStockItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.sku, p.name, COALESCE(SUM(s.quantity), 0) AS on_hand, p.min_stock
FROM products p
LEFT JOIN stocks s ON s.product_id = p.id
WHERE p.is_active AND p.min_stock > 0
GROUP BY p.id, p.sku, p.name, p.min_stock
HAVING COALESCE(SUM(s.quantity), 0) <= p.min_stock
ORDER BY on_hand ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []LowStockItem{}
	for rows.Next() {
		var item LowStockItem
		if err := rows.Scan(&item.ProductID, &item.SKU, &item.Name, &item.OnHand, &item.MinStock); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) RecentMoves(ctx context.Context, limit int) ([]RecentMove, error) {
	rows, err := r.pool.Query(ctx, `SELECT m.id,
COALESCE(rc.reference, dl.reference, tr.reference, ad.reference),
p.sku, m.quantity, m.type, m.status, m.created_at
FROM stock_moves m
JOIN products p ON p.id = m.product_id
LEFT JOIN receipts rc ON rc.id = m.receipt_id
LEFT JOIN deliveries dl ON dl.id = m.delivery_id
LEFT JOIN transfers tr ON tr.id = m.transfer_id
LEFT JOIN adjustments ad ON ad.id = m.adjustment_id
ORDER BY m.created_at DESC, m.id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	moves := []RecentMove{}
	for rows.Next() {
		var move RecentMove
		if err := rows.Scan(&move.ID, &move.Reference, &move.SKU, &move.Quantity, &move.Type, &move.Status, &move.CreatedAt); err != nil {
			return nil, err
		}
		moves = append(moves, move)
	}
	return moves, rows.Err()
}
