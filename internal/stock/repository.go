package stock

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockmaster/stockmaster/internal/platform/db"
)

// Repository reads the ledger outside document transactions and hosts the
// manual change operation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns ledger rows joined with product and location names.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Detail, error) {
	query := `SELECT s.id, s.product_id, s.location_id, s.warehouse_id, s.quantity, s.reserved, s.updated_at,
p.sku, p.name, l.code, l.name, w.code, w.name
FROM stocks s
JOIN products p ON p.id = s.product_id
JOIN locations l ON l.id = s.location_id
JOIN warehouses w ON w.id = s.warehouse_id
WHERE 1=1`
	args := []any{}
	if filter.WarehouseID > 0 {
		args = append(args, filter.WarehouseID)
		query += ` AND s.warehouse_id = $` + strconv.Itoa(len(args))
	}
	if filter.ProductID > 0 {
		args = append(args, filter.ProductID)
		query += ` AND s.product_id = $` + strconv.Itoa(len(args))
	}
	if filter.LocationID > 0 {
		args = append(args, filter.LocationID)
		query += ` AND s.location_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY w.code, l.code, p.sku`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := []Detail{}
	for rows.Next() {
		var d Detail
		if err := rows.Scan(&d.ID, &d.ProductID, &d.LocationID, &d.WarehouseID, &d.Quantity, &d.Reserved, &d.UpdatedAt,
			&d.ProductSKU, &d.ProductName, &d.LocationCode, &d.LocationName, &d.WarehouseCode, &d.WarehouseName); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// Available returns quantity minus reserved for the key, zero when absent.
func (r *Repository) Available(ctx context.Context, key Key) (int64, error) {
	var available int64
	err := r.pool.QueryRow(ctx, `SELECT quantity - reserved FROM stocks
WHERE product_id=$1 AND location_id=$2 AND warehouse_id=$3`,
		key.ProductID, key.LocationID, key.WarehouseID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return available, nil
}

// Change applies a signed manual quantity change inside one transaction.
// A missing row is created with the positive part of the change.
func (r *Repository) Change(ctx context.Context, req ChangeRequest) (Stock, error) {
	var result Stock
	key := Key{ProductID: req.ProductID, LocationID: req.LocationID, WarehouseID: req.WarehouseID}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		ledger := NewLedger(tx)
		row, err := ledger.GetForUpdate(ctx, key)
		if err != nil {
			if !errors.Is(err, ErrStockNotFound) {
				return err
			}
			initial := req.QuantityChange
			if initial < 0 {
				initial = 0
			}
			if err := ledger.SetAbsolute(ctx, key, initial); err != nil {
				return err
			}
			result, err = ledger.GetForUpdate(ctx, key)
			return err
		}
		newQty := row.Quantity + req.QuantityChange
		if newQty < 0 {
			return ErrInsufficientStock
		}
		if _, err := tx.Exec(ctx, `UPDATE stocks SET quantity=$1, updated_at=NOW() WHERE id=$2`, newQty, row.ID); err != nil {
			return err
		}
		result, err = ledger.GetForUpdate(ctx, key)
		return err
	})
	if err != nil {
		return Stock{}, err
	}
	return result, nil
}
