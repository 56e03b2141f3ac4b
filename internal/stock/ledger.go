package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Ledger exposes the atomic ledger mutations. All methods run on the caller's
// transaction so document completion stays all-or-nothing.
type Ledger struct {
	tx pgx.Tx
}

// NewLedger binds ledger operations to a transaction.
func NewLedger(tx pgx.Tx) *Ledger {
	return &Ledger{tx: tx}
}

// Available returns quantity minus reserved for the key, zero when the row
// is absent. The read is not locking.
func (l *Ledger) Available(ctx context.Context, key Key) (int64, error) {
	var available int64
	err := l.tx.QueryRow(ctx, `SELECT quantity - reserved FROM stocks
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

// GetForUpdate locks and returns the ledger row for the key.
func (l *Ledger) GetForUpdate(ctx context.Context, key Key) (Stock, error) {
	var row Stock
	err := l.tx.QueryRow(ctx, `SELECT id, product_id, location_id, warehouse_id, quantity, reserved, updated_at
FROM stocks WHERE product_id=$1 AND location_id=$2 AND warehouse_id=$3 FOR UPDATE`,
		key.ProductID, key.LocationID, key.WarehouseID).
		Scan(&row.ID, &row.ProductID, &row.LocationID, &row.WarehouseID, &row.Quantity, &row.Reserved, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrStockNotFound
		}
		return Stock{}, err
	}
	return row, nil
}

// Increment adds delta to the row, creating it with reserved=0 when absent.
func (l *Ledger) Increment(ctx context.Context, key Key, delta int64) error {
	if delta <= 0 {
		return ErrInvalidDelta
	}
	_, err := l.tx.Exec(ctx, `INSERT INTO stocks (product_id, location_id, warehouse_id, quantity, reserved, updated_at)
VALUES ($1,$2,$3,$4,0,NOW())
ON CONFLICT (product_id, location_id, warehouse_id)
DO UPDATE SET quantity = stocks.quantity + EXCLUDED.quantity, updated_at=NOW()`,
		key.ProductID, key.LocationID, key.WarehouseID, delta)
	return err
}

// Decrement subtracts delta from an existing row. Fails with
// ErrInsufficientStock when the row is absent or holds less than delta.
func (l *Ledger) Decrement(ctx context.Context, key Key, delta int64) error {
	if delta <= 0 {
		return ErrInvalidDelta
	}
	row, err := l.GetForUpdate(ctx, key)
	if err != nil {
		if errors.Is(err, ErrStockNotFound) {
			return ErrInsufficientStock
		}
		return err
	}
	if row.Quantity < delta {
		return ErrInsufficientStock
	}
	_, err = l.tx.Exec(ctx, `UPDATE stocks SET quantity = quantity - $1, updated_at=NOW() WHERE id=$2`, delta, row.ID)
	return err
}

// SetAbsolute overwrites the row quantity, creating the row when absent.
// Used by adjustment completion where the move quantity is the target count.
func (l *Ledger) SetAbsolute(ctx context.Context, key Key, value int64) error {
	if value < 0 {
		return ErrInsufficientStock
	}
	_, err := l.tx.Exec(ctx, `INSERT INTO stocks (product_id, location_id, warehouse_id, quantity, reserved, updated_at)
VALUES ($1,$2,$3,$4,0,NOW())
ON CONFLICT (product_id, location_id, warehouse_id)
DO UPDATE SET quantity = EXCLUDED.quantity, updated_at=NOW()`,
		key.ProductID, key.LocationID, key.WarehouseID, value)
	return err
}
