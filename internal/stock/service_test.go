package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockmaster/stockmaster/internal/shared"
)

type memRepo struct {
	rows   map[Key]*Stock
	nextID int64
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[Key]*Stock{}, nextID: 1}
}

func (m *memRepo) List(ctx context.Context, filter ListFilter) ([]Detail, error) {
	out := []Detail{}
	for key, row := range m.rows {
		if filter.WarehouseID > 0 && key.WarehouseID != filter.WarehouseID {
			continue
		}
		out = append(out, Detail{Stock: *row})
	}
	return out, nil
}

func (m *memRepo) Change(ctx context.Context, req ChangeRequest) (Stock, error) {
	key := Key{ProductID: req.ProductID, LocationID: req.LocationID, WarehouseID: req.WarehouseID}
	row, ok := m.rows[key]
	if !ok {
		initial := req.QuantityChange
		if initial < 0 {
			initial = 0
		}
		row = &Stock{ID: m.nextID, ProductID: key.ProductID, LocationID: key.LocationID, WarehouseID: key.WarehouseID, Quantity: initial}
		m.nextID++
		m.rows[key] = row
		return *row, nil
	}
	newQty := row.Quantity + req.QuantityChange
	if newQty < 0 {
		return Stock{}, ErrInsufficientStock
	}
	row.Quantity = newQty
	return *row, nil
}

type memAudit struct {
	entries []shared.AuditLog
}

func (m *memAudit) Record(ctx context.Context, log shared.AuditLog) error {
	m.entries = append(m.entries, log)
	return nil
}

func TestChangeCreatesRowClampedAtZero(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)

	row, err := svc.Change(context.Background(), ChangeRequest{ProductID: 7, LocationID: 3, WarehouseID: 1, QuantityChange: -5})
	require.NoError(t, err)
	require.EqualValues(t, 0, row.Quantity)
}

func TestChangeRefusesNegativeResult(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil)

	_, err := svc.Change(context.Background(), ChangeRequest{ProductID: 7, LocationID: 3, WarehouseID: 1, QuantityChange: 10})
	require.NoError(t, err)

	_, err = svc.Change(context.Background(), ChangeRequest{ProductID: 7, LocationID: 3, WarehouseID: 1, QuantityChange: -11})
	require.ErrorIs(t, err, ErrInsufficientStock)

	row, err := svc.Change(context.Background(), ChangeRequest{ProductID: 7, LocationID: 3, WarehouseID: 1, QuantityChange: -10})
	require.NoError(t, err)
	require.EqualValues(t, 0, row.Quantity)
}

func TestChangeRecordsAudit(t *testing.T) {
	repo := newMemRepo()
	audit := &memAudit{}
	svc := NewService(repo, audit)

	_, err := svc.Change(context.Background(), ChangeRequest{ProductID: 2, LocationID: 4, WarehouseID: 1, QuantityChange: 3})
	require.NoError(t, err)
	require.Len(t, audit.entries, 1)
	require.Equal(t, "stock:manual_change", audit.entries[0].Action)
}

func TestAvailableSubtractsReserved(t *testing.T) {
	s := Stock{Quantity: 10, Reserved: 4}
	require.EqualValues(t, 6, s.Available())
}
