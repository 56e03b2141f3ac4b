package documents

import (
	"context"

	"github.com/stockmaster/stockmaster/internal/stock"
)

// WarehouseRef is the slice of a warehouse the engine needs.
type WarehouseRef struct {
	ID   int64
	Code string
}

// LocationRef resolves a location to its owning warehouse.
type LocationRef struct {
	ID          int64
	Code        string
	WarehouseID int64
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, kind Kind, id int64) (Document, error)
	List(ctx context.Context, kind Kind, filter ListFilter) ([]Document, error)
	GetWarehouse(ctx context.Context, id int64) (WarehouseRef, error)
	GetLocation(ctx context.Context, id int64) (LocationRef, error)
	Available(ctx context.Context, key stock.Key) (int64, error)
	ListMoves(ctx context.Context, filter MoveFilter) ([]MoveDetail, error)
	GetMove(ctx context.Context, id int64) (MoveDetail, error)
}

// TxRepository exposes the transactional operations the state machine uses.
// All writes of one operation happen on the same transaction.
type TxRepository interface {
	NextReference(ctx context.Context, prefix string, year int) (string, error)
	Insert(ctx context.Context, doc *Document) error
	UpdateHeader(ctx context.Context, doc Document) error
	GetForUpdate(ctx context.Context, kind Kind, id int64) (Document, error)
	SetStatus(ctx context.Context, kind Kind, id int64, status Status) error
	ReplaceMoves(ctx context.Context, kind Kind, docID int64, moves []Move) error
	SetMovesStatus(ctx context.Context, kind Kind, docID int64, status Status) error
	Delete(ctx context.Context, kind Kind, id int64) error
	Ledger() LedgerTx
}

// LedgerTx is the slice of the stock ledger completion runs against, bound
// to the same transaction as the document writes.
type LedgerTx interface {
	Available(ctx context.Context, key stock.Key) (int64, error)
	Increment(ctx context.Context, key stock.Key, delta int64) error
	Decrement(ctx context.Context, key stock.Key, delta int64) error
	SetAbsolute(ctx context.Context, key stock.Key, value int64) error
}
