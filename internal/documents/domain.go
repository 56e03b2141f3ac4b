// Package documents implements the stock-mutating document lifecycle shared
// by receipts, deliveries, transfers and adjustments.
package documents

import (
	"errors"
	"time"
)

// Kind enumerates the document kinds driven by the state machine.
type Kind string

const (
	KindReceipt    Kind = "receipt"
	KindDelivery   Kind = "delivery"
	KindTransfer   Kind = "transfer"
	KindAdjustment Kind = "adjustment"
)

// IsValid reports whether the kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindReceipt, KindDelivery, KindTransfer, KindAdjustment:
		return true
	default:
		return false
	}
}

// Status is the document lifecycle state. Transitions are forward-only:
// DRAFT -> (WAITING) -> READY -> DONE. CANCELLED is defined for API
// compatibility but never produced by the state machine.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusWaiting   Status = "WAITING"
	StatusReady     Status = "READY"
	StatusDone      Status = "DONE"
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusWaiting, StatusReady, StatusDone, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanEdit reports whether header or items may still change.
func (s Status) CanEdit() bool {
	return s != StatusDone
}

// CanDelete reports whether the document may be removed.
func (s Status) CanDelete() bool {
	return s != StatusDone
}

// MoveType classifies the direction of a stock move.
type MoveType string

const (
	MoveIncoming   MoveType = "INCOMING"
	MoveOutgoing   MoveType = "OUTGOING"
	MoveInternal   MoveType = "INTERNAL"
	MoveAdjustment MoveType = "ADJUSTMENT"
)

// Move is one line-item quantity change owned by exactly one document.
// Quantity is always positive; for adjustments it is the absolute target
// count rather than a delta.
type Move struct {
	ID                    int64     `json:"id"`
	ProductID             int64     `json:"productId"`
	ProductSKU            string    `json:"productSku,omitempty"`
	ProductName           string    `json:"productName,omitempty"`
	Quantity              int64     `json:"quantity"`
	Type                  MoveType  `json:"type"`
	Status                Status    `json:"status"`
	SourceLocationID      *int64    `json:"sourceLocationId,omitempty"`
	DestinationLocationID *int64    `json:"destinationLocationId,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
}

// MoveDetail joins a move with its parent document for history listings.
type MoveDetail struct {
	Move
	DocumentKind Kind   `json:"documentKind"`
	DocumentID   int64  `json:"documentId"`
	Reference    string `json:"reference"`
}

// Document is the polymorphic header record over the four kinds. Fields not
// used by a kind stay zero and are omitted from JSON.
type Document struct {
	ID                    int64      `json:"id"`
	Kind                  Kind       `json:"-"`
	Reference             string     `json:"reference"`
	Status                Status     `json:"status"`
	WarehouseID           int64      `json:"warehouseId,omitempty"`
	WarehouseName         string     `json:"warehouseName,omitempty"`
	SourceLocationID      int64      `json:"sourceLocationId,omitempty"`
	DestinationLocationID int64      `json:"destinationLocationId,omitempty"`
	Supplier              *string    `json:"supplier,omitempty"`
	Customer              *string    `json:"customer,omitempty"`
	SourceDoc             *string    `json:"sourceDoc,omitempty"`
	DeliveryAddress       *string    `json:"deliveryAddress,omitempty"`
	Reason                *string    `json:"reason,omitempty"`
	ScheduledDate         *time.Time `json:"scheduledDate,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	Moves                 []Move     `json:"stockMoves"`

	// Warehouses owning the transfer endpoints, resolved from locations.
	sourceWarehouseID      int64
	destinationWarehouseID int64
}

// StockCheck is the per-line availability comparison returned to callers so
// they can render which lines are blocking.
type StockCheck struct {
	ProductID  int64 `json:"productId"`
	LocationID int64 `json:"locationId,omitempty"`
	Available  int64 `json:"available"`
	Required   int64 `json:"required"`
}

// Short reports whether the line lacks availability.
func (c StockCheck) Short() bool {
	return c.Available < c.Required
}

// Result is a document plus the availability results computed during the
// operation, when any.
type Result struct {
	Document
	StockChecks []StockCheck `json:"stockChecks,omitempty"`
}

// ItemInput is one requested line for create or update.
type ItemInput struct {
	ProductID  int64 `json:"productId" validate:"required,gt=0"`
	LocationID int64 `json:"locationId" validate:"omitempty,gt=0"`
	Quantity   int64 `json:"quantity" validate:"required,gt=0"`
}

// CreateRequest is the superset create payload across kinds; the service
// enforces the per-kind required fields.
type CreateRequest struct {
	WarehouseID           int64       `json:"warehouseId" validate:"omitempty,gt=0"`
	SourceLocationID      int64       `json:"sourceLocationId" validate:"omitempty,gt=0"`
	DestinationLocationID int64       `json:"destinationLocationId" validate:"omitempty,gt=0"`
	Supplier              *string     `json:"supplier,omitempty"`
	Customer              *string     `json:"customer,omitempty"`
	SourceDoc             *string     `json:"sourceDoc,omitempty"`
	DeliveryAddress       *string     `json:"deliveryAddress,omitempty"`
	Reason                *string     `json:"reason,omitempty"`
	ScheduledDate         *time.Time  `json:"scheduledDate,omitempty"`
	Items                 []ItemInput `json:"items" validate:"omitempty,dive"`
}

// UpdateRequest patches header fields and optionally replaces all items.
type UpdateRequest struct {
	SourceLocationID      int64        `json:"sourceLocationId" validate:"omitempty,gt=0"`
	DestinationLocationID int64        `json:"destinationLocationId" validate:"omitempty,gt=0"`
	Supplier              *string      `json:"supplier,omitempty"`
	Customer              *string      `json:"customer,omitempty"`
	SourceDoc             *string      `json:"sourceDoc,omitempty"`
	DeliveryAddress       *string      `json:"deliveryAddress,omitempty"`
	Reason                *string      `json:"reason,omitempty"`
	ScheduledDate         *time.Time   `json:"scheduledDate,omitempty"`
	Items                 *[]ItemInput `json:"items,omitempty" validate:"omitempty,dive"`
}

// ListFilter narrows document listings.
type ListFilter struct {
	WarehouseID int64
	Status      Status
	Search      string
}

// MoveFilter narrows stock-move history listings.
type MoveFilter struct {
	Type      MoveType
	Status    Status
	ProductID int64
	Reference string
	From      time.Time
	To        time.Time
	Limit     int
}

// Sentinel errors for the state machine.
var (
	ErrNotFound          = errors.New("documents: not found")
	ErrInvalidInput      = errors.New("documents: invalid input")
	ErrCompleted         = errors.New("documents: document already completed")
	ErrInvalidStatus     = errors.New("documents: invalid status for validation")
	ErrEmptyDocument     = errors.New("documents: document has no items")
	ErrMissingLocation   = errors.New("documents: move has no required location")
	ErrInsufficientStock = errors.New("documents: insufficient stock")
)

// InsufficientStockError carries per-line shortfall detail alongside
// ErrInsufficientStock.
type InsufficientStockError struct {
	Checks []StockCheck
}

func (e *InsufficientStockError) Error() string {
	return ErrInsufficientStock.Error()
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
