// Package stock maintains the quantity-on-hand ledger keyed by
// (product, location, warehouse).
package stock

import (
	"errors"
	"time"
)

// Key identifies a single ledger row.
type Key struct {
	ProductID   int64 `json:"productId"`
	LocationID  int64 `json:"locationId"`
	WarehouseID int64 `json:"warehouseId"`
}

// Stock is one ledger row. Quantity never goes negative; reserved is read by
// availability checks but not maintained by document completion.
type Stock struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"productId"`
	LocationID  int64     `json:"locationId"`
	WarehouseID int64     `json:"warehouseId"`
	Quantity    int64     `json:"quantity"`
	Reserved    int64     `json:"reserved"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Available is the quantity a new outbound line may claim.
func (s Stock) Available() int64 {
	return s.Quantity - s.Reserved
}

// Detail joins the ledger row with display names for listings.
type Detail struct {
	Stock
	ProductSKU    string `json:"productSku"`
	ProductName   string `json:"productName"`
	LocationCode  string `json:"locationCode"`
	LocationName  string `json:"locationName"`
	WarehouseCode string `json:"warehouseCode"`
	WarehouseName string `json:"warehouseName"`
}

// ListFilter narrows stock listings.
type ListFilter struct {
	WarehouseID int64
	ProductID   int64
	LocationID  int64
}

// ChangeRequest applies a signed manual quantity change to one row.
type ChangeRequest struct {
	ProductID      int64 `json:"productId" validate:"required,gt=0"`
	LocationID     int64 `json:"locationId" validate:"required,gt=0"`
	WarehouseID    int64 `json:"warehouseId" validate:"required,gt=0"`
	QuantityChange int64 `json:"quantityChange" validate:"required"`
}

// ErrStockNotFound indicates a missing ledger row.
var ErrStockNotFound = errors.New("stock: row not found")

// ErrInsufficientStock indicates a decrement below zero was refused.
var ErrInsufficientStock = errors.New("stock: insufficient quantity")

// ErrInvalidDelta indicates an increment or decrement with a non-positive delta.
var ErrInvalidDelta = errors.New("stock: delta must be positive")
