package products

import (
	"time"
)

// Product represents a product entity
type Product struct {
	ID           int64     `json:"id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name"`
	Description  *string   `json:"description,omitempty"`
	CategoryID   *int64    `json:"categoryId,omitempty"`
	CategoryName string    `json:"categoryName,omitempty"`
	UOM          string    `json:"uom"`
	MinStock     int64     `json:"minStock"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
