package locations

import "time"

// Location types
const (
	TypeZone    = "ZONE"
	TypeRack    = "RACK"
	TypeShelf   = "SHELF"
	TypeBin     = "BIN"
	TypeStaging = "STAGING"
)

// Location is a named storage slot inside a warehouse.
type Location struct {
	ID            int64     `json:"id"`
	WarehouseID   int64     `json:"warehouseId"`
	WarehouseName string    `json:"warehouseName,omitempty"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	Type          string    `json:"type"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ValidType reports whether t is a known location type.
func ValidType(t string) bool {
	switch t {
	case TypeZone, TypeRack, TypeShelf, TypeBin, TypeStaging:
		return true
	default:
		return false
	}
}
