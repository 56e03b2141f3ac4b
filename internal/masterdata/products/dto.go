package products

// ProductForm is the create/update payload.
type ProductForm struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	CategoryID  *int64  `json:"categoryId,omitempty"`
	UOM         string  `json:"uom"`
	MinStock    int64   `json:"minStock"`
	IsActive    *bool   `json:"isActive,omitempty"`
}

// DeleteOutcome reports how a delete request was resolved.
type DeleteOutcome string

const (
	OutcomeDeleted     DeleteOutcome = "deleted"
	OutcomeDeactivated DeleteOutcome = "deactivated"
)
