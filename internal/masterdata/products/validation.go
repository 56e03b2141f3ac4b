package products

import (
	"fmt"

	"github.com/stockmaster/stockmaster/internal/platform/httpx"
)

func (s *Service) validate(p Product) error {
	if p.SKU == "" {
		return fmt.Errorf("%w: product sku is required", httpx.ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: product name is required", httpx.ErrValidation)
	}
	if p.MinStock < 0 {
		return fmt.Errorf("%w: minimum stock cannot be negative", httpx.ErrValidation)
	}
	return nil
}
