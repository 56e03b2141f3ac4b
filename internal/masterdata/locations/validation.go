package locations

import (
	"fmt"

	"github.com/stockmaster/stockmaster/internal/platform/httpx"
)

func (s *Service) validate(l Location) error {
	if l.WarehouseID <= 0 {
		return fmt.Errorf("%w: warehouse is required", httpx.ErrValidation)
	}
	if l.Code == "" {
		return fmt.Errorf("%w: location code is required", httpx.ErrValidation)
	}
	if l.Name == "" {
		return fmt.Errorf("%w: location name is required", httpx.ErrValidation)
	}
	if !ValidType(l.Type) {
		return fmt.Errorf("%w: unknown location type %q", httpx.ErrValidation, l.Type)
	}
	return nil
}
