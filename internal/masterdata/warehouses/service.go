package warehouses

import (
	"context"
	"fmt"
	"strings"

	"github.com/stockmaster/stockmaster/internal/masterdata/shared"
	"github.com/stockmaster/stockmaster/internal/platform/httpx"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, fmt.Errorf("%w: invalid warehouse id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	warehouse.Code = strings.ToUpper(strings.TrimSpace(warehouse.Code))
	if err := s.validate(warehouse); err != nil {
		return Warehouse{}, err
	}
	return s.repo.Create(ctx, warehouse)
}

func (s *Service) Update(ctx context.Context, id int64, warehouse Warehouse) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, fmt.Errorf("%w: invalid warehouse id", httpx.ErrValidation)
	}
	warehouse.Code = strings.ToUpper(strings.TrimSpace(warehouse.Code))
	if err := s.validate(warehouse); err != nil {
		return Warehouse{}, err
	}
	if err := s.repo.Update(ctx, id, warehouse); err != nil {
		return Warehouse{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid warehouse id", httpx.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
