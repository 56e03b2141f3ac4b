package categories

import (
	"context"
	"fmt"

	"github.com/stockmaster/stockmaster/internal/masterdata/shared"
	"github.com/stockmaster/stockmaster/internal/platform/httpx"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Category, error) {
	if id <= 0 {
		return Category{}, fmt.Errorf("%w: invalid category id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, category Category) (Category, error) {
	if err := s.validate(category); err != nil {
		return Category{}, err
	}
	return s.repo.Create(ctx, category)
}

func (s *Service) Update(ctx context.Context, id int64, category Category) (Category, error) {
	if id <= 0 {
		return Category{}, fmt.Errorf("%w: invalid category id", httpx.ErrValidation)
	}
	if err := s.validate(category); err != nil {
		return Category{}, err
	}
	if err := s.repo.Update(ctx, id, category); err != nil {
		return Category{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid category id", httpx.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
