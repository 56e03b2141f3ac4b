package products

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: invalid product id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, form ProductForm) (Product, error) {
	product := fromForm(form)
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, form ProductForm) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: invalid product id", httpx.ErrValidation)
	}
	product := fromForm(form)
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	if err := s.repo.Update(ctx, id, product); err != nil {
		return Product{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a product when nothing references it. Products with on-hand
// stock cannot be removed at all; products with move history are deactivated
// instead so the history keeps resolving.
func (s *Service) Delete(ctx context.Context, id int64) (DeleteOutcome, error) {
	if id <= 0 {
		return "", fmt.Errorf("%w: invalid product id", httpx.ErrValidation)
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return "", err
	}

	onHand, err := s.repo.OnHand(ctx, id)
	if err != nil {
		return "", err
	}
	if onHand > 0 {
		return "", fmt.Errorf("%w: product still has stock on hand", httpx.ErrReferenced)
	}

	hasMoves, err := s.repo.HasMoves(ctx, id)
	if err != nil {
		return "", err
	}
	if hasMoves {
		if err := s.repo.Deactivate(ctx, id); err != nil {
			return "", err
		}
		return OutcomeDeactivated, nil
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return "", err
	}
	return OutcomeDeleted, nil
}

func fromForm(form ProductForm) Product {
	product := Product{
		SKU:         strings.ToUpper(strings.TrimSpace(form.SKU)),
		Name:        strings.TrimSpace(form.Name),
		Description: form.Description,
		CategoryID:  form.CategoryID,
		UOM:         strings.TrimSpace(form.UOM),
		MinStock:    form.MinStock,
		IsActive:    true,
	}
	if product.UOM == "" {
		product.UOM = "UNIT"
	}
	if form.IsActive != nil {
		product.IsActive = *form.IsActive
	}
	return product
}
