package stock

import (
	"context"
	"strconv"

	"github.com/stockmaster/stockmaster/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Detail, error)
	Change(ctx context.Context, req ChangeRequest) (Stock, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger reads and manual corrections.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns ledger rows matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Detail, error) {
	return s.repo.List(ctx, filter)
}

// Change applies a signed manual quantity change and records an audit entry.
func (s *Service) Change(ctx context.Context, req ChangeRequest) (Stock, error) {
	row, err := s.repo.Change(ctx, req)
	if err != nil {
		return Stock{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "stock:manual_change",
			Entity:   "stock",
			EntityID: strconv.FormatInt(row.ID, 10),
			Meta: map[string]any{
				"product_id":      req.ProductID,
				"location_id":     req.LocationID,
				"warehouse_id":    req.WarehouseID,
				"quantity_change": req.QuantityChange,
				"quantity":        row.Quantity,
			},
		})
	}
	return row, nil
}
