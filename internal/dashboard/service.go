package dashboard

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stockmaster/stockmaster/internal/documents"
)

// Summary is the aggregated dashboard payload.
type Summary struct {
	Counts      Counts          `json:"counts"`
	Documents   []DocumentCount `json:"documents"`
	LowStock    []LowStockItem  `json:"lowStock"`
	RecentMoves []RecentMove    `json:"recentMoves"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// Counts holds the master data totals.
type Counts struct {
	Products   int64 `json:"products"`
	Warehouses int64 `json:"warehouses"`
	Locations  int64 `json:"locations"`
}

// DocumentCount is one (kind, status) bucket.
type DocumentCount struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// LowStockItem is a product whose on-hand total fell to or below its
// minimum.
type LowStockItem struct {
	ProductID int64  `json:"productId"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	OnHand    int64  `json:"onHand"`
	MinStock  int64  `json:"minStock"`
}

// RecentMove is one history line for the dashboard feed.
type RecentMove struct {
	ID        int64     `json:"id"`
	Reference string    `json:"reference"`
	SKU       string    `json:"sku"`
	Quantity  int64     `json:"quantity"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// RepositoryPort abstracts the aggregation queries.
type RepositoryPort interface {
	Counts(ctx context.Context) (Counts, error)
	DocumentCounts(ctx context.Context) ([]DocumentCount, error)
	LowStock(ctx context.Context, limit int) ([]LowStockItem, error)
	RecentMoves(ctx context.Context, limit int) ([]RecentMove, error)
}

// Service aggregates and caches the summary. Concurrent requests for a cold
// cache share one computation.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	cache  *Cache
	group  singleflight.Group
	now    func() time.Time
}

// NewService constructs the dashboard service.
func NewService(logger *slog.Logger, repo RepositoryPort, cache *Cache) *Service {
	return &Service{logger: logger, repo: repo, cache: cache, now: time.Now}
}

// Summary returns the cached dashboard summary, rebuilding it on miss.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "dashboard", "summary")
	if err != nil {
		return Summary{}, err
	}
	result, err, _ := s.group.Do(key, func() (any, error) {
		var summary Summary
		err := s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
			return s.build(ctx)
		})
		return summary, err
	})
	if err != nil {
		return Summary{}, err
	}
	return result.(Summary), nil
}

func (s *Service) build(ctx context.Context) (Summary, error) {
	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return Summary{}, err
	}
	docCounts, err := s.repo.DocumentCounts(ctx)
	if err != nil {
		return Summary{}, err
	}
	lowStock, err := s.repo.LowStock(ctx, 20)
	if err != nil {
		return Summary{}, err
	}
	recent, err := s.repo.RecentMoves(ctx, 10)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Counts:      counts,
		Documents:   docCounts,
		LowStock:    lowStock,
		RecentMoves: recent,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// DocumentCompleted invalidates the cached summary after a document reaches
// DONE.
func (s *Service) DocumentCompleted(ctx context.Context, kind documents.Kind, id int64, reference string) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("dashboard cache bump failed",
			slog.String("kind", string(kind)),
			slog.String("reference", reference),
			slog.Any("error", err))
	}
}
