package dashboard

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/stockmaster/stockmaster/internal/documents"
	_ "github.com/stockmaster/stockmaster/internal/testing/guard"
)

type fakeRepo struct {
	builds int
}

func (f *fakeRepo) Counts(ctx context.Context) (Counts, error) {
	f.builds++
	return Counts{Products: 3, Warehouses: 1, Locations: 4}, nil
}

func (f *fakeRepo) DocumentCounts(ctx context.Context) ([]DocumentCount, error) {
	return []DocumentCount{{Kind: "receipt", Status: "DONE", Count: 2}}, nil
}

func (f *fakeRepo) LowStock(ctx context.Context, limit int) ([]LowStockItem, error) {
	return []LowStockItem{{ProductID: 1, SKU: "SKU-1", Name: "Widget", OnHand: 1, MinStock: 5}}, nil
}

func (f *fakeRepo) RecentMoves(ctx context.Context, limit int) ([]RecentMove, error) {
	return []RecentMove{}, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := &fakeRepo{}
	svc := NewService(slog.Default(), repo, NewCache(client, time.Minute))
	return svc, repo
}

func TestSummaryIsCachedUntilBump(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	first, err := svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), first.Counts.Products)
	require.Equal(t, 1, repo.builds)

	_, err = svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.builds)

	svc.DocumentCompleted(ctx, documents.KindReceipt, 1, "WH01/IN/2026/0001")

	_, err = svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, repo.builds)
}

func TestSummaryWorksWithoutRedis(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(slog.Default(), repo, NewCache(nil, time.Minute))

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.LowStock, 1)
	require.Equal(t, 1, repo.builds)
}
