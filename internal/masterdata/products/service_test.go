package products

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockmaster/stockmaster/internal/masterdata/shared"
	"github.com/stockmaster/stockmaster/internal/platform/httpx"
)

type fakeRepo struct {
	products    map[int64]Product
	onHand      map[int64]int64
	moves       map[int64]bool
	deactivated []int64
	deleted     []int64
	nextID      int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		products: map[int64]Product{},
		onHand:   map[int64]int64{},
		moves:    map[int64]bool{},
	}
}

func (f *fakeRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	out := []Product{}
	for _, p := range f.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := f.products[id]
	if !ok {
		return Product{}, httpx.ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) Create(ctx context.Context, product Product) (Product, error) {
	for _, existing := range f.products {
		if existing.SKU == product.SKU {
			return Product{}, httpx.ErrDuplicate
		}
	}
	f.nextID++
	product.ID = f.nextID
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeRepo) Update(ctx context.Context, id int64, product Product) error {
	if _, ok := f.products[id]; !ok {
		return httpx.ErrNotFound
	}
	product.ID = id
	f.products[id] = product
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.products[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(f.products, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRepo) Deactivate(ctx context.Context, id int64) error {
	p, ok := f.products[id]
	if !ok {
		return httpx.ErrNotFound
	}
	p.IsActive = false
	f.products[id] = p
	f.deactivated = append(f.deactivated, id)
	return nil
}

func (f *fakeRepo) OnHand(ctx context.Context, id int64) (int64, error) {
	return f.onHand[id], nil
}

func (f *fakeRepo) HasMoves(ctx context.Context, id int64) (bool, error) {
	return f.moves[id], nil
}

func seedProduct(repo *fakeRepo, sku string) int64 {
	repo.nextID++
	repo.products[repo.nextID] = Product{ID: repo.nextID, SKU: sku, Name: sku, UOM: "UNIT", IsActive: true}
	return repo.nextID
}

func TestDeleteBlockedWhileStockOnHand(t *testing.T) {
	repo := newFakeRepo()
	id := seedProduct(repo, "SKU-1")
	repo.onHand[id] = 5
	svc := NewService(repo)

	_, err := svc.Delete(context.Background(), id)
	require.ErrorIs(t, err, httpx.ErrReferenced)
	require.Contains(t, repo.products, id)
}

func TestDeleteDeactivatesWhenHistoryExists(t *testing.T) {
	repo := newFakeRepo()
	id := seedProduct(repo, "SKU-1")
	repo.moves[id] = true
	svc := NewService(repo)

	outcome, err := svc.Delete(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, OutcomeDeactivated, outcome)
	require.False(t, repo.products[id].IsActive)
	require.Empty(t, repo.deleted)
}

func TestDeleteRemovesUnreferencedProduct(t *testing.T) {
	repo := newFakeRepo()
	id := seedProduct(repo, "SKU-1")
	svc := NewService(repo)

	outcome, err := svc.Delete(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, OutcomeDeleted, outcome)
	require.NotContains(t, repo.products, id)
}

func TestCreateNormalizesSKUAndDefaults(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), ProductForm{SKU: " widget-1 ", Name: "Widget"})
	require.NoError(t, err)
	require.Equal(t, "WIDGET-1", created.SKU)
	require.Equal(t, "UNIT", created.UOM)
	require.True(t, created.IsActive)
}

func TestCreateRejectsMissingFields(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), ProductForm{Name: "No SKU"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), ProductForm{SKU: "SKU-2", Name: "x", MinStock: -1})
	require.ErrorIs(t, err, httpx.ErrValidation)
}
