package documents

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockmaster/stockmaster/internal/sequence"
	"github.com/stockmaster/stockmaster/internal/shared"
	"github.com/stockmaster/stockmaster/internal/stock"
	_ "github.com/stockmaster/stockmaster/internal/testing/guard"
)

type memStock struct {
	quantity int64
	reserved int64
}

type memRepo struct {
	warehouses map[int64]WarehouseRef
	locations  map[int64]LocationRef
	stocks     map[stock.Key]*memStock
	docs       map[Kind]map[int64]*Document
	sequences  map[string]int64

	nextDocID  int64
	nextMoveID int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		warehouses: map[int64]WarehouseRef{},
		locations:  map[int64]LocationRef{},
		stocks:     map[stock.Key]*memStock{},
		docs: map[Kind]map[int64]*Document{
			KindReceipt:    {},
			KindDelivery:   {},
			KindTransfer:   {},
			KindAdjustment: {},
		},
		sequences: map[string]int64{},
	}
}

func (m *memRepo) snapshot() (map[stock.Key]*memStock, map[Kind]map[int64]*Document) {
	stocks := map[stock.Key]*memStock{}
	for k, v := range m.stocks {
		copied := *v
		stocks[k] = &copied
	}
	docs := map[Kind]map[int64]*Document{}
	for kind, byID := range m.docs {
		docs[kind] = map[int64]*Document{}
		for id, doc := range byID {
			copied := *doc
			copied.Moves = append([]Move(nil), doc.Moves...)
			docs[kind][id] = &copied
		}
	}
	return stocks, docs
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	stocks, docs := m.snapshot()
	if err := fn(ctx, &memTx{repo: m}); err != nil {
		m.stocks = stocks
		m.docs = docs
		return err
	}
	return nil
}

func (m *memRepo) Get(ctx context.Context, kind Kind, id int64) (Document, error) {
	doc, ok := m.docs[kind][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	copied := *doc
	copied.Moves = append([]Move(nil), doc.Moves...)
	return copied, nil
}

func (m *memRepo) List(ctx context.Context, kind Kind, filter ListFilter) ([]Document, error) {
	out := []Document{}
	for _, doc := range m.docs[kind] {
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (m *memRepo) GetWarehouse(ctx context.Context, id int64) (WarehouseRef, error) {
	ref, ok := m.warehouses[id]
	if !ok {
		return WarehouseRef{}, ErrNotFound
	}
	return ref, nil
}

func (m *memRepo) GetLocation(ctx context.Context, id int64) (LocationRef, error) {
	ref, ok := m.locations[id]
	if !ok {
		return LocationRef{}, ErrNotFound
	}
	return ref, nil
}

func (m *memRepo) Available(ctx context.Context, key stock.Key) (int64, error) {
	row, ok := m.stocks[key]
	if !ok {
		return 0, nil
	}
	return row.quantity - row.reserved, nil
}

func (m *memRepo) ListMoves(ctx context.Context, filter MoveFilter) ([]MoveDetail, error) {
	out := []MoveDetail{}
	for kind, byID := range m.docs {
		for id, doc := range byID {
			for _, move := range doc.Moves {
				if filter.ProductID > 0 && move.ProductID != filter.ProductID {
					continue
				}
				if filter.Status != "" && move.Status != filter.Status {
					continue
				}
				out = append(out, MoveDetail{Move: move, DocumentKind: kind, DocumentID: id, Reference: doc.Reference})
			}
		}
	}
	return out, nil
}

func (m *memRepo) GetMove(ctx context.Context, id int64) (MoveDetail, error) {
	for kind, byID := range m.docs {
		for docID, doc := range byID {
			for _, move := range doc.Moves {
				if move.ID == id {
					return MoveDetail{Move: move, DocumentKind: kind, DocumentID: docID, Reference: doc.Reference}, nil
				}
			}
		}
	}
	return MoveDetail{}, ErrNotFound
}

type memTx struct {
	repo *memRepo
}

func (t *memTx) NextReference(ctx context.Context, prefix string, year int) (string, error) {
	counterKey := prefix + "/" + strconv.Itoa(year)
	t.repo.sequences[counterKey]++
	return sequence.Format(prefix, year, t.repo.sequences[counterKey]), nil
}

func (t *memTx) Insert(ctx context.Context, doc *Document) error {
	t.repo.nextDocID++
	doc.ID = t.repo.nextDocID
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	copied := *doc
	t.repo.docs[doc.Kind][doc.ID] = &copied
	return nil
}

func (t *memTx) UpdateHeader(ctx context.Context, doc Document) error {
	stored, ok := t.repo.docs[doc.Kind][doc.ID]
	if !ok {
		return ErrNotFound
	}
	moves := stored.Moves
	*stored = doc
	stored.Moves = moves
	return nil
}

func (t *memTx) GetForUpdate(ctx context.Context, kind Kind, id int64) (Document, error) {
	return t.repo.Get(ctx, kind, id)
}

func (t *memTx) SetStatus(ctx context.Context, kind Kind, id int64, status Status) error {
	doc, ok := t.repo.docs[kind][id]
	if !ok {
		return ErrNotFound
	}
	doc.Status = status
	return nil
}

func (t *memTx) ReplaceMoves(ctx context.Context, kind Kind, docID int64, moves []Move) error {
	doc, ok := t.repo.docs[kind][docID]
	if !ok {
		return ErrNotFound
	}
	stored := make([]Move, len(moves))
	for i, move := range moves {
		t.repo.nextMoveID++
		move.ID = t.repo.nextMoveID
		move.CreatedAt = time.Now()
		stored[i] = move
	}
	doc.Moves = stored
	return nil
}

func (t *memTx) SetMovesStatus(ctx context.Context, kind Kind, docID int64, status Status) error {
	doc, ok := t.repo.docs[kind][docID]
	if !ok {
		return ErrNotFound
	}
	for i := range doc.Moves {
		doc.Moves[i].Status = status
	}
	return nil
}

func (t *memTx) Delete(ctx context.Context, kind Kind, id int64) error {
	if _, ok := t.repo.docs[kind][id]; !ok {
		return ErrNotFound
	}
	delete(t.repo.docs[kind], id)
	return nil
}

func (t *memTx) Ledger() LedgerTx {
	return &memLedger{repo: t.repo}
}

type memLedger struct {
	repo *memRepo
}

func (l *memLedger) Available(ctx context.Context, key stock.Key) (int64, error) {
	return l.repo.Available(ctx, key)
}

func (l *memLedger) Increment(ctx context.Context, key stock.Key, delta int64) error {
	if delta <= 0 {
		return stock.ErrInvalidDelta
	}
	row, ok := l.repo.stocks[key]
	if !ok {
		l.repo.stocks[key] = &memStock{quantity: delta}
		return nil
	}
	row.quantity += delta
	return nil
}

func (l *memLedger) Decrement(ctx context.Context, key stock.Key, delta int64) error {
	if delta <= 0 {
		return stock.ErrInvalidDelta
	}
	row, ok := l.repo.stocks[key]
	if !ok || row.quantity < delta {
		return stock.ErrInsufficientStock
	}
	row.quantity -= delta
	return nil
}

func (l *memLedger) SetAbsolute(ctx context.Context, key stock.Key, value int64) error {
	if value < 0 {
		return stock.ErrInsufficientStock
	}
	row, ok := l.repo.stocks[key]
	if !ok {
		l.repo.stocks[key] = &memStock{quantity: value}
		return nil
	}
	row.quantity = value
	return nil
}

type memAudit struct {
	logs []shared.AuditLog
}

func (a *memAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type memCompletion struct {
	completed []string
}

func (c *memCompletion) DocumentCompleted(ctx context.Context, kind Kind, id int64, reference string) {
	c.completed = append(c.completed, reference)
}

func newTestService(repo *memRepo) (*Service, *memAudit, *memCompletion) {
	audit := &memAudit{}
	completion := &memCompletion{}
	svc := NewService(repo, audit, nil, completion)
	svc.WithNow(func() time.Time { return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC) })
	return svc, audit, completion
}

func seedWarehouse(repo *memRepo) {
	repo.warehouses[1] = WarehouseRef{ID: 1, Code: "WH01"}
	repo.locations[10] = LocationRef{ID: 10, Code: "WH01-A1", WarehouseID: 1}
	repo.locations[11] = LocationRef{ID: 11, Code: "WH01-A2", WarehouseID: 1}
}

func TestReceiptLifecycleIncrementsStock(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	svc, _, completion := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Create(ctx, KindReceipt, CreateRequest{
		WarehouseID: 1,
		Items:       []ItemInput{{ProductID: 100, LocationID: 10, Quantity: 7}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, StatusDraft, result.Status)
	require.Equal(t, "WH01/IN/2026/0001", result.Reference)
	require.Len(t, result.Moves, 1)
	require.Equal(t, MoveIncoming, result.Moves[0].Type)

	ready, err := svc.Validate(ctx, KindReceipt, result.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReady, ready.Status)
	require.Equal(t, StatusReady, ready.Moves[0].Status)

	done, err := svc.Validate(ctx, KindReceipt, result.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDone, done.Status)
	require.Equal(t, StatusDone, done.Moves[0].Status)

	available, err := repo.Available(ctx, stock.Key{ProductID: 100, LocationID: 10, WarehouseID: 1})
	require.NoError(t, err)
	require.Equal(t, int64(7), available)

	require.Equal(t, []string{"WH01/IN/2026/0001"}, completion.completed)

	_, err = svc.Validate(ctx, KindReceipt, result.ID)
	require.ErrorIs(t, err, ErrCompleted)
}

func TestDeliveryShortfallEntersWaiting(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	repo.stocks[stock.Key{ProductID: 100, LocationID: 10, WarehouseID: 1}] = &memStock{quantity: 5}
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Create(ctx, KindDelivery, CreateRequest{
		WarehouseID: 1,
		Items:       []ItemInput{{ProductID: 100, LocationID: 10, Quantity: 10}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, result.Status)
	require.Len(t, result.StockChecks, 1)
	require.Equal(t, int64(5), result.StockChecks[0].Available)
	require.Equal(t, int64(10), result.StockChecks[0].Required)
	require.True(t, result.StockChecks[0].Short())

	// Still short, the re-check must refuse with detail and leave WAITING.
	_, err = svc.Validate(ctx, KindDelivery, result.ID)
	var shortfall *InsufficientStockError
	require.ErrorAs(t, err, &shortfall)
	require.Len(t, shortfall.Checks, 1)
	current, err := repo.Get(ctx, KindDelivery, result.ID)
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, current.Status)

	repo.stocks[stock.Key{ProductID: 100, LocationID: 10, WarehouseID: 1}].quantity = 12

	ready, err := svc.Validate(ctx, KindDelivery, result.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReady, ready.Status)

	done, err := svc.Validate(ctx, KindDelivery, result.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDone, done.Status)

	available, err := repo.Available(ctx, stock.Key{ProductID: 100, LocationID: 10, WarehouseID: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), available)
}

func TestDeliveryWithCoverageStaysDraft(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	repo.stocks[stock.Key{ProductID: 100, LocationID: 10, WarehouseID: 1}] = &memStock{quantity: 20}
	svc, _, _ := newTestService(repo)

	result, err := svc.Create(context.Background(), KindDelivery, CreateRequest{
		WarehouseID: 1,
		Items:       []ItemInput{{ProductID: 100, LocationID: 10, Quantity: 10}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, StatusDraft, result.Status)
}

func TestDeliveryDraftValidateDropsToWaiting(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	key := stock.Key{ProductID: 100, LocationID: 10, WarehouseID: 1}
	repo.stocks[key] = &memStock{quantity: 20}
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Create(ctx, KindDelivery, CreateRequest{
		WarehouseID: 1,
		Items:       []ItemInput{{ProductID: 100, LocationID: 10, Quantity: 10}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, StatusDraft, result.Status)

	// Stock consumed elsewhere before validation.
	repo.stocks[key].quantity = 3

	waiting, err := svc.Validate(ctx, KindDelivery, result.ID)
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, waiting.Status)
	require.Equal(t, StatusWaiting, waiting.Moves[0].Status)
}

func TestTransferConservesTotalStock(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	srcKey := stock.Key{ProductID: 100, LocationID: 10, WarehouseID: 1}
	repo.stocks[srcKey] = &memStock{quantity: 10}
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Create(ctx, KindTransfer, CreateRequest{
		SourceLocationID:      10,
		DestinationLocationID: 11,
		Items:                 []ItemInput{{ProductID: 100, Quantity: 4}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, StatusDraft, result.Status)
	require.Equal(t, "TRANS/2026/0001", result.Reference)
	require.NotNil(t, result.Moves[0].SourceLocationID)
	require.NotNil(t, result.Moves[0].DestinationLocationID)

	_, err = svc.Validate(ctx, KindTransfer, result.ID)
	require.NoError(t, err)
	done, err := svc.Validate(ctx, KindTransfer, result.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDone, done.Status)

	srcAvail, err := repo.Available(ctx, srcKey)
	require.NoError(t, err)
	dstAvail, err := repo.Available(ctx, stock.Key{ProductID: 100, LocationID: 11, WarehouseID: 1})
	require.NoError(t, err)
	require.Equal(t, int64(6), srcAvail)
	require.Equal(t, int64(4), dstAvail)
}

func TestTransferRejectsSameEndpoints(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	svc, _, _ := newTestService(repo)

	_, err := svc.Create(context.Background(), KindTransfer, CreateRequest{
		SourceLocationID:      10,
		DestinationLocationID: 10,
	}, "")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAdjustmentSetsAbsoluteQuantity(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	key := stock.Key{ProductID: 100, LocationID: 10, WarehouseID: 1}
	repo.stocks[key] = &memStock{quantity: 50}
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Create(ctx, KindAdjustment, CreateRequest{
		WarehouseID: 1,
		Items:       []ItemInput{{ProductID: 100, LocationID: 10, Quantity: 42}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, "ADJ/2026/0001", result.Reference)

	_, err = svc.Validate(ctx, KindAdjustment, result.ID)
	require.NoError(t, err)
	_, err = svc.Validate(ctx, KindAdjustment, result.ID)
	require.NoError(t, err)

	available, err := repo.Available(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(42), available)
}

func TestCompletionIsAtomicAcrossMoves(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	key := stock.Key{ProductID: 100, LocationID: 10, WarehouseID: 1}
	repo.stocks[key] = &memStock{quantity: 10}
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	// Second line exceeds stock, so neither decrement may survive.
	result, err := svc.Create(ctx, KindDelivery, CreateRequest{
		WarehouseID: 1,
		Items: []ItemInput{
			{ProductID: 100, LocationID: 10, Quantity: 4},
			{ProductID: 100, LocationID: 10, Quantity: 100},
		},
	}, "")
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, result.Status)

	repo.stocks[key].quantity = 104
	_, err = svc.Validate(ctx, KindDelivery, result.ID)
	require.NoError(t, err)

	repo.stocks[key].quantity = 10
	_, err = svc.Validate(ctx, KindDelivery, result.ID)
	require.ErrorIs(t, err, ErrInsufficientStock)

	available, err := repo.Available(ctx, key)
	require.NoError(t, err)
	require.Equal(t, int64(10), available)
	current, err := repo.Get(ctx, KindDelivery, result.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReady, current.Status)
}

func TestValidateEmptyReadyDocumentFails(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Create(ctx, KindReceipt, CreateRequest{WarehouseID: 1}, "")
	require.NoError(t, err)
	require.Empty(t, result.Moves)

	_, err = svc.Validate(ctx, KindReceipt, result.ID)
	require.NoError(t, err)
	_, err = svc.Validate(ctx, KindReceipt, result.ID)
	require.ErrorIs(t, err, ErrEmptyDocument)
}

func TestCompletedDocumentsAreImmutable(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Create(ctx, KindReceipt, CreateRequest{
		WarehouseID: 1,
		Items:       []ItemInput{{ProductID: 100, LocationID: 10, Quantity: 1}},
	}, "")
	require.NoError(t, err)
	_, err = svc.Validate(ctx, KindReceipt, result.ID)
	require.NoError(t, err)
	_, err = svc.Validate(ctx, KindReceipt, result.ID)
	require.NoError(t, err)

	supplier := "ACME"
	_, err = svc.Update(ctx, KindReceipt, result.ID, UpdateRequest{Supplier: &supplier})
	require.ErrorIs(t, err, ErrCompleted)

	err = svc.Delete(ctx, KindReceipt, result.ID)
	require.ErrorIs(t, err, ErrCompleted)
}

func TestReferencesAreSequentialPerPrefixAndYear(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Create(ctx, KindAdjustment, CreateRequest{WarehouseID: 1}, "")
	require.NoError(t, err)
	second, err := svc.Create(ctx, KindAdjustment, CreateRequest{WarehouseID: 1}, "")
	require.NoError(t, err)
	require.Equal(t, "ADJ/2026/0001", first.Reference)
	require.Equal(t, "ADJ/2026/0002", second.Reference)

	// A different prefix counts independently.
	receipt, err := svc.Create(ctx, KindReceipt, CreateRequest{WarehouseID: 1}, "")
	require.NoError(t, err)
	require.Equal(t, "WH01/IN/2026/0001", receipt.Reference)
}

func TestUpdateReplacesItemsAndKeepsStatus(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	svc, audit, _ := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Create(ctx, KindReceipt, CreateRequest{
		WarehouseID: 1,
		Items:       []ItemInput{{ProductID: 100, LocationID: 10, Quantity: 2}},
	}, "")
	require.NoError(t, err)

	items := []ItemInput{
		{ProductID: 100, LocationID: 10, Quantity: 5},
		{ProductID: 200, LocationID: 11, Quantity: 3},
	}
	updated, err := svc.Update(ctx, KindReceipt, result.ID, UpdateRequest{Items: &items})
	require.NoError(t, err)
	require.Len(t, updated.Moves, 2)
	require.Equal(t, StatusDraft, updated.Status)
	require.Equal(t, StatusDraft, updated.Moves[0].Status)
	require.NotEmpty(t, audit.logs)
}

func TestDeleteRemovesDocumentAndMoves(t *testing.T) {
	repo := newMemRepo()
	seedWarehouse(repo)
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Create(ctx, KindDelivery, CreateRequest{
		WarehouseID: 1,
		Items:       []ItemInput{{ProductID: 100, LocationID: 10, Quantity: 2}},
	}, "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, KindDelivery, result.ID))
	_, err = svc.Get(ctx, KindDelivery, result.ID)
	require.ErrorIs(t, err, ErrNotFound)

	moves, err := svc.ListMoves(ctx, MoveFilter{ProductID: 100})
	require.NoError(t, err)
	require.Empty(t, moves)
}
