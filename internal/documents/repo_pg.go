package documents

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockmaster/stockmaster/internal/platform/db"
	"github.com/stockmaster/stockmaster/internal/sequence"
	"github.com/stockmaster/stockmaster/internal/stock"
)

type tableInfo struct {
	table  string
	moveFK string
}

var tables = map[Kind]tableInfo{
	KindReceipt:    {table: "receipts", moveFK: "receipt_id"},
	KindDelivery:   {table: "deliveries", moveFK: "delivery_id"},
	KindTransfer:   {table: "transfers", moveFK: "transfer_id"},
	KindAdjustment: {table: "adjustments", moveFK: "adjustment_id"},
}

// Repository persists documents and moves in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a new Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one transaction covering header, move and ledger
// writes.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// Get loads one document with its moves.
func (r *Repository) Get(ctx context.Context, kind Kind, id int64) (Document, error) {
	doc, err := getHeader(ctx, r.pool, kind, id, false)
	if err != nil {
		return Document{}, err
	}
	doc.Moves, err = loadMoves(ctx, r.pool, kind, id)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// List returns documents of one kind matching the filter, newest first, with
// their moves attached.
func (r *Repository) List(ctx context.Context, kind Kind, filter ListFilter) ([]Document, error) {
	info := tables[kind]
	query := headerSelect(kind)
	args := []any{}
	conds := []string{}
	argCount := 1

	if filter.WarehouseID > 0 {
		placeholder := "$" + strconv.Itoa(argCount)
		if kind == KindTransfer {
			conds = append(conds, "(sl.warehouse_id = "+placeholder+" OR dl.warehouse_id = "+placeholder+")")
		} else {
			conds = append(conds, "d.warehouse_id = "+placeholder)
		}
		args = append(args, filter.WarehouseID)
		argCount++
	}
	if filter.Status != "" {
		conds = append(conds, "d.status = $"+strconv.Itoa(argCount))
		args = append(args, string(filter.Status))
		argCount++
	}
	if filter.Search != "" {
		conds = append(conds, "d.reference ILIKE $"+strconv.Itoa(argCount))
		args = append(args, "%"+filter.Search+"%")
		argCount++
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY d.created_at DESC, d.id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("documents: list %s: %w", info.table, err)
	}
	defer rows.Close()

	docs := []Document{}
	ids := []int64{}
	for rows.Next() {
		doc, err := scanHeader(rows, kind)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		ids = append(ids, doc.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return docs, nil
	}

	byParent, err := loadMovesBatch(ctx, r.pool, kind, ids)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if moves, ok := byParent[docs[i].ID]; ok {
			docs[i].Moves = moves
		} else {
			docs[i].Moves = []Move{}
		}
	}
	return docs, nil
}

// GetWarehouse returns the warehouse reference used for validation and
// reference prefixes.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (WarehouseRef, error) {
	var ref WarehouseRef
	err := r.pool.QueryRow(ctx, `SELECT id, code FROM warehouses WHERE id=$1`, id).Scan(&ref.ID, &ref.Code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WarehouseRef{}, ErrNotFound
		}
		return WarehouseRef{}, err
	}
	return ref, nil
}

// GetLocation resolves a location to its owning warehouse.
func (r *Repository) GetLocation(ctx context.Context, id int64) (LocationRef, error) {
	var ref LocationRef
	err := r.pool.QueryRow(ctx, `SELECT id, code, warehouse_id FROM locations WHERE id=$1`, id).
		Scan(&ref.ID, &ref.Code, &ref.WarehouseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LocationRef{}, ErrNotFound
		}
		return LocationRef{}, err
	}
	return ref, nil
}

// Available reads quantity minus reserved outside a transaction, zero when
// the ledger row is absent.
func (r *Repository) Available(ctx context.Context, key stock.Key) (int64, error) {
	var available int64
	err := r.pool.QueryRow(ctx, `SELECT quantity - reserved FROM stocks
WHERE product_id=$1 AND location_id=$2 AND warehouse_id=$3`,
		key.ProductID, key.LocationID, key.WarehouseID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return available, nil
}

const moveHistorySelect = `SELECT m.id, m.product_id, p.sku, p.name, m.quantity, m.type, m.status,
m.source_location_id, m.destination_location_id, m.created_at,
m.receipt_id, m.delivery_id, m.transfer_id, m.adjustment_id,
COALESCE(r.reference, dl.reference, t.reference, a.reference)
FROM stock_moves m
JOIN products p ON p.id = m.product_id
LEFT JOIN receipts r ON r.id = m.receipt_id
LEFT JOIN deliveries dl ON dl.id = m.delivery_id
LEFT JOIN transfers t ON t.id = m.transfer_id
LEFT JOIN adjustments a ON a.id = m.adjustment_id`

// ListMoves returns the move history across all document kinds, newest
// first.
func (r *Repository) ListMoves(ctx context.Context, filter MoveFilter) ([]MoveDetail, error) {
	query := moveHistorySelect
	args := []any{}
	conds := []string{}
	argCount := 1

	if filter.Type != "" {
		conds = append(conds, "m.type = $"+strconv.Itoa(argCount))
		args = append(args, string(filter.Type))
		argCount++
	}
	if filter.Status != "" {
		conds = append(conds, "m.status = $"+strconv.Itoa(argCount))
		args = append(args, string(filter.Status))
		argCount++
	}
	if filter.ProductID > 0 {
		conds = append(conds, "m.product_id = $"+strconv.Itoa(argCount))
		args = append(args, filter.ProductID)
		argCount++
	}
	if filter.Reference != "" {
		conds = append(conds, "COALESCE(r.reference, dl.reference, t.reference, a.reference) ILIKE $"+strconv.Itoa(argCount))
		args = append(args, "%"+filter.Reference+"%")
		argCount++
	}
	if !filter.From.IsZero() {
		conds = append(conds, "m.created_at >= $"+strconv.Itoa(argCount))
		args = append(args, filter.From)
		argCount++
	}
	if !filter.To.IsZero() {
		conds = append(conds, "m.created_at <= $"+strconv.Itoa(argCount))
		args = append(args, filter.To)
		argCount++
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " ORDER BY m.created_at DESC, m.id DESC LIMIT $" + strconv.Itoa(argCount)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("documents: list moves: %w", err)
	}
	defer rows.Close()

	details := []MoveDetail{}
	for rows.Next() {
		detail, err := scanMoveDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, rows.Err()
}

// GetMove returns one move with its parent reference.
func (r *Repository) GetMove(ctx context.Context, id int64) (MoveDetail, error) {
	row := r.pool.QueryRow(ctx, moveHistorySelect+" WHERE m.id = $1", id)
	detail, err := scanMoveDetail(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MoveDetail{}, ErrNotFound
		}
		return MoveDetail{}, err
	}
	return detail, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) NextReference(ctx context.Context, prefix string, year int) (string, error) {
	value, err := sequence.Next(ctx, t.tx, prefix, year)
	if err != nil {
		return "", err
	}
	return sequence.Format(prefix, year, value), nil
}

func (t *txRepository) Insert(ctx context.Context, doc *Document) error {
	switch doc.Kind {
	case KindReceipt:
		return t.tx.QueryRow(ctx, `INSERT INTO receipts (reference, status, warehouse_id, supplier, source_doc, scheduled_date)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at, updated_at`,
			doc.Reference, string(doc.Status), doc.WarehouseID, doc.Supplier, doc.SourceDoc, doc.ScheduledDate).
			Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	case KindDelivery:
		return t.tx.QueryRow(ctx, `INSERT INTO deliveries (reference, status, warehouse_id, customer, source_doc, delivery_address, scheduled_date)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
			doc.Reference, string(doc.Status), doc.WarehouseID, doc.Customer, doc.SourceDoc, doc.DeliveryAddress, doc.ScheduledDate).
			Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	case KindTransfer:
		return t.tx.QueryRow(ctx, `INSERT INTO transfers (reference, status, source_location_id, destination_location_id, scheduled_date)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
			doc.Reference, string(doc.Status), doc.SourceLocationID, doc.DestinationLocationID, doc.ScheduledDate).
			Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	case KindAdjustment:
		return t.tx.QueryRow(ctx, `INSERT INTO adjustments (reference, status, warehouse_id, reason, scheduled_date)
VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at, updated_at`,
			doc.Reference, string(doc.Status), doc.WarehouseID, doc.Reason, doc.ScheduledDate).
			Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	default:
		return fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, doc.Kind)
	}
}

func (t *txRepository) UpdateHeader(ctx context.Context, doc Document) error {
	var tag pgconn.CommandTag
	var err error
	switch doc.Kind {
	case KindReceipt:
		tag, err = t.tx.Exec(ctx, `UPDATE receipts SET supplier=$1, source_doc=$2, scheduled_date=$3, updated_at=NOW() WHERE id=$4`,
			doc.Supplier, doc.SourceDoc, doc.ScheduledDate, doc.ID)
	case KindDelivery:
		tag, err = t.tx.Exec(ctx, `UPDATE deliveries SET customer=$1, source_doc=$2, delivery_address=$3, scheduled_date=$4, updated_at=NOW() WHERE id=$5`,
			doc.Customer, doc.SourceDoc, doc.DeliveryAddress, doc.ScheduledDate, doc.ID)
	case KindTransfer:
		tag, err = t.tx.Exec(ctx, `UPDATE transfers SET source_location_id=$1, destination_location_id=$2, scheduled_date=$3, updated_at=NOW() WHERE id=$4`,
			doc.SourceLocationID, doc.DestinationLocationID, doc.ScheduledDate, doc.ID)
	case KindAdjustment:
		tag, err = t.tx.Exec(ctx, `UPDATE adjustments SET reason=$1, scheduled_date=$2, updated_at=NOW() WHERE id=$3`,
			doc.Reason, doc.ScheduledDate, doc.ID)
	default:
		return fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, doc.Kind)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) GetForUpdate(ctx context.Context, kind Kind, id int64) (Document, error) {
	doc, err := getHeader(ctx, t.tx, kind, id, true)
	if err != nil {
		return Document{}, err
	}
	doc.Moves, err = loadMoves(ctx, t.tx, kind, id)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (t *txRepository) SetStatus(ctx context.Context, kind Kind, id int64, status Status) error {
	info := tables[kind]
	tag, err := t.tx.Exec(ctx, `UPDATE `+info.table+` SET status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) ReplaceMoves(ctx context.Context, kind Kind, docID int64, moves []Move) error {
	info := tables[kind]
	if _, err := t.tx.Exec(ctx, `DELETE FROM stock_moves WHERE `+info.moveFK+`=$1`, docID); err != nil {
		return err
	}
	for i := range moves {
		err := t.tx.QueryRow(ctx, `INSERT INTO stock_moves (product_id, quantity, type, status, source_location_id, destination_location_id, `+info.moveFK+`)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
			moves[i].ProductID, moves[i].Quantity, string(moves[i].Type), string(moves[i].Status),
			moves[i].SourceLocationID, moves[i].DestinationLocationID, docID).
			Scan(&moves[i].ID, &moves[i].CreatedAt)
		if err != nil {
			return fmt.Errorf("documents: insert move for product %d: %w", moves[i].ProductID, err)
		}
	}
	return nil
}

func (t *txRepository) SetMovesStatus(ctx context.Context, kind Kind, docID int64, status Status) error {
	info := tables[kind]
	_, err := t.tx.Exec(ctx, `UPDATE stock_moves SET status=$1 WHERE `+info.moveFK+`=$2`, string(status), docID)
	return err
}

func (t *txRepository) Delete(ctx context.Context, kind Kind, id int64) error {
	info := tables[kind]
	if _, err := t.tx.Exec(ctx, `DELETE FROM stock_moves WHERE `+info.moveFK+`=$1`, id); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM `+info.table+` WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) Ledger() LedgerTx {
	return stock.NewLedger(t.tx)
}

// querier is satisfied by both pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func headerSelect(kind Kind) string {
	var query string
	switch kind {
	case KindReceipt:
		query = `SELECT d.id, d.reference, d.status, d.warehouse_id, w.name, d.supplier, d.source_doc, d.scheduled_date, d.created_at, d.updated_at
FROM receipts d JOIN warehouses w ON w.id = d.warehouse_id`
	case KindDelivery:
		query = `SELECT d.id, d.reference, d.status, d.warehouse_id, w.name, d.customer, d.source_doc, d.delivery_address, d.scheduled_date, d.created_at, d.updated_at
FROM deliveries d JOIN warehouses w ON w.id = d.warehouse_id`
	case KindTransfer:
		query = `SELECT d.id, d.reference, d.status, d.source_location_id, d.destination_location_id, sl.warehouse_id, dl.warehouse_id, d.scheduled_date, d.created_at, d.updated_at
FROM transfers d JOIN locations sl ON sl.id = d.source_location_id JOIN locations dl ON dl.id = d.destination_location_id`
	case KindAdjustment:
		query = `SELECT d.id, d.reference, d.status, d.warehouse_id, w.name, d.reason, d.scheduled_date, d.created_at, d.updated_at
FROM adjustments d JOIN warehouses w ON w.id = d.warehouse_id`
	}
	return query
}

func getHeader(ctx context.Context, q querier, kind Kind, id int64, forUpdate bool) (Document, error) {
	query := headerSelect(kind)
	query += " WHERE d.id = $1"
	if forUpdate {
		query += " FOR UPDATE OF d"
	}
	doc, err := scanHeader(q.QueryRow(ctx, query, id), kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

func scanHeader(row pgx.Row, kind Kind) (Document, error) {
	doc := Document{Kind: kind}
	var err error
	switch kind {
	case KindReceipt:
		err = row.Scan(&doc.ID, &doc.Reference, &doc.Status, &doc.WarehouseID, &doc.WarehouseName,
			&doc.Supplier, &doc.SourceDoc, &doc.ScheduledDate, &doc.CreatedAt, &doc.UpdatedAt)
	case KindDelivery:
		err = row.Scan(&doc.ID, &doc.Reference, &doc.Status, &doc.WarehouseID, &doc.WarehouseName,
			&doc.Customer, &doc.SourceDoc, &doc.DeliveryAddress, &doc.ScheduledDate, &doc.CreatedAt, &doc.UpdatedAt)
	case KindTransfer:
		err = row.Scan(&doc.ID, &doc.Reference, &doc.Status, &doc.SourceLocationID, &doc.DestinationLocationID,
			&doc.sourceWarehouseID, &doc.destinationWarehouseID, &doc.ScheduledDate, &doc.CreatedAt, &doc.UpdatedAt)
	case KindAdjustment:
		err = row.Scan(&doc.ID, &doc.Reference, &doc.Status, &doc.WarehouseID, &doc.WarehouseName,
			&doc.Reason, &doc.ScheduledDate, &doc.CreatedAt, &doc.UpdatedAt)
	default:
		err = fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, kind)
	}
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

const moveSelect = `SELECT m.id, m.product_id, p.sku, p.name, m.quantity, m.type, m.status,
m.source_location_id, m.destination_location_id, m.created_at
FROM stock_moves m JOIN products p ON p.id = m.product_id`

func loadMoves(ctx context.Context, q querier, kind Kind, docID int64) ([]Move, error) {
	info := tables[kind]
	rows, err := q.Query(ctx, moveSelect+` WHERE m.`+info.moveFK+` = $1 ORDER BY m.id`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	moves := []Move{}
	for rows.Next() {
		var move Move
		if err := rows.Scan(&move.ID, &move.ProductID, &move.ProductSKU, &move.ProductName, &move.Quantity,
			&move.Type, &move.Status, &move.SourceLocationID, &move.DestinationLocationID, &move.CreatedAt); err != nil {
			return nil, err
		}
		moves = append(moves, move)
	}
	return moves, rows.Err()
}

func loadMovesBatch(ctx context.Context, q querier, kind Kind, docIDs []int64) (map[int64][]Move, error) {
	info := tables[kind]
	rows, err := q.Query(ctx, `SELECT m.id, m.product_id, p.sku, p.name, m.quantity, m.type, m.status,
m.source_location_id, m.destination_location_id, m.created_at, m.`+info.moveFK+`
FROM stock_moves m JOIN products p ON p.id = m.product_id
WHERE m.`+info.moveFK+` = ANY($1) ORDER BY m.id`, docIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byParent := map[int64][]Move{}
	for rows.Next() {
		var move Move
		var parentID int64
		if err := rows.Scan(&move.ID, &move.ProductID, &move.ProductSKU, &move.ProductName, &move.Quantity,
			&move.Type, &move.Status, &move.SourceLocationID, &move.DestinationLocationID, &move.CreatedAt, &parentID); err != nil {
			return nil, err
		}
		byParent[parentID] = append(byParent[parentID], move)
	}
	return byParent, rows.Err()
}

func scanMoveDetail(row pgx.Row) (MoveDetail, error) {
	var detail MoveDetail
	var receiptID, deliveryID, transferID, adjustmentID *int64
	err := row.Scan(&detail.ID, &detail.ProductID, &detail.ProductSKU, &detail.ProductName, &detail.Quantity,
		&detail.Type, &detail.Status, &detail.SourceLocationID, &detail.DestinationLocationID, &detail.CreatedAt,
		&receiptID, &deliveryID, &transferID, &adjustmentID, &detail.Reference)
	if err != nil {
		return MoveDetail{}, err
	}
	switch {
	case receiptID != nil:
		detail.DocumentKind, detail.DocumentID = KindReceipt, *receiptID
	case deliveryID != nil:
		detail.DocumentKind, detail.DocumentID = KindDelivery, *deliveryID
	case transferID != nil:
		detail.DocumentKind, detail.DocumentID = KindTransfer, *transferID
	case adjustmentID != nil:
		detail.DocumentKind, detail.DocumentID = KindAdjustment, *adjustmentID
	}
	return detail, nil
}
