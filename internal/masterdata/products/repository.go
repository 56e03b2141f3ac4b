package products

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockmaster/stockmaster/internal/masterdata/shared"
	"github.com/stockmaster/stockmaster/internal/platform/httpx"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
	Deactivate(ctx context.Context, id int64) error
	OnHand(ctx context.Context, id int64) (int64, error)
	HasMoves(ctx context.Context, id int64) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectColumns = `p.id, p.sku, p.name, p.description, p.category_id, COALESCE(c.name, ''), p.uom, p.min_stock, p.is_active, p.created_at, p.updated_at`

// List uses a dynamic query due to filter complexity
func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	query := `SELECT ` + selectColumns + ` FROM products p LEFT JOIN categories c ON c.id = p.category_id WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products p WHERE 1=1`
	args := []any{}
	countArgs := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		cond := ` AND (p.name ILIKE $` + strconv.Itoa(argCount) + ` OR p.sku ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.CategoryID != nil {
		argCount++
		cond := ` AND p.category_id = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, *filters.CategoryID)
		countArgs = append(countArgs, *filters.CategoryID)
	}
	if filters.IsActive != nil {
		argCount++
		cond := ` AND p.is_active = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, *filters.IsActive)
		countArgs = append(countArgs, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += " ORDER BY " + sortOrder(filters.SortBy, filters.SortDir)

	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.CategoryName,
			&p.UOM, &p.MinStock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM products p LEFT JOIN categories c ON c.id = p.category_id WHERE p.id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.CategoryName,
			&p.UOM, &p.MinStock, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, httpx.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO products (sku, name, description, category_id, uom, min_stock, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at, updated_at`,
		product.SKU, product.Name, product.Description, product.CategoryID, product.UOM, product.MinStock, product.IsActive).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return Product{}, mapPgError(err)
	}
	return r.Get(ctx, product.ID)
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET sku=$1, name=$2, description=$3, category_id=$4, uom=$5, min_stock=$6, is_active=$7, updated_at=NOW() WHERE id=$8`,
		product.SKU, product.Name, product.Description, product.CategoryID, product.UOM, product.MinStock, product.IsActive, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// OnHand sums on-hand quantity across all locations.
func (r *repository) OnHand(ctx context.Context, id int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stocks WHERE product_id=$1`, id).Scan(&total)
	return total, err
}

// HasMoves reports whether any document line references the product.
func (r *repository) HasMoves(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_moves WHERE product_id=$1)`, id).Scan(&exists)
	return exists, err
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: sku already exists", httpx.ErrDuplicate)
		case "23503":
			if pgErr.TableName == "products" {
				return fmt.Errorf("%w: invalid category id", httpx.ErrValidation)
			}
			return fmt.Errorf("%w: product still referenced by stock or documents", httpx.ErrReferenced)
		}
	}
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "p.sku " + dir
	case "created":
		return "p.created_at " + dir
	default:
		return "p.name " + dir
	}
}
