package warehouses

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
	List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error)
	Get(ctx context.Context, id int64) (Warehouse, error)
	Create(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	Update(ctx context.Context, id int64, warehouse Warehouse) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// List uses a dynamic query due to filter complexity
func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	query := `SELECT id, code, name, address, created_at, updated_at FROM warehouses WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM warehouses WHERE 1=1`
	countArgs := []any{}
	if filters.Search != "" {
		countQuery += ` AND (name ILIKE $1 OR code ILIKE $1)`
		countArgs = append(countArgs, "%"+filters.Search+"%")
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

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, 0, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, address, created_at, updated_at FROM warehouses WHERE id=$1`, id).
		Scan(&w.ID, &w.Code, &w.Name, &w.Address, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, httpx.ErrNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

func (r *repository) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouses (code, name, address) VALUES ($1, $2, $3)
RETURNING id, created_at, updated_at`, warehouse.Code, warehouse.Name, warehouse.Address).
		Scan(&warehouse.ID, &warehouse.CreatedAt, &warehouse.UpdatedAt)
	if err != nil {
		return Warehouse{}, mapPgError(err)
	}
	return warehouse, nil
}

func (r *repository) Update(ctx context.Context, id int64, warehouse Warehouse) error {
	tag, err := r.pool.Exec(ctx, `UPDATE warehouses SET code=$1, name=$2, address=$3, updated_at=NOW() WHERE id=$4`,
		warehouse.Code, warehouse.Name, warehouse.Address, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM warehouses WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: warehouse code already exists", httpx.ErrDuplicate)
		case "23503":
			return fmt.Errorf("%w: warehouse still has locations, stock or documents", httpx.ErrReferenced)
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
	case "code":
		return "code " + dir
	case "name":
		return "name " + dir
	default:
		return "name " + dir
	}
}
