package locations

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
	List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error)
	Get(ctx context.Context, id int64) (Location, error)
	Create(ctx context.Context, location Location) (Location, error)
	Update(ctx context.Context, id int64, location Location) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectColumns = `l.id, l.warehouse_id, w.name, l.code, l.name, l.type, l.created_at, l.updated_at`

// List uses a dynamic query due to filter complexity
func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	query := `SELECT ` + selectColumns + ` FROM locations l JOIN warehouses w ON w.id = l.warehouse_id WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM locations l WHERE 1=1`
	args := []any{}
	countArgs := []any{}
	argCount := 0

	if filters.WarehouseID != nil {
		argCount++
		cond := ` AND l.warehouse_id = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, *filters.WarehouseID)
		countArgs = append(countArgs, *filters.WarehouseID)
	}
	if filters.Search != "" {
		argCount++
		cond := ` AND (l.name ILIKE $` + strconv.Itoa(argCount) + ` OR l.code ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
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

	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.WarehouseID, &l.WarehouseName, &l.Code, &l.Name, &l.Type, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, err
		}
		locations = append(locations, l)
	}
	return locations, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Location, error) {
	var l Location
	err := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM locations l JOIN warehouses w ON w.id = l.warehouse_id WHERE l.id=$1`, id).
		Scan(&l.ID, &l.WarehouseID, &l.WarehouseName, &l.Code, &l.Name, &l.Type, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, httpx.ErrNotFound
		}
		return Location{}, err
	}
	return l, nil
}

func (r *repository) Create(ctx context.Context, location Location) (Location, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO locations (warehouse_id, code, name, type) VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at`, location.WarehouseID, location.Code, location.Name, location.Type).
		Scan(&location.ID, &location.CreatedAt, &location.UpdatedAt)
	if err != nil {
		return Location{}, mapPgError(err)
	}
	return r.Get(ctx, location.ID)
}

func (r *repository) Update(ctx context.Context, id int64, location Location) error {
	tag, err := r.pool.Exec(ctx, `UPDATE locations SET warehouse_id=$1, code=$2, name=$3, type=$4, updated_at=NOW() WHERE id=$5`,
		location.WarehouseID, location.Code, location.Name, location.Type, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM locations WHERE id=$1`, id)
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
			return fmt.Errorf("%w: location code or name already used in this warehouse", httpx.ErrDuplicate)
		case "23503":
			// Inserts fail on locations itself; deletes fail on the
			// referencing table.
			if pgErr.TableName == "locations" {
				return fmt.Errorf("%w: invalid warehouse id", httpx.ErrValidation)
			}
			return fmt.Errorf("%w: location still referenced by stock or documents", httpx.ErrReferenced)
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
		return "l.code " + dir
	case "name":
		return "l.name " + dir
	default:
		return "l.code " + dir
	}
}
