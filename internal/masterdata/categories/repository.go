package categories

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
	List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error)
	Get(ctx context.Context, id int64) (Category, error)
	Create(ctx context.Context, category Category) (Category, error)
	Update(ctx context.Context, id int64, category Category) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// List uses a dynamic query due to filter complexity
func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM categories WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		query += ` AND name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
	}

	countQuery := `SELECT COUNT(*) FROM categories WHERE 1=1`
	countArgs := []any{}
	if filters.Search != "" {
		countQuery += ` AND name ILIKE $1`
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

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		categories = append(categories, c)
	}
	return categories, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM categories WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, httpx.ErrNotFound
		}
		return Category{}, err
	}
	return c, nil
}

func (r *repository) Create(ctx context.Context, category Category) (Category, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (name, description) VALUES ($1, $2)
RETURNING id, created_at, updated_at`, category.Name, category.Description).
		Scan(&category.ID, &category.CreatedAt, &category.UpdatedAt)
	if err != nil {
		return Category{}, mapPgError(err, "category name already exists")
	}
	return category, nil
}

func (r *repository) Update(ctx context.Context, id int64, category Category) error {
	tag, err := r.pool.Exec(ctx, `UPDATE categories SET name=$1, description=$2, updated_at=NOW() WHERE id=$3`,
		category.Name, category.Description, id)
	if err != nil {
		return mapPgError(err, "category name already exists")
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err, "")
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func mapPgError(err error, duplicateDetail string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", httpx.ErrDuplicate, duplicateDetail)
		case "23503":
			return fmt.Errorf("%w: category still has products", httpx.ErrReferenced)
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
	case "created":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
