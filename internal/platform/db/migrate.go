package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate runs all pending goose migrations from the given filesystem.
func Migrate(ctx context.Context, dsn string, migrations fs.FS) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("platform/db: open migration connection: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("platform/db: set goose dialect: %w", err)
	}
	goose.SetBaseFS(migrations)

	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("platform/db: goose up: %w", err)
	}
	return nil
}

// MigrateCommand runs an arbitrary goose command, used by the migrate CLI.
func MigrateCommand(ctx context.Context, dsn string, migrations fs.FS, command string, args ...string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("platform/db: open migration connection: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("platform/db: set goose dialect: %w", err)
	}
	goose.SetBaseFS(migrations)

	if err := goose.RunContext(ctx, command, sqlDB, ".", args...); err != nil {
		return fmt.Errorf("platform/db: goose %s: %w", command, err)
	}
	return nil
}
