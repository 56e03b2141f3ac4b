// Package sequence allocates per-year sequential document references.
package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Next atomically allocates the next counter value for a prefix within a
// year. It must run inside the transaction that persists the document so a
// rolled-back creation does not burn a visible reference.
func Next(ctx context.Context, tx pgx.Tx, prefix string, year int) (int64, error) {
	if prefix == "" {
		return 0, fmt.Errorf("sequence: prefix required")
	}
	var value int64
	err := tx.QueryRow(ctx, `INSERT INTO document_sequences (prefix, year, value)
VALUES ($1, $2, 1)
ON CONFLICT (prefix, year) DO UPDATE SET value = document_sequences.value + 1
RETURNING value`, prefix, year).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("sequence: allocate %s/%d: %w", prefix, year, err)
	}
	return value, nil
}

// Format renders a reference as PREFIX/YYYY/NNNN with a zero-padded counter.
func Format(prefix string, year int, value int64) string {
	return fmt.Sprintf("%s/%d/%04d", prefix, year, value)
}
