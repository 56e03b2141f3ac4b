package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LowStockScanner records alert rows for products whose on-hand total fell
// to or below their minimum stock.
type LowStockScanner struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLowStockScanner constructs the scanner.
func NewLowStockScanner(pool *pgxpool.Pool, logger *slog.Logger) *LowStockScanner {
	return &LowStockScanner{pool: pool, logger: logger}
}

// Handle processes TaskStockLowStockScan tasks.
func (s *LowStockScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tag, err := s.pool.Exec(ctx, `INSERT INTO stock_alerts (product_id, on_hand, min_stock)
SELECT p.id, COALESCE(SUM(st.quantity), 0), p.min_stock
FROM products p
LEFT JOIN stocks st ON st.product_id = p.id
WHERE p.is_active AND p.min_stock > 0
GROUP BY p.id, p.min_stock
HAVING COALESCE(SUM(st.quantity), 0) <= p.min_stock`)
	if err != nil {
		return err
	}

	s.logger.Info("low stock scan completed",
		slog.Int64("alerts", tag.RowsAffected()),
		slog.Time("scheduled_for", payload.ScheduledFor))
	return nil
}
