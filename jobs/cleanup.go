package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockmaster/stockmaster/internal/shared"
)

// IdempotencyCleaner prunes idempotency keys past their retention window.
type IdempotencyCleaner struct {
	store     *shared.IdempotencyStore
	retention time.Duration
	logger    *slog.Logger
}

// NewIdempotencyCleaner constructs the cleaner.
func NewIdempotencyCleaner(store *shared.IdempotencyStore, retention time.Duration, logger *slog.Logger) *IdempotencyCleaner {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &IdempotencyCleaner{store: store, retention: retention, logger: logger}
}

// Handle processes TaskMaintenanceIdempotencyCleanup tasks.
func (c *IdempotencyCleaner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := c.store.Cleanup(ctx, c.retention); err != nil {
		return err
	}
	c.logger.Info("idempotency cleanup completed", slog.Duration("retention", c.retention))
	return nil
}
