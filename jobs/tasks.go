package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockLowStockScan is the nightly low-stock detection task.
	TaskStockLowStockScan = "stock:low_stock_scan"
	// TaskMaintenanceIdempotencyCleanup prunes expired idempotency keys.
	TaskMaintenanceIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// ScanPayload carries scheduling metadata for periodic tasks.
type ScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs the low-stock scan task.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewIdempotencyCleanupTask constructs the idempotency cleanup task.
func NewIdempotencyCleanupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMaintenanceIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
