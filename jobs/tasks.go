package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockReconcile recomputes stock balances from the movement log.
	TaskStockReconcile = "stock:reconcile"
	// TaskCommissionOrphanScan flags commissions whose sale is gone.
	TaskCommissionOrphanScan = "commission:orphan_scan"
	// TaskSettlementScan compares sale amount_paid against the payments log.
	TaskSettlementScan = "sales:settlement_scan"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// StockReconcilePayload bounds one reconciliation pass.
type StockReconcilePayload struct {
	BatchSize int `json:"batch_size"`
}

// NewStockReconcileTask constructs the reconciliation task.
func NewStockReconcileTask(batchSize int) (*asynq.Task, error) {
	data, err := json.Marshal(StockReconcilePayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockReconcile, data), nil
}

// OrphanScanPayload bounds one orphan commission scan.
type OrphanScanPayload struct {
	Limit int `json:"limit"`
}

// NewCommissionOrphanScanTask constructs the orphan scan task.
func NewCommissionOrphanScanTask(limit int) (*asynq.Task, error) {
	data, err := json.Marshal(OrphanScanPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionOrphanScan, data), nil
}

// SettlementScanPayload bounds one settlement drift scan.
type SettlementScanPayload struct {
	Limit int `json:"limit"`
}

// NewSettlementScanTask constructs the settlement scan task.
func NewSettlementScanTask(limit int) (*asynq.Task, error) {
	data, err := json.Marshal(SettlementScanPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementScan, data), nil
}

// IdempotencyCleanupPayload carries the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
