package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gescom/gescom/internal/commission"
	jobmetrics "github.com/gescom/gescom/internal/jobs"
)

// CommissionLedger is the slice of the commission repository the scan needs.
type CommissionLedger interface {
	ListOrphans(ctx context.Context, limit int) ([]commission.Commission, error)
}

// CommissionOrphanScanJob flags unpaid commissions whose sale is missing
// or was cancelled without the commission being voided. Such rows can
// appear when a sale transaction rolls back after the commission insert.
type CommissionOrphanScanJob struct {
	Ledger  CommissionLedger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewCommissionOrphanScanJob initialises the orphan scan handler.
func NewCommissionOrphanScanJob(ledger CommissionLedger, logger *slog.Logger, metrics *jobmetrics.Metrics) *CommissionOrphanScanJob {
	return &CommissionOrphanScanJob{Ledger: ledger, Logger: logger, Metrics: metrics}
}

// Handle executes one orphan scan.
func (j *CommissionOrphanScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("orphan scan: handler not configured")
	}
	var payload OrphanScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 500
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskCommissionOrphanScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	orphans, err := j.Ledger.ListOrphans(ctx, payload.Limit)
	if err != nil {
		resultErr = err
		j.logger().Error("orphan scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, c := range orphans {
		j.logger().Warn("orphan commission",
			slog.Int64("commission_id", c.ID),
			slog.Int64("sale_id", c.SaleID),
			slog.Int64("beneficiary_id", c.BeneficiaryID),
			slog.Float64("commission_due", c.CommissionDue),
		)
	}
	j.metrics().AddOrphanCommissions(len(orphans))

	j.logger().Info("completed orphan scan",
		slog.Int("orphans", len(orphans)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *CommissionOrphanScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCommissionOrphanScan))
	}
	return slog.Default().With(slog.String("job", TaskCommissionOrphanScan))
}

func (j *CommissionOrphanScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
