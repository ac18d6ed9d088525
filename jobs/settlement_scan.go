package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gescom/gescom/internal/jobs"
)

// SalesLedger is the slice of the sales repository the scan needs.
type SalesLedger interface {
	SettlementDrift(ctx context.Context, limit int) ([]int64, error)
}

// SettlementScanJob compares each sale's stored amount_paid against the sum
// of its payment rows. The two are written in the same transaction, so any
// disagreement points at manual data edits and needs operator review.
type SettlementScanJob struct {
	Ledger  SalesLedger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSettlementScanJob initialises the settlement scan handler.
func NewSettlementScanJob(ledger SalesLedger, logger *slog.Logger, metrics *jobmetrics.Metrics) *SettlementScanJob {
	return &SettlementScanJob{Ledger: ledger, Logger: logger, Metrics: metrics}
}

// Handle executes one settlement scan.
func (j *SettlementScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("settlement scan: handler not configured")
	}
	var payload SettlementScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 500
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskSettlementScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	saleIDs, err := j.Ledger.SettlementDrift(ctx, payload.Limit)
	if err != nil {
		resultErr = err
		j.logger().Error("settlement scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, id := range saleIDs {
		j.logger().Warn("sale settlement drift", slog.Int64("sale_id", id))
	}
	j.metrics().AddUnsettledSales(len(saleIDs))

	j.logger().Info("completed settlement scan",
		slog.Int("drifting", len(saleIDs)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *SettlementScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSettlementScan))
	}
	return slog.Default().With(slog.String("job", TaskSettlementScan))
}

func (j *SettlementScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
