package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gescom/gescom/internal/jobs"
	"github.com/gescom/gescom/internal/shared"
	"github.com/gescom/gescom/internal/stock"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StockLedger is the slice of the stock repository the scan needs.
type StockLedger interface {
	ListItems(ctx context.Context, cursor shared.Cursor) ([]stock.StockItem, error)
	MovementSum(ctx context.Context, stockID int64) (int64, error)
}

// StockReconcileJob recomputes every stock balance from the movement log
// and flags drift. It is an operational safety net, not a correctness
// path: balances and movements are written in the same transaction.
type StockReconcileJob struct {
	Ledger  StockLedger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStockReconcileJob initialises the reconciliation handler.
func NewStockReconcileJob(ledger StockLedger, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	return &StockReconcileJob{
		Ledger:  ledger,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one full reconciliation pass.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	var payload StockReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 200
	}

	start := j.now()
	tracker := j.metrics().Track(TaskStockReconcile)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting stock reconciliation", slog.Int("batch_size", payload.BatchSize))

	scanned, drifted, err := j.scan(ctx, payload.BatchSize)
	if err != nil {
		resultErr = err
		logger.Error("reconciliation failed", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed stock reconciliation",
		slog.Int("scanned", scanned),
		slog.Int("drifted", drifted),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *StockReconcileJob) scan(ctx context.Context, batchSize int) (int, int, error) {
	var scanned, drifted int
	cursor := shared.Cursor{Limit: batchSize}
	for {
		items, err := j.Ledger.ListItems(ctx, cursor)
		if err != nil {
			return scanned, drifted, err
		}
		if len(items) == 0 {
			return scanned, drifted, nil
		}
		for _, item := range items {
			scanned++
			sum, err := j.Ledger.MovementSum(ctx, item.ID)
			if err != nil {
				return scanned, drifted, err
			}
			if sum == item.Quantity {
				continue
			}
			drifted++
			j.logger().Warn("stock balance drift",
				slog.Int64("stock_id", item.ID),
				slog.String("code_produit", item.CodeProduit),
				slog.Int64("stored", item.Quantity),
				slog.Int64("ledger", sum),
			)
			j.metrics().AddDrift(item.ID, sum-item.Quantity)
		}
		cursor.AfterID = items[len(items)-1].ID
	}
}

func (j *StockReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockReconcile))
	}
	return slog.Default().With(slog.String("job", TaskStockReconcile))
}

func (j *StockReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StockReconcileJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
