package jobs

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/gescom/gescom/internal/shared"
	"github.com/gescom/gescom/internal/stock"
)

type fakeLedger struct {
	items map[int64]stock.StockItem
	sums  map[int64]int64
}

func (f *fakeLedger) ListItems(_ context.Context, cursor shared.Cursor) ([]stock.StockItem, error) {
	var out []stock.StockItem
	for id := cursor.AfterID + 1; id <= int64(len(f.items)); id++ {
		out = append(out, f.items[id])
		if len(out) == cursor.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeLedger) MovementSum(_ context.Context, stockID int64) (int64, error) {
	return f.sums[stockID], nil
}

func TestStockReconcileDetectsDrift(t *testing.T) {
	ledger := &fakeLedger{
		items: map[int64]stock.StockItem{
			1: {ID: 1, Quantity: 10},
			2: {ID: 2, Quantity: 5},
			3: {ID: 3, Quantity: 7},
		},
		sums: map[int64]int64{1: 10, 2: 8, 3: 7},
	}
	job := NewStockReconcileJob(ledger, nil, nil)

	scanned, drifted, err := job.scan(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 3, scanned)
	require.Equal(t, 1, drifted)
}

func TestStockReconcileRejectsBadPayload(t *testing.T) {
	job := NewStockReconcileJob(&fakeLedger{items: map[int64]stock.StockItem{}, sums: map[int64]int64{}}, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskStockReconcile, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
