package jobs

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeSalesLedger struct {
	drifting []int64
	gotLimit int
}

func (f *fakeSalesLedger) SettlementDrift(_ context.Context, limit int) ([]int64, error) {
	f.gotLimit = limit
	return f.drifting, nil
}

func TestSettlementScanReportsDrift(t *testing.T) {
	ledger := &fakeSalesLedger{drifting: []int64{4, 9}}
	job := NewSettlementScanJob(ledger, nil, nil)

	task, err := NewSettlementScanTask(0)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 500, ledger.gotLimit)
}

func TestSettlementScanRejectsBadPayload(t *testing.T) {
	job := NewSettlementScanJob(&fakeSalesLedger{}, nil, nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskSettlementScan, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
