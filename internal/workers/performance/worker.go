package performance

import (
	"context"
	"time"

	"smartflow/internal/metrics"
	"smartflow/internal/services/performance"
	"smartflow/internal/workers"
)

// Worker backfills alert performance horizons on an interval
type Worker struct {
	*workers.BaseWorker
	svc *performance.Service
}

// NewWorker creates a new performance backfill worker
func NewWorker(svc *performance.Service, interval time.Duration, enabled bool) *Worker {
	return &Worker{
		BaseWorker: workers.NewBaseWorker("performance_backfill", interval, enabled),
		svc:        svc,
	}
}

// Run executes one backfill pass
func (w *Worker) Run(ctx context.Context) error {
	start := time.Now()

	updated, err := w.svc.Backfill(ctx)
	metrics.RecordWorkerExecution(w.Name(), time.Since(start), err)
	if err != nil {
		return err
	}

	if updated > 0 {
		w.Log().Debugw("Backfill pass finished", "updates", updated)
	}

	return nil
}
