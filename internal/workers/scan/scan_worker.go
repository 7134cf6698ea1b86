package scan

import (
	"context"
	"encoding/json"
	"time"

	"smartflow/internal/domain/alert"
	"smartflow/internal/domain/analytics"
	"smartflow/internal/domain/user"
	"smartflow/internal/metrics"
	"smartflow/internal/services/alerting"
	"smartflow/internal/workers"
	"smartflow/pkg/errors"
)

// userBatchSize bounds one scan pass over registered users
const userBatchSize = 500

// Worker runs the watchlist scan pipeline for every registered user
type Worker struct {
	*workers.BaseWorker
	users     user.Repository
	alerting  *alerting.Service
	analytics analytics.Repository
}

// NewWorker creates a new scan worker
func NewWorker(
	users user.Repository,
	alertingSvc *alerting.Service,
	analyticsRepo analytics.Repository,
	interval time.Duration,
	enabled bool,
) *Worker {
	return &Worker{
		BaseWorker: workers.NewBaseWorker("watchlist_scanner", interval, enabled),
		users:      users,
		alerting:   alertingSvc,
		analytics:  analyticsRepo,
	}
}

// Run executes one scan iteration across all users
func (w *Worker) Run(ctx context.Context) error {
	start := time.Now()

	accounts, err := w.users.List(ctx, userBatchSize, 0)
	if err != nil {
		metrics.RecordWorkerExecution(w.Name(), time.Since(start), err)
		return errors.Wrap(err, "list users")
	}

	if len(accounts) == 0 {
		w.Log().Debug("No registered users, nothing to scan")
		metrics.RecordWorkerExecution(w.Name(), time.Since(start), nil)
		return nil
	}

	var all []alert.Record
	for _, u := range accounts {
		saved, err := w.alerting.RunForUser(ctx, u)
		if err != nil {
			w.Log().Errorw("Scan failed for user", "user_id", u.ID, "error", err)
			continue
		}
		all = append(all, saved...)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	metrics.AlertsPersisted.Add(float64(len(all)))

	if stats := statsFromRecords(all); len(stats) > 0 {
		if err := w.analytics.InsertScanStats(ctx, stats); err != nil {
			w.Log().Warnw("Failed to record scan stats", "error", err)
		}
	}

	metrics.RecordWorkerExecution(w.Name(), time.Since(start), nil)
	return nil
}

// statsFromRecords aggregates one scan's records per symbol for the
// activity history
func statsFromRecords(records []alert.Record) []analytics.ScanStat {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	bySymbol := make(map[string]*analytics.ScanStat)
	var order []string

	for _, rec := range records {
		stat, ok := bySymbol[rec.Symbol]
		if !ok {
			stat = &analytics.ScanStat{Timestamp: now, Symbol: rec.Symbol}
			bySymbol[rec.Symbol] = stat
			order = append(order, rec.Symbol)
		}
		stat.EventCount++

		var activity alert.UnusualActivity
		if err := json.Unmarshal(rec.Details, &activity); err != nil {
			continue
		}
		stat.TotalVolume += activity.Volume
		stat.TotalPremium += activity.PremiumEstimate.InexactFloat64()
		if activity.VolumeOIRatio > stat.TopRatio {
			stat.TopRatio = activity.VolumeOIRatio
		}

		metrics.UnusualActivityDetected.WithLabelValues(activity.Symbol, string(activity.OptionType)).Inc()
	}

	stats := make([]analytics.ScanStat, 0, len(order))
	for _, sym := range order {
		stats = append(stats, *bySymbol[sym])
	}
	return stats
}
