package performance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"smartflow/internal/domain/alert"
	"smartflow/internal/domain/marketdata"
	"smartflow/pkg/logger"
)

// DefaultBatchSize bounds one backfill pass
const DefaultBatchSize = 100

// Service backfills alert performance horizons. Each alert records the
// underlying price at detection; once 1h, 1d and 1w have elapsed the
// then-current price and return are filled in, and the alert is marked
// successful when any horizon return beats the success threshold.
type Service struct {
	alerts    alert.Repository
	gateway   marketdata.Gateway
	batchSize int
	log       *logger.Logger
}

// NewService creates a new performance service
func NewService(alerts alert.Repository, gateway marketdata.Gateway, log *logger.Logger) *Service {
	return &Service{
		alerts:    alerts,
		gateway:   gateway,
		batchSize: DefaultBatchSize,
		log:       log,
	}
}

// Backfill fills every elapsed, still-empty horizon on pending alerts.
// Returns the number of horizon updates written. Per-alert fetch
// failures skip that alert and leave it pending for the next pass.
func (s *Service) Backfill(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	// Only alerts whose shortest horizon has elapsed can have work
	cutoff := now.Add(-alert.Horizon1h.Duration())

	pending, err := s.alerts.PendingPerformance(ctx, cutoff, s.batchSize)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range pending {
		n, err := s.backfillAlert(ctx, now, &pending[i])
		if err != nil {
			s.log.Warnw("Backfill skipped alert",
				"alert_id", pending[i].ID,
				"symbol", pending[i].Symbol,
				"error", err,
			)
			continue
		}
		updated += n
	}

	if updated > 0 {
		s.log.Infow("Performance backfill complete", "alerts", len(pending), "updates", updated)
	}

	return updated, nil
}

func (s *Service) backfillAlert(ctx context.Context, now time.Time, rec *alert.Record) (int, error) {
	var due []alert.Horizon
	for _, h := range alert.Horizons() {
		if rec.HorizonFilled(h) {
			continue
		}
		if now.Sub(rec.Timestamp) >= h.Duration() {
			due = append(due, h)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}

	// One price fetch covers every due horizon of this alert
	price, err := s.gateway.CurrentPrice(ctx, rec.Symbol)
	if err != nil {
		return 0, err
	}

	if !rec.ReferencePrice.IsPositive() {
		s.log.Warnw("Alert has no reference price, cannot compute returns", "alert_id", rec.ID)
		return 0, nil
	}

	ret := price.Sub(rec.ReferencePrice).Div(rec.ReferencePrice).InexactFloat64()

	updated := 0
	for _, h := range due {
		if err := s.alerts.UpdatePerformance(ctx, rec.ID, h, price, ret); err != nil {
			return updated, err
		}
		updated++
	}

	return updated, nil
}

// Stats returns aggregated alert outcomes for a user
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*alert.PerformanceStats, error) {
	return s.alerts.Stats(ctx, userID)
}
