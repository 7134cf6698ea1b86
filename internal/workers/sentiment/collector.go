package sentiment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"smartflow/internal/domain/analytics"
	"smartflow/internal/domain/marketdata"
	"smartflow/internal/events"
	"smartflow/internal/metrics"
	"smartflow/internal/services/sentiment"
	"smartflow/internal/workers"
	"smartflow/pkg/errors"
)

// CacheKey holds the latest snapshot for the dashboard API
const CacheKey = "sentiment:latest"

// CacheTTL keeps the cached snapshot a few intervals past staleness
const CacheTTL = 5 * time.Minute

// SnapshotCache stores the latest snapshot (redis in production)
type SnapshotCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// EventPublisher is the subset of the event publisher the collector needs
type EventPublisher interface {
	PublishSentimentUpdated(ctx context.Context, event *events.SentimentUpdatedEvent) error
}

// Collector captures the benchmark sentiment snapshot on an interval
type Collector struct {
	*workers.BaseWorker
	svc       *sentiment.Service
	analytics analytics.Repository
	cache     SnapshotCache
	publisher EventPublisher
}

// NewCollector creates a new sentiment collector
func NewCollector(
	svc *sentiment.Service,
	analyticsRepo analytics.Repository,
	cache SnapshotCache,
	publisher EventPublisher,
	interval time.Duration,
	enabled bool,
) *Collector {
	return &Collector{
		BaseWorker: workers.NewBaseWorker("sentiment_collector", interval, enabled),
		svc:        svc,
		analytics:  analyticsRepo,
		cache:      cache,
		publisher:  publisher,
	}
}

// Run executes one sentiment capture. The score itself never fails;
// persistence and cache failures are reported but a cached stale value
// never blocks the next capture.
func (c *Collector) Run(ctx context.Context) error {
	start := time.Now()

	snap := c.svc.Score(ctx)
	symbol := c.svc.Benchmark()

	metrics.RecordSentiment(symbol, snap.Score, snap.PutCallRatio)

	if err := c.cache.Set(ctx, CacheKey, snap, CacheTTL); err != nil {
		c.Log().Warnw("Failed to cache sentiment snapshot", "error", err)
	}

	if err := c.analytics.InsertSentiment(ctx, toPoint(symbol, snap)); err != nil {
		metrics.RecordWorkerExecution(c.Name(), time.Since(start), err)
		return errors.Wrap(err, "insert sentiment point")
	}

	if err := c.publisher.PublishSentimentUpdated(ctx, &events.SentimentUpdatedEvent{
		EventID:      uuid.New(),
		Symbol:       symbol,
		PutCallRatio: snap.PutCallRatio,
		Score:        snap.Score,
		Label:        snap.Label,
		CapturedAt:   snap.CapturedAt,
	}); err != nil {
		c.Log().Warnw("Failed to publish sentiment event", "error", err)
	}

	c.Log().Infow("Sentiment captured",
		"symbol", symbol,
		"score", snap.Score,
		"label", snap.Label,
		"put_call_ratio", snap.PutCallRatio,
	)

	metrics.RecordWorkerExecution(c.Name(), time.Since(start), nil)
	return nil
}

func toPoint(symbol string, snap marketdata.SentimentSnapshot) *analytics.SentimentPoint {
	return &analytics.SentimentPoint{
		Timestamp:    snap.CapturedAt,
		Symbol:       symbol,
		PutCallRatio: snap.PutCallRatio,
		Score:        snap.Score,
		Label:        snap.Label,
		CallVolume:   snap.TotalCallVolume,
		PutVolume:    snap.TotalPutVolume,
	}
}
