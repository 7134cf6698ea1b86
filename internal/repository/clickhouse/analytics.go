package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"smartflow/internal/domain/analytics"
)

// Compile-time check
var _ analytics.Repository = (*AnalyticsRepository)(nil)

// AnalyticsRepository implements analytics.Repository using ClickHouse
type AnalyticsRepository struct {
	conn driver.Conn
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(conn driver.Conn) *AnalyticsRepository {
	return &AnalyticsRepository{conn: conn}
}

// InsertSentiment inserts one benchmark sentiment observation
func (r *AnalyticsRepository) InsertSentiment(ctx context.Context, point *analytics.SentimentPoint) error {
	query := `
		INSERT INTO sentiment_history (
			timestamp, symbol, put_call_ratio, score, label, call_volume, put_volume
		) VALUES (
			?, ?, ?, ?, ?, ?, ?
		)`

	return r.conn.Exec(ctx, query,
		point.Timestamp, point.Symbol, point.PutCallRatio, point.Score,
		point.Label, point.CallVolume, point.PutVolume,
	)
}

// SentimentHistory retrieves sentiment observations since a specific time
func (r *AnalyticsRepository) SentimentHistory(ctx context.Context, symbol string, since time.Time) ([]analytics.SentimentPoint, error) {
	var points []analytics.SentimentPoint

	query := `
		SELECT timestamp, symbol, put_call_ratio, score, label, call_volume, put_volume
		FROM sentiment_history
		WHERE symbol = ? AND timestamp >= ?
		ORDER BY timestamp ASC`

	err := r.conn.Select(ctx, &points, query, symbol, since)
	return points, err
}

// InsertScanStats inserts per-symbol stats for one watchlist scan
func (r *AnalyticsRepository) InsertScanStats(ctx context.Context, stats []analytics.ScanStat) error {
	if len(stats) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO scan_stats")
	if err != nil {
		return err
	}

	for i := range stats {
		if err := batch.AppendStruct(&stats[i]); err != nil {
			return err
		}
	}

	return batch.Send()
}

// ScanStatsSince retrieves scan stats since a specific time
func (r *AnalyticsRepository) ScanStatsSince(ctx context.Context, since time.Time) ([]analytics.ScanStat, error) {
	var stats []analytics.ScanStat

	query := `
		SELECT timestamp, symbol, event_count, total_volume, total_premium, top_ratio
		FROM scan_stats
		WHERE timestamp >= ?
		ORDER BY timestamp ASC`

	err := r.conn.Select(ctx, &stats, query, since)
	return stats, err
}
