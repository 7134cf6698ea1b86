package analytics

import (
	"context"
	"time"
)

// Repository defines the interface for analytics time series (ClickHouse)
type Repository interface {
	InsertSentiment(ctx context.Context, point *SentimentPoint) error
	SentimentHistory(ctx context.Context, symbol string, since time.Time) ([]SentimentPoint, error)

	InsertScanStats(ctx context.Context, stats []ScanStat) error
	ScanStatsSince(ctx context.Context, since time.Time) ([]ScanStat, error)
}
