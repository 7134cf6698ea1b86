package analytics

import "time"

// SentimentPoint is one benchmark sentiment observation (ClickHouse)
type SentimentPoint struct {
	Timestamp    time.Time `ch:"timestamp"`
	Symbol       string    `ch:"symbol"`
	PutCallRatio float64   `ch:"put_call_ratio"`
	Score        float64   `ch:"score"`
	Label        string    `ch:"label"`
	CallVolume   int64     `ch:"call_volume"`
	PutVolume    int64     `ch:"put_volume"`
}

// ScanStat summarizes one watchlist scan per symbol, backing the
// activity heatmap and history views
type ScanStat struct {
	Timestamp     time.Time `ch:"timestamp"`
	Symbol        string    `ch:"symbol"`
	EventCount    uint32    `ch:"event_count"`
	TotalVolume   int64     `ch:"total_volume"`
	TotalPremium  float64   `ch:"total_premium"`
	TopRatio      float64   `ch:"top_ratio"`
}
