package sentiment

import (
	"context"
	"time"

	"smartflow/internal/domain/marketdata"
	"smartflow/pkg/logger"
)

// Sentiment labels, high score to low
const (
	LabelExtremeGreed = "Extreme Greed"
	LabelGreed        = "Greed"
	LabelNeutral      = "Neutral"
	LabelFear         = "Fear"
	LabelExtremeFear  = "Extreme Fear"
)

// Service converts benchmark put/call volume into a bounded sentiment score
type Service struct {
	gateway   marketdata.Gateway
	benchmark string
	log       *logger.Logger
}

// NewService creates a new sentiment service for a benchmark symbol
func NewService(gateway marketdata.Gateway, benchmark string, log *logger.Logger) *Service {
	return &Service{
		gateway:   gateway,
		benchmark: benchmark,
		log:       log,
	}
}

// Benchmark returns the symbol the score is computed from
func (s *Service) Benchmark() string {
	return s.benchmark
}

// Score computes the current sentiment snapshot from the benchmark's
// nearest-expiry option chain. Any fetch or computation failure returns
// the fixed neutral default instead of an error.
func (s *Service) Score(ctx context.Context) marketdata.SentimentSnapshot {
	snap, err := s.gateway.Snapshot(ctx, s.benchmark)
	if err != nil {
		s.log.Warnw("Sentiment unavailable, returning neutral default",
			"symbol", s.benchmark,
			"error", err,
		)
		return NeutralDefault()
	}

	callVolume, putVolume := snap.Chain.TotalVolumes()
	return Compute(callVolume, putVolume)
}

// Compute derives a snapshot from aggregate call and put volume.
// It is a pure function: identical volumes yield identical snapshots
// (modulo the capture timestamp).
func Compute(callVolume, putVolume int64) marketdata.SentimentSnapshot {
	ratio := 0.0
	if callVolume > 0 {
		ratio = float64(putVolume) / float64(callVolume)
	}

	score := ScoreForRatio(ratio)

	return marketdata.SentimentSnapshot{
		PutCallRatio:    ratio,
		Score:           score,
		Label:           LabelForScore(score),
		TotalCallVolume: callVolume,
		TotalPutVolume:  putVolume,
		CapturedAt:      time.Now().UTC(),
	}
}

// ScoreForRatio maps a put/call ratio onto the 0-100 sentiment scale.
// A low ratio is bullish, a high one bearish; the band between 0.7 and
// 1.3 is flat neutral. The result is clamped to [0, 100].
func ScoreForRatio(ratio float64) float64 {
	var score float64
	switch {
	case ratio < 0.7:
		score = 80 + (0.7-ratio)*20
	case ratio > 1.3:
		score = 20 - (ratio-1.3)*10
	default:
		score = 50
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// LabelForScore maps a clamped score onto the five sentiment bands,
// evaluated high to low with inclusive lower bounds.
func LabelForScore(score float64) string {
	switch {
	case score >= 80:
		return LabelExtremeGreed
	case score >= 65:
		return LabelGreed
	case score >= 50:
		return LabelNeutral
	case score >= 35:
		return LabelFear
	default:
		return LabelExtremeFear
	}
}

// NeutralDefault is the fail-safe snapshot used when the provider is
// unreachable.
func NeutralDefault() marketdata.SentimentSnapshot {
	return marketdata.SentimentSnapshot{
		PutCallRatio:    1.0,
		Score:           50,
		Label:           LabelNeutral,
		TotalCallVolume: 0,
		TotalPutVolume:  0,
		CapturedAt:      time.Now().UTC(),
	}
}
