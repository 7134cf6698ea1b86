package detector

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartflow/internal/domain/marketdata"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

func testConfig() Config {
	return Config{
		MinVolumeOIRatio: 0.5,
		MinVolume:        1000,
		MinPremiumUSD:    50000,
		TopPerSymbol:     5,
	}
}

// fakeGateway serves canned snapshots per symbol
type fakeGateway struct {
	snapshots map[string]*marketdata.Snapshot
}

func (g *fakeGateway) Snapshot(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	snap, ok := g.snapshots[symbol]
	if !ok {
		return nil, errors.ErrDataUnavailable
	}
	return snap, nil
}

func (g *fakeGateway) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	snap, ok := g.snapshots[symbol]
	if !ok {
		return decimal.Zero, errors.ErrDataUnavailable
	}
	return snap.CurrentPrice, nil
}

func vol(v int64) *int64 { return &v }

func quote(strike float64, volume *int64, oi int64, last float64) marketdata.OptionQuote {
	return marketdata.OptionQuote{
		ContractSymbol: "TEST",
		Strike:         decimal.NewFromFloat(strike),
		LastPrice:      decimal.NewFromFloat(last),
		Volume:         volume,
		OpenInterest:   oi,
	}
}

func TestFindUnusual_SkipsQuotesWithoutVolume(t *testing.T) {
	svc := NewService(nil, testConfig(), logger.Get())

	quotes := []marketdata.OptionQuote{
		quote(100, nil, 50, 40),    // no trade at all
		quote(110, vol(0), 50, 40), // zero volume
	}

	events := svc.FindUnusual(quotes, marketdata.OptionTypeCall)
	assert.Empty(t, events)
}

func TestFindUnusual_ZeroOpenInterestUsesRawVolumeAsRatio(t *testing.T) {
	svc := NewService(nil, testConfig(), logger.Get())

	// ratio falls back to the raw volume, premium = 1500*40*100
	events := svc.FindUnusual([]marketdata.OptionQuote{
		quote(100, vol(1500), 0, 40),
	}, marketdata.OptionTypeCall)

	require.Len(t, events, 1)
	assert.Equal(t, float64(1500), events[0].VolumeOIRatio)
	assert.True(t, events[0].PremiumEstimate.Equal(decimal.NewFromInt(6000000)),
		"premium = %s", events[0].PremiumEstimate)
}

func TestFindUnusual_BelowBothThresholdsExcluded(t *testing.T) {
	svc := NewService(nil, testConfig(), logger.Get())

	// ratio 0.2 <= 0.5, volume 200 <= 1000
	events := svc.FindUnusual([]marketdata.OptionQuote{
		quote(100, vol(200), 1000, 1),
	}, marketdata.OptionTypePut)

	assert.Empty(t, events)
}

func TestFindUnusual_ThresholdsCombineWithOR(t *testing.T) {
	svc := NewService(nil, testConfig(), logger.Get())

	// ratio 0.15 fails, but absolute volume 1500 qualifies on its own
	byVolume := svc.FindUnusual([]marketdata.OptionQuote{
		quote(100, vol(1500), 10000, 40),
	}, marketdata.OptionTypeCall)
	require.Len(t, byVolume, 1)
	assert.InDelta(t, 0.15, byVolume[0].VolumeOIRatio, 1e-9)

	// volume 600 fails, but ratio 6.0 qualifies on its own
	byRatio := svc.FindUnusual([]marketdata.OptionQuote{
		quote(100, vol(600), 100, 10),
	}, marketdata.OptionTypeCall)
	require.Len(t, byRatio, 1)
	assert.InDelta(t, 6.0, byRatio[0].VolumeOIRatio, 1e-9)
}

func TestFindUnusual_PremiumFloorExcludesCheapContracts(t *testing.T) {
	svc := NewService(nil, testConfig(), logger.Get())

	// ratio 20 qualifies, but premium = 2000*0.1*100 = 20,000 <= 50,000
	events := svc.FindUnusual([]marketdata.OptionQuote{
		quote(100, vol(2000), 100, 0.1),
	}, marketdata.OptionTypeCall)

	assert.Empty(t, events)
}

func TestFindUnusual_SortedByRatioDescending(t *testing.T) {
	svc := NewService(nil, testConfig(), logger.Get())

	events := svc.FindUnusual([]marketdata.OptionQuote{
		quote(100, vol(2000), 2000, 50), // ratio 1.0
		quote(105, vol(3000), 1000, 50), // ratio 3.0
		quote(110, vol(2000), 1000, 50), // ratio 2.0
	}, marketdata.OptionTypeCall)

	require.Len(t, events, 3)
	assert.Equal(t, 3.0, events[0].VolumeOIRatio)
	assert.Equal(t, 2.0, events[1].VolumeOIRatio)
	assert.Equal(t, 1.0, events[2].VolumeOIRatio)
}

func TestScan_TruncatesToTopPerSymbolAndFillsContext(t *testing.T) {
	calls := make([]marketdata.OptionQuote, 0, 8)
	for i := 0; i < 8; i++ {
		// ratios 2.0 .. 9.0
		calls = append(calls, quote(100+float64(i), vol(int64(2000+i*1000)), 1000, 50))
	}

	gw := &fakeGateway{snapshots: map[string]*marketdata.Snapshot{
		"AAPL": {
			Symbol:       "AAPL",
			CompanyName:  "Apple Inc.",
			CurrentPrice: decimal.NewFromFloat(187.5),
			Chain:        marketdata.OptionChain{Symbol: "AAPL", Calls: calls},
		},
	}}
	svc := NewService(gw, testConfig(), logger.Get())

	events := svc.Scan(context.Background(), "AAPL")
	require.Len(t, events, 5)

	for i, ev := range events {
		assert.Equal(t, "AAPL", ev.Symbol)
		assert.Equal(t, "Apple Inc.", ev.CompanyName)
		assert.True(t, ev.CurrentPrice.Equal(decimal.NewFromFloat(187.5)))
		if i > 0 {
			assert.GreaterOrEqual(t, events[i-1].VolumeOIRatio, ev.VolumeOIRatio)
		}
	}
}

func TestScan_ProviderFailureYieldsEmptyResult(t *testing.T) {
	svc := NewService(&fakeGateway{snapshots: map[string]*marketdata.Snapshot{}}, testConfig(), logger.Get())

	events := svc.Scan(context.Background(), "GONE")
	assert.Empty(t, events)
}

func TestScanWatchlist_SortsByPremiumAndSurvivesFailedSymbols(t *testing.T) {
	gw := &fakeGateway{snapshots: map[string]*marketdata.Snapshot{
		"AAPL": {
			Symbol: "AAPL",
			Chain: marketdata.OptionChain{Calls: []marketdata.OptionQuote{
				quote(100, vol(2000), 1000, 10), // premium 2,000,000
			}},
		},
		"TSLA": {
			Symbol: "TSLA",
			Chain: marketdata.OptionChain{Puts: []marketdata.OptionQuote{
				quote(200, vol(3000), 1000, 20), // premium 6,000,000
			}},
		},
	}}
	svc := NewService(gw, testConfig(), logger.Get())

	// MSFT has no data; the scan must still cover the rest
	events := svc.ScanWatchlist(context.Background(), []string{"AAPL", "MSFT", "TSLA"})

	require.Len(t, events, 2)
	assert.Equal(t, "TSLA", events[0].Symbol)
	assert.Equal(t, "AAPL", events[1].Symbol)
	assert.True(t, events[0].PremiumEstimate.GreaterThan(events[1].PremiumEstimate))
}

func TestScanWatchlist_StableOrderOnEqualPremium(t *testing.T) {
	gw := &fakeGateway{snapshots: map[string]*marketdata.Snapshot{
		"AAPL": {
			Symbol: "AAPL",
			Chain: marketdata.OptionChain{Calls: []marketdata.OptionQuote{
				quote(100, vol(2000), 1000, 10),
			}},
		},
		"TSLA": {
			Symbol: "TSLA",
			Chain: marketdata.OptionChain{Calls: []marketdata.OptionQuote{
				quote(100, vol(2000), 500, 10), // same premium, higher ratio
			}},
		},
	}}
	svc := NewService(gw, testConfig(), logger.Get())

	// Equal premiums keep scan order: AAPL first
	events := svc.ScanWatchlist(context.Background(), []string{"AAPL", "TSLA"})
	require.Len(t, events, 2)
	assert.Equal(t, "AAPL", events[0].Symbol)
	assert.Equal(t, "TSLA", events[1].Symbol)
}
