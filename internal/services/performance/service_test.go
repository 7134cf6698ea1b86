package performance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartflow/internal/domain/alert"
	"smartflow/internal/domain/marketdata"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

type update struct {
	id      uuid.UUID
	horizon alert.Horizon
	price   decimal.Decimal
	ret     float64
}

type fakeAlertRepo struct {
	pending []alert.Record
	updates []update
}

func (f *fakeAlertRepo) Save(ctx context.Context, rec *alert.Record) (uuid.UUID, error) {
	return uuid.Nil, nil
}

func (f *fakeAlertRepo) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]alert.Record, error) {
	return nil, nil
}

func (f *fakeAlertRepo) RecentBySymbol(ctx context.Context, userID uuid.UUID, symbol string, limit int) ([]alert.Record, error) {
	return nil, nil
}

func (f *fakeAlertRepo) LastForSymbol(ctx context.Context, userID uuid.UUID, symbol string) (*alert.Record, error) {
	return nil, errors.ErrNotFound
}

func (f *fakeAlertRepo) MarkEmailSent(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeAlertRepo) PendingPerformance(ctx context.Context, cutoff time.Time, limit int) ([]alert.Record, error) {
	return f.pending, nil
}

func (f *fakeAlertRepo) UpdatePerformance(ctx context.Context, id uuid.UUID, h alert.Horizon, price decimal.Decimal, ret float64) error {
	f.updates = append(f.updates, update{id: id, horizon: h, price: price, ret: ret})
	return nil
}

func (f *fakeAlertRepo) Stats(ctx context.Context, userID uuid.UUID) (*alert.PerformanceStats, error) {
	return &alert.PerformanceStats{TotalAlerts: 42}, nil
}

type priceGateway struct {
	prices map[string]decimal.Decimal
}

func (g *priceGateway) Snapshot(ctx context.Context, symbol string) (*marketdata.Snapshot, error) {
	return nil, errors.ErrDataUnavailable
}

func (g *priceGateway) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := g.prices[symbol]
	if !ok {
		return decimal.Zero, errors.ErrDataUnavailable
	}
	return price, nil
}

func TestBackfill_FillsElapsedHorizonsOnly(t *testing.T) {
	id := uuid.New()
	repo := &fakeAlertRepo{pending: []alert.Record{{
		ID:             id,
		Symbol:         "AAPL",
		Timestamp:      time.Now().UTC().Add(-25 * time.Hour),
		ReferencePrice: decimal.NewFromInt(100),
	}}}
	gw := &priceGateway{prices: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(105),
	}}

	svc := NewService(repo, gw, logger.Get())
	updated, err := svc.Backfill(context.Background())
	require.NoError(t, err)

	// 25h elapsed: 1h and 1d are due, 1w is not
	assert.Equal(t, 2, updated)
	require.Len(t, repo.updates, 2)
	assert.Equal(t, alert.Horizon1h, repo.updates[0].horizon)
	assert.Equal(t, alert.Horizon1d, repo.updates[1].horizon)

	for _, u := range repo.updates {
		assert.Equal(t, id, u.id)
		assert.True(t, u.price.Equal(decimal.NewFromInt(105)))
		assert.InDelta(t, 0.05, u.ret, 1e-9)
	}
}

func TestBackfill_SkipsAlreadyFilledHorizons(t *testing.T) {
	ret1h := 0.01
	repo := &fakeAlertRepo{pending: []alert.Record{{
		ID:             uuid.New(),
		Symbol:         "TSLA",
		Timestamp:      time.Now().UTC().Add(-2 * time.Hour),
		ReferencePrice: decimal.NewFromInt(200),
		Return1h:       &ret1h,
	}}}
	gw := &priceGateway{prices: map[string]decimal.Decimal{
		"TSLA": decimal.NewFromInt(210),
	}}

	svc := NewService(repo, gw, logger.Get())
	updated, err := svc.Backfill(context.Background())
	require.NoError(t, err)

	// 1h already filled, 1d and 1w not yet due
	assert.Zero(t, updated)
	assert.Empty(t, repo.updates)
}

func TestBackfill_PriceFailureLeavesAlertPending(t *testing.T) {
	repo := &fakeAlertRepo{pending: []alert.Record{{
		ID:             uuid.New(),
		Symbol:         "GONE",
		Timestamp:      time.Now().UTC().Add(-2 * time.Hour),
		ReferencePrice: decimal.NewFromInt(50),
	}}}
	gw := &priceGateway{prices: map[string]decimal.Decimal{}}

	svc := NewService(repo, gw, logger.Get())
	updated, err := svc.Backfill(context.Background())
	require.NoError(t, err)

	assert.Zero(t, updated)
	assert.Empty(t, repo.updates)
}

func TestStats_Passthrough(t *testing.T) {
	svc := NewService(&fakeAlertRepo{}, &priceGateway{}, logger.Get())

	stats, err := svc.Stats(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(42), stats.TotalAlerts)
}
