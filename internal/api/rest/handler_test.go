package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartflow/internal/domain/alert"
	"smartflow/internal/domain/analytics"
	"smartflow/internal/domain/marketdata"
	"smartflow/internal/domain/user"
	"smartflow/internal/services/detector"
	"smartflow/internal/services/performance"
	"smartflow/internal/services/sentiment"
	usersvc "smartflow/internal/services/user"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*user.User)}
}

func (r *memUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return errors.ErrAlreadyExists
		}
	}
	r.users[u.ID] = u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, errors.ErrNotFound
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *memUserRepo) List(_ context.Context, limit, offset int) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*user.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

type memSessions struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemSessions() *memSessions {
	return &memSessions{values: make(map[string]string)}
}

func (s *memSessions) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, _ := json.Marshal(value)
	s.values[key] = string(raw)
	return nil
}

func (s *memSessions) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.values[key]
	if !ok {
		return errors.ErrNotFound
	}
	return json.Unmarshal([]byte(raw), dest)
}

func (s *memSessions) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

type memAlertRepo struct {
	mu      sync.Mutex
	records []alert.Record
}

func (r *memAlertRepo) Save(_ context.Context, rec *alert.Record) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	r.records = append(r.records, *rec)
	return rec.ID, nil
}

func (r *memAlertRepo) Recent(_ context.Context, userID uuid.UUID, limit int) ([]alert.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []alert.Record
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAlertRepo) RecentBySymbol(ctx context.Context, userID uuid.UUID, symbol string, limit int) ([]alert.Record, error) {
	all, err := r.Recent(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	var out []alert.Record
	for _, rec := range all {
		if rec.Symbol == symbol {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memAlertRepo) LastForSymbol(_ context.Context, userID uuid.UUID, symbol string) (*alert.Record, error) {
	return nil, errors.ErrNotFound
}

func (r *memAlertRepo) MarkEmailSent(_ context.Context, id uuid.UUID) error { return nil }

func (r *memAlertRepo) PendingPerformance(_ context.Context, cutoff time.Time, limit int) ([]alert.Record, error) {
	return nil, nil
}

func (r *memAlertRepo) UpdatePerformance(_ context.Context, id uuid.UUID, h alert.Horizon, price decimal.Decimal, ret float64) error {
	return nil
}

func (r *memAlertRepo) Stats(_ context.Context, userID uuid.UUID) (*alert.PerformanceStats, error) {
	return &alert.PerformanceStats{TotalAlerts: 4, SuccessfulAlerts: 1, SuccessRate: 25}, nil
}

type memWatchlistRepo struct {
	mu      sync.Mutex
	symbols map[uuid.UUID][]string
}

func newMemWatchlistRepo() *memWatchlistRepo {
	return &memWatchlistRepo{symbols: make(map[uuid.UUID][]string)}
}

func (r *memWatchlistRepo) Add(_ context.Context, userID uuid.UUID, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.symbols[userID] {
		if s == symbol {
			return errors.ErrAlreadyExists
		}
	}
	r.symbols[userID] = append(r.symbols[userID], symbol)
	return nil
}

func (r *memWatchlistRepo) Remove(_ context.Context, userID uuid.UUID, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.symbols[userID] {
		if s == symbol {
			r.symbols[userID] = append(r.symbols[userID][:i], r.symbols[userID][i+1:]...)
			return nil
		}
	}
	return errors.ErrNotFound
}

func (r *memWatchlistRepo) Symbols(_ context.Context, userID uuid.UUID) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.symbols[userID]...), nil
}

type memAnalyticsRepo struct {
	points []analytics.SentimentPoint
}

func (r *memAnalyticsRepo) InsertSentiment(_ context.Context, p *analytics.SentimentPoint) error {
	r.points = append(r.points, *p)
	return nil
}

func (r *memAnalyticsRepo) SentimentHistory(_ context.Context, symbol string, since time.Time) ([]analytics.SentimentPoint, error) {
	return r.points, nil
}

func (r *memAnalyticsRepo) InsertScanStats(_ context.Context, stats []analytics.ScanStat) error {
	return nil
}

func (r *memAnalyticsRepo) ScanStatsSince(_ context.Context, since time.Time) ([]analytics.ScanStat, error) {
	return nil, nil
}

type missCache struct{}

func (missCache) Get(_ context.Context, _ string, _ interface{}) error {
	return errors.ErrNotFound
}

type fakeGateway struct {
	snapshots map[string]*marketdata.Snapshot
}

func (g *fakeGateway) Snapshot(_ context.Context, symbol string) (*marketdata.Snapshot, error) {
	if snap, ok := g.snapshots[symbol]; ok {
		return snap, nil
	}
	return nil, errors.ErrDataUnavailable
}

func (g *fakeGateway) CurrentPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	return decimal.Zero, errors.ErrDataUnavailable
}

func vol(v int64) *int64 { return &v }

func bigTradeSnapshot(symbol string) *marketdata.Snapshot {
	return &marketdata.Snapshot{
		Symbol:       symbol,
		CompanyName:  symbol + " Inc.",
		CurrentPrice: decimal.NewFromInt(180),
		Chain: marketdata.OptionChain{
			Symbol:     symbol,
			ExpiryDate: time.Now().Add(7 * 24 * time.Hour),
			Calls: []marketdata.OptionQuote{
				{
					ContractSymbol: symbol + "260918C00190000",
					Strike:         decimal.NewFromInt(190),
					LastPrice:      decimal.NewFromFloat(12.5),
					Volume:         vol(5000),
					OpenInterest:   100,
				},
			},
		},
		FetchedAt: time.Now(),
	}
}

func newTestServer(t *testing.T, gateway marketdata.Gateway) *httptest.Server {
	t.Helper()

	log := logger.Get()
	users := usersvc.NewService(newMemUserRepo(), newMemSessions(), log)
	det := detector.NewService(gateway, detector.Config{
		MinVolumeOIRatio: 0.5,
		MinVolume:        1000,
		MinPremiumUSD:    50000,
		TopPerSymbol:     5,
	}, log)
	sent := sentiment.NewService(gateway, "SPY", log)
	alerts := &memAlertRepo{}
	perf := performance.NewService(alerts, gateway, log)

	handler := New(log, users, det, sent, perf, alerts, newMemWatchlistRepo(), &memAnalyticsRepo{}, missCache{})

	mux := http.NewServeMux()
	handler.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body interface{}) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func registerAndLogin(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/register", "", registerRequest{
		Username: "trader",
		Email:    "trader@example.com",
		Password: "hunter2!",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/login", "", loginRequest{
		Username: "trader",
		Password: "hunter2!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login loginResponse
	require.NoError(t, json.Unmarshal(body, &login))
	require.NotEmpty(t, login.Token)
	return login.Token
}

func TestRegisterLoginAndAuthGate(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/watchlist", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := registerAndLogin(t, srv)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/watchlist", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/watchlist", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDuplicateUsernameConflicts(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	payload := registerRequest{Username: "trader", Email: "a@example.com", Password: "pw"}
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/register", "", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/register", "", payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestWatchlistLifecycle(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})
	token := registerAndLogin(t, srv)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/watchlist", token, watchlistAddRequest{Symbol: "aapl"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/watchlist", token, watchlistAddRequest{Symbol: "AAPL"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/watchlist", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Symbols []string `json:"symbols"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, []string{"AAPL"}, list.Symbols)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/watchlist/AAPL", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/watchlist/AAPL", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSentimentFallsBackToInlineScore(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/sentiment", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap struct {
		Symbol string  `json:"symbol"`
		Score  float64 `json:"sentiment_score"`
		Label  string  `json:"sentiment_label"`
	}
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, "SPY", snap.Symbol)
	assert.Equal(t, 50.0, snap.Score)
	assert.Equal(t, "Neutral", snap.Label)
}

func TestActivityScanForSymbol(t *testing.T) {
	gateway := &fakeGateway{snapshots: map[string]*marketdata.Snapshot{
		"NVDA": bigTradeSnapshot("NVDA"),
	}}
	srv := newTestServer(t, gateway)
	token := registerAndLogin(t, srv)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/activity?symbol=nvda", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Count      int                     `json:"count"`
		Activities []alert.UnusualActivity `json:"activities"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Equal(t, 1, result.Count)
	assert.Equal(t, "NVDA", result.Activities[0].Symbol)
	assert.Equal(t, marketdata.OptionTypeCall, result.Activities[0].OptionType)
}

func TestAlertsRejectsOutOfRangeLimit(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})
	token := registerAndLogin(t, srv)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/alerts?limit=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/alerts?limit=9999", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPerformanceStats(t *testing.T) {
	srv := newTestServer(t, &fakeGateway{})
	token := registerAndLogin(t, srv)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/performance", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats alert.PerformanceStats
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, int64(4), stats.TotalAlerts)
	assert.Equal(t, 25.0, stats.SuccessRate)
}
