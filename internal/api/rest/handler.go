package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"smartflow/internal/domain/alert"
	"smartflow/internal/domain/analytics"
	"smartflow/internal/domain/marketdata"
	"smartflow/internal/domain/watchlist"
	"smartflow/internal/services/detector"
	"smartflow/internal/services/performance"
	"smartflow/internal/services/sentiment"
	usersvc "smartflow/internal/services/user"
	sentimentworker "smartflow/internal/workers/sentiment"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500

	defaultHistoryHours = 24
	maxHistoryHours     = 24 * 30
)

// SnapshotCache reads cached values (redis in production)
type SnapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
}

// Handler serves the dashboard JSON API
type Handler struct {
	log         *logger.Logger
	users       *usersvc.Service
	detector    *detector.Service
	sentiment   *sentiment.Service
	performance *performance.Service
	alerts      alert.Repository
	watchlists  watchlist.Repository
	analytics   analytics.Repository
	cache       SnapshotCache
}

// New creates a new API handler
func New(
	log *logger.Logger,
	users *usersvc.Service,
	detectorSvc *detector.Service,
	sentimentSvc *sentiment.Service,
	performanceSvc *performance.Service,
	alerts alert.Repository,
	watchlists watchlist.Repository,
	analyticsRepo analytics.Repository,
	cache SnapshotCache,
) *Handler {
	return &Handler{
		log:         log,
		users:       users,
		detector:    detectorSvc,
		sentiment:   sentimentSvc,
		performance: performanceSvc,
		alerts:      alerts,
		watchlists:  watchlists,
		analytics:   analyticsRepo,
		cache:       cache,
	}
}

// Register mounts all API routes on the mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", h.handleRegister)
	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.HandleFunc("POST /api/logout", h.requireAuth(h.handleLogout))

	mux.HandleFunc("GET /api/sentiment", h.handleSentiment)
	mux.HandleFunc("GET /api/sentiment/history", h.handleSentimentHistory)

	mux.HandleFunc("GET /api/activity", h.requireAuth(h.handleActivity))
	mux.HandleFunc("GET /api/alerts", h.requireAuth(h.handleAlerts))
	mux.HandleFunc("GET /api/performance", h.requireAuth(h.handlePerformance))

	mux.HandleFunc("GET /api/watchlist", h.requireAuth(h.handleWatchlistGet))
	mux.HandleFunc("POST /api/watchlist", h.requireAuth(h.handleWatchlistAdd))
	mux.HandleFunc("DELETE /api/watchlist/{symbol}", h.requireAuth(h.handleWatchlistRemove))
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.Wrap(errors.ErrInvalidInput, "malformed request body"))
		return
	}

	u, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Email:    u.Email,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.Wrap(errors.ErrInvalidInput, "malformed request body"))
		return
	}

	token, u, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User: userResponse{
			ID:       u.ID.String(),
			Username: u.Username,
			Email:    u.Email,
		},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.users.Logout(r.Context(), bearerToken(r)); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// handleSentiment returns the latest benchmark snapshot. The cached
// value from the collector is preferred; a cache miss computes one
// inline so the dashboard always has something to show.
func (h *Handler) handleSentiment(w http.ResponseWriter, r *http.Request) {
	var snap marketdata.SentimentSnapshot
	if err := h.cache.Get(r.Context(), sentimentworker.CacheKey, &snap); err != nil {
		snap = h.sentiment.Score(r.Context())
	}

	writeJSON(w, http.StatusOK, struct {
		Symbol string `json:"symbol"`
		marketdata.SentimentSnapshot
	}{Symbol: h.sentiment.Benchmark(), SentimentSnapshot: snap})
}

func (h *Handler) handleSentimentHistory(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", defaultHistoryHours)
	if hours < 1 || hours > maxHistoryHours {
		h.writeError(w, errors.Wrap(errors.ErrInvalidInput, "hours out of range"))
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	points, err := h.analytics.SentimentHistory(r.Context(), h.sentiment.Benchmark(), since)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": h.sentiment.Benchmark(),
		"points": points,
	})
}

// handleActivity runs an on-demand scan. With ?symbol= it scans one
// symbol, otherwise the caller's watchlist.
func (h *Handler) handleActivity(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())

	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	var activities []alert.UnusualActivity
	if symbol != "" {
		activities = h.detector.Scan(r.Context(), symbol)
	} else {
		symbols, err := h.watchlists.Symbols(r.Context(), u.ID)
		if err != nil {
			h.writeError(w, err)
			return
		}
		activities = h.detector.ScanWatchlist(r.Context(), symbols)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(activities),
		"activities": activities,
	})
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())

	limit := queryInt(r, "limit", defaultAlertLimit)
	if limit < 1 || limit > maxAlertLimit {
		h.writeError(w, errors.Wrap(errors.ErrInvalidInput, "limit out of range"))
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))

	var (
		records []alert.Record
		err     error
	)
	if symbol != "" {
		records, err = h.alerts.RecentBySymbol(r.Context(), u.ID, symbol, limit)
	} else {
		records, err = h.alerts.Recent(r.Context(), u.ID, limit)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(records),
		"alerts": records,
	})
}

func (h *Handler) handlePerformance(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())

	stats, err := h.performance.Stats(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleWatchlistGet(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())

	symbols, err := h.watchlists.Symbols(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": symbols})
}

type watchlistAddRequest struct {
	Symbol string `json:"symbol"`
}

func (h *Handler) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())

	var req watchlistAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.Wrap(errors.ErrInvalidInput, "malformed request body"))
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		h.writeError(w, errors.Wrap(errors.ErrInvalidInput, "symbol is required"))
		return
	}

	if err := h.watchlists.Add(r.Context(), u.ID, symbol); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"symbol": symbol})
}

func (h *Handler) handleWatchlistRemove(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())

	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	if err := h.watchlists.Remove(r.Context(), u.ID, symbol); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"symbol": symbol})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, errors.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.Is(err, errors.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, errors.ErrAlreadyExists):
		code = http.StatusConflict
	}

	if code == http.StatusInternalServerError {
		h.log.Errorw("Request failed", "error", err)
		writeJSON(w, code, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
