package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"smartflow/internal/domain/alert"
	"smartflow/internal/domain/user"
	"smartflow/internal/domain/watchlist"
	"smartflow/internal/events"
	"smartflow/internal/metrics"
	"smartflow/internal/services/detector"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

// DefaultDedupWindow suppresses repeat alerts for a symbol per user
const DefaultDedupWindow = time.Hour

// DefaultNotifyLimit caps how many alerts per scan get a notification.
// Everything detected is persisted; only the largest trades are mailed.
const DefaultNotifyLimit = 3

// DedupCache is the subset of the redis client the service needs
type DedupCache interface {
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

// Publisher is the subset of the event publisher the service needs
type Publisher interface {
	PublishAlertDetected(ctx context.Context, event *events.AlertDetectedEvent) error
}

// Config tunes the alerting pipeline
type Config struct {
	// DefaultWatchlist covers users without a personal watchlist
	DefaultWatchlist []string
	DedupWindow      time.Duration
	NotifyLimit      int
}

// Service runs the detection pipeline for a user: scan, deduplicate,
// persist, publish for delivery.
type Service struct {
	detector   *detector.Service
	alerts     alert.Repository
	watchlists watchlist.Repository
	cache      DedupCache
	publisher  Publisher
	cfg        Config
	log        *logger.Logger
}

// NewService creates a new alerting service
func NewService(
	det *detector.Service,
	alerts alert.Repository,
	watchlists watchlist.Repository,
	cache DedupCache,
	publisher Publisher,
	cfg Config,
	log *logger.Logger,
) *Service {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.NotifyLimit <= 0 {
		cfg.NotifyLimit = DefaultNotifyLimit
	}
	return &Service{
		detector:   det,
		alerts:     alerts,
		watchlists: watchlists,
		cache:      cache,
		publisher:  publisher,
		cfg:        cfg,
		log:        log,
	}
}

// RunForUser executes one full scan cycle for a user and returns the
// records persisted this cycle. Detection failures for individual
// symbols degrade to fewer results, never to an error.
func (s *Service) RunForUser(ctx context.Context, u *user.User) ([]alert.Record, error) {
	symbols, err := s.watchlists.Symbols(ctx, u.ID)
	if err != nil {
		s.log.Warnw("Watchlist lookup failed, using default", "user_id", u.ID, "error", err)
		symbols = nil
	}
	if len(symbols) == 0 {
		symbols = s.cfg.DefaultWatchlist
	}

	activities := s.detector.ScanWatchlist(ctx, symbols)

	var saved []alert.Record
	notified := 0

	for _, activity := range activities {
		fresh, err := s.markSeen(ctx, u.ID, activity.Symbol)
		if err != nil {
			s.log.Warnw("Dedup check failed, suppressing alert",
				"symbol", activity.Symbol,
				"error", err,
			)
			continue
		}
		if !fresh {
			s.log.Debugw("Alert suppressed by dedup window", "symbol", activity.Symbol)
			metrics.AlertsDeduplicated.Inc()
			continue
		}

		rec, err := s.persist(ctx, u.ID, activity)
		if err != nil {
			s.log.Errorw("Failed to persist alert",
				"symbol", activity.Symbol,
				"error", err,
			)
			continue
		}
		saved = append(saved, *rec)

		// Activities arrive premium-sorted, so the first ones through
		// the dedup gate are the largest trades.
		if notified < s.cfg.NotifyLimit {
			s.publish(ctx, u, rec, activity)
			notified++
		}
	}

	s.log.Infow("Scan cycle complete",
		"user_id", u.ID,
		"symbols", len(symbols),
		"detected", len(activities),
		"persisted", len(saved),
		"notified", notified,
	)

	return saved, nil
}

// markSeen claims the dedup slot for a symbol. Exactly one caller wins
// the slot per window; redis failures fall back to the alert store.
func (s *Service) markSeen(ctx context.Context, userID uuid.UUID, symbol string) (bool, error) {
	key := fmt.Sprintf("alert:dedup:%s:%s", userID, symbol)

	fresh, err := s.cache.SetNX(ctx, key, "1", s.cfg.DedupWindow)
	if err == nil {
		return fresh, nil
	}

	s.log.Warnw("Redis dedup unavailable, falling back to store", "error", err)

	last, err := s.alerts.LastForSymbol(ctx, userID, symbol)
	if errors.Is(err, errors.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	return time.Since(last.Timestamp) >= s.cfg.DedupWindow, nil
}

func (s *Service) persist(ctx context.Context, userID uuid.UUID, activity alert.UnusualActivity) (*alert.Record, error) {
	details, err := json.Marshal(activity)
	if err != nil {
		return nil, errors.Wrap(err, "marshal activity details")
	}

	rec := &alert.Record{
		UserID:         userID,
		Timestamp:      time.Now().UTC(),
		Symbol:         activity.Symbol,
		AlertType:      alert.TypeUnusualOptionsActivity,
		Message:        FormatMessage(activity),
		Details:        details,
		ReferencePrice: activity.CurrentPrice,
	}

	if _, err := s.alerts.Save(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (s *Service) publish(ctx context.Context, u *user.User, rec *alert.Record, activity alert.UnusualActivity) {
	event := &events.AlertDetectedEvent{
		EventID:    uuid.New(),
		AlertID:    rec.ID,
		UserID:     u.ID,
		Email:      u.Email,
		Subject:    fmt.Sprintf("Unusual Options Activity: %s", activity.Symbol),
		Message:    rec.Message,
		Activity:   activity,
		DetectedAt: rec.Timestamp,
	}

	if err := s.publisher.PublishAlertDetected(ctx, event); err != nil {
		s.log.Warnw("Failed to publish alert event",
			"alert_id", rec.ID,
			"symbol", activity.Symbol,
			"error", err,
		)
	}
}

// FormatMessage renders the one-line alert summary, e.g.
// "AAPL: 1,234 CALLs @ $150 - $1.2M premium"
func FormatMessage(a alert.UnusualActivity) string {
	return fmt.Sprintf("%s: %s %ss @ $%s - %s premium",
		a.Symbol,
		humanize.Comma(a.Volume),
		a.OptionType,
		a.Strike,
		FormatMoney(a.PremiumEstimate.InexactFloat64()),
	)
}

// FormatMoney abbreviates dollar amounts with K/M/B suffixes
func FormatMoney(amount float64) string {
	switch {
	case amount >= 1e9:
		return fmt.Sprintf("$%.1fB", amount/1e9)
	case amount >= 1e6:
		return fmt.Sprintf("$%.1fM", amount/1e6)
	case amount >= 1e3:
		return fmt.Sprintf("$%.1fK", amount/1e3)
	default:
		return fmt.Sprintf("$%.0f", amount)
	}
}
