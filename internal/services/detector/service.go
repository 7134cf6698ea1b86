package detector

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"smartflow/internal/domain/alert"
	"smartflow/internal/domain/marketdata"
	"smartflow/internal/metrics"
	"smartflow/pkg/logger"
)

var contractMultiplier = decimal.NewFromInt(100) // shares per contract

// Config carries the detection thresholds.
//
// The ratio and volume thresholds combine with OR: a contract is a
// candidate when it trades far beyond its open interest OR in large
// absolute size. The premium floor then drops economically trivial
// trades. Defaults live in the config package; changing OR to AND here
// would change what "unusual" means.
type Config struct {
	MinVolumeOIRatio float64
	MinVolume        int64
	MinPremiumUSD    float64
	TopPerSymbol     int
}

// Service scans option chains for unusual activity
type Service struct {
	gateway marketdata.Gateway
	cfg     Config
	log     *logger.Logger
}

// NewService creates a new detector service
func NewService(gateway marketdata.Gateway, cfg Config, log *logger.Logger) *Service {
	if cfg.TopPerSymbol <= 0 {
		cfg.TopPerSymbol = 5
	}
	return &Service{
		gateway: gateway,
		cfg:     cfg,
		log:     log,
	}
}

// FindUnusual filters one side of an option chain down to the quotes
// trading unusually, sorted by volume/OI ratio descending. Quotes
// without traded volume are never unusual.
func (s *Service) FindUnusual(quotes []marketdata.OptionQuote, optionType marketdata.OptionType) []alert.UnusualActivity {
	var unusual []alert.UnusualActivity

	for _, q := range quotes {
		if !q.HasVolume() {
			continue
		}
		volume := *q.Volume

		// A contract that never traded before has no open interest;
		// its raw volume stands in for the ratio.
		ratio := float64(volume)
		if q.OpenInterest > 0 {
			ratio = float64(volume) / float64(q.OpenInterest)
		}

		if ratio <= s.cfg.MinVolumeOIRatio && volume <= s.cfg.MinVolume {
			continue
		}

		premium := q.LastPrice.Mul(decimal.NewFromInt(volume)).Mul(contractMultiplier)
		if !premium.GreaterThan(decimal.NewFromFloat(s.cfg.MinPremiumUSD)) {
			continue
		}

		unusual = append(unusual, alert.UnusualActivity{
			ContractSymbol:    q.ContractSymbol,
			OptionType:        optionType,
			Strike:            q.Strike,
			Volume:            volume,
			OpenInterest:      q.OpenInterest,
			VolumeOIRatio:     ratio,
			LastPrice:         q.LastPrice,
			PremiumEstimate:   premium,
			ImpliedVolatility: q.ImpliedVolatility,
		})
	}

	sortByRatio(unusual)
	return unusual
}

// Scan fetches a symbol's nearest-expiry chain and returns its top
// unusual activities, calls and puts merged, ratio-sorted, at most
// TopPerSymbol entries. A provider failure yields an empty result.
func (s *Service) Scan(ctx context.Context, symbol string) []alert.UnusualActivity {
	snap, err := s.gateway.Snapshot(ctx, symbol)
	if err != nil {
		s.log.Warnw("Scan skipped, market data unavailable",
			"symbol", symbol,
			"error", err,
		)
		metrics.ScansTotal.WithLabelValues("no_data").Inc()
		return nil
	}
	metrics.ScansTotal.WithLabelValues("success").Inc()

	unusual := s.FindUnusual(snap.Chain.Calls, marketdata.OptionTypeCall)
	unusual = append(unusual, s.FindUnusual(snap.Chain.Puts, marketdata.OptionTypePut)...)
	sortByRatio(unusual)

	if len(unusual) > s.cfg.TopPerSymbol {
		unusual = unusual[:s.cfg.TopPerSymbol]
	}

	for i := range unusual {
		unusual[i].Symbol = snap.Symbol
		unusual[i].CompanyName = snap.CompanyName
		unusual[i].CurrentPrice = snap.CurrentPrice
		unusual[i].ExpiryDate = snap.Chain.ExpiryDate
	}

	return unusual
}

// ScanWatchlist scans each symbol sequentially and merges the results,
// sorted by premium descending. The watchlist-level sort key differs
// from the per-symbol one on purpose; callers decide how many to show.
// A failed symbol never aborts the rest of the scan.
func (s *Service) ScanWatchlist(ctx context.Context, symbols []string) []alert.UnusualActivity {
	var all []alert.UnusualActivity

	for _, symbol := range symbols {
		s.log.Debugw("Scanning symbol", "symbol", symbol)
		all = append(all, s.Scan(ctx, symbol)...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PremiumEstimate.GreaterThan(all[j].PremiumEstimate)
	})

	return all
}

// sortByRatio sorts descending by volume/OI ratio, keeping scan order
// for ties.
func sortByRatio(events []alert.UnusualActivity) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].VolumeOIRatio > events[j].VolumeOIRatio
	})
}
