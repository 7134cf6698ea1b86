package alert

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smartflow/internal/domain/marketdata"
)

// TypeUnusualOptionsActivity is the alert type emitted by the detector
const TypeUnusualOptionsActivity = "Unusual Options Activity"

// UnusualActivity is one detected event. It is created fresh on each
// scan and never mutated; identity across scans is only
// (symbol, option type, strike, expiry), so the caller deduplicates.
type UnusualActivity struct {
	Symbol            string                 `json:"symbol"`
	CompanyName       string                 `json:"company_name"`
	ContractSymbol    string                 `json:"contract_symbol"`
	OptionType        marketdata.OptionType  `json:"option_type"`
	Strike            decimal.Decimal        `json:"strike"`
	ExpiryDate        time.Time              `json:"expiry_date"`
	Volume            int64                  `json:"volume"`
	OpenInterest      int64                  `json:"open_interest"`
	VolumeOIRatio     float64                `json:"volume_oi_ratio"`
	LastPrice         decimal.Decimal        `json:"last_price"`
	PremiumEstimate   decimal.Decimal        `json:"premium_estimate"`
	ImpliedVolatility float64                `json:"implied_volatility"`
	CurrentPrice      decimal.Decimal        `json:"current_price"`
}

// SuccessReturnThreshold marks an alert successful when any horizon
// return exceeds it (2%)
const SuccessReturnThreshold = 0.02

// Horizon identifies a performance measurement point after an alert
type Horizon string

const (
	Horizon1h Horizon = "1h"
	Horizon1d Horizon = "1d"
	Horizon1w Horizon = "1w"
)

// Duration returns the elapsed time the horizon represents
func (h Horizon) Duration() time.Duration {
	switch h {
	case Horizon1h:
		return time.Hour
	case Horizon1d:
		return 24 * time.Hour
	case Horizon1w:
		return 7 * 24 * time.Hour
	}
	return 0
}

// Horizons lists all horizons in ascending order
func Horizons() []Horizon {
	return []Horizon{Horizon1h, Horizon1d, Horizon1w}
}

// Record is the persisted projection of an UnusualActivity plus user
// attribution and later-filled performance fields. Records are never
// deleted; the backfill job mutates only the performance columns.
type Record struct {
	ID             uuid.UUID       `db:"id"`
	UserID         uuid.UUID       `db:"user_id"`
	Timestamp      time.Time       `db:"timestamp"`
	Symbol         string          `db:"symbol"`
	AlertType      string          `db:"alert_type"`
	Message        string          `db:"message"`
	Details        json.RawMessage `db:"details"`
	EmailSent      bool            `db:"email_sent"`
	ReferencePrice decimal.Decimal `db:"reference_price"`

	// Performance fields, filled by the backfill worker
	Price1h      *decimal.Decimal `db:"price_1h"`
	Price1d      *decimal.Decimal `db:"price_1d"`
	Price1w      *decimal.Decimal `db:"price_1w"`
	Return1h     *float64         `db:"return_1h"`
	Return1d     *float64         `db:"return_1d"`
	Return1w     *float64         `db:"return_1w"`
	IsSuccessful *bool            `db:"is_successful"`
}

// HorizonFilled reports whether the given horizon has been backfilled.
func (r *Record) HorizonFilled(h Horizon) bool {
	switch h {
	case Horizon1h:
		return r.Return1h != nil
	case Horizon1d:
		return r.Return1d != nil
	case Horizon1w:
		return r.Return1w != nil
	}
	return false
}

// PerformanceStats aggregates alert outcomes for a user
type PerformanceStats struct {
	TotalAlerts      int64   `json:"total_alerts"`
	SuccessfulAlerts int64   `json:"successful_alerts"`
	SuccessRate      float64 `json:"success_rate"` // percent
	AvgReturn1h      float64 `json:"avg_return_1h"`
	AvgReturn1d      float64 `json:"avg_return_1d"`
	AvgReturn1w      float64 `json:"avg_return_1w"`
}
