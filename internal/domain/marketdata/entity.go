package marketdata

import (
	"time"

	"github.com/shopspring/decimal"
)

// OptionType distinguishes calls from puts
type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// Valid checks if the option type is known
func (t OptionType) Valid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

// String returns string representation
func (t OptionType) String() string {
	return string(t)
}

// OptionQuote is one row of an option chain as returned by the provider.
// It is an immutable snapshot; this system never mutates it.
type OptionQuote struct {
	ContractSymbol    string
	Strike            decimal.Decimal
	LastPrice         decimal.Decimal
	Volume            *int64 // nil means the contract did not trade
	OpenInterest      int64
	ImpliedVolatility float64
}

// HasVolume reports whether the quote carries a positive traded volume.
func (q OptionQuote) HasVolume() bool {
	return q.Volume != nil && *q.Volume > 0
}

// OptionChain holds the nearest-expiry calls and puts for a symbol
type OptionChain struct {
	Symbol     string
	ExpiryDate time.Time
	Calls      []OptionQuote
	Puts       []OptionQuote
}

// TotalVolumes sums traded call and put volume across the chain.
func (c OptionChain) TotalVolumes() (calls int64, puts int64) {
	for _, q := range c.Calls {
		if q.Volume != nil {
			calls += *q.Volume
		}
	}
	for _, q := range c.Puts {
		if q.Volume != nil {
			puts += *q.Volume
		}
	}
	return calls, puts
}

// Snapshot bundles the per-symbol data a single scan needs
type Snapshot struct {
	Symbol       string
	CompanyName  string
	CurrentPrice decimal.Decimal
	Chain        OptionChain
	FetchedAt    time.Time
}

// SentimentSnapshot is the derived benchmark sentiment for one scan
type SentimentSnapshot struct {
	PutCallRatio    float64   `json:"put_call_ratio"`
	Score           float64   `json:"sentiment_score"` // clamped to [0,100]
	Label           string    `json:"sentiment_label"`
	TotalCallVolume int64     `json:"total_call_volume"`
	TotalPutVolume  int64     `json:"total_put_volume"`
	CapturedAt      time.Time `json:"captured_at"`
}
