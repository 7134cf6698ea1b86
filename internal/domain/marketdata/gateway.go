package marketdata

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway is the boundary with the external market data provider.
//
// Implementations report unavailability via errors.ErrDataUnavailable so
// callers can tell "fetch failed" apart from "no unusual activity found".
// No retry or backoff contract is assumed.
type Gateway interface {
	// Snapshot returns the current price, company name and the
	// nearest-expiry option chain for a symbol.
	Snapshot(ctx context.Context, symbol string) (*Snapshot, error)

	// CurrentPrice returns the latest traded price for a symbol.
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}
