package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the alert store boundary (PostgreSQL).
// The store serializes its own writes; callers do not.
type Repository interface {
	// Save persists a new record and returns its generated ID
	Save(ctx context.Context, rec *Record) (uuid.UUID, error)

	// Recent returns the newest records for a user, newest first
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]Record, error)

	// RecentBySymbol returns the newest records for one symbol, newest first
	RecentBySymbol(ctx context.Context, userID uuid.UUID, symbol string, limit int) ([]Record, error)

	// LastForSymbol returns the most recent record for a symbol, or
	// errors.ErrNotFound when the user has none
	LastForSymbol(ctx context.Context, userID uuid.UUID, symbol string) (*Record, error)

	// MarkEmailSent flips the email_sent flag after delivery
	MarkEmailSent(ctx context.Context, id uuid.UUID) error

	// PendingPerformance returns records created before the cutoff that
	// still miss at least one performance horizon
	PendingPerformance(ctx context.Context, cutoff time.Time, limit int) ([]Record, error)

	// UpdatePerformance fills one horizon's price and return and
	// re-evaluates the is_successful flag
	UpdatePerformance(ctx context.Context, id uuid.UUID, h Horizon, price decimal.Decimal, ret float64) error

	// Stats aggregates alert outcomes for a user
	Stats(ctx context.Context, userID uuid.UUID) (*PerformanceStats, error)
}
