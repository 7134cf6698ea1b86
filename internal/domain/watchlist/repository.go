package watchlist

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for watchlist data access
type Repository interface {
	// Add inserts a symbol; returns errors.ErrAlreadyExists on duplicates
	Add(ctx context.Context, userID uuid.UUID, symbol string) error
	Remove(ctx context.Context, userID uuid.UUID, symbol string) error
	Symbols(ctx context.Context, userID uuid.UUID) ([]string, error)
}
