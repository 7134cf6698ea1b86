package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"smartflow/internal/domain/watchlist"
	"smartflow/pkg/errors"
)

// Compile-time check that we implement the interface
var _ watchlist.Repository = (*WatchlistRepository)(nil)

// WatchlistRepository implements watchlist.Repository using sqlx
type WatchlistRepository struct {
	db DBTX
}

// NewWatchlistRepository creates a new watchlist repository
func NewWatchlistRepository(db DBTX) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// Add inserts a symbol into a user's watchlist
func (r *WatchlistRepository) Add(ctx context.Context, userID uuid.UUID, symbol string) error {
	query := `
		INSERT INTO watchlists (user_id, symbol, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, symbol) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, userID, symbol, time.Now().UTC())
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.Wrap(errors.ErrAlreadyExists, "symbol already on watchlist")
	}

	return nil
}

// Remove deletes a symbol from a user's watchlist
func (r *WatchlistRepository) Remove(ctx context.Context, userID uuid.UUID, symbol string) error {
	query := `DELETE FROM watchlists WHERE user_id = $1 AND symbol = $2`

	res, err := r.db.ExecContext(ctx, query, userID, symbol)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.Wrap(errors.ErrNotFound, "symbol not on watchlist")
	}

	return nil
}

// Symbols returns a user's watchlist in insertion order
func (r *WatchlistRepository) Symbols(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var symbols []string

	query := `
		SELECT symbol
		FROM watchlists
		WHERE user_id = $1
		ORDER BY added_at ASC`

	if err := r.db.SelectContext(ctx, &symbols, query, userID); err != nil {
		return nil, err
	}

	return symbols, nil
}
