package watchlist

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one symbol on a user's watchlist
type Entry struct {
	UserID  uuid.UUID `db:"user_id"`
	Symbol  string    `db:"symbol"`
	AddedAt time.Time `db:"added_at"`
}
