package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smartflow/internal/domain/alert"
	"smartflow/pkg/errors"
)

// Compile-time check that we implement the interface
var _ alert.Repository = (*AlertRepository)(nil)

// AlertRepository implements alert.Repository using sqlx
type AlertRepository struct {
	db DBTX
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `
	id, user_id, timestamp, symbol, alert_type, message, details, email_sent,
	reference_price, price_1h, price_1d, price_1w, return_1h, return_1d,
	return_1w, is_successful`

// Save persists a new record and returns its generated ID
func (r *AlertRepository) Save(ctx context.Context, rec *alert.Record) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO alerts (
			id, user_id, timestamp, symbol, alert_type, message, details,
			email_sent, reference_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.Timestamp, rec.Symbol, rec.AlertType,
		rec.Message, rec.Details, rec.EmailSent, rec.ReferencePrice,
	)
	if err != nil {
		return uuid.Nil, err
	}

	return rec.ID, nil
}

// Recent returns the newest records for a user, newest first
func (r *AlertRepository) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]alert.Record, error) {
	var records []alert.Record

	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &records, query, userID, limit); err != nil {
		return nil, err
	}

	return records, nil
}

// RecentBySymbol returns the newest records for one symbol, newest first
func (r *AlertRepository) RecentBySymbol(ctx context.Context, userID uuid.UUID, symbol string, limit int) ([]alert.Record, error) {
	var records []alert.Record

	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE user_id = $1 AND symbol = $2
		ORDER BY timestamp DESC
		LIMIT $3`

	if err := r.db.SelectContext(ctx, &records, query, userID, symbol, limit); err != nil {
		return nil, err
	}

	return records, nil
}

// LastForSymbol returns the most recent record for a symbol
func (r *AlertRepository) LastForSymbol(ctx context.Context, userID uuid.UUID, symbol string) (*alert.Record, error) {
	var rec alert.Record

	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE user_id = $1 AND symbol = $2
		ORDER BY timestamp DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &rec, query, userID, symbol)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "no alerts for symbol")
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// MarkEmailSent flips the email_sent flag after delivery
func (r *AlertRepository) MarkEmailSent(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE alerts SET email_sent = TRUE WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// PendingPerformance returns records created before the cutoff that
// still miss at least one performance horizon
func (r *AlertRepository) PendingPerformance(ctx context.Context, cutoff time.Time, limit int) ([]alert.Record, error) {
	var records []alert.Record

	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE timestamp <= $1
		  AND (return_1h IS NULL OR return_1d IS NULL OR return_1w IS NULL)
		ORDER BY timestamp ASC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &records, query, cutoff, limit); err != nil {
		return nil, err
	}

	return records, nil
}

// UpdatePerformance fills one horizon's price and return and
// re-evaluates the is_successful flag in the same statement.
func (r *AlertRepository) UpdatePerformance(ctx context.Context, id uuid.UUID, h alert.Horizon, price decimal.Decimal, ret float64) error {
	var priceCol, returnCol string
	switch h {
	case alert.Horizon1h:
		priceCol, returnCol = "price_1h", "return_1h"
	case alert.Horizon1d:
		priceCol, returnCol = "price_1d", "return_1d"
	case alert.Horizon1w:
		priceCol, returnCol = "price_1w", "return_1w"
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "unknown horizon %q", h)
	}

	query := `
		UPDATE alerts SET
			` + priceCol + ` = $2,
			` + returnCol + ` = $3,
			is_successful = (
				COALESCE(return_1h, 0) > $4 OR
				COALESCE(return_1d, 0) > $4 OR
				COALESCE(return_1w, 0) > $4 OR
				$3 > $4
			)
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, price, ret, alert.SuccessReturnThreshold)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.Wrap(errors.ErrNotFound, "alert not found")
	}

	return nil
}

// Stats aggregates alert outcomes for a user
func (r *AlertRepository) Stats(ctx context.Context, userID uuid.UUID) (*alert.PerformanceStats, error) {
	var row struct {
		Total       int64   `db:"total"`
		Successful  int64   `db:"successful"`
		AvgReturn1h float64 `db:"avg_return_1h"`
		AvgReturn1d float64 `db:"avg_return_1d"`
		AvgReturn1w float64 `db:"avg_return_1w"`
	}

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE is_successful) AS successful,
			COALESCE(AVG(return_1h), 0) AS avg_return_1h,
			COALESCE(AVG(return_1d), 0) AS avg_return_1d,
			COALESCE(AVG(return_1w), 0) AS avg_return_1w
		FROM alerts
		WHERE user_id = $1`

	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		return nil, err
	}

	stats := &alert.PerformanceStats{
		TotalAlerts:      row.Total,
		SuccessfulAlerts: row.Successful,
		AvgReturn1h:      row.AvgReturn1h,
		AvgReturn1d:      row.AvgReturn1d,
		AvgReturn1w:      row.AvgReturn1w,
	}
	if row.Total > 0 {
		stats.SuccessRate = float64(row.Successful) / float64(row.Total) * 100
	}

	return stats, nil
}
