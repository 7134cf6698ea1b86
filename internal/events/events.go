package events

import (
	"time"

	"github.com/google/uuid"

	"smartflow/internal/domain/alert"
)

// AlertDetectedEvent is emitted after a new alert record is persisted.
// The notification consumer delivers it; the alert is already stored by
// the time this event exists.
type AlertDetectedEvent struct {
	EventID    uuid.UUID            `json:"event_id"`
	AlertID    uuid.UUID            `json:"alert_id"`
	UserID     uuid.UUID            `json:"user_id"`
	Email      string               `json:"email"`
	Subject    string               `json:"subject"`
	Message    string               `json:"message"`
	Activity   alert.UnusualActivity `json:"activity"`
	DetectedAt time.Time            `json:"detected_at"`
}

// SentimentUpdatedEvent is emitted after each benchmark sentiment capture
type SentimentUpdatedEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	Symbol       string    `json:"symbol"`
	PutCallRatio float64   `json:"put_call_ratio"`
	Score        float64   `json:"score"`
	Label        string    `json:"label"`
	CapturedAt   time.Time `json:"captured_at"`
}

// NotificationSentEvent records a delivery outcome
type NotificationSentEvent struct {
	EventID   uuid.UUID `json:"event_id"`
	AlertID   uuid.UUID `json:"alert_id"`
	UserID    uuid.UUID `json:"user_id"`
	Channel   string    `json:"channel"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}
