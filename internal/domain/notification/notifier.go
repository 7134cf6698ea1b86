package notification

import (
	"context"
	"time"

	"smartflow/internal/domain/alert"
)

// Message is a formatted alert ready for delivery
type Message struct {
	Subject    string
	Summary    string
	Activity   alert.UnusualActivity
	DetectedAt time.Time
}

// Notifier delivers a message to a destination address.
//
// A delivery failure surfaces as an error at this boundary; callers
// record it as "not delivered" and keep scanning. Nothing here may
// abort a scan.
type Notifier interface {
	Send(ctx context.Context, destination string, msg Message) error
}
