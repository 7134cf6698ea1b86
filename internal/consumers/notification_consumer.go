package consumers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"smartflow/internal/adapters/kafka"
	"smartflow/internal/domain/alert"
	"smartflow/internal/domain/notification"
	"smartflow/internal/events"
	"smartflow/internal/metrics"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

// NotificationConsumer delivers alert emails for detected events.
// It runs apart from the scan loop so a slow SMTP server never delays
// detection.
type NotificationConsumer struct {
	consumer  *kafka.Consumer
	notifier  notification.Notifier
	alertRepo alert.Repository
	publisher *events.Publisher
	log       *logger.Logger
}

// NewNotificationConsumer creates a new notification consumer
func NewNotificationConsumer(
	consumer *kafka.Consumer,
	notifier notification.Notifier,
	alertRepo alert.Repository,
	publisher *events.Publisher,
	log *logger.Logger,
) *NotificationConsumer {
	return &NotificationConsumer{
		consumer:  consumer,
		notifier:  notifier,
		alertRepo: alertRepo,
		publisher: publisher,
		log:       log.With("component", "notification_consumer"),
	}
}

// Start begins consuming alert detected events
func (nc *NotificationConsumer) Start(ctx context.Context) error {
	nc.log.Info("Starting notification consumer...")

	defer func() {
		if err := nc.consumer.Close(); err != nil {
			nc.log.Errorw("Failed to close consumer", "error", err)
		}
	}()

	for {
		msg, err := nc.consumer.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				nc.log.Info("Notification consumer stopping (context cancelled)")
				return nil
			}
			nc.log.Debugw("Failed to read alert event", "error", err)
			continue
		}

		processCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := nc.handleMessage(processCtx, msg); err != nil {
			nc.log.Errorw("Failed to handle alert event", "error", err)
		}
		cancel()

		if ctx.Err() != nil {
			nc.log.Info("Notification consumer stopping after processing current message")
			return nil
		}
	}
}

// handleMessage delivers one alert and records the outcome. A delivery
// failure is terminal for this message; the alert stays persisted with
// email_sent false.
func (nc *NotificationConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var event events.AlertDetectedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "unmarshal alert event")
	}

	if event.Email == "" {
		nc.log.Debugw("Alert has no destination, skipping", "alert_id", event.AlertID)
		return nil
	}

	err := nc.notifier.Send(ctx, event.Email, notification.Message{
		Subject:    event.Subject,
		Summary:    event.Message,
		Activity:   event.Activity,
		DetectedAt: event.DetectedAt,
	})
	metrics.RecordNotification("email", err)

	outcome := &events.NotificationSentEvent{
		EventID:   uuid.New(),
		AlertID:   event.AlertID,
		UserID:    event.UserID,
		Channel:   "email",
		Delivered: err == nil,
		SentAt:    time.Now().UTC(),
	}

	if err != nil {
		outcome.Error = err.Error()
		if pubErr := nc.publisher.PublishNotificationSent(ctx, outcome); pubErr != nil {
			nc.log.Warnw("Failed to publish delivery outcome", "error", pubErr)
		}
		if errors.Is(err, errors.ErrNotConfigured) {
			nc.log.Debugw("Email not configured, alert kept without delivery", "alert_id", event.AlertID)
			return nil
		}
		return errors.Wrap(err, "deliver alert email")
	}

	if err := nc.alertRepo.MarkEmailSent(ctx, event.AlertID); err != nil {
		nc.log.Warnw("Failed to mark email sent", "alert_id", event.AlertID, "error", err)
	}

	if err := nc.publisher.PublishNotificationSent(ctx, outcome); err != nil {
		nc.log.Warnw("Failed to publish delivery outcome", "error", err)
	}

	return nil
}
