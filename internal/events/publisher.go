package events

import (
	"context"

	"smartflow/internal/adapters/kafka"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

// Publisher publishes events to Kafka as JSON
type Publisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer *kafka.Producer, log *logger.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		log:      log,
	}
}

// PublishAlertDetected publishes an alert detected event, keyed by
// symbol so one symbol's alerts stay ordered within a partition
func (p *Publisher) PublishAlertDetected(ctx context.Context, event *AlertDetectedEvent) error {
	return p.publish(ctx, kafka.TopicAlertsDetected, event.Activity.Symbol, event)
}

// PublishSentimentUpdated publishes a sentiment snapshot event
func (p *Publisher) PublishSentimentUpdated(ctx context.Context, event *SentimentUpdatedEvent) error {
	return p.publish(ctx, kafka.TopicSentimentUpdated, event.Symbol, event)
}

// PublishNotificationSent publishes a delivery outcome event
func (p *Publisher) PublishNotificationSent(ctx context.Context, event *NotificationSentEvent) error {
	return p.publish(ctx, kafka.TopicNotificationsSent, event.AlertID.String(), event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		p.log.Errorw("Failed to publish event", "topic", topic, "error", err)
		return errors.Wrap(err, "send to kafka")
	}

	p.log.Debugw("Event published", "topic", topic, "key", key)
	return nil
}
