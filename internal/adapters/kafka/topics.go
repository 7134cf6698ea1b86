package kafka

// Topic definitions for Kafka event streaming
const (
	// Detection events
	TopicAlertsDetected = "alerts.detected"

	// Sentiment snapshots
	TopicSentimentUpdated = "sentiment.updated"

	// Delivery outcomes
	TopicNotificationsSent = "notifications.sent"
)
