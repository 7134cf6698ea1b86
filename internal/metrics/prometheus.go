package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartflow_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartflow_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartflow_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Market data provider metrics
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartflow_provider_requests_total",
			Help: "Total number of market data provider requests",
		},
		[]string{"endpoint", "status"}, // status: success|error
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartflow_provider_latency_seconds",
			Help:    "Market data provider request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	// Detection metrics
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartflow_scans_total",
			Help: "Total number of symbol scans",
		},
		[]string{"status"}, // status: success|no_data
	)

	UnusualActivityDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartflow_unusual_activity_detected_total",
			Help: "Total number of unusual activity events detected",
		},
		[]string{"symbol", "option_type"},
	)

	AlertsPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smartflow_alerts_persisted_total",
			Help: "Total number of alert records persisted",
		},
	)

	AlertsDeduplicated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smartflow_alerts_deduplicated_total",
			Help: "Total number of alerts suppressed by the dedup window",
		},
	)

	// Sentiment metrics
	SentimentScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartflow_sentiment_score",
			Help: "Latest sentiment score (0-100)",
		},
		[]string{"symbol"},
	)

	SentimentPutCallRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartflow_sentiment_put_call_ratio",
			Help: "Latest benchmark put/call volume ratio",
		},
		[]string{"symbol"},
	)

	// Notification metrics
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartflow_notifications_sent_total",
			Help: "Total number of notification deliveries",
		},
		[]string{"channel", "status"}, // status: success|error
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartflow_kafka_messages_total",
			Help: "Total Kafka messages produced/consumed",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	prometheus.MustRegister(ProviderRequests)
	prometheus.MustRegister(ProviderLatency)

	prometheus.MustRegister(ScansTotal)
	prometheus.MustRegister(UnusualActivityDetected)
	prometheus.MustRegister(AlertsPersisted)
	prometheus.MustRegister(AlertsDeduplicated)

	prometheus.MustRegister(SentimentScore)
	prometheus.MustRegister(SentimentPutCallRatio)

	prometheus.MustRegister(NotificationsSent)

	prometheus.MustRegister(KafkaMessages)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordProviderRequest records a market data provider request
func RecordProviderRequest(endpoint string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ProviderRequests.WithLabelValues(endpoint, status).Inc()
	ProviderLatency.WithLabelValues(endpoint).Observe(latency.Seconds())
}

// RecordSentiment updates the sentiment gauges
func RecordSentiment(symbol string, score, putCallRatio float64) {
	SentimentScore.WithLabelValues(symbol).Set(score)
	SentimentPutCallRatio.WithLabelValues(symbol).Set(putCallRatio)
}

// RecordNotification records a delivery outcome
func RecordNotification(channel string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	NotificationsSent.WithLabelValues(channel, status).Inc()
}
