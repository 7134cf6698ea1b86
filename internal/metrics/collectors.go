package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"smartflow/pkg/logger"
)

// CustomCollector collects dashboard-level gauges from PostgreSQL on
// each scrape
type CustomCollector struct {
	log      *logger.Logger
	postgres *sqlx.DB

	totalUsers       *prometheus.Desc
	totalAlerts      *prometheus.Desc
	alertsLast24h    *prometheus.Desc
	successfulAlerts *prometheus.Desc
	emailsSent       *prometheus.Desc
}

// NewCustomCollector creates a new custom metrics collector
func NewCustomCollector(log *logger.Logger, postgres *sqlx.DB) *CustomCollector {
	return &CustomCollector{
		log:      log,
		postgres: postgres,

		totalUsers: prometheus.NewDesc(
			"smartflow_total_users",
			"Total number of registered users",
			nil, nil,
		),
		totalAlerts: prometheus.NewDesc(
			"smartflow_total_alerts",
			"Total number of alert records",
			nil, nil,
		),
		alertsLast24h: prometheus.NewDesc(
			"smartflow_alerts_24h",
			"Alerts recorded in the last 24 hours",
			nil, nil,
		),
		successfulAlerts: prometheus.NewDesc(
			"smartflow_successful_alerts",
			"Alerts whose performance beat the success threshold",
			nil, nil,
		),
		emailsSent: prometheus.NewDesc(
			"smartflow_alert_emails_sent",
			"Alerts with a delivered email",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CustomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalUsers
	ch <- c.totalAlerts
	ch <- c.alertsLast24h
	ch <- c.successfulAlerts
	ch <- c.emailsSent
}

// Collect implements prometheus.Collector
func (c *CustomCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectGauge(ctx, ch, c.totalUsers, "SELECT COUNT(*) FROM users")
	c.collectGauge(ctx, ch, c.totalAlerts, "SELECT COUNT(*) FROM alerts")
	c.collectGauge(ctx, ch, c.alertsLast24h,
		"SELECT COUNT(*) FROM alerts WHERE timestamp > NOW() - INTERVAL '24 hours'")
	c.collectGauge(ctx, ch, c.successfulAlerts,
		"SELECT COUNT(*) FROM alerts WHERE is_successful")
	c.collectGauge(ctx, ch, c.emailsSent,
		"SELECT COUNT(*) FROM alerts WHERE email_sent")
}

func (c *CustomCollector) collectGauge(ctx context.Context, ch chan<- prometheus.Metric, desc *prometheus.Desc, query string) {
	var count int
	if err := c.postgres.GetContext(ctx, &count, query); err != nil {
		c.log.Errorw("Failed to collect metric", "query", query, "error", err)
		return
	}

	ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(count))
}

// RegisterCustomCollector registers the custom collector
func RegisterCustomCollector(collector *CustomCollector) {
	prometheus.MustRegister(collector)
}
