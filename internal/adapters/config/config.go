package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"smartflow/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	SMTP          SMTPConfig
	Telegram      TelegramConfig
	MarketData    MarketDataConfig
	Detector      DetectorConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"smartflow"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
}

type HTTPConfig struct {
	ListenAddr      string        `envconfig:"HTTP_LISTEN_ADDR" default:":8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"smartflow"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"smartflow"`
}

type SMTPConfig struct {
	Host     string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	Port     int    `envconfig:"SMTP_PORT" default:"587"`
	Username string `envconfig:"SMTP_USERNAME"`
	Password string `envconfig:"SMTP_PASSWORD"`
	From     string `envconfig:"SMTP_FROM"`
	FromName string `envconfig:"SMTP_FROM_NAME" default:"Smart Money Flow Tracker"`
}

func (c SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Configured reports whether email delivery credentials are present.
// A missing configuration downgrades notifications, it never fails a scan.
func (c SMTPConfig) Configured() bool {
	return c.Username != "" && c.Password != "" && c.From != ""
}

type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
	Enabled  bool   `envconfig:"TELEGRAM_NOTIFICATIONS_ENABLED" default:"false"`
}

// Configured reports whether Telegram delivery can be wired up
func (c TelegramConfig) Configured() bool {
	return c.Enabled && c.BotToken != "" && c.ChatID != ""
}

type MarketDataConfig struct {
	BaseURL         string        `envconfig:"MARKET_DATA_BASE_URL" default:"https://query2.finance.yahoo.com"`
	RequestTimeout  time.Duration `envconfig:"MARKET_DATA_REQUEST_TIMEOUT" default:"10s"`
	RequestsPerSec  float64       `envconfig:"MARKET_DATA_REQUESTS_PER_SEC" default:"2"`
	Watchlist       []string      `envconfig:"MARKET_DATA_WATCHLIST" default:"AAPL,TSLA,MSFT,NVDA,GOOGL,META,AMZN,SPY,QQQ,AMD"`
	BenchmarkSymbol string        `envconfig:"MARKET_DATA_BENCHMARK_SYMBOL" default:"SPY"`
}

// DetectorConfig carries the unusual-activity thresholds.
// Defaults are the historical magic constants; the ratio/volume pair is
// an OR, not an AND.
type DetectorConfig struct {
	MinVolumeOIRatio float64 `envconfig:"DETECTOR_MIN_VOLUME_OI_RATIO" default:"0.5"`
	MinVolume        int64   `envconfig:"DETECTOR_MIN_VOLUME" default:"1000"`
	MinPremiumUSD    float64 `envconfig:"DETECTOR_MIN_PREMIUM_USD" default:"50000"`
	TopPerSymbol     int     `envconfig:"DETECTOR_TOP_PER_SYMBOL" default:"5"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for all background workers
type WorkerConfig struct {
	// Watchlist scan drives detection, dedup, persistence and notification
	ScanInterval time.Duration `envconfig:"WORKER_SCAN_INTERVAL" default:"1m"`
	ScanEnabled  bool          `envconfig:"WORKER_SCAN_ENABLED" default:"true"`

	// Benchmark sentiment snapshot
	SentimentInterval time.Duration `envconfig:"WORKER_SENTIMENT_INTERVAL" default:"1m"`
	SentimentEnabled  bool          `envconfig:"WORKER_SENTIMENT_ENABLED" default:"true"`

	// Alert performance backfill (1h/1d/1w horizons)
	PerformanceInterval time.Duration `envconfig:"WORKER_PERFORMANCE_INTERVAL" default:"10m"`
	PerformanceEnabled  bool          `envconfig:"WORKER_PERFORMANCE_ENABLED" default:"true"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
