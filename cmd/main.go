package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartflow/internal/adapters/clickhouse"
	"smartflow/internal/adapters/config"
	"smartflow/internal/adapters/errors/noop"
	"smartflow/internal/adapters/errors/sentry"
	"smartflow/internal/adapters/kafka"
	"smartflow/internal/adapters/postgres"
	"smartflow/internal/adapters/redis"
	"smartflow/internal/adapters/smtp"
	"smartflow/internal/adapters/telegram"
	"smartflow/internal/adapters/yahoo"
	"smartflow/internal/api"
	"smartflow/internal/api/health"
	"smartflow/internal/api/rest"
	"smartflow/internal/consumers"
	"smartflow/internal/domain/notification"
	"smartflow/internal/events"
	"smartflow/internal/metrics"
	chrepo "smartflow/internal/repository/clickhouse"
	pgrepo "smartflow/internal/repository/postgres"
	"smartflow/internal/services/alerting"
	"smartflow/internal/services/detector"
	"smartflow/internal/services/performance"
	"smartflow/internal/services/sentiment"
	usersvc "smartflow/internal/services/user"
	"smartflow/internal/workers"
	perfworker "smartflow/internal/workers/performance"
	"smartflow/internal/workers/scan"
	sentimentworker "smartflow/internal/workers/sentiment"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	// Databases
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pgClient.Close()

	chClient, err := clickhouse.NewClient(cfg.ClickHouse)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer chClient.Close()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	log.Info("Databases initialized")

	// Messaging
	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()
	publisher := events.NewPublisher(producer, log)

	// Repositories
	userRepo := pgrepo.NewUserRepository(pgClient.DB())
	alertRepo := pgrepo.NewAlertRepository(pgClient.DB())
	watchlistRepo := pgrepo.NewWatchlistRepository(pgClient.DB())
	analyticsRepo := chrepo.NewAnalyticsRepository(chClient.Conn())

	// Market data provider
	gateway := yahoo.NewClient(yahoo.Config{
		BaseURL:        cfg.MarketData.BaseURL,
		RequestTimeout: cfg.MarketData.RequestTimeout,
		RequestsPerSec: cfg.MarketData.RequestsPerSec,
	}, log)

	// Services
	userService := usersvc.NewService(userRepo, redisClient, log)
	detectorService := detector.NewService(gateway, detector.Config{
		MinVolumeOIRatio: cfg.Detector.MinVolumeOIRatio,
		MinVolume:        cfg.Detector.MinVolume,
		MinPremiumUSD:    cfg.Detector.MinPremiumUSD,
		TopPerSymbol:     cfg.Detector.TopPerSymbol,
	}, log)
	sentimentService := sentiment.NewService(gateway, cfg.MarketData.BenchmarkSymbol, log)
	performanceService := performance.NewService(alertRepo, gateway, log)
	alertingService := alerting.NewService(
		detectorService,
		alertRepo,
		watchlistRepo,
		redisClient,
		publisher,
		alerting.Config{DefaultWatchlist: cfg.MarketData.Watchlist},
		log,
	)

	log.Info("Services initialized")

	// Notification delivery
	notifier := buildNotifier(cfg, log)
	notificationConsumer := consumers.NewNotificationConsumer(
		kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topic:   kafka.TopicAlertsDetected,
		}),
		notifier,
		alertRepo,
		publisher,
		log,
	)

	// Workers
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(scan.NewWorker(
		userRepo, alertingService, analyticsRepo,
		cfg.Workers.ScanInterval, cfg.Workers.ScanEnabled,
	))
	scheduler.RegisterWorker(sentimentworker.NewCollector(
		sentimentService, analyticsRepo, redisClient, publisher,
		cfg.Workers.SentimentInterval, cfg.Workers.SentimentEnabled,
	))
	scheduler.RegisterWorker(perfworker.NewWorker(
		performanceService,
		cfg.Workers.PerformanceInterval, cfg.Workers.PerformanceEnabled,
	))

	// HTTP API
	healthHandler := health.New(log, cfg.App.Name, cfg.App.Version)
	healthHandler.AddCheck("postgres", pgClient)
	healthHandler.AddCheck("clickhouse", chClient)
	healthHandler.AddCheck("redis", redisClient)

	apiHandler := rest.New(
		log,
		userService,
		detectorService,
		sentimentService,
		performanceService,
		alertRepo,
		watchlistRepo,
		analyticsRepo,
		redisClient,
	)
	server := api.NewServer(cfg.HTTP, cfg.App, healthHandler, apiHandler, log)

	metrics.RegisterCustomCollector(metrics.NewCustomCollector(log, pgClient.DB()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	go func() {
		if err := notificationConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("Notification consumer stopped: %v", err)
		}
	}()

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Info("System initialized successfully")

	waitForShutdown(cancel, errorTracker, scheduler, server, cfg.HTTP.ShutdownTimeout, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// buildNotifier assembles the delivery chain: email always, Telegram
// mirrored to the configured chat when credentials are present.
func buildNotifier(cfg *config.Config, log *logger.Logger) notification.Notifier {
	mailer := smtp.NewMailer(cfg.SMTP, log)

	if !cfg.Telegram.Configured() {
		return mailer
	}

	tg, err := telegram.NewNotifier(telegram.Config{Token: cfg.Telegram.BotToken}, log)
	if err != nil {
		log.Warnf("Failed to initialize Telegram notifier: %v", err)
		return mailer
	}

	log.Info("Telegram notifications enabled")
	return &mirroredNotifier{
		primary: mailer,
		mirror:  tg,
		chatID:  cfg.Telegram.ChatID,
	}
}

// mirroredNotifier delivers through the primary channel and mirrors
// each message to a fixed secondary destination. A mirror failure
// never fails the delivery.
type mirroredNotifier struct {
	primary notification.Notifier
	mirror  notification.Notifier
	chatID  string
}

func (m *mirroredNotifier) Send(ctx context.Context, destination string, msg notification.Message) error {
	_ = m.mirror.Send(ctx, m.chatID, msg)
	return m.primary.Send(ctx, destination, msg)
}

// waitForShutdown blocks until a shutdown signal, then stops workers,
// the HTTP server and flushes the error tracker.
func waitForShutdown(
	cancel context.CancelFunc,
	errorTracker errors.Tracker,
	scheduler *workers.Scheduler,
	server *api.Server,
	shutdownTimeout time.Duration,
	log *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	if err := scheduler.Stop(); err != nil {
		log.Warnf("Worker shutdown: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP shutdown: %v", err)
	}

	if err := errorTracker.Flush(shutdownCtx); err != nil {
		log.Warnf("Failed to flush error tracker: %v", err)
	}

	log.Info("Shutdown complete")
}
