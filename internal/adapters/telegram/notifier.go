package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"smartflow/internal/domain/notification"
	"smartflow/pkg/errors"
	"smartflow/pkg/logger"
)

// Compile-time check
var _ notification.Notifier = (*Notifier)(nil)

// Notifier delivers alert messages to Telegram chats. The destination
// is the numeric chat ID as a string.
type Notifier struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
	log     *logger.Logger
}

// Config contains Telegram notifier configuration
type Config struct {
	Token       string
	HTTPTimeout time.Duration
	// Telegram caps bots at 30 msg/sec; stay under it
	RateLimitRate  int
	RateLimitBurst int
}

// NewNotifier creates a new Telegram notifier
func NewNotifier(cfg Config, log *logger.Logger) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, errors.Wrap(errors.ErrNotConfigured, "telegram bot token is required")
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.RateLimitRate == 0 {
		cfg.RateLimitRate = 20
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 30
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	log.Infof("Authorized on account %s", api.Self.UserName)

	return &Notifier{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRate), cfg.RateLimitBurst),
		log:     log.With("component", "telegram_notifier"),
	}, nil
}

// Send delivers one alert message to a chat
func (n *Notifier) Send(ctx context.Context, destination string, msg notification.Message) error {
	chatID, err := strconv.ParseInt(destination, 10, 64)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "invalid chat id %q", destination)
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait")
	}

	text := fmt.Sprintf(
		"🚨 *%s*\n\n%s\n\nContract: `%s`\nVolume/OI: %.2f\nUnderlying: $%s\nDetected: %s",
		msg.Subject,
		msg.Summary,
		msg.Activity.ContractSymbol,
		msg.Activity.VolumeOIRatio,
		msg.Activity.CurrentPrice,
		msg.DetectedAt.Format("15:04:05 MST"),
	)

	tgMsg := tgbotapi.NewMessage(chatID, text)
	tgMsg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.api.Send(tgMsg); err != nil {
		n.log.Warnw("Telegram delivery failed", "chat_id", chatID, "error", err)
		return errors.Wrap(errors.ErrDeliveryFailed, err.Error())
	}

	return nil
}
