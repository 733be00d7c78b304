// Package telegram sends operator alerts about halted or failed runs.
package telegram

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/deusflow/newsdigest/internal/config"
	"github.com/deusflow/newsdigest/internal/logger"
	"github.com/deusflow/newsdigest/internal/metrics"
	"github.com/deusflow/newsdigest/internal/retry"
)

// Alerter delivers a short plain message to an operator.
type Alerter interface {
	Alert(ctx context.Context, title string, lines ...string) error
}

// Noop drops alerts; used when no bot token is configured.
type Noop struct{}

func (Noop) Alert(context.Context, string, ...string) error { return nil }

type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
	retry  retry.RetryConfig
}

// New returns a Bot, or Noop when cfg has no token.
func New(cfg config.Alert) (Alerter, error) {
	if cfg.TelegramToken == "" {
		return Noop{}, nil
	}
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, endpoint, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Bot{
		api:    api,
		chatID: cfg.TelegramChatID,
		retry:  retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true, Name: "telegram alert"},
	}, nil
}

func (b *Bot) Alert(ctx context.Context, title string, lines ...string) error {
	msg := tgbotapi.NewMessage(b.chatID, Format(title, lines...))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	err := retry.WithRetry(ctx, b.retry, func() error {
		_, err := b.api.Send(msg)
		return err
	})
	if err != nil {
		logger.Warn("telegram alert failed", "error", err)
		return err
	}
	metrics.AlertsSent.Inc()
	return nil
}

// Format renders a bold title followed by one escaped line per entry.
func Format(title string, lines ...string) string {
	var b strings.Builder
	b.WriteString("<b>" + html.EscapeString(title) + "</b>")
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			b.WriteString("\n" + html.EscapeString(l))
		}
	}
	return b.String()
}
