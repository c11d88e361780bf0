// Package telegram delivers user-facing payment notifications through the
// Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-vpn-subscription/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*Notifier)(nil)

type Notifier struct {
	bot *tgbotapi.BotAPI
	log *zerolog.Logger
}

func NewNotifier(token string, logger *zerolog.Logger) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	l := logger.With().Str("component", "TelegramNotifier").Logger()
	l.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier ready")
	return &Notifier{bot: bot, log: &l}, nil
}

func (n *Notifier) NotifyPaymentSucceeded(ctx context.Context, userID int64, months int, provider, subURL string, expireAt time.Time) error {
	text := fmt.Sprintf("✅ Payment received!\n\nYour subscription has been extended by %d month(s).", months)
	if !expireAt.IsZero() {
		text += fmt.Sprintf("\nActive until: %s", expireAt.Format("2006-01-02"))
	}
	if subURL != "" {
		text += fmt.Sprintf("\n\nYour subscription link:\n%s", subURL)
	}

	msg := tgbotapi.NewMessage(userID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Error().Err(err).Int64("user_id", userID).Msg("send failed")
		return fmt.Errorf("telegram send to %d: %w", userID, err)
	}
	return nil
}
