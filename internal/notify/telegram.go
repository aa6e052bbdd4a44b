package notify

import (
	"context"
	"fmt"
	"time"

	tb "gopkg.in/telebot.v3"
)

// TelegramSender sends digests over the Telegram bot API.
type TelegramSender struct {
	bot *tb.Bot
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	bot, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: &tb.LongPoller{Timeout: 5 * time.Second}, //nolint:mnd
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &TelegramSender{bot: bot}, nil
}

func (s *TelegramSender) Send(_ context.Context, chatID int64, text string) error {
	if _, err := s.bot.Send(tb.ChatID(chatID), text); err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return nil
}
