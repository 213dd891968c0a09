package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"roomspace/internal/models"
)

// TelegramSender posts notifications to a staff channel. Requester-facing
// delivery (email) is handled by an external service; the channel gives staff
// a live feed of reservation activity.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSender creates a sender for the given bot token and channel.
func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot, chatID: chatID}, nil
}

// Send posts the notification text to the channel.
func (s *TelegramSender) Send(_ context.Context, event Event, res *models.Reservation, text string) error {
	msg := tgbotapi.NewMessage(s.chatID, fmt.Sprintf("[%s] %s (%s)", event, text, res.RequesterName))
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
