package notify

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botAPI is the subset of *tgbotapi.BotAPI the sender uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramSender struct {
	bot    botAPI
	chatID int64
}

func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot, chatID: chatID}, nil
}

func (t *TelegramSender) Send(_ context.Context, n Notification) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatMessage(n))
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := t.bot.Send(msg)
	return err
}

// FormatMessage renders n as Telegram HTML.
func FormatMessage(n Notification) string {
	return fmt.Sprintf("🔥 <b>%s</b>\n⭐ Score: %g/10\n👤 %s",
		html.EscapeString(n.JobTitle), n.Score, html.EscapeString(n.Username))
}
