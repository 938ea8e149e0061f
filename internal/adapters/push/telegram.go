package push

import (
	"context"
	"fmt"
	"html"
	"strconv"

	tele "gopkg.in/telebot.v3"
)

type telegramSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramGateway delivers pushes as Telegram messages. The device token is a chat id.
type TelegramGateway struct {
	bot telegramSender
}

func NewTelegramGateway(bot telegramSender) *TelegramGateway {
	return &TelegramGateway{
		bot: bot,
	}
}

func (g *TelegramGateway) Send(_ context.Context, deviceToken, title, body string) error {
	chatID, err := strconv.ParseInt(deviceToken, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", deviceToken, err)
	}
	_, err = g.bot.Send(&tele.Chat{ID: chatID}, FormatTelegram(title, body), tele.ModeHTML)
	return err
}

// FormatTelegram renders a push as an HTML message.
func FormatTelegram(title, body string) string {
	return fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(title), html.EscapeString(body))
}
