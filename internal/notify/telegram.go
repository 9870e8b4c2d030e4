package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramNotifier implements Notifier against the Telegram Bot API
// with a fixed target chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zap.SugaredLogger
}

// NewTelegramNotifier authenticates the bot token and returns a
// notifier bound to chatID.
func NewTelegramNotifier(
	token string,
	chatID int64,
	log *zap.SugaredLogger,
) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authenticating telegram bot: %w", err)
	}
	log.Infow("telegram bot authorized", "account", bot.Self.UserName)

	return &TelegramNotifier{bot: bot, chatID: chatID, log: log}, nil
}

// Send delivers one text message to the configured chat. The Bot API
// client carries its own HTTP timeouts; ctx is checked before dialing.
func (n *TelegramNotifier) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}

	n.log.Infow("notification sent", "chat", n.chatID, "chars", len(text))
	return nil
}
