package channel

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

const telegramChannelName = "telegram"

// TelegramBot is the subset of the bot API the gateway needs; it exists so
// tests can substitute a fake.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram delivers replies through a Telegram bot. The conversation id is
// the decimal chat id.
type Telegram struct {
	bot TelegramBot
}

// NewTelegram creates a Telegram gateway from a bot token.
func NewTelegram(token string) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "create telegram bot")
	}
	return &Telegram{bot: bot}, nil
}

// NewTelegramWithBot creates a gateway around an existing bot (for tests).
func NewTelegramWithBot(bot TelegramBot) *Telegram {
	return &Telegram{bot: bot}
}

func (t *Telegram) Name() string { return telegramChannelName }

// Deliver implements Gateway.
func (t *Telegram) Deliver(_ context.Context, conversationID, text string) error {
	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "conversation id %q is not a telegram chat id", conversationID)
	}
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return errors.Wrap(err, "send telegram message")
	}
	return nil
}

var _ Gateway = (*Telegram)(nil)
