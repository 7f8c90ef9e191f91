// Package notify delivers session reports to a telegram chat.
package notify

import (
	"context"
	"os"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	EnvToken  = "TELEGRAM_BOT_TOKEN"
	EnvChatID = "TELEGRAM_CHAT_ID"

	// telegram rejects longer messages
	maxMessageLen = 4096
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends plain text messages to one chat.
type Telegram struct {
	l      *zap.Logger
	api    sender
	chatID int64
	prefix string
}

// FromEnv builds a notifier from TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID.
// It returns nil without error when the token is not set.
func FromEnv(l *zap.Logger, group string) (*Telegram, error) {
	token := os.Getenv(EnvToken)
	if token == "" {
		return nil, nil
	}

	chatIDStr := os.Getenv(EnvChatID)
	if chatIDStr == "" {
		return nil, errors.Errorf("%s not set", EnvChatID)
	}

	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s", EnvChatID)
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "create telegram bot")
	}

	l.Info("telegram notifications enabled", zap.String("bot", api.Self.UserName))

	return newTelegram(l, api, chatID, group), nil
}

func newTelegram(l *zap.Logger, api sender, chatID int64, group string) *Telegram {
	return &Telegram{
		l:      l.With(zap.String("component", "telegram")),
		api:    api,
		chatID: chatID,
		prefix: "[" + group + "] ",
	}
}

// Notify sends text prefixed with the group name.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text = t.prefix + text
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen]
	}

	if _, err := t.api.Send(tgbotapi.NewMessage(t.chatID, text)); err != nil {
		return errors.Wrap(err, "send telegram message")
	}

	return nil
}
