package notify

import (
	"context"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegram_Notify(t *testing.T) {
	api := &fakeSender{}
	tg := newTelegram(zap.NewNop(), api, 42, "shark1")

	require.NoError(t, tg.Notify(t.Context(), "reason: fee_detected"))
	require.Len(t, api.sent, 1)
	assert.Equal(t, int64(42), api.sent[0].ChatID)
	assert.Equal(t, "[shark1] reason: fee_detected", api.sent[0].Text)

	require.NoError(t, tg.Notify(t.Context(), strings.Repeat("x", 5000)))
	assert.Len(t, api.sent[1].Text, maxMessageLen)
}

func TestTelegram_Errors(t *testing.T) {
	tg := newTelegram(zap.NewNop(), &fakeSender{err: errors.New("forbidden")}, 1, "g")
	require.Error(t, tg.Notify(t.Context(), "x"))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, tg.Notify(ctx, "x"), context.Canceled)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvToken, "")
	tg, err := FromEnv(zap.NewNop(), "g")
	require.NoError(t, err)
	assert.Nil(t, tg)

	t.Setenv(EnvToken, "token")
	t.Setenv(EnvChatID, "not-a-number")
	_, err = FromEnv(zap.NewNop(), "g")
	require.Error(t, err)
}
