package reply

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/ascenso-bot/internal/common"
)

type recorder struct{ sent []tgbotapi.MessageConfig }

func (r *recorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.sent = append(r.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestReplies(t *testing.T) {
	r := &recorder{}
	Text(r, 1, "привет")
	HTML(r, 1, "<b>жирный</b>")
	Error(r, 1, common.ErrAlreadyClaimed)
	Error(r, 1, errors.New("timeout"))

	require.Len(t, r.sent, 4)
	require.Equal(t, "привет", r.sent[0].Text)
	require.Equal(t, tgbotapi.ModeHTML, r.sent[1].ParseMode)
	require.Equal(t, "✅ сегодня уже засчитано", r.sent[2].Text)
	require.Equal(t, "❌ Внутренняя ошибка, попробуйте позже", r.sent[3].Text)
}
