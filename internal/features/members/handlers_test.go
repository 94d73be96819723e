package members

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/db/memory"
	"serotonyl.ru/ascenso-bot/internal/features/ranking"
	"serotonyl.ru/ascenso-bot/internal/features/tiers"
)

type recorder struct{ texts []string }

func (r *recorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.texts = append(r.texts, c.(tgbotapi.MessageConfig).Text)
	return tgbotapi.Message{}, nil
}

func (r *recorder) last() string { return r.texts[len(r.texts)-1] }

func newHandler(t *testing.T) (*Handler, *recorder) {
	t.Helper()
	st := memory.New()
	clock := common.NewManualClock(start)
	eco := config.DefaultEconomy()
	rec := &recorder{}
	h := NewHandler(NewService(st, clock, eco), tiers.NewService(st, clock, eco),
		ranking.NewService(st, clock, eco, nil), rec)
	return h, rec
}

func TestStartAcceptProfile(t *testing.T) {
	ctx := context.Background()
	h, rec := newHandler(t)

	h.HandleStart(ctx, 7, &tgbotapi.User{ID: 7, FirstName: "Ana"}, []string{"ref_99"})
	require.Contains(t, rec.last(), "Привет, Ana")
	require.Contains(t, rec.last(), "/accept")

	h.HandleAccept(ctx, 7, 7)
	require.Contains(t, rec.last(), "Правила приняты")

	h.HandleProfile(ctx, 7, 7)
	profile := rec.last()
	require.Contains(t, profile, "Баланс: 0 баллов")
	require.Contains(t, profile, "Вне рейтинга (нужно от 80 баллов)")
	require.Contains(t, profile, "Множитель: x1.0")
	require.Contains(t, profile, "Тариф: FREE")
	require.NotContains(t, profile, "Правила не приняты")
}

func TestProfileUnknownUser(t *testing.T) {
	h, rec := newHandler(t)
	h.HandleProfile(context.Background(), 5, 5)
	require.Equal(t, "❌ пользователь не найден, напишите /start", rec.last())
}

func TestPolicyText(t *testing.T) {
	h, _ := newHandler(t)
	text := h.PolicyText()
	require.Contains(t, text, "версия 1.0")
	require.Contains(t, text, "списание до 50 баллов")
	require.Contains(t, text, "блокировка на 7 дней")
}
