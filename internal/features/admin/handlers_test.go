package admin

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/db/memory"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/features/discipline"
	"serotonyl.ru/ascenso-bot/internal/features/ledger"
	"serotonyl.ru/ascenso-bot/internal/features/ranking"
	"serotonyl.ru/ascenso-bot/internal/features/redeem"
	"serotonyl.ru/ascenso-bot/internal/features/rollover"
	"serotonyl.ru/ascenso-bot/internal/features/tasks"
	"serotonyl.ru/ascenso-bot/internal/features/tiers"
	"serotonyl.ru/ascenso-bot/internal/features/winners"
)

type sent struct {
	chatID int64
	text   string
}

type recorder struct{ msgs []sent }

func (r *recorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m := c.(tgbotapi.MessageConfig)
	r.msgs = append(r.msgs, sent{chatID: m.ChatID, text: m.Text})
	return tgbotapi.Message{}, nil
}

// to возвращает последнее сообщение в чат.
func (r *recorder) to(chatID int64) string {
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].chatID == chatID {
			return r.msgs[i].text
		}
	}
	return ""
}

const adminID = 7

type fixture struct {
	h     *Handler
	rec   *recorder
	st    *memory.Store
	tasks *tasks.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	clock := common.NewManualClock(start)
	eco := config.DefaultEconomy()

	u := domain.NewUser(1, "ana", "Ana", "", "1.0", start)
	u.Policy.Accepted = true
	require.NoError(t, st.CreateUser(ctx, u))

	led := ledger.NewService(st, clock)
	tr := tiers.NewService(st, clock, eco)
	rk := ranking.NewService(st, clock, eco, nil)
	tk := tasks.NewService(st, clock, eco, led, tr)

	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	rec := &recorder{}
	h := NewHandler(NewService([]int64{adminID}, hash, clock), Services{
		Ledger:     led,
		Tasks:      tk,
		Tiers:      tr,
		Discipline: discipline.NewService(st, clock, eco, led),
		Redeem:     redeem.NewService(st, clock, eco, led, tr),
		Winners:    winners.NewService(st, clock),
		Rollover:   rollover.NewService(st, clock, rk),
	}, rec)
	return &fixture{h: h, rec: rec, st: st, tasks: tk}
}

func (f *fixture) cmd(t *testing.T, cmd string, args ...string) string {
	t.Helper()
	require.True(t, f.h.HandleCommand(context.Background(), adminID, adminID, cmd, args))
	return f.rec.to(adminID)
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	require.Contains(t, f.cmd(t, "login", "s3cret"), "Аутентификация успешна")
}

func TestNonAdminIgnored(t *testing.T) {
	f := newFixture(t)
	require.False(t, f.h.HandleCommand(context.Background(), 1, 1, "pending", nil))
	require.Empty(t, f.rec.msgs)
}

func TestPasswordPrompt(t *testing.T) {
	f := newFixture(t)

	require.Contains(t, f.cmd(t, "pending"), "Введите пароль")
	require.False(t, f.h.HandleText(1, 1, "s3cret"))
	require.True(t, f.h.HandleText(adminID, adminID, "wrong"))
	require.Contains(t, f.rec.to(adminID), "неверный пароль")

	require.Contains(t, f.cmd(t, "login"), "Введите пароль")
	require.True(t, f.h.HandleText(adminID, adminID, " s3cret "))
	require.Contains(t, f.rec.to(adminID), "Аутентификация успешна")
	require.False(t, f.h.HandleText(adminID, adminID, "s3cret"))

	require.Contains(t, f.cmd(t, "logout"), "Сессия завершена")
	require.Contains(t, f.cmd(t, "admin"), "Введите пароль")
}

func TestRedeemRoutingForOwnRequest(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	require.False(t, f.h.HandleCommand(context.Background(), adminID, adminID, "redeem", []string{"plus"}))
	require.False(t, f.h.HandleCommand(context.Background(), adminID, adminID, "balance", nil))
}

func TestApproveClaimFlow(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	require.Contains(t, f.cmd(t, "pending"), "Заявок на проверке нет")

	claim, err := f.tasks.SubmitEvidence(ctx, 1, "photo", "репост")
	require.NoError(t, err)
	page := f.cmd(t, "pending")
	require.Contains(t, page, claim.ID)
	require.Contains(t, page, "«репост»")

	require.Contains(t, f.cmd(t, "approve", claim.ID), "Одобрено: +6 баллов участнику 1")
	require.Contains(t, f.rec.to(1), "Репост одобрен")

	require.Contains(t, f.cmd(t, "reject", claim.ID), "заявка уже обработана")
	require.Contains(t, f.cmd(t, "approve"), "Формат")
}

func TestSanctionNeedsConfirm(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	require.Contains(t, f.cmd(t, "sanction", "1"), "/confirm")
	u, err := f.st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, u.Infractions.Count)

	require.Contains(t, f.cmd(t, "cancel"), "Отменено")
	require.Contains(t, f.cmd(t, "confirm"), "Нечего подтверждать")

	f.cmd(t, "sanction", "1", "спам")
	f.cmd(t, "confirm")
	u, err = f.st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, u.Infractions.Count)
	require.NotEmpty(t, f.rec.to(1))

	require.Contains(t, f.cmd(t, "sanction", "abc"), "Формат")
}

func TestTierAndAdjust(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	require.Contains(t, f.cmd(t, "tier", "gold", "1", "7"), "Формат")
	require.Contains(t, f.cmd(t, "tier", "titan", "1", "15", "за", "вклад"), "TITAN включён участнику 1 на 15 дней")
	u, err := f.st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, u.Titan.Active)
	require.True(t, u.Titan.Forced)

	require.Contains(t, f.cmd(t, "untier", "titan", "1"), "TITAN снят")

	require.Contains(t, f.cmd(t, "adjust", "1", "+40", "gift"), "+40 баллов участнику 1")
	require.Contains(t, f.cmd(t, "adjust", "1", "0"), "Формат")
	u, err = f.st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(40), u.Points.Balance)

	require.Contains(t, f.cmd(t, "redeem", "1", "plus"), "недостаточно")
}

func TestWinAndClear(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	require.Contains(t, f.cmd(t, "win", "1", "1", "2026-03", "лучший"), "2026-03: 1 место — @ana")
	require.Contains(t, f.cmd(t, "win", "4", "1"), "❌")
	require.Contains(t, f.cmd(t, "winclear", "2026-03"), "Победители 2026-03 удалены")
}

func TestFormatPending(t *testing.T) {
	require.Equal(t, "📭 Заявок на проверке нет", FormatPending(nil, 1))
}
