// Package members — handlers.go обрабатывает команды участника:
// /start, /help, /policy, /accept, /me.
package members

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/bot/reply"
	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/features/ranking"
	"serotonyl.ru/ascenso-bot/internal/features/tiers"
)

// Handler обрабатывает команды участника.
type Handler struct {
	service *Service
	tiers   *tiers.Service
	ranking *ranking.Service
	bot     reply.Sender
}

// NewHandler создаёт обработчик команд участника.
func NewHandler(service *Service, tr *tiers.Service, rk *ranking.Service, bot reply.Sender) *Handler {
	return &Handler{service: service, tiers: tr, ranking: rk, bot: bot}
}

// HelpText — список команд участника.
const HelpText = `🏔 Ascenso — баллы за активность

/policy — правила
/accept — принять правила
/me — профиль, уровень и место
/balance — баланс
/history — последние операции
/checkin — ежедневная отметка
/quiz — мини-урок дня
/share — репост и отправка скриншота
/ranking — рейтинг месяца
/winners — победители месяца
/redeem plus|premium — заявка на обмен баллов`

// HandleStart регистрирует участника и показывает приветствие.
// Аргумент вида ref_<id> пишется в лог как источник приглашения.
func (h *Handler) HandleStart(ctx context.Context, chatID int64, from *tgbotapi.User, args []string) {
	u, created, err := h.service.EnsureMember(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	if created && len(args) > 0 && strings.HasPrefix(args[0], "ref_") {
		log.WithFields(log.Fields{
			"user_id": from.ID,
			"ref":     strings.TrimPrefix(args[0], "ref_"),
		}).Info("Участник пришёл по приглашению")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👋 Привет, %s!\n\n", u.DisplayName())
	sb.WriteString(HelpText)
	if !u.Policy.Accepted {
		sb.WriteString("\n\n⚠️ Чтобы получать баллы, прочитайте /policy и нажмите /accept.")
	}
	reply.Text(h.bot, chatID, sb.String())
}

// PolicyText — текст правил с текущими параметрами экономики.
func (h *Handler) PolicyText() string {
	eco := h.service.eco
	return fmt.Sprintf(`📜 Правила Ascenso (версия %s)

1. Баллы начисляются только за честно выполненные задания.
2. Ежедневные задания засчитываются один раз в сутки (UTC).
3. Скриншоты репостов проверяет администратор.
4. Нарушения наказываются по нарастающей:
   • первое — списание до %s;
   • второе — блокировка на %d %s;
   • третье — исключение навсегда.

Нажмите /accept, чтобы принять правила.`,
		eco.PolicyVersion,
		common.FormatPoints(eco.PenaltyFirstPoints),
		eco.BlockDays, common.PluralizeDays(eco.BlockDays))
}

// HandlePolicy показывает правила.
func (h *Handler) HandlePolicy(chatID int64) {
	reply.Text(h.bot, chatID, h.PolicyText())
}

// HandleAccept фиксирует согласие с правилами.
func (h *Handler) HandleAccept(ctx context.Context, chatID, userID int64) {
	if err := h.service.AcceptPolicy(ctx, userID); err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, "✅ Правила приняты. Начните с /checkin!")
}

// HandleProfile показывает профиль: баланс, заработок месяца, место, уровень и тариф.
func (h *Handler) HandleProfile(ctx context.Context, chatID, userID int64) {
	if err := h.tiers.Refresh(ctx, userID); err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	u, err := h.service.Get(ctx, userID)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	mult, err := h.tiers.Multiplier(ctx, userID)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	pos, err := h.ranking.UserPosition(ctx, userID)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, h.ProfileText(u, mult, pos))
}

// ProfileText форматирует профиль участника.
func (h *Handler) ProfileText(u *domain.User, mult float64, pos ranking.Position) string {
	now := h.service.clock.Now()

	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 %s\n\n", u.DisplayName())
	fmt.Fprintf(&sb, "💰 Баланс: %s\n", common.FormatPoints(u.Points.Balance))
	fmt.Fprintf(&sb, "📈 За месяц (%s): %s\n", pos.PeriodKey, common.FormatPoints(pos.Points))
	if pos.Qualified() {
		fmt.Fprintf(&sb, "🏅 Место: %d\n", pos.Position)
	} else {
		fmt.Fprintf(&sb, "🏅 Вне рейтинга (нужно от %s)\n", common.FormatPoints(h.service.eco.RankingMinPoints))
	}

	switch {
	case u.Titan.Active && u.Titan.ActiveUntil != nil:
		fmt.Fprintf(&sb, "💎 Уровень: TITAN до %s\n", common.FormatDateTime(*u.Titan.ActiveUntil))
	case u.Elite.Active && u.Elite.ActiveUntil != nil:
		fmt.Fprintf(&sb, "🏆 Уровень: ELITE до %s\n", common.FormatDateTime(*u.Elite.ActiveUntil))
	default:
		sb.WriteString("⭐ Уровень: базовый\n")
	}
	fmt.Fprintf(&sb, "✖️ Множитель: x%.1f\n", mult)

	if u.Plan.Type != domain.PlanFree && u.Plan.ExpiresAt != nil {
		fmt.Fprintf(&sb, "🎫 Тариф: %s до %s\n", u.Plan.Type, common.FormatDateTime(*u.Plan.ExpiresAt))
	} else {
		fmt.Fprintf(&sb, "🎫 Тариф: %s\n", u.Plan.Type)
	}

	switch u.EffectiveState(now) {
	case domain.StateBlocked:
		if u.Status.BlockedUntil != nil {
			fmt.Fprintf(&sb, "⛔ Заблокирован до %s\n", common.FormatDateTime(*u.Status.BlockedUntil))
		} else {
			sb.WriteString("⛔ Заблокирован\n")
		}
	case domain.StateBanned:
		sb.WriteString("🚫 Исключён\n")
	}
	if !u.Policy.Accepted {
		sb.WriteString("⚠️ Правила не приняты: /policy\n")
	}
	return sb.String()
}
