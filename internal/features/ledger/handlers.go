// Package ledger — handlers.go обрабатывает команды:
// /balance (баланс), /history (последние операции).
package ledger

import (
	"context"
	"fmt"
	"strings"

	"serotonyl.ru/ascenso-bot/internal/bot/reply"
	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
)

// reasonTitles — человекочитаемые причины для истории.
var reasonTitles = map[string]string{
	domain.TaskDailyCheckin:       "Ежедневная отметка",
	domain.TaskLessonQuiz:         "Мини-урок",
	domain.TaskSharePost:          "Репост",
	domain.ReasonRedeemPlus:       "Обмен на PLUS",
	domain.ReasonRedeemPremium:    "Обмен на PREMIUM",
	domain.ReasonBonusFirstRedeem: "Бонус за первый обмен",
	domain.ReasonPenaltyRemoved:   "Штраф",
	domain.ReasonAdminAdjust:      "Корректировка",
}

// ReasonTitle возвращает название причины или сам код.
func ReasonTitle(code string) string {
	if t, ok := reasonTitles[code]; ok {
		return t
	}
	return code
}

// Handler обрабатывает команды баланса.
type Handler struct {
	service *Service
	bot     reply.Sender
}

// NewHandler создаёт обработчик команд баланса.
func NewHandler(service *Service, bot reply.Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleBalance показывает баланс и суммы за всё время.
//
//	💰 Баланс: 150 баллов
//	Заработано всего: 200 баллов
//	Потрачено всего: 50 баллов
func (h *Handler) HandleBalance(ctx context.Context, chatID, userID int64) {
	u, err := h.service.store.GetUser(ctx, userID)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, fmt.Sprintf("💰 Баланс: %s\nЗаработано всего: %s\nПотрачено всего: %s",
		common.FormatPoints(u.Points.Balance),
		common.FormatPoints(u.Points.LifetimeEarned),
		common.FormatPoints(u.Points.LifetimeSpent)))
}

// HandleHistory показывает последние 10 операций.
func (h *Handler) HandleHistory(ctx context.Context, chatID, userID int64) {
	entries, err := h.service.History(ctx, userID, 10)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, FormatHistory(entries))
}

// FormatHistory форматирует список проводок.
func FormatHistory(entries []*domain.LedgerEntry) string {
	if len(entries) == 0 {
		return "📭 Операций пока нет"
	}
	var sb strings.Builder
	sb.WriteString("📒 Последние операции:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s  %s — %s\n",
			e.CreatedAt.UTC().Format("02.01 15:04"),
			common.FormatSignedPoints(e.SignedPoints),
			ReasonTitle(e.ReasonCode))
	}
	return sb.String()
}
