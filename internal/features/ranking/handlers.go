// Package ranking — handlers.go обрабатывает /ranking [ГГГГ-ММ].
package ranking

import (
	"context"
	"fmt"
	"strings"

	"serotonyl.ru/ascenso-bot/internal/bot/reply"
	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
)

var medals = map[int]string{1: "🥇", 2: "🥈", 3: "🥉"}

// Handler обрабатывает команды рейтинга.
type Handler struct {
	service *Service
	bot     reply.Sender
}

// NewHandler создаёт обработчик рейтинга.
func NewHandler(service *Service, bot reply.Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleRanking показывает топ периода и, для текущего периода, место участника.
func (h *Handler) HandleRanking(ctx context.Context, chatID, userID int64, args []string) {
	var period string
	if len(args) > 0 {
		period = args[0]
	}
	period, rows, err := h.service.Top(ctx, period)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}

	text := FormatTop(period, rows, h.service.MinPoints())
	if period == common.MonthKey(h.service.clock.Now()) {
		pos, err := h.service.UserPosition(ctx, userID)
		if err == nil {
			text += "\n" + FormatPosition(pos)
		}
	}
	reply.Text(h.bot, chatID, text)
}

// FormatTop форматирует топ периода.
func FormatTop(period string, rows []domain.RankingRow, minPoints int64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏆 Рейтинг %s\n\n", period)
	if len(rows) == 0 {
		fmt.Fprintf(&sb, "Пока никто не набрал %s.\n", common.FormatPoints(minPoints))
		return sb.String()
	}
	for _, r := range rows {
		place, ok := medals[r.Position]
		if !ok {
			place = fmt.Sprintf("%d.", r.Position)
		}
		fmt.Fprintf(&sb, "%s %s — %s", place, r.Name, common.FormatPoints(r.Points))
		if r.Badge != "" {
			fmt.Fprintf(&sb, " [%s]", r.Badge)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatPosition — строка о месте участника.
func FormatPosition(p Position) string {
	if !p.Qualified() {
		return fmt.Sprintf("📍 У вас %s — пока вне рейтинга", common.FormatPoints(p.Points))
	}
	return fmt.Sprintf("📍 Ваше место: %d (%s)", p.Position, common.FormatPoints(p.Points))
}
