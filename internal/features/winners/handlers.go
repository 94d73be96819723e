// Package winners — handlers.go обрабатывает /winners [ГГГГ-ММ].
package winners

import (
	"context"
	"fmt"
	"strings"

	"serotonyl.ru/ascenso-bot/internal/bot/reply"
	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
)

// Handler показывает победителей.
type Handler struct {
	service *Service
	bot     reply.Sender
}

// NewHandler создаёт обработчик победителей.
func NewHandler(service *Service, bot reply.Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleWinners показывает победителей периода.
func (h *Handler) HandleWinners(ctx context.Context, chatID int64, args []string) {
	var period string
	if len(args) > 0 {
		period = args[0]
	}
	period, list, err := h.service.Get(ctx, period)
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, FormatWinners(period, list))
}

// FormatWinners форматирует список победителей.
func FormatWinners(period string, list []*domain.Winner) string {
	if len(list) == 0 {
		return fmt.Sprintf("🏅 Победители %s ещё не объявлены", period)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏅 Победители %s\n\n", period)
	for _, w := range list {
		fmt.Fprintf(&sb, "%d место — %s (%s)", w.Position, w.DisplayName, common.FormatPoints(w.PeriodPoints))
		if w.Note != "" {
			fmt.Fprintf(&sb, ": %s", w.Note)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
