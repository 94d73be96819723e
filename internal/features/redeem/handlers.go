package redeem

import (
	"context"
	"fmt"
	"strings"

	"serotonyl.ru/ascenso-bot/internal/bot/reply"
	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
)

// Handler обрабатывает /redeem участника: показывает цены или готовит заявку.
type Handler struct {
	service *Service
	bot     reply.Sender
}

// NewHandler создаёт обработчик обменов.
func NewHandler(service *Service, bot reply.Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleRedeem — /redeem [plus|premium].
func (h *Handler) HandleRedeem(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		reply.Text(h.bot, chatID, h.PriceList())
		return
	}
	text, err := h.service.RequestText(ctx, userID, domain.PlanType(strings.ToUpper(args[0])))
	if err != nil {
		reply.Error(h.bot, chatID, err)
		return
	}
	reply.Text(h.bot, chatID, text+"\n\nПерешлите это сообщение администратору.")
}

// PriceList — цены тарифов.
func (h *Handler) PriceList() string {
	plus, _, _ := h.service.Cost(domain.PlanPlus)
	premium, _, _ := h.service.Cost(domain.PlanPremium)
	return fmt.Sprintf("🎁 Обмен баллов на тариф (%d %s)\n\nPLUS — %s\nPREMIUM — %s\n\n/redeem plus или /redeem premium",
		h.service.eco.PlanDays, common.PluralizeDays(h.service.eco.PlanDays),
		common.FormatPoints(plus), common.FormatPoints(premium))
}
