package redeem

import (
	"context"
	"fmt"
	"strings"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/features/ledger"
)

// RequestText собирает заявку на обмен, которую участник пересылает
// администратору. Баланс ничем не резервируется: списание происходит
// только в RedeemPlan.
func (s *Service) RequestText(ctx context.Context, userID int64, plan domain.PlanType) (string, error) {
	cost, _, err := s.Cost(plan)
	if err != nil {
		return "", err
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	now := s.clock.Now()

	enough := "НЕТ"
	if ledger.Affordable(u, cost, now) {
		enough = "ДА"
	}
	expires := "—"
	if u.Plan.ExpiresAt != nil {
		expires = common.FormatDateTime(*u.Plan.ExpiresAt)
	}

	var sb strings.Builder
	sb.WriteString("📌 ЗАЯВКА НА ОБМЕН\n")
	sb.WriteString("------------------------\n")
	fmt.Fprintf(&sb, "🆔 ID: %d\n", userID)
	fmt.Fprintf(&sb, "💰 Баланс: %s\n", common.FormatPoints(u.Points.Balance))
	fmt.Fprintf(&sb, "🎯 Тариф: %s (цена %s)\n", plan, common.FormatPoints(cost))
	fmt.Fprintf(&sb, "✅ Баллов достаточно: %s\n", enough)
	fmt.Fprintf(&sb, "🏷️ Текущий тариф: %s\n", u.Plan.Type)
	fmt.Fprintf(&sb, "⏳ Действует до: %s\n", expires)
	fmt.Fprintf(&sb, "🕒 Дата: %s\n", common.FormatDateTime(now))
	sb.WriteString("------------------------\n")
	fmt.Fprintf(&sb, "Админу: /redeem %d %s", userID, strings.ToLower(string(plan)))
	return sb.String(), nil
}
