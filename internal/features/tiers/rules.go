// Package tiers — уровни Elite и Titan: истечение, автопродление,
// автоматическое повышение по баллам периода и ручное управление админом.
//
// rules.go — чистые правила над агрегатом участника, без хранилища.
package tiers

import (
	"time"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/domain"
)

// Допустимые сроки ручного уровня (дни).
var forcedDays = map[int]bool{7: true, 15: true, 30: true}

// Promotion — результат активации или продления слота.
type Promotion struct {
	Tier     domain.TierKind
	Until    time.Time
	Extended bool // слот уже был активен и срок сдвинут
}

func threshold(eco config.Economy, kind domain.TierKind) int64 {
	if kind == domain.TierTitan {
		return eco.TitanThreshold
	}
	return eco.EliteThreshold
}

// refreshSlots гасит истёкшие слоты. Если заработок текущего периода всё ещё
// не ниже порога, слот сразу включается снова на полный срок от now.
// Исключённому участнику слот только гасится.
// Возвращает true, если агрегат изменился.
func refreshSlots(u *domain.User, eco config.Economy, now time.Time) bool {
	changed := false
	current := u.Rank.PeriodKey == common.MonthKey(now)
	for _, kind := range []domain.TierKind{domain.TierElite, domain.TierTitan} {
		slot := u.Slot(kind)
		if !slot.Expired(now) {
			continue
		}
		*slot = domain.TierSlot{}
		changed = true
		if current && !u.IsBanned() && u.Rank.Earned >= threshold(eco, kind) {
			until := now.Add(eco.TierDuration())
			slot.Active = true
			slot.ActiveUntil = &until
		}
	}
	return changed
}

// multiplierFor — множитель наград. Блокировка и бан подавляют выгоду уровня,
// не трогая сами слоты.
func multiplierFor(u *domain.User, eco config.Economy, now time.Time) float64 {
	if u.IsRestricted(now) {
		return 1.0
	}
	switch {
	case u.Titan.Active:
		return eco.TitanMultiplier
	case u.Elite.Active:
		return eco.EliteMultiplier
	default:
		return 1.0
	}
}

// extend активирует слот или продлевает его. База продления — текущий срок,
// если он ещё в будущем, иначе now.
func extend(slot *domain.TierSlot, kind domain.TierKind, now time.Time, d time.Duration) *Promotion {
	base := now
	extended := false
	if slot.Active && slot.ActiveUntil != nil && slot.ActiveUntil.After(now) {
		base = *slot.ActiveUntil
		extended = true
	}
	until := base.Add(d)
	*slot = domain.TierSlot{Active: true, ActiveUntil: &until}
	return &Promotion{Tier: kind, Until: until, Extended: extended}
}

// promoteByPeriod — Titan проверяется первым; Elite только если Titan не активен.
func promoteByPeriod(u *domain.User, eco config.Economy, now time.Time) *Promotion {
	if u.IsBanned() || u.Rank.PeriodKey != common.MonthKey(now) {
		return nil
	}
	earned := u.Rank.Earned
	if earned >= eco.TitanThreshold {
		return extend(&u.Titan, domain.TierTitan, now, eco.TierDuration())
	}
	if earned >= eco.EliteThreshold && !u.Titan.Active {
		return extend(&u.Elite, domain.TierElite, now, eco.TierDuration())
	}
	return nil
}

// promoteByRedeems — Titan за накопленные обмены на PREMIUM.
func promoteByRedeems(u *domain.User, eco config.Economy, now time.Time) *Promotion {
	if u.IsBanned() || u.PremiumRedeems < eco.TitanPremiumRedeems {
		return nil
	}
	return extend(&u.Titan, domain.TierTitan, now, eco.TierDuration())
}
