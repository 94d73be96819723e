package domain

import (
	"fmt"
	"time"
)

// EntryType — тип проводки.
type EntryType string

const (
	EntryEarn    EntryType = "EARN"    // задания
	EntryBonus   EntryType = "BONUS"   // бонусы
	EntryAdjust  EntryType = "ADJUST"  // ручная корректировка (+/-)
	EntrySpend   EntryType = "SPEND"   // обмен на тариф
	EntryPenalty EntryType = "PENALTY" // штраф
)

// Категории проводок.
const (
	CategoryTask     = "TASK"
	CategoryRedeem   = "REDEEM"
	CategoryBonus    = "BONUS"
	CategorySecurity = "SECURITY"
	CategoryAdmin    = "ADMIN"
)

// Коды причин, которые движок ставит сам.
const (
	ReasonRedeemPlus       = "REDEEM_PLUS"
	ReasonRedeemPremium    = "REDEEM_PREMIUM"
	ReasonBonusFirstRedeem = "BONUS_FIRST_REDEEM"
	ReasonPenaltyRemoved   = "PENALTY_POINTS_REMOVED"
	ReasonAdminAdjust      = "ADMIN_ADJUST"
)

// LedgerEntry — неизменяемая проводка журнала.
type LedgerEntry struct {
	ID                int64
	EntryID           string
	UserID            int64
	Type              EntryType
	Category          string
	ReasonCode        string
	Points            int64 // всегда > 0
	SignedPoints      int64
	MonthEarnedPoints int64
	Meta              map[string]any
	PeriodKey         string
	CreatedAt         time.Time
}

// SignedAmounts возвращает знаковую сумму и вклад в заработок периода
// для типов с фиксированным знаком. ADJUST сюда не относится.
func SignedAmounts(t EntryType, points int64) (signed, monthEarned int64, err error) {
	if points <= 0 {
		return 0, 0, fmt.Errorf("points must be > 0, got %d", points)
	}
	switch t {
	case EntryEarn, EntryBonus:
		return points, points, nil
	case EntrySpend, EntryPenalty:
		return -points, 0, nil
	case EntryAdjust:
		return 0, 0, fmt.Errorf("ADJUST requires a signed delta")
	default:
		return 0, 0, fmt.Errorf("unknown entry type %q", t)
	}
}

// AdjustAmounts — то же для корректировки со знаком.
func AdjustAmounts(delta int64) (points, signed, monthEarned int64, err error) {
	if delta == 0 {
		return 0, 0, 0, fmt.Errorf("delta must be non-zero")
	}
	points = delta
	if points < 0 {
		points = -points
	}
	monthEarned = delta
	if monthEarned < 0 {
		monthEarned = 0
	}
	return points, delta, monthEarned, nil
}

// BalanceDelta — атомарное приращение кеша баланса.
// Если сохранённый ключ периода отличается от PeriodKey, заработок периода
// сначала обнуляется, затем увеличивается на MonthEarned.
type BalanceDelta struct {
	Signed      int64
	MonthEarned int64
	PeriodKey   string
	At          time.Time
}

// Earned — прирост lifetime_earned.
func (d BalanceDelta) Earned() int64 {
	if d.Signed > 0 {
		return d.Signed
	}
	return 0
}

// Spent — прирост lifetime_spent.
func (d BalanceDelta) Spent() int64 {
	if d.Signed < 0 {
		return -d.Signed
	}
	return 0
}

// LedgerTotals — пересчёт журнала пользователя.
type LedgerTotals struct {
	Balance      int64
	Earned       int64
	Spent        int64
	PeriodEarned int64
	Entries      int64
}
