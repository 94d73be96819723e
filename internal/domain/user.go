// Package domain описывает строго типизированные сущности движка баллов:
// участника со всеми вложенными записями, проводки журнала, заявки на задания,
// снимки месяцев, состояние переката и победителей.
//
// Все необязательные поля имеют явные значения по умолчанию (NewUser),
// проверка целостности выполняется на границе хранилища (Validate).
package domain

import (
	"fmt"
	"time"
)

// State — жизненный цикл участника.
type State string

const (
	StateActive  State = "active"
	StateBlocked State = "blocked"
	StateBanned  State = "banned" // терминальное
)

// PlanType — выкупленный тариф.
type PlanType string

const (
	PlanFree    PlanType = "FREE"
	PlanPlus    PlanType = "PLUS"
	PlanPremium PlanType = "PREMIUM"
)

// TierKind — слот уровня.
type TierKind string

const (
	TierElite TierKind = "elite"
	TierTitan TierKind = "titan"
)

// Policy — согласие с правилами.
type Policy struct {
	Accepted   bool
	AcceptedAt *time.Time
	Version    string
}

// Status — дисциплинарное состояние.
type Status struct {
	State        State
	BlockedUntil *time.Time
	BanReason    string
}

// Infractions — счётчик нарушений.
type Infractions struct {
	Count  int
	LastAt *time.Time
}

// Points — кеш баланса, производный от журнала.
type Points struct {
	Balance        int64
	LifetimeEarned int64
	LifetimeSpent  int64
	UpdatedAt      *time.Time
}

// Rank — заработанное в рейтинговом периоде.
type Rank struct {
	PeriodKey   string
	Earned      int64
	LastResetAt *time.Time
}

// TierSlot — один слот уровня (Elite или Titan).
type TierSlot struct {
	Active          bool
	ActiveUntil     *time.Time
	Forced          bool
	ForcedByAdminID int64
	ForcedNote      string
}

// Expired — слот активен, но срок уже прошёл.
func (s TierSlot) Expired(now time.Time) bool {
	return s.Active && s.ActiveUntil != nil && !s.ActiveUntil.After(now)
}

// Plan — текущий выкупленный тариф.
type Plan struct {
	Type      PlanType
	ExpiresAt *time.Time
}

// User — агрегат участника.
type User struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string

	Policy      Policy
	Status      Status
	Infractions Infractions
	Points      Points
	Rank        Rank
	Elite       TierSlot
	Titan       TierSlot
	Plan        Plan

	PremiumRedeems int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser создаёт участника со всеми значениями по умолчанию.
func NewUser(userID int64, username, firstName, lastName, policyVersion string, now time.Time) *User {
	return &User{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		Policy:    Policy{Version: policyVersion},
		Status:    Status{State: StateActive},
		Rank:      Rank{PeriodKey: now.UTC().Format("2006-01"), LastResetAt: &now},
		Plan:      Plan{Type: PlanFree},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Slot возвращает слот уровня по виду.
func (u *User) Slot(kind TierKind) *TierSlot {
	if kind == TierTitan {
		return &u.Titan
	}
	return &u.Elite
}

// EffectiveState учитывает истёкшую блокировку: blocked с прошедшим
// blocked_until читается как active, даже если фоновая очистка ещё не прошла.
func (u *User) EffectiveState(now time.Time) State {
	if u.Status.State == StateBlocked && u.Status.BlockedUntil != nil && !u.Status.BlockedUntil.After(now) {
		return StateActive
	}
	return u.Status.State
}

// IsBanned — исключён навсегда.
func (u *User) IsBanned() bool {
	return u.Status.State == StateBanned
}

// IsRestricted — заблокирован (с учётом срока) или исключён.
func (u *User) IsRestricted(now time.Time) bool {
	return u.EffectiveState(now) != StateActive
}

// PeriodEarned возвращает заработанное в периоде periodKey.
// Если у участника записан другой период, заработок в текущем считается нулевым.
func (u *User) PeriodEarned(periodKey string) int64 {
	if u.Rank.PeriodKey != periodKey {
		return 0
	}
	return u.Rank.Earned
}

// DisplayName возвращает имя для вывода: @username, имя или ID.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		if u.LastName != "" {
			return u.FirstName + " " + u.LastName
		}
		return u.FirstName
	}
	return fmt.Sprintf("ID:%d", u.UserID)
}

// TierBadge — метка уровня для рейтинга.
func (u *User) TierBadge() string {
	switch {
	case u.Titan.Active:
		return "TITAN"
	case u.Elite.Active:
		return "ELITE"
	default:
		return ""
	}
}

// Validate проверяет агрегат перед записью.
func (u *User) Validate() error {
	if u.UserID == 0 {
		return fmt.Errorf("user_id не задан")
	}
	switch u.Status.State {
	case StateActive, StateBlocked, StateBanned:
	default:
		return fmt.Errorf("неизвестное состояние %q", u.Status.State)
	}
	if u.Status.State == StateBlocked && u.Status.BlockedUntil == nil {
		return fmt.Errorf("blocked без blocked_until")
	}
	switch u.Plan.Type {
	case PlanFree, PlanPlus, PlanPremium:
	default:
		return fmt.Errorf("неизвестный тариф %q", u.Plan.Type)
	}
	if u.Infractions.Count < 0 || u.PremiumRedeems < 0 {
		return fmt.Errorf("отрицательный счётчик")
	}
	return nil
}
