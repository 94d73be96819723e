// Package store описывает абстрактное хранилище, с которым работает движок.
//
// Реализации: internal/db/postgres (боевая) и internal/db/memory (тесты,
// пробные прогоны). Обе обязаны соблюдать одинаковые гарантии:
//   - ApplyBalanceDelta — атомарный инкремент, без чтения-изменения-записи;
//   - InsertClaim — уникальность (user, task, day) на уровне хранилища;
//   - TransitionClaim — compare-and-swap по статусу pending;
//   - GetUserForUpdate и GetRolloverState внутри WithinTx блокируют запись
//     до конца транзакции.
package store

import (
	"context"
	"errors"
	"time"

	"serotonyl.ru/ascenso-bot/internal/domain"
)

// ErrDuplicate — нарушение уникальности (id проводки, заявка за день, участник).
var ErrDuplicate = errors.New("запись уже существует")

// Store — контракт хранилища движка.
type Store interface {
	// WithinTx выполняет fn в транзакции. Ошибка fn откатывает все изменения.
	// Вложенный вызов выполняется в уже открытой транзакции.
	WithinTx(ctx context.Context, fn func(tx Store) error) error

	Ping(ctx context.Context) error

	// --- участники ---
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateProfile(ctx context.Context, userID int64, username, firstName, lastName string, at time.Time) error
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	GetUserForUpdate(ctx context.Context, userID int64) (*domain.User, error)
	AcceptPolicy(ctx context.Context, userID int64, version string, at time.Time) error

	// --- журнал и кеш баланса ---
	InsertLedgerEntry(ctx context.Context, e *domain.LedgerEntry) error
	ApplyBalanceDelta(ctx context.Context, userID int64, d domain.BalanceDelta) error
	ListLedgerEntries(ctx context.Context, userID int64, limit int) ([]*domain.LedgerEntry, error)
	SumLedger(ctx context.Context, userID int64, periodKey string) (domain.LedgerTotals, error)
	HasLedgerReason(ctx context.Context, userID int64, reasonCode string) (bool, error)
	OverwritePointsCache(ctx context.Context, userID int64, totals domain.LedgerTotals, periodKey string, at time.Time) error

	// --- заявки ---
	InsertClaim(ctx context.Context, c *domain.TaskClaim) error
	GetClaim(ctx context.Context, claimID string) (*domain.TaskClaim, error)
	TransitionClaim(ctx context.Context, claimID string, d domain.ClaimDecision) (bool, error)
	ListPendingClaims(ctx context.Context, limit, offset int) ([]*domain.TaskClaim, error)

	// --- уровни и тарифы ---
	SaveTiers(ctx context.Context, userID int64, elite, titan domain.TierSlot, at time.Time) error
	IncrementPremiumRedeems(ctx context.Context, userID int64) (int, error)
	SetPlan(ctx context.Context, userID int64, plan domain.Plan, at time.Time) error
	ListUsersWithExpiredTiers(ctx context.Context, now time.Time) ([]int64, error)

	// --- дисциплина ---
	SaveDiscipline(ctx context.Context, userID int64, status domain.Status, inf domain.Infractions, at time.Time) error
	ReleaseExpiredBlocks(ctx context.Context, now time.Time) (int64, error)

	// --- рейтинг ---
	TopByPeriod(ctx context.Context, periodKey string, minPoints int64, limit int) ([]*domain.User, error)
	CountAhead(ctx context.Context, periodKey string, points, minPoints int64) (int, error)
	PeriodStats(ctx context.Context, periodKey string) (domain.PeriodStats, error)

	// --- перекат периода ---
	GetRolloverState(ctx context.Context) (*domain.RolloverState, error)
	SaveRolloverState(ctx context.Context, st domain.RolloverState) error
	CreateSnapshotIfMissing(ctx context.Context, s *domain.MonthSnapshot) (bool, error)
	GetSnapshot(ctx context.Context, periodKey string) (*domain.MonthSnapshot, error)
	ResetPeriod(ctx context.Context, prevKey, curKey string, at time.Time) (int64, error)

	// --- победители ---
	UpsertWinner(ctx context.Context, w *domain.Winner) (bool, error)
	ClearWinners(ctx context.Context, periodKey string) (int64, error)
	ListWinners(ctx context.Context, periodKey string) ([]*domain.Winner, error)
}
