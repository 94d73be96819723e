package ledger

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/metrics"
	"serotonyl.ru/ascenso-bot/internal/store"
)

// Audit — результат сверки кеша баланса с журналом.
type Audit struct {
	UserID    int64
	PeriodKey string
	Cached    domain.Points
	// Заработок текущего периода по кешу (0, если в кеше другой период)
	CachedPeriodEarned int64
	Ledger             domain.LedgerTotals
	Repaired           bool
}

// Consistent — кеш совпадает с пересчётом журнала.
func (a *Audit) Consistent() bool {
	return a.Cached.Balance == a.Ledger.Balance &&
		a.Cached.LifetimeEarned == a.Ledger.Earned &&
		a.Cached.LifetimeSpent == a.Ledger.Spent &&
		a.CachedPeriodEarned == a.Ledger.PeriodEarned
}

// Message — отчёт сверки для администратора и ledgerctl.
func (a *Audit) Message() string {
	status := "✅ Кеш совпадает с журналом"
	switch {
	case a.Repaired:
		status = "🛠 Расхождение исправлено"
	case !a.Consistent():
		status = "⚠️ Кеш расходится с журналом"
	}
	return fmt.Sprintf("%s\n"+
		"Участник: %d, проводок: %d\n"+
		"Баланс: кеш %d / журнал %d\n"+
		"Заработано: кеш %d / журнал %d\n"+
		"Потрачено: кеш %d / журнал %d\n"+
		"За %s: кеш %d / журнал %d",
		status, a.UserID, a.Ledger.Entries,
		a.Cached.Balance, a.Ledger.Balance,
		a.Cached.LifetimeEarned, a.Ledger.Earned,
		a.Cached.LifetimeSpent, a.Ledger.Spent,
		a.PeriodKey, a.CachedPeriodEarned, a.Ledger.PeriodEarned)
}

// Reconcile пересуммирует журнал участника и сравнивает с кешем.
// При repair=true и расхождении кеш перезаписывается значениями журнала.
// Автоматически не вызывается: это явная операция оператора (ledgerctl audit).
func (s *Service) Reconcile(ctx context.Context, userID int64, repair bool) (*Audit, error) {
	var audit *Audit
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		periodKey := common.MonthKey(now)

		totals, err := tx.SumLedger(ctx, userID, periodKey)
		if err != nil {
			return fmt.Errorf("ошибка пересчёта журнала: %w", err)
		}

		audit = &Audit{
			UserID:             userID,
			PeriodKey:          periodKey,
			Cached:             u.Points,
			CachedPeriodEarned: u.PeriodEarned(periodKey),
			Ledger:             totals,
		}
		if audit.Consistent() {
			return nil
		}

		metrics.LedgerDrift.Inc()
		log.WithFields(log.Fields{
			"user_id":        userID,
			"cached_balance": u.Points.Balance,
			"ledger_balance": totals.Balance,
		}).Warn("Кеш баланса расходится с журналом")

		if !repair {
			return nil
		}
		if err := tx.OverwritePointsCache(ctx, userID, totals, periodKey, now); err != nil {
			return fmt.Errorf("ошибка восстановления кеша: %w", err)
		}
		audit.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return audit, nil
}
