// Package rollover — глобальный перекат рейтингового периода.
//
// Состояние — одна строка system_state с последним обработанным периодом.
// При смене месяца один раз сохраняется снимок прошлого периода (топ-3 и
// агрегаты), затем всем участникам, оставшимся в прошлом периоде, обнуляется
// заработок. Балансы и журнал не трогаются.
//
// Ленивый сброс в ledger при первой проводке нового месяца приводит к тому
// же состоянию; какой механизм сработает первым — не важно.
package rollover

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/features/ranking"
	"serotonyl.ru/ascenso-bot/internal/metrics"
	"serotonyl.ru/ascenso-bot/internal/store"
)

// Размер топа в снимке месяца.
const snapshotTop = 3

// Result — итог EnsureRollover.
type Result struct {
	Changed         bool
	Previous        string
	Current         string
	SnapshotCreated bool
	ResetUsers      int64
}

// Message — краткое описание для логов и ledgerctl.
func (r *Result) Message() string {
	switch {
	case r.Changed:
		return fmt.Sprintf("Перекат %s → %s, сброшено участников: %d", r.Previous, r.Current, r.ResetUsers)
	case r.Previous == "":
		return "Состояние инициализировано"
	default:
		return "Перекат не требуется"
	}
}

// Service выполняет перекат.
type Service struct {
	store   store.Store
	clock   common.Clock
	ranking *ranking.Service // может быть nil
}

// NewService создаёт сервис переката.
func NewService(st store.Store, clock common.Clock, rk *ranking.Service) *Service {
	return &Service{store: st, clock: clock, ranking: rk}
}

// EnsureRollover проверяет смену периода и выполняет перекат один раз.
// Первый запуск только запоминает текущий период.
func (s *Service) EnsureRollover(ctx context.Context) (*Result, error) {
	now := s.clock.Now()
	cur := common.MonthKey(now)
	res := &Result{Current: cur}

	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		state, err := tx.GetRolloverState(ctx)
		if err != nil {
			return fmt.Errorf("ошибка чтения состояния переката: %w", err)
		}
		if state == nil || !common.ValidPeriodKey(state.PeriodKey) {
			return tx.SaveRolloverState(ctx, domain.RolloverState{PeriodKey: cur, LastRunAt: now})
		}
		res.Previous = state.PeriodKey
		if state.PeriodKey == cur {
			return nil
		}

		prev := state.PeriodKey
		users, err := tx.TopByPeriod(ctx, prev, 0, snapshotTop)
		if err != nil {
			return fmt.Errorf("ошибка построения топа: %w", err)
		}
		stats, err := tx.PeriodStats(ctx, prev)
		if err != nil {
			return fmt.Errorf("ошибка агрегатов периода: %w", err)
		}

		res.SnapshotCreated, err = tx.CreateSnapshotIfMissing(ctx, &domain.MonthSnapshot{
			PeriodKey: prev,
			Top:       ranking.BuildRows(users, prev),
			Stats:     stats,
			CreatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("ошибка сохранения снимка: %w", err)
		}

		res.ResetUsers, err = tx.ResetPeriod(ctx, prev, cur, now)
		if err != nil {
			return fmt.Errorf("ошибка сброса периода: %w", err)
		}
		res.Changed = true
		return tx.SaveRolloverState(ctx, domain.RolloverState{PeriodKey: cur, LastRunAt: now})
	})
	if err != nil {
		return nil, err
	}

	if !res.Changed {
		log.WithField("period", cur).Debug(res.Message())
		return res, nil
	}

	metrics.Rollovers.Inc()
	if s.ranking != nil {
		s.ranking.Invalidate(ctx, res.Previous)
		s.ranking.Invalidate(ctx, res.Current)
	}
	log.WithFields(log.Fields{
		"previous": res.Previous,
		"current":  res.Current,
		"snapshot": res.SnapshotCreated,
		"reset":    res.ResetUsers,
	}).Info("Рейтинговый период закрыт")
	return res, nil
}

// GetSnapshot возвращает снимок закрытого периода.
func (s *Service) GetSnapshot(ctx context.Context, periodKey string) (*domain.MonthSnapshot, error) {
	if !common.ValidPeriodKey(periodKey) {
		return nil, common.ErrInvalidPeriod
	}
	return s.store.GetSnapshot(ctx, periodKey)
}

// LastRun — время последнего изменения состояния переката (нулевое, если не было).
func (s *Service) LastRun(ctx context.Context) (string, time.Time, error) {
	st, err := s.store.GetRolloverState(ctx)
	if err != nil || st == nil {
		return "", time.Time{}, err
	}
	return st.PeriodKey, st.LastRunAt, nil
}
