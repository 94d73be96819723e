// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: перекат периода и очистку истёкших
// блокировок и уровней. Все расписания — в UTC.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/features/discipline"
	"serotonyl.ru/ascenso-bot/internal/features/rollover"
	"serotonyl.ru/ascenso-bot/internal/features/tiers"
	"serotonyl.ru/ascenso-bot/internal/metrics"
)

// Таймаут одного запуска задачи.
const jobTimeout = 5 * time.Minute

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron       *cron.Cron
	rollover   *rollover.Service
	discipline *discipline.Service
	tiers      *tiers.Service
	ctx        context.Context
}

// NewScheduler создаёт планировщик и регистрирует задачи.
// Ошибка — если выражение расписания не разбирается.
func NewScheduler(rolloverSpec, sweepSpec string, ro *rollover.Service, disc *discipline.Service, tr *tiers.Service) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		rollover:   ro,
		discipline: disc,
		tiers:      tr,
		ctx:        context.Background(),
	}

	if _, err := s.cron.AddFunc(rolloverSpec, func() { s.run("rollover", s.Rollover) }); err != nil {
		return nil, fmt.Errorf("ошибка расписания переката %q: %w", rolloverSpec, err)
	}
	if _, err := s.cron.AddFunc(sweepSpec, func() { s.run("sweep", s.Sweep) }); err != nil {
		return nil, fmt.Errorf("ошибка расписания очистки %q: %w", sweepSpec, err)
	}
	return s, nil
}

// Start запускает все фоновые задачи. Перекат выполняется сразу,
// чтобы не ждать первого срабатывания после простоя.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.run("rollover", s.Rollover)
	s.cron.Start()
	log.Info("Планировщик задач запущен (UTC)")
}

// Stop останавливает планировщик и ждёт текущие задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// run выполняет задачу с таймаутом и учитывает исход в метриках.
func (s *Scheduler) run(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	started := time.Now()
	if err := job(ctx); err != nil {
		metrics.JobRuns.WithLabelValues(name, "error").Inc()
		log.WithError(err).WithField("job", name).Error("[CRON] Ошибка задачи")
		return
	}
	metrics.JobRuns.WithLabelValues(name, "ok").Inc()
	log.WithFields(log.Fields{
		"job":      name,
		"duration": time.Since(started).Round(time.Millisecond),
	}).Debug("[CRON] Задача выполнена")
}

// Rollover — перекат рейтингового периода.
func (s *Scheduler) Rollover(ctx context.Context) error {
	res, err := s.rollover.EnsureRollover(ctx)
	if err != nil {
		return err
	}
	if res.Changed {
		log.Info("[CRON] " + res.Message())
	}
	return nil
}

// Sweep снимает истёкшие блокировки и гасит истёкшие уровни.
func (s *Scheduler) Sweep(ctx context.Context) error {
	released, err := s.discipline.ReleaseExpiredBlocks(ctx)
	if err != nil {
		return err
	}
	refreshed, err := s.tiers.RefreshExpired(ctx)
	if err != nil {
		return err
	}
	if released > 0 || refreshed > 0 {
		log.WithFields(log.Fields{
			"released":  released,
			"refreshed": refreshed,
		}).Info("[CRON] Очистка выполнена")
	}
	return nil
}
