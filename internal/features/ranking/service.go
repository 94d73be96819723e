// Package ranking — рейтинг рейтингового периода (месяца).
//
// В рейтинг попадают неисключённые участники, набравшие в периоде не меньше
// RankingMinPoints. Порядок: заработок по убыванию, при равенстве — меньший
// user_id выше. Топ кешируется (Redis) на короткий TTL.
package ranking

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/metrics"
	"serotonyl.ru/ascenso-bot/internal/store"
)

// Cache — кеш топа. Реализация: internal/cache.RankingCache.
type Cache interface {
	GetTop(ctx context.Context, periodKey string) ([]domain.RankingRow, bool, error)
	SetTop(ctx context.Context, periodKey string, rows []domain.RankingRow) error
	Invalidate(ctx context.Context, periodKey string) error
}

// Position — место участника в текущем периоде.
type Position struct {
	PeriodKey string
	Points    int64
	Position  int // 0 — не проходит порог
}

// Qualified — участник есть в рейтинге.
func (p Position) Qualified() bool { return p.Position > 0 }

// Service строит рейтинг.
type Service struct {
	store store.Store
	clock common.Clock
	eco   config.Economy
	cache Cache // nil — без кеша
}

// NewService создаёт сервис рейтинга. cache может быть nil.
func NewService(st store.Store, clock common.Clock, eco config.Economy, cache Cache) *Service {
	return &Service{store: st, clock: clock, eco: eco, cache: cache}
}

// BuildRows превращает отсортированных участников в строки рейтинга.
func BuildRows(users []*domain.User, periodKey string) []domain.RankingRow {
	rows := make([]domain.RankingRow, 0, len(users))
	for i, u := range users {
		rows = append(rows, domain.RankingRow{
			Position: i + 1,
			UserID:   u.UserID,
			Name:     u.DisplayName(),
			Points:   u.PeriodEarned(periodKey),
			Badge:    u.TierBadge(),
		})
	}
	return rows
}

// MinPoints — порог попадания в рейтинг.
func (s *Service) MinPoints() int64 { return s.eco.RankingMinPoints }

// ResolvePeriod — пустой ключ означает текущий период.
func (s *Service) ResolvePeriod(periodKey string) (string, error) {
	if periodKey == "" {
		return common.MonthKey(s.clock.Now()), nil
	}
	if !common.ValidPeriodKey(periodKey) {
		return "", common.ErrInvalidPeriod
	}
	return periodKey, nil
}

// Top возвращает топ периода (пустой periodKey — текущий).
func (s *Service) Top(ctx context.Context, periodKey string) (string, []domain.RankingRow, error) {
	periodKey, err := s.ResolvePeriod(periodKey)
	if err != nil {
		return "", nil, err
	}

	if s.cache != nil {
		rows, ok, err := s.cache.GetTop(ctx, periodKey)
		switch {
		case err != nil:
			metrics.RankingCache.WithLabelValues("error").Inc()
			log.WithError(err).Warn("Кеш рейтинга недоступен, читаем из базы")
		case ok:
			metrics.RankingCache.WithLabelValues("hit").Inc()
			return periodKey, rows, nil
		default:
			metrics.RankingCache.WithLabelValues("miss").Inc()
		}
	}

	users, err := s.store.TopByPeriod(ctx, periodKey, s.eco.RankingMinPoints, s.eco.RankingTopLimit)
	if err != nil {
		return "", nil, fmt.Errorf("ошибка построения рейтинга: %w", err)
	}
	rows := BuildRows(users, periodKey)

	if s.cache != nil {
		if err := s.cache.SetTop(ctx, periodKey, rows); err != nil {
			log.WithError(err).Warn("Не удалось сохранить рейтинг в кеш")
		}
	}
	return periodKey, rows, nil
}

// UserPeriodPoints — заработок участника в текущем периоде. Исключённым 0.
func (s *Service) UserPeriodPoints(ctx context.Context, userID int64) (int64, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if u.IsBanned() {
		return 0, nil
	}
	return u.PeriodEarned(common.MonthKey(s.clock.Now())), nil
}

// UserPosition — место участника в текущем периоде. Считаются только
// участники рейтинга (не ниже порога) со строго большим заработком,
// поэтому при равенстве баллов место общее.
func (s *Service) UserPosition(ctx context.Context, userID int64) (Position, error) {
	periodKey := common.MonthKey(s.clock.Now())
	points, err := s.UserPeriodPoints(ctx, userID)
	if err != nil {
		return Position{}, err
	}
	pos := Position{PeriodKey: periodKey, Points: points}
	if points < s.eco.RankingMinPoints || points == 0 {
		return pos, nil
	}
	ahead, err := s.store.CountAhead(ctx, periodKey, points, s.eco.RankingMinPoints)
	if err != nil {
		return Position{}, fmt.Errorf("ошибка расчёта места: %w", err)
	}
	pos.Position = ahead + 1
	return pos, nil
}

// Invalidate сбрасывает кеш топа периода.
func (s *Service) Invalidate(ctx context.Context, periodKey string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, periodKey); err != nil {
		log.WithError(err).WithField("period", periodKey).Warn("Не удалось сбросить кеш рейтинга")
	}
}
