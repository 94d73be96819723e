// Package winners — ручной реестр победителей месяца (места 1–3).
// Не зависит от автоматического рейтинга: админ назначает места сам,
// баллы периода фиксируются на момент назначения.
package winners

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/store"
)

// Service ведёт реестр победителей.
type Service struct {
	store store.Store
	clock common.Clock
}

// NewService создаёт сервис победителей.
func NewService(st store.Store, clock common.Clock) *Service {
	return &Service{store: st, clock: clock}
}

func (s *Service) resolve(periodKey string) (string, error) {
	if periodKey == "" {
		return common.MonthKey(s.clock.Now()), nil
	}
	if !common.ValidPeriodKey(periodKey) {
		return "", common.ErrInvalidPeriod
	}
	return periodKey, nil
}

// Upsert назначает участника на место position, заменяя прежнего.
// replaced=true, если место было занято.
func (s *Service) Upsert(ctx context.Context, periodKey string, position int, userID, adminID int64, note string) (*domain.Winner, bool, error) {
	if position < 1 || position > 3 {
		return nil, false, common.ErrInvalidPosition
	}
	periodKey, err := s.resolve(periodKey)
	if err != nil {
		return nil, false, err
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if u.IsBanned() {
		return nil, false, common.ErrUserBanned
	}

	w := &domain.Winner{
		PeriodKey:    periodKey,
		Position:     position,
		UserID:       userID,
		DisplayName:  u.DisplayName(),
		PeriodPoints: u.PeriodEarned(periodKey),
		Note:         strings.TrimSpace(note),
		AdminID:      adminID,
		AssignedAt:   s.clock.Now(),
	}
	replaced, err := s.store.UpsertWinner(ctx, w)
	if err != nil {
		return nil, false, fmt.Errorf("ошибка сохранения победителя: %w", err)
	}

	log.WithFields(log.Fields{
		"period":   periodKey,
		"position": position,
		"user_id":  userID,
		"admin_id": adminID,
		"replaced": replaced,
	}).Info("Победитель назначен")
	return w, replaced, nil
}

// Clear удаляет победителей периода.
func (s *Service) Clear(ctx context.Context, periodKey string, adminID int64) (string, error) {
	periodKey, err := s.resolve(periodKey)
	if err != nil {
		return "", err
	}
	n, err := s.store.ClearWinners(ctx, periodKey)
	if err != nil {
		return "", fmt.Errorf("ошибка очистки победителей: %w", err)
	}
	if n == 0 {
		return periodKey, common.ErrNoWinners
	}
	log.WithFields(log.Fields{
		"period":   periodKey,
		"admin_id": adminID,
		"removed":  n,
	}).Info("Победители месяца удалены")
	return periodKey, nil
}

// Get возвращает победителей периода по возрастанию места.
func (s *Service) Get(ctx context.Context, periodKey string) (string, []*domain.Winner, error) {
	periodKey, err := s.resolve(periodKey)
	if err != nil {
		return "", nil, err
	}
	list, err := s.store.ListWinners(ctx, periodKey)
	if err != nil {
		return "", nil, fmt.Errorf("ошибка чтения победителей: %w", err)
	}
	return periodKey, list, nil
}
