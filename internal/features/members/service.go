// Package members — service.go содержит бизнес-логику участников:
// регистрация при первом обращении, обновление профиля, принятие правил
// и проверка допуска к заданиям.
package members

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/store"
)

// Service управляет участниками.
type Service struct {
	store store.Store
	clock common.Clock
	eco   config.Economy
}

// NewService создаёт сервис участников.
func NewService(st store.Store, clock common.Clock, eco config.Economy) *Service {
	return &Service{store: st, clock: clock, eco: eco}
}

// EnsureMember создаёт участника со всеми значениями по умолчанию или
// обновляет имя/username существующего. created=true для нового.
func (s *Service) EnsureMember(ctx context.Context, userID int64, username, firstName, lastName string) (*domain.User, bool, error) {
	now := s.clock.Now()

	u, err := s.store.GetUser(ctx, userID)
	if err == nil {
		if u.Username != username || u.FirstName != firstName || u.LastName != lastName {
			if err := s.store.UpdateProfile(ctx, userID, username, firstName, lastName, now); err != nil {
				return nil, false, fmt.Errorf("ошибка обновления профиля: %w", err)
			}
			u.Username, u.FirstName, u.LastName = username, firstName, lastName
		}
		return u, false, nil
	}
	if !errors.Is(err, common.ErrUserNotFound) {
		return nil, false, err
	}

	u = domain.NewUser(userID, username, firstName, lastName, s.eco.PolicyVersion, now)
	if err := s.store.CreateUser(ctx, u); err != nil {
		// Параллельный /start успел создать запись
		if errors.Is(err, store.ErrDuplicate) {
			u, err := s.store.GetUser(ctx, userID)
			return u, false, err
		}
		return nil, false, fmt.Errorf("ошибка создания участника: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":  userID,
		"username": username,
	}).Info("Новый участник зарегистрирован")
	return u, true, nil
}

// Get возвращает участника.
func (s *Service) Get(ctx context.Context, userID int64) (*domain.User, error) {
	return s.store.GetUser(ctx, userID)
}

// AcceptPolicy фиксирует согласие с текущей версией правил.
func (s *Service) AcceptPolicy(ctx context.Context, userID int64) error {
	if err := s.store.AcceptPolicy(ctx, userID, s.eco.PolicyVersion, s.clock.Now()); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"version": s.eco.PolicyVersion,
	}).Info("Правила приняты")
	return nil
}

// CheckEligible загружает участника и проверяет допуск к заданиям.
func (s *Service) CheckEligible(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := Eligible(u, s.clock.Now()); err != nil {
		return nil, err
	}
	return u, nil
}

// Eligible — правила приняты, нет бана и действующей блокировки.
func Eligible(u *domain.User, now time.Time) error {
	if !u.Policy.Accepted {
		return common.ErrPolicyNotAccepted
	}
	switch u.EffectiveState(now) {
	case domain.StateBanned:
		return common.ErrUserBanned
	case domain.StateBlocked:
		return common.ErrUserBlocked
	}
	return nil
}
