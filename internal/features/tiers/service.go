package tiers

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/metrics"
	"serotonyl.ru/ascenso-bot/internal/store"
)

// Service управляет слотами уровней. Каждая операция читает участника
// с блокировкой строки и сохраняет слоты в той же транзакции.
type Service struct {
	store store.Store
	clock common.Clock
	eco   config.Economy
}

// NewService создаёт сервис уровней.
func NewService(st store.Store, clock common.Clock, eco config.Economy) *Service {
	return &Service{store: st, clock: clock, eco: eco}
}

func (s *Service) save(ctx context.Context, tx store.Store, u *domain.User, now time.Time) error {
	if err := tx.SaveTiers(ctx, u.UserID, u.Elite, u.Titan, now); err != nil {
		return fmt.Errorf("ошибка сохранения уровней: %w", err)
	}
	return nil
}

// Refresh гасит истёкшие слоты участника (с автопродлением по баллам периода).
func (s *Service) Refresh(ctx context.Context, userID int64) error {
	return s.store.WithinTx(ctx, func(tx store.Store) error {
		_, err := s.RefreshTx(ctx, tx, userID)
		return err
	})
}

// RefreshTx — Refresh внутри транзакции вызывающего. Возвращает
// заблокированного участника с актуальными слотами.
func (s *Service) RefreshTx(ctx context.Context, tx store.Store, userID int64) (*domain.User, error) {
	u, err := tx.GetUserForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if !refreshSlots(u, s.eco, now) {
		return u, nil
	}
	if err := s.save(ctx, tx, u, now); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"elite":   u.Elite.Active,
		"titan":   u.Titan.Active,
	}).Info("Истёкшие уровни обновлены")
	metrics.TierChanges.WithLabelValues("any", "expire").Inc()
	return u, nil
}

// Multiplier возвращает текущий множитель наград участника.
func (s *Service) Multiplier(ctx context.Context, userID int64) (float64, error) {
	var mult float64
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		var err error
		mult, err = s.MultiplierTx(ctx, tx, userID)
		return err
	})
	return mult, err
}

// MultiplierTx — множитель внутри транзакции: сначала Refresh, затем выбор.
func (s *Service) MultiplierTx(ctx context.Context, tx store.Store, userID int64) (float64, error) {
	u, err := s.RefreshTx(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	return multiplierFor(u, s.eco, s.clock.Now()), nil
}

// AutoPromote повышает участника по заработку текущего периода.
// nil — ничего не изменилось.
func (s *Service) AutoPromote(ctx context.Context, userID int64) (*Promotion, error) {
	var p *Promotion
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		var err error
		p, err = s.AutoPromoteTx(ctx, tx, userID)
		return err
	})
	return p, err
}

// AutoPromoteTx — AutoPromote внутри транзакции вызывающего.
func (s *Service) AutoPromoteTx(ctx context.Context, tx store.Store, userID int64) (*Promotion, error) {
	u, err := s.RefreshTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	p := promoteByPeriod(u, s.eco, now)
	if p == nil {
		return nil, nil
	}
	if err := s.save(ctx, tx, u, now); err != nil {
		return nil, err
	}
	s.logPromotion(userID, p, "period_points")
	return p, nil
}

// PromoteByPremiumRedeemCount включает или продлевает Titan, когда
// число обменов на PREMIUM достигло порога.
func (s *Service) PromoteByPremiumRedeemCount(ctx context.Context, userID int64) (*Promotion, error) {
	var p *Promotion
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		var err error
		p, err = s.PromoteByPremiumRedeemCountTx(ctx, tx, userID)
		return err
	})
	return p, err
}

// PromoteByPremiumRedeemCountTx — то же внутри транзакции вызывающего.
func (s *Service) PromoteByPremiumRedeemCountTx(ctx context.Context, tx store.Store, userID int64) (*Promotion, error) {
	u, err := s.RefreshTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	p := promoteByRedeems(u, s.eco, now)
	if p == nil {
		return nil, nil
	}
	if err := s.save(ctx, tx, u, now); err != nil {
		return nil, err
	}
	s.logPromotion(userID, p, "premium_redeems")
	return p, nil
}

func (s *Service) logPromotion(userID int64, p *Promotion, trigger string) {
	action := "activate"
	if p.Extended {
		action = "extend"
	}
	metrics.TierChanges.WithLabelValues(string(p.Tier), action).Inc()
	log.WithFields(log.Fields{
		"user_id": userID,
		"tier":    p.Tier,
		"until":   p.Until,
		"action":  action,
		"trigger": trigger,
	}).Info("Уровень повышен")
}

func validKind(kind domain.TierKind) error {
	if kind != domain.TierElite && kind != domain.TierTitan {
		return fmt.Errorf("%w: unknown tier %q", common.ErrContractViolation, kind)
	}
	return nil
}

// ForceSet включает слот вручную на days ∈ {7, 15, 30} без учёта порогов.
func (s *Service) ForceSet(ctx context.Context, userID int64, kind domain.TierKind, days int, adminID int64, note string) (*domain.TierSlot, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	if !forcedDays[days] {
		return nil, common.ErrInvalidTierDays
	}
	if note == "" {
		note = "Назначено администратором"
	}

	var result domain.TierSlot
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		u, err := s.RefreshTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if u.IsBanned() {
			return common.ErrUserBanned
		}
		now := s.clock.Now()
		until := now.AddDate(0, 0, days)
		slot := u.Slot(kind)
		*slot = domain.TierSlot{
			Active:          true,
			ActiveUntil:     &until,
			Forced:          true,
			ForcedByAdminID: adminID,
			ForcedNote:      note,
		}
		result = *slot
		return s.save(ctx, tx, u, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.TierChanges.WithLabelValues(string(kind), "force_set").Inc()
	log.WithFields(log.Fields{
		"user_id":  userID,
		"tier":     kind,
		"days":     days,
		"admin_id": adminID,
	}).Info("Уровень назначен администратором")
	return &result, nil
}

// ForceUnset снимает слот немедленно. Снятие само помечается как ручное.
func (s *Service) ForceUnset(ctx context.Context, userID int64, kind domain.TierKind, adminID int64) error {
	if err := validKind(kind); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if u.IsBanned() {
			return common.ErrUserBanned
		}
		*u.Slot(kind) = domain.TierSlot{
			Forced:          true,
			ForcedByAdminID: adminID,
			ForcedNote:      "Снято администратором",
		}
		return s.save(ctx, tx, u, s.clock.Now())
	})
	if err != nil {
		return err
	}

	metrics.TierChanges.WithLabelValues(string(kind), "force_unset").Inc()
	log.WithFields(log.Fields{
		"user_id":  userID,
		"tier":     kind,
		"admin_id": adminID,
	}).Info("Уровень снят администратором")
	return nil
}

// RefreshExpired обходит участников с истёкшими слотами и обновляет каждого
// в отдельной транзакции. Вызывается планировщиком.
func (s *Service) RefreshExpired(ctx context.Context) (int, error) {
	ids, err := s.store.ListUsersWithExpiredTiers(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("ошибка поиска истёкших уровней: %w", err)
	}
	done := 0
	for _, id := range ids {
		if err := s.Refresh(ctx, id); err != nil {
			log.WithError(err).WithField("user_id", id).Error("Ошибка обновления уровней")
			continue
		}
		done++
	}
	return done, nil
}
