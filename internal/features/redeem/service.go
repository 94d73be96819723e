// Package redeem — обмен баллов на тариф Ascenso (PLUS или PREMIUM).
//
// Весь обмен — одна транзакция под блокировкой строки участника:
// списание, установка тарифа, разовый бонус за первый обмен и счётчик
// обменов PREMIUM (ведёт к автоматическому Titan).
package redeem

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/features/ledger"
	"serotonyl.ru/ascenso-bot/internal/features/tiers"
	"serotonyl.ru/ascenso-bot/internal/metrics"
	"serotonyl.ru/ascenso-bot/internal/store"
)

// Redemption — итог обмена.
type Redemption struct {
	UserID         int64
	Plan           domain.PlanType
	Cost           int64
	ExpiresAt      time.Time
	SpendEntryID   string
	BonusPoints    int64 // 0, если бонус за первый обмен уже был
	PremiumRedeems int
	Promotion      *tiers.Promotion
}

// Service выполняет обмены.
type Service struct {
	store  store.Store
	clock  common.Clock
	eco    config.Economy
	ledger *ledger.Service
	tiers  *tiers.Service
}

// NewService создаёт сервис обменов.
func NewService(st store.Store, clock common.Clock, eco config.Economy, led *ledger.Service, tr *tiers.Service) *Service {
	return &Service{store: st, clock: clock, eco: eco, ledger: led, tiers: tr}
}

// Cost — цена тарифа.
func (s *Service) Cost(plan domain.PlanType) (int64, string, error) {
	switch plan {
	case domain.PlanPlus:
		return s.eco.CostPlus, domain.ReasonRedeemPlus, nil
	case domain.PlanPremium:
		return s.eco.CostPremium, domain.ReasonRedeemPremium, nil
	default:
		return 0, "", common.ErrInvalidPlan
	}
}

// RedeemPlan списывает стоимость тарифа и активирует его на PlanDays.
// adminID — кто подтвердил обмен.
func (s *Service) RedeemPlan(ctx context.Context, userID int64, plan domain.PlanType, adminID int64) (*Redemption, error) {
	cost, reason, err := s.Cost(plan)
	if err != nil {
		return nil, err
	}

	var r *Redemption
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		u, err := s.tiers.RefreshTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if !ledger.Affordable(u, cost, now) {
			return common.ErrInsufficientBalance
		}

		expires := now.Add(s.eco.PlanDuration())
		r = &Redemption{UserID: userID, Plan: plan, Cost: cost, ExpiresAt: expires, PremiumRedeems: u.PremiumRedeems}

		r.SpendEntryID, err = s.ledger.PostEntryTx(ctx, tx, userID, domain.EntrySpend, domain.CategoryRedeem, reason, cost,
			map[string]any{"admin_id": adminID, "plan_type": string(plan), "expires_at": expires.Format(time.RFC3339)})
		if err != nil {
			return err
		}
		if err := tx.SetPlan(ctx, userID, domain.Plan{Type: plan, ExpiresAt: &expires}, now); err != nil {
			return fmt.Errorf("ошибка установки тарифа: %w", err)
		}

		// Проверка и бонус в той же транзакции под блокировкой участника
		had, err := tx.HasLedgerReason(ctx, userID, domain.ReasonBonusFirstRedeem)
		if err != nil {
			return fmt.Errorf("ошибка проверки бонуса: %w", err)
		}
		if !had {
			if _, err := s.ledger.PostEntryTx(ctx, tx, userID, domain.EntryBonus, domain.CategoryBonus,
				domain.ReasonBonusFirstRedeem, s.eco.BonusFirstRedeem,
				map[string]any{"admin_id": adminID, "note": "Бонус за первый обмен"}); err != nil {
				return err
			}
			r.BonusPoints = s.eco.BonusFirstRedeem
			if r.Promotion, err = s.tiers.AutoPromoteTx(ctx, tx, userID); err != nil {
				return err
			}
		}

		if plan == domain.PlanPremium {
			if r.PremiumRedeems, err = tx.IncrementPremiumRedeems(ctx, userID); err != nil {
				return fmt.Errorf("ошибка счётчика PREMIUM: %w", err)
			}
			p, err := s.tiers.PromoteByPremiumRedeemCountTx(ctx, tx, userID)
			if err != nil {
				return err
			}
			if p != nil {
				r.Promotion = p
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Redeems.WithLabelValues(string(plan)).Inc()
	log.WithFields(log.Fields{
		"user_id":  userID,
		"plan":     plan,
		"cost":     cost,
		"bonus":    r.BonusPoints,
		"admin_id": adminID,
	}).Info("Тариф выкуплен за баллы")
	return r, nil
}
