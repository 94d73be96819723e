// Package tasks — задания и заявки на награду.
//
// Ежедневные задания (отметка, мини-урок) одобряются сразу при отправке,
// не чаще раза в сутки (UTC). Репост всегда уходит в очередь и ждёт решения
// администратора. Множитель уровня берётся в момент начисления: для
// ежедневных это отправка, для репоста — одобрение.
package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/ascenso-bot/internal/common"
	"serotonyl.ru/ascenso-bot/internal/config"
	"serotonyl.ru/ascenso-bot/internal/domain"
	"serotonyl.ru/ascenso-bot/internal/features/ledger"
	"serotonyl.ru/ascenso-bot/internal/features/members"
	"serotonyl.ru/ascenso-bot/internal/features/tiers"
	"serotonyl.ru/ascenso-bot/internal/metrics"
	"serotonyl.ru/ascenso-bot/internal/store"
)

// Credit — результат начисления за задание.
type Credit struct {
	ClaimID    string
	TaskCode   string
	Base       int64
	Points     int64 // начислено с учётом множителя
	Multiplier string
	EntryID    string
	Promotion  *tiers.Promotion // nil, если уровень не изменился
}

// Decision — итог решения администратора по заявке.
type Decision struct {
	Claim  *domain.TaskClaim
	Credit *Credit // nil при отклонении
}

// Service обрабатывает задания.
type Service struct {
	store  store.Store
	clock  common.Clock
	eco    config.Economy
	ledger *ledger.Service
	tiers  *tiers.Service
}

// NewService создаёт сервис заданий.
func NewService(st store.Store, clock common.Clock, eco config.Economy, led *ledger.Service, tr *tiers.Service) *Service {
	return &Service{store: st, clock: clock, eco: eco, ledger: led, tiers: tr}
}

// CreditedPoints — ceil(base × mult), не меньше 1.
func CreditedPoints(base int64, mult float64) int64 {
	pts := decimal.NewFromInt(base).Mul(decimal.NewFromFloat(mult)).Ceil().IntPart()
	if pts < 1 {
		return 1
	}
	return pts
}

// FormatMultiplier — множитель в виде, который сохраняется в заявке и метаданных.
func FormatMultiplier(mult float64) string {
	return decimal.NewFromFloat(mult).StringFixed(1)
}

// BasePoints — базовые баллы задания.
func (s *Service) BasePoints(taskCode string) (int64, error) {
	switch taskCode {
	case domain.TaskDailyCheckin:
		return s.eco.PointsCheckin, nil
	case domain.TaskLessonQuiz:
		return s.eco.PointsLessonQuiz, nil
	case domain.TaskSharePost:
		return s.eco.PointsSharePost, nil
	default:
		return 0, fmt.Errorf("%w: unknown task %q", common.ErrContractViolation, taskCode)
	}
}

// ClaimDaily засчитывает ежедневное задание. Повтор в тот же день (UTC)
// возвращает common.ErrAlreadyClaimed без проводки.
func (s *Service) ClaimDaily(ctx context.Context, userID int64, taskCode string) (*Credit, error) {
	if !domain.IsDailyTask(taskCode) {
		return nil, fmt.Errorf("%w: %q is not a daily task", common.ErrContractViolation, taskCode)
	}
	base, err := s.BasePoints(taskCode)
	if err != nil {
		return nil, err
	}

	var credit *Credit
	err = s.store.WithinTx(ctx, func(tx store.Store) error {
		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := members.Eligible(u, now); err != nil {
			return err
		}

		mult, err := s.tiers.MultiplierTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		points := CreditedPoints(base, mult)
		dayKey := common.DayKey(now)

		claim := &domain.TaskClaim{
			ID:         uuid.NewString(),
			UserID:     userID,
			TaskCode:   taskCode,
			Points:     base,
			Credited:   points,
			Multiplier: FormatMultiplier(mult),
			Status:     domain.ClaimApproved,
			DayKey:     &dayKey,
			CreatedAt:  now,
			DecidedAt:  &now,
		}
		if err := tx.InsertClaim(ctx, claim); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return common.ErrAlreadyClaimed
			}
			return fmt.Errorf("ошибка создания заявки: %w", err)
		}

		credit, err = s.credit(ctx, tx, claim, points, mult, map[string]any{"day_key": dayKey})
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrAlreadyClaimed) {
			metrics.Claims.WithLabelValues(taskCode, "duplicate").Inc()
			log.WithFields(log.Fields{"user_id": userID, "task": taskCode}).Debug("Задание уже засчитано сегодня")
		}
		return nil, err
	}

	metrics.Claims.WithLabelValues(taskCode, "approved").Inc()
	return credit, nil
}

// credit проводит EARN по заявке и пересчитывает автоматический уровень.
func (s *Service) credit(ctx context.Context, tx store.Store, c *domain.TaskClaim, points int64, mult float64, meta map[string]any) (*Credit, error) {
	multStr := FormatMultiplier(mult)
	meta["claim_id"] = c.ID
	meta["base_points"] = c.Points
	meta["multiplier"] = multStr

	entryID, err := s.ledger.PostEntryTx(ctx, tx, c.UserID, domain.EntryEarn, domain.CategoryTask, c.TaskCode, points, meta)
	if err != nil {
		return nil, err
	}
	promo, err := s.tiers.AutoPromoteTx(ctx, tx, c.UserID)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":    c.UserID,
		"task":       c.TaskCode,
		"points":     points,
		"multiplier": multStr,
	}).Info("Задание засчитано")

	return &Credit{
		ClaimID:    c.ID,
		TaskCode:   c.TaskCode,
		Base:       c.Points,
		Points:     points,
		Multiplier: multStr,
		EntryID:    entryID,
		Promotion:  promo,
	}, nil
}

// SubmitEvidence создаёт заявку на репост. Баллы не начисляются до решения.
func (s *Service) SubmitEvidence(ctx context.Context, userID int64, evidenceRef, caption string) (*domain.TaskClaim, error) {
	if evidenceRef == "" {
		return nil, fmt.Errorf("%w: empty evidence reference", common.ErrContractViolation)
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := members.Eligible(u, now); err != nil {
		return nil, err
	}

	claim := &domain.TaskClaim{
		ID:          uuid.NewString(),
		UserID:      userID,
		TaskCode:    domain.TaskSharePost,
		Points:      s.eco.PointsSharePost,
		Status:      domain.ClaimPending,
		EvidenceRef: evidenceRef,
		Caption:     caption,
		WeeklyCode:  common.WeeklyCode(now),
		CreatedAt:   now,
	}
	if err := s.store.InsertClaim(ctx, claim); err != nil {
		return nil, fmt.Errorf("ошибка создания заявки: %w", err)
	}

	metrics.Claims.WithLabelValues(domain.TaskSharePost, "pending").Inc()
	log.WithFields(log.Fields{
		"user_id":  userID,
		"claim_id": claim.ID,
	}).Info("Заявка на репост отправлена")
	return claim, nil
}

// Decide одобряет или отклоняет заявку на репост. Переход возможен только
// из pending: второй вызов получает common.ErrClaimProcessed, вторая проводка
// не создаётся.
func (s *Service) Decide(ctx context.Context, claimID string, approve bool, adminID int64, note string) (*Decision, error) {
	if _, err := uuid.Parse(claimID); err != nil {
		return nil, common.ErrClaimNotFound
	}

	var result *Decision
	err := s.store.WithinTx(ctx, func(tx store.Store) error {
		c, err := tx.GetClaim(ctx, claimID)
		if err != nil {
			return err
		}
		if c.TaskCode != domain.TaskSharePost {
			return common.ErrClaimNotManual
		}
		if c.Status != domain.ClaimPending {
			return common.ErrClaimProcessed
		}
		now := s.clock.Now()

		if !approve {
			if note == "" {
				note = "Отклонено"
			}
			ok, err := tx.TransitionClaim(ctx, claimID, domain.ClaimDecision{
				Status: domain.ClaimRejected, AdminID: adminID, Note: note, At: now,
			})
			if err != nil {
				return fmt.Errorf("ошибка обновления заявки: %w", err)
			}
			if !ok {
				return common.ErrClaimProcessed
			}
			c.Status, c.AdminID, c.Note, c.DecidedAt = domain.ClaimRejected, adminID, note, &now
			result = &Decision{Claim: c}
			return nil
		}

		// Блокировка участника сериализует параллельные решения по его заявкам
		u, err := tx.GetUserForUpdate(ctx, c.UserID)
		if err != nil {
			return err
		}
		if u.IsBanned() {
			return common.ErrUserBanned
		}
		mult, err := s.tiers.MultiplierTx(ctx, tx, c.UserID)
		if err != nil {
			return err
		}
		points := CreditedPoints(c.Points, mult)
		if note == "" {
			note = "Одобрено"
		}

		ok, err := tx.TransitionClaim(ctx, claimID, domain.ClaimDecision{
			Status:     domain.ClaimApproved,
			Credited:   points,
			Multiplier: FormatMultiplier(mult),
			AdminID:    adminID,
			Note:       note,
			At:         now,
		})
		if err != nil {
			return fmt.Errorf("ошибка обновления заявки: %w", err)
		}
		if !ok {
			return common.ErrClaimProcessed
		}

		credit, err := s.credit(ctx, tx, c, points, mult, map[string]any{"approved_by": adminID, "weekly_code": c.WeeklyCode})
		if err != nil {
			return err
		}
		c.Status, c.Credited, c.Multiplier = domain.ClaimApproved, points, credit.Multiplier
		c.AdminID, c.Note, c.DecidedAt = adminID, note, &now
		result = &Decision{Claim: c, Credit: credit}
		return nil
	})
	if err != nil {
		return nil, err
	}

	outcome := "approved"
	if !approve {
		outcome = "rejected"
	}
	metrics.Claims.WithLabelValues(domain.TaskSharePost, outcome).Inc()
	log.WithFields(log.Fields{
		"claim_id": claimID,
		"admin_id": adminID,
		"outcome":  outcome,
	}).Info("Решение по заявке")
	return result, nil
}

// ListPending возвращает очередь заявок, старые первыми.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*domain.TaskClaim, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListPendingClaims(ctx, limit, offset)
}
